// Package api assembles the HTTP front-end.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/api/handlers"
	"github.com/orrn/labelrelay/internal/api/middleware"
	"github.com/orrn/labelrelay/internal/archive"
	"github.com/orrn/labelrelay/internal/config"
	"github.com/orrn/labelrelay/internal/core"
	"github.com/orrn/labelrelay/internal/db"
	"github.com/orrn/labelrelay/internal/session"
)

// Deps are the components the routes serve. Archiver and Auth may be nil.
type Deps struct {
	Config    *config.Store
	Snapshots *core.SnapshotStore
	Jobs      handlers.JobFetcher
	Printer   session.Printer
	Monitor   handlers.PrinterMonitor
	Ledger    *db.DB
	Archiver  *archive.Archiver
	Auth      *middleware.AuthMiddleware
	Logger    *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))

	var guard []gin.HandlerFunc
	if d.Auth != nil {
		guard = append(guard, d.Auth.RequireAuth())
	}

	handlers.NewWebUIHandler().RegisterRoutes(r)
	r.GET("/ws", append(guard, handlers.NewWSHandler(d.Printer, d.Config, d.Logger).Serve)...)

	apiGroup := r.Group("/api")
	if d.Auth != nil {
		d.Auth.RegisterRoutes(apiGroup)
	}
	handlers.NewJobHandler(d.Jobs).RegisterRoutes(apiGroup)
	handlers.NewConfigHandler(d.Config, d.Snapshots).RegisterRoutes(apiGroup, guard...)
	handlers.NewPrinterHandler(d.Monitor).RegisterRoutes(apiGroup)
	handlers.NewTemplateHandler(d.Snapshots).RegisterRoutes(apiGroup)
	handlers.NewHistoryHandler(d.Ledger).RegisterRoutes(apiGroup)
	if d.Archiver != nil {
		handlers.NewArchiveHandler(d.Archiver).RegisterRoutes(apiGroup, guard...)
	}

	return r
}

package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/config"
	"github.com/orrn/labelrelay/internal/session"
)

type WSHandler struct {
	printer session.Printer
	store   *config.Store
	logger  *slog.Logger
}

func NewWSHandler(printer session.Printer, store *config.Store, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{printer: printer, store: store, logger: logger}
}

// Serve upgrades the request and blocks for the lifetime of the session.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := session.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := session.New(conn, h.printer, session.Options{
		DefaultTemplate: h.store.Current().Templates.Default,
		Logger:          h.logger,
	})
	s.Serve(c.Request.Context())
}

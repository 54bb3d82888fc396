package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/core"
)

type PrinterMonitor interface {
	Status() core.PrinterStatus
	Check(ctx context.Context) core.PrinterStatus
}

type PrinterHandler struct {
	monitor PrinterMonitor
}

func NewPrinterHandler(monitor PrinterMonitor) *PrinterHandler {
	return &PrinterHandler{monitor: monitor}
}

func (h *PrinterHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Status())
}

// CheckNow probes the printer immediately instead of waiting for the
// next health check.
func (h *PrinterHandler) CheckNow(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Check(c.Request.Context()))
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printer", h.GetStatus)
	r.POST("/printer/check", h.CheckNow)
}

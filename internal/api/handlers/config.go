package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/config"
	"github.com/orrn/labelrelay/internal/core"
)

type ConfigHandler struct {
	store     *config.Store
	snapshots *core.SnapshotStore
}

type UIConfig struct {
	OdooURL         string `json:"odoo_url"`
	AutoRefresh     int    `json:"auto_refresh"`
	CompanyName     string `json:"company_name,omitempty"`
	DefaultTemplate string `json:"default_template"`
	Printer         string `json:"printer"`
}

type ConfigResponse struct {
	Config    UIConfig          `json:"config"`
	Templates map[string]string `json:"templates"`
}

// UpdateConfigRequest is a partial update; nil fields are left alone.
type UpdateConfigRequest struct {
	OdooURL         *string               `json:"odoo_url"`
	AutoRefresh     *int                  `json:"auto_refresh"`
	CompanyName     *string               `json:"company_name"`
	DefaultTemplate *string               `json:"default_template"`
	Printer         *UpdatePrinterRequest `json:"printer"`
}

type UpdatePrinterRequest struct {
	Host *string `json:"host"`
	Port *int    `json:"port"`
}

func NewConfigHandler(store *config.Store, snapshots *core.SnapshotStore) *ConfigHandler {
	return &ConfigHandler{store: store, snapshots: snapshots}
}

func (h *ConfigHandler) response() ConfigResponse {
	cfg := h.store.Current()
	snap := h.snapshots.Load()
	return ConfigResponse{
		Config: UIConfig{
			OdooURL:         cfg.Remote.URL,
			AutoRefresh:     cfg.Remote.AutoRefresh,
			CompanyName:     cfg.Remote.CompanyName,
			DefaultTemplate: cfg.Templates.Default,
			Printer:         snap.Endpoint.Address(),
		},
		Templates: snap.Templates.Labels(),
	}
}

func (h *ConfigHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if req.AutoRefresh != nil && *req.AutoRefresh < 0 {
		abortError(c, http.StatusBadRequest, "validation_error", errors.New("auto_refresh must be non-negative"))
		return
	}
	if req.DefaultTemplate != nil {
		if _, ok := h.snapshots.Load().Templates.Get(*req.DefaultTemplate); !ok {
			abortError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("%w: %q", core.ErrTemplateNotFound, *req.DefaultTemplate))
			return
		}
	}

	_, err := h.store.Update(func(cfg *config.Config) {
		if req.OdooURL != nil {
			cfg.Remote.URL = *req.OdooURL
		}
		if req.AutoRefresh != nil {
			cfg.Remote.AutoRefresh = *req.AutoRefresh
		}
		if req.CompanyName != nil {
			cfg.Remote.CompanyName = *req.CompanyName
		}
		if req.DefaultTemplate != nil {
			cfg.Templates.Default = *req.DefaultTemplate
		}
		if p := req.Printer; p != nil {
			if p.Host != nil {
				cfg.Printer.Host = *p.Host
			}
			if p.Port != nil {
				cfg.Printer.Port = *p.Port
			}
		}
	})
	if err != nil {
		abortError(c, http.StatusBadRequest, "config_error", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "config": h.response().Config})
}

func (h *ConfigHandler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	r.GET("/config", h.GetConfig)
	r.POST("/config", chain(guard, h.UpdateConfig)...)
}

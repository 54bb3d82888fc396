package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/core"
)

type TemplateHandler struct {
	snapshots *core.SnapshotStore
}

type TemplateInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Problem string `json:"problem,omitempty"`
}

type PreviewResponse struct {
	Template string `json:"template"`
	Copies   int    `json:"copies"`
	Command  string `json:"command"`
}

func NewTemplateHandler(snapshots *core.SnapshotStore) *TemplateHandler {
	return &TemplateHandler{snapshots: snapshots}
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	set := h.snapshots.Load().Templates
	problems := set.Check()

	infos := make([]TemplateInfo, 0, set.Len())
	for _, name := range set.Names() {
		t, _ := set.Get(name)
		info := TemplateInfo{Name: name, Label: t.Label, Kind: "body"}
		if t.Schema != nil {
			info.Kind = "schema"
		}
		if err := problems[name]; err != nil {
			info.Problem = err.Error()
		}
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, gin.H{"templates": infos, "count": len(infos)})
}

// PreviewTemplate renders the posted job without sending it anywhere.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	var job core.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	name := c.Param("name")
	commands, err := core.NewRenderer(h.snapshots.Load().Templates).Render(job, name)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, core.ErrTemplateNotFound) || errors.Is(err, core.ErrEmptyTemplateStore) {
			status = http.StatusNotFound
		}
		abortError(c, status, "render_error", err)
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{Template: name, Copies: len(commands), Command: commands[0]})
}

func (h *TemplateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/templates", h.ListTemplates)
	r.POST("/templates/:name/preview", h.PreviewTemplate)
}

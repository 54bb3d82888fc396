package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/archive"
)

type ArchiveHandler struct {
	archiver *archive.Archiver
}

type ArchiveListResponse struct {
	Archives []*archive.ArchiveFile `json:"archives"`
	Count    int                    `json:"count"`
}

func NewArchiveHandler(archiver *archive.Archiver) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver}
}

func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	archives, err := h.archiver.ListArchives()
	if err != nil {
		abortError(c, http.StatusInternalServerError, "archive_error", err)
		return
	}
	c.JSON(http.StatusOK, ArchiveListResponse{Archives: archives, Count: len(archives)})
}

func (h *ArchiveHandler) DownloadArchive(c *gin.Context) {
	filename := c.Param("filename")
	path, err := h.archiver.Open(filename)
	if err != nil {
		if errors.Is(err, archive.ErrArchiveNotFound) {
			abortError(c, http.StatusNotFound, "not_found", err)
			return
		}
		abortError(c, http.StatusInternalServerError, "archive_error", err)
		return
	}
	c.FileAttachment(path, filename)
}

func (h *ArchiveHandler) TriggerArchive(c *gin.Context) {
	n, err := h.archiver.Run(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, "archive_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "archive completed", "archived": n})
}

func (h *ArchiveHandler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	r.GET("/archives", h.ListArchives)
	r.GET("/archives/:filename", chain(guard, h.DownloadArchive)...)
	r.POST("/archives/run", chain(guard, h.TriggerArchive)...)
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/labelrelay/internal/db"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	defaultStatsDays    = 7
	maxStatsDays        = 366
)

type HistoryHandler struct {
	ledger *db.DB
}

type HistoryResponse struct {
	Entries []*db.HistoryEntry `json:"entries"`
	Count   int                `json:"count"`
}

type StatsResponse struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	Days       []*db.DailyCount `json:"days"`
	Labels     int64            `json:"labels"`
	JobsDone   int64            `json:"jobs_done"`
	JobsFailed int64            `json:"jobs_failed"`
}

func NewHistoryHandler(ledger *db.DB) *HistoryHandler {
	return &HistoryHandler{ledger: ledger}
}

func (h *HistoryHandler) ListHistory(c *gin.Context) {
	limit, err := boundedInt(c.Query("limit"), defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	entries, err := h.ledger.History.ListRecent(c.Request.Context(), limit)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "database_error", err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

func (h *HistoryHandler) GetStats(c *gin.Context) {
	days, err := boundedInt(c.Query("days"), defaultStatsDays, maxStatsDays)
	if err != nil {
		abortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -(days - 1))
	counts, err := h.ledger.Counters.Range(c.Request.Context(), from, to)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "database_error", err)
		return
	}

	resp := StatsResponse{
		From: from.Format("2006-01-02"),
		To:   to.Format("2006-01-02"),
		Days: counts,
	}
	for _, d := range counts {
		resp.Labels += d.Labels
		resp.JobsDone += d.JobsDone
		resp.JobsFailed += d.JobsFailed
	}
	c.JSON(http.StatusOK, resp)
}

func boundedInt(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	if n > max {
		n = max
	}
	return n, nil
}

func (h *HistoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/history", h.ListHistory)
	r.GET("/stats", h.GetStats)
}

// Package remote talks to the order-management service that owns print jobs.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/orrn/labelrelay/internal/core"
)

const (
	DefaultAPIPath       = "/api/label_print"
	DefaultFetchTimeout  = 10 * time.Second
	DefaultReportTimeout = 8 * time.Second

	maxResponseBytes = 8 << 20
)

type Config struct {
	BaseURL       string
	APIPath       string
	CompanyID     int
	FetchTimeout  time.Duration
	ReportTimeout time.Duration
}

type target struct {
	baseURL   string
	apiPath   string
	companyID int
}

func (t *target) url(endpoint string) string {
	return strings.TrimRight(t.baseURL, "/") + "/" + strings.Trim(t.apiPath, "/") + "/" + endpoint
}

type fetchRequest struct {
	CompanyID int `json:"company_id,omitempty"`
}

type fetchResponse struct {
	Success bool              `json:"success"`
	Jobs    []json.RawMessage `json:"jobs"`
	Error   string            `json:"error,omitempty"`
}

type updateRequest struct {
	JobID        core.JobID     `json:"job_id"`
	Status       core.JobStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Client fetches pending jobs and reports outcomes. The target can be
// replaced at runtime with SetTarget; in-flight requests keep the old one.
type Client struct {
	target       atomic.Pointer[target]
	fetchClient  *http.Client
	reportClient *http.Client
	logger       *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIPath == "" {
		cfg.APIPath = DefaultAPIPath
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		fetchClient:  &http.Client{Timeout: cfg.FetchTimeout},
		reportClient: &http.Client{Timeout: cfg.ReportTimeout},
		logger:       logger,
	}
	c.SetTarget(cfg.BaseURL, cfg.APIPath, cfg.CompanyID)
	return c
}

func (c *Client) SetTarget(baseURL, apiPath string, companyID int) {
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}
	c.target.Store(&target{baseURL: baseURL, apiPath: apiPath, companyID: companyID})
}

// Fetch returns the pending jobs or a wrapped ErrRemoteUnreachable /
// ErrRemoteBadResponse.
func (c *Client) Fetch(ctx context.Context) ([]core.Job, error) {
	t := c.target.Load()
	if t.baseURL == "" {
		return nil, fmt.Errorf("%w: no service URL configured", core.ErrRemoteUnreachable)
	}

	resp, err := c.post(ctx, c.fetchClient, t.url("jobs"), fetchRequest{CompanyID: t.companyID})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: http status %d", core.ErrRemoteBadResponse, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", core.ErrRemoteUnreachable, err)
	}

	data, err := decodeFetch(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRemoteBadResponse, err)
	}
	if !data.Success {
		return nil, fmt.Errorf("%w: success=false %s", core.ErrRemoteBadResponse, data.Error)
	}
	return c.decodeJobs(data.Jobs), nil
}

// decodeJobs keeps every job that decodes. A malformed job is logged and
// left pending upstream so it cannot block the rest of the list.
func (c *Client) decodeJobs(raw []json.RawMessage) []core.Job {
	jobs := make([]core.Job, 0, len(raw))
	for _, r := range raw {
		var job core.Job
		if err := json.Unmarshal(r, &job); err != nil {
			var ref struct {
				ID core.JobID `json:"id"`
			}
			_ = json.Unmarshal(r, &ref)
			c.logger.Warn("skipping malformed job", "job_id", ref.ID.String(), "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// FetchPending degrades every failure to an empty list.
func (c *Client) FetchPending(ctx context.Context) []core.Job {
	jobs, err := c.Fetch(ctx)
	if err != nil {
		c.logger.Error("failed to fetch jobs", "error", err)
		return []core.Job{}
	}
	c.logger.Info("fetched jobs", "count", len(jobs))
	return jobs
}

// ReportStatus posts a job outcome once. It never retries.
func (c *Client) ReportStatus(ctx context.Context, id core.JobID, status core.JobStatus, errorMessage string) core.Report {
	t := c.target.Load()
	if t.baseURL == "" {
		return core.Report{Err: fmt.Errorf("%w: no service URL configured", core.ErrRemoteUnreachable)}
	}

	resp, err := c.post(ctx, c.reportClient, t.url("update_job"), updateRequest{
		JobID:        id,
		Status:       status,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		return core.Report{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return core.Report{Err: fmt.Errorf("%w: http status %d", core.ErrRemoteBadResponse, resp.StatusCode)}
	}
	return core.Report{Acknowledged: true}
}

func (c *Client) post(ctx context.Context, client *http.Client, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", core.ErrRemoteUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRemoteUnreachable, err)
	}
	return resp, nil
}

// decodeFetch accepts both the plain response and Odoo's JSON-RPC envelope.
func decodeFetch(body []byte) (*fetchResponse, error) {
	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.JSONRPC != "" && len(envelope.Result) > 0 {
		body = envelope.Result
	}

	var data fetchResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &data, nil
}

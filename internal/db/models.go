package db

import "time"

type HistoryEntry struct {
	ID           int64     `json:"id"`
	PassID       string    `json:"pass_id"`
	JobID        string    `json:"job_id"`
	ProductName  string    `json:"product_name"`
	Template     string    `json:"template"`
	State        string    `json:"state"`
	LabelsSent   int       `json:"labels_sent"`
	LabelsTotal  int       `json:"labels_total"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// DailyCount is one row of print_counters.
type DailyCount struct {
	Date       string `json:"date"`
	Labels     int64  `json:"labels"`
	JobsDone   int64  `json:"jobs_done"`
	JobsFailed int64  `json:"jobs_failed"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

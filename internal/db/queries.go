package db

const (
	InsertHistory = `
		INSERT INTO print_history (pass_id, job_id, product_name, template, state,
			labels_sent, labels_total, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ListRecentHistory = `
		SELECT id, pass_id, job_id, product_name, template, state,
			labels_sent, labels_total, error_message, started_at, finished_at
		FROM print_history ORDER BY finished_at DESC, id DESC LIMIT ?
	`

	ListHistoryBefore = `
		SELECT id, pass_id, job_id, product_name, template, state,
			labels_sent, labels_total, error_message, started_at, finished_at
		FROM print_history WHERE finished_at < ? ORDER BY id ASC
	`

	DeleteHistoryBefore = `DELETE FROM print_history WHERE finished_at < ?`
)

const (
	IncrementCounter = `
		INSERT INTO print_counters (date, labels, jobs_done, jobs_failed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			labels = labels + excluded.labels,
			jobs_done = jobs_done + excluded.jobs_done,
			jobs_failed = jobs_failed + excluded.jobs_failed
	`

	GetCountersByDateRange = `
		SELECT date, labels, jobs_done, jobs_failed
		FROM print_counters WHERE date >= ? AND date <= ? ORDER BY date ASC
	`
)

const (
	GetSetting = `SELECT key, value, updated_at FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`

	DeleteSetting = `DELETE FROM settings WHERE key = ?`
)

// Package archive moves old print history out of the live ledger into
// monthly sqlite files.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orrn/labelrelay/internal/db"
)

const (
	DefaultPath = "./data/archives"
	DefaultDays = 30

	filePrefix = "archive_"
	fileSuffix = ".db"
)

var ErrArchiveNotFound = errors.New("archive not found")

type Config struct {
	Path string
	Days int
}

type ArchiveFile struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Month     string    `json:"month"`
}

type Archiver struct {
	history *db.HistoryOperations
	path    string
	days    int
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewArchiver(history *db.HistoryOperations, cfg Config, logger *slog.Logger) (*Archiver, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Days <= 0 {
		cfg.Days = DefaultDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archiver{
		history: history,
		path:    cfg.Path,
		days:    cfg.Days,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start runs an archive pass immediately and then once a day.
func (a *Archiver) Start() {
	a.wg.Add(1)
	go a.runDaily()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
	a.wg.Wait()
}

func (a *Archiver) runDaily() {
	defer a.wg.Done()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if n, err := a.Run(context.Background()); err != nil {
			a.logger.Error("history archive failed", "error", err)
		} else if n > 0 {
			a.logger.Info("history archived", "entries", n)
		}
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Run archives every history entry older than the retention window and
// returns how many entries moved. Entries are removed from the ledger only
// after the archive file committed.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().AddDate(0, 0, -a.days)
	entries, err := a.history.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to get entries for archival: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	byMonth := make(map[string][]*db.HistoryEntry)
	for _, e := range entries {
		month := e.FinishedAt.Format("2006_01")
		byMonth[month] = append(byMonth[month], e)
	}

	for month, batch := range byMonth {
		if err := a.writeArchive(ctx, filepath.Join(a.path, filePrefix+month+fileSuffix), batch); err != nil {
			return 0, err
		}
	}

	if _, err := a.history.DeleteBefore(ctx, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete archived entries: %w", err)
	}
	return len(entries), nil
}

func (a *Archiver) writeArchive(ctx context.Context, path string, entries []*db.HistoryEntry) error {
	archiveDB, err := openArchiveDB(path)
	if err != nil {
		return fmt.Errorf("failed to open archive database: %w", err)
	}
	defer archiveDB.Close()

	tx, err := archiveDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO print_history (id, pass_id, job_id, product_name, template, state,
				labels_sent, labels_total, error_message, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.PassID, e.JobID, e.ProductName, e.Template, e.State,
			e.LabelsSent, e.LabelsTotal, e.ErrorMessage, e.StartedAt, e.FinishedAt); err != nil {
			return fmt.Errorf("failed to insert archived entry: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO archive_metadata (id, archived_at) VALUES (1, ?)
	`, a.now().UTC()); err != nil {
		return fmt.Errorf("failed to update archive metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return nil
}

func openArchiveDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS print_history (
			id INTEGER PRIMARY KEY,
			pass_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			product_name TEXT,
			template TEXT,
			state TEXT NOT NULL,
			labels_sent INTEGER,
			labels_total INTEGER,
			error_message TEXT,
			started_at DATETIME,
			finished_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS archive_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			archived_at DATETIME
		);
	`)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// ListArchives returns the archive files, newest month first.
func (a *Archiver) ListArchives() ([]*ArchiveFile, error) {
	files, err := os.ReadDir(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	archives := []*ArchiveFile{}
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		archives = append(archives, &ArchiveFile{
			Filename:  name,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			Month:     strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix),
		})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Month > archives[j].Month })
	return archives, nil
}

// Open returns the path of an archive file after checking that it exists
// and that the name cannot escape the archive directory.
func (a *Archiver) Open(filename string) (string, error) {
	if filename != filepath.Base(filename) || !strings.HasPrefix(filename, filePrefix) {
		return "", fmt.Errorf("%w: %s", ErrArchiveNotFound, filename)
	}
	path := filepath.Join(a.path, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrArchiveNotFound, filename)
		}
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}
	return path, nil
}

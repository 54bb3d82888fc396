package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Prober interface {
	Probe(ctx context.Context, endpoint Endpoint) error
}

type PrinterStatus struct {
	Address     string     `json:"address"`
	Status      string     `json:"status"`
	IsOnline    bool       `json:"is_online"`
	Error       string     `json:"error,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// Monitor periodically checks that the printer accepts connections.
type Monitor struct {
	prober    Prober
	snapshots *SnapshotStore
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	status PrinterStatus

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewMonitor(prober Prober, snapshots *SnapshotStore, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		prober:    prober,
		snapshots: snapshots,
		interval:  interval,
		logger:    logger,
		status:    PrinterStatus{Status: "unknown"},
		stopCh:    make(chan struct{}),
	}
}

// Start launches the check loop. A zero interval disables periodic checks;
// Check can still be called on demand.
func (m *Monitor) Start() {
	if m.interval <= 0 {
		return
	}
	m.wg.Add(1)
	go m.loop()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(context.Background())

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Check(context.Background())
		}
	}
}

func (m *Monitor) Check(ctx context.Context) PrinterStatus {
	endpoint := m.snapshots.Load().Endpoint
	err := m.prober.Probe(ctx, endpoint)

	now := time.Now()
	next := PrinterStatus{
		Address:     endpoint.Address(),
		Status:      "online",
		IsOnline:    true,
		LastChecked: &now,
	}
	if err != nil {
		next.Status = "offline"
		next.IsOnline = false
		next.Error = err.Error()
	}

	m.mu.Lock()
	old := m.status.Status
	m.status = next
	m.mu.Unlock()

	if old != next.Status {
		m.logger.Info("printer status changed",
			"address", next.Address, "old_status", old, "new_status", next.Status, "error", next.Error)
	}
	return next
}

func (m *Monitor) Status() PrinterStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

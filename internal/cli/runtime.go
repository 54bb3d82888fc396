package cli

import (
	"fmt"
	"log/slog"

	"github.com/orrn/labelrelay/internal/config"
	"github.com/orrn/labelrelay/internal/core"
	"github.com/orrn/labelrelay/internal/db"
	"github.com/orrn/labelrelay/internal/remote"
)

// runtime is the wired relay shared by the commands.
type runtime struct {
	store        *config.Store
	logger       *slog.Logger
	snapshots    *core.SnapshotStore
	sender       *core.TCPSender
	remote       *remote.Client
	ledger       *db.DB
	orchestrator *core.Orchestrator
}

// newRuntime wires the relay. The ledger is opened only when withLedger is
// set; commands that do not record history skip it.
func newRuntime(store *config.Store, logger *slog.Logger, withLedger bool) (*runtime, error) {
	cfg := store.Current()

	templates, err := core.LoadTemplates(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}
	if templates.Len() == 0 {
		logger.Warn("no templates loaded", "path", cfg.Templates.Path)
	}
	for name, problem := range templates.Check() {
		logger.Warn("template cannot render", "template", name, "error", problem)
	}

	rt := &runtime{
		store:     store,
		logger:    logger,
		snapshots: core.NewSnapshotStore(snapshotFor(cfg, templates)),
		sender:    core.NewTCPSender(),
		remote: remote.NewClient(remote.Config{
			BaseURL:       cfg.Remote.URL,
			APIPath:       cfg.Remote.APIPath,
			CompanyID:     cfg.Remote.CompanyID,
			FetchTimeout:  cfg.Remote.FetchTimeout,
			ReportTimeout: cfg.Remote.ReportTimeout,
		}, logger.With("component", "remote")),
	}

	opts := []core.OrchestratorOption{core.WithLogger(logger.With("component", "orchestrator"))}
	if withLedger {
		rt.ledger, err = db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithRecorder(rt.ledger.History))
	}
	rt.orchestrator = core.NewOrchestrator(rt.remote, rt.sender, rt.snapshots, opts...)

	store.Subscribe(rt.reconfigure)
	return rt, nil
}

// reconfigure applies a saved config. Passes already running keep the
// snapshot they loaded.
func (rt *runtime) reconfigure(cfg *config.Config) {
	rt.remote.SetTarget(cfg.Remote.URL, cfg.Remote.APIPath, cfg.Remote.CompanyID)
	current := rt.snapshots.Load()
	rt.snapshots.Swap(snapshotFor(cfg, current.Templates))
	rt.logger.Info("configuration updated", "odoo_url", cfg.Remote.URL, "auto_refresh", cfg.Remote.AutoRefresh)
}

func (rt *runtime) Close() error {
	if rt.ledger != nil {
		if err := rt.ledger.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

func snapshotFor(cfg *config.Config, templates *core.TemplateSet) *core.Snapshot {
	return &core.Snapshot{
		Endpoint: core.Endpoint{
			Host:    cfg.Printer.Host,
			Port:    cfg.Printer.Port,
			Timeout: cfg.Printer.Timeout,
		},
		Templates: templates,
		Pacing:    cfg.Printer.Pacing,
	}
}

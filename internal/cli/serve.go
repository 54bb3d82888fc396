package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/orrn/labelrelay/internal/api"
	"github.com/orrn/labelrelay/internal/api/middleware"
	"github.com/orrn/labelrelay/internal/archive"
	"github.com/orrn/labelrelay/internal/core"
	"github.com/orrn/labelrelay/internal/netinfo"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and print relay",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(store, logger, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := store.Current()

	monitor := core.NewMonitor(rt.sender, rt.snapshots, cfg.Printer.HealthCheckInterval, logger.With("component", "monitor"))
	monitor.Start()
	defer monitor.Stop()

	var archiver *archive.Archiver
	if cfg.Database.ArchiveDays > 0 {
		archiver, err = archive.NewArchiver(rt.ledger.History, archive.Config{
			Path: cfg.Database.ArchivePath,
			Days: cfg.Database.ArchiveDays,
		}, logger.With("component", "archive"))
		if err != nil {
			return err
		}
		archiver.Start()
		defer archiver.Stop()
	}

	var auth *middleware.AuthMiddleware
	if cfg.Auth.Enabled {
		auth, err = middleware.NewAuthMiddleware(ctx, rt.ledger.Settings, false)
		if err != nil {
			return fmt.Errorf("failed to initialise auth: %w", err)
		}
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Config:    store,
		Snapshots: rt.snapshots,
		Jobs:      rt.remote,
		Printer:   rt.orchestrator,
		Monitor:   monitor,
		Ledger:    rt.ledger,
		Archiver:  archiver,
		Auth:      auth,
		Logger:    logger.With("component", "http"),
	})

	// No WriteTimeout: websocket sessions outlive any response deadline and
	// set their own write deadlines.
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	local, network := netinfo.URLs(cfg.Server.Port)
	printer := cfg.Printer.Host
	if printer == "" {
		printer = "NOT CONFIGURED"
	}
	logger.Info("labelrelay started",
		"version", Version,
		"local_url", local,
		"network_url", network,
		"printer", printer,
		"company", cfg.Remote.CompanyName,
		"odoo_url", cfg.Remote.URL,
		"auth", cfg.Auth.Enabled)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed (is port %d in use?): %w", cfg.Server.Port, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Package agentapp wires together every forge-agent component: the
// control-plane fetcher, the extension-service reconciler, and the
// instance-metadata endpoint served to guest workloads on the managed host.
package agentapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/forgecp/forge/internal/agentconfig"
	"github.com/forgecp/forge/internal/telemetry"
	"github.com/forgecp/forge/pkg/agentfetch"
	"github.com/forgecp/forge/pkg/agentimds"
	"github.com/forgecp/forge/pkg/agentreconciler"
)

// Run is the forge-agent entry point: it reads config, builds the
// reconciler and fetcher, serves the instance-metadata endpoint, and blocks
// until ctx is cancelled.
func Run(ctx context.Context, cfg *agentconfig.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting forge-agent", "machine_id", cfg.MachineID, "control_plane", cfg.ControlPlaneURL)

	fetchInterval, err := time.ParseDuration(cfg.FetchInterval)
	if err != nil {
		return fmt.Errorf("parsing fetch interval %q: %w", cfg.FetchInterval, err)
	}

	client := agentfetch.NewClient(cfg.ControlPlaneURL, cfg.AgentAPIKey)

	reconciler := agentreconciler.New(agentreconciler.Config{
		StaticPodDir:                cfg.StaticPodDir,
		CredentialProviderConfigDir: cfg.CredentialProviderConfigDir,
		ContainerdSOCKSConfigPath:   cfg.ContainerdSOCKSConfigPath,
		OTelFragmentDir:             cfg.OTelFragmentDir,
	}, agentreconciler.NewSystemdRestarter(cfg.DryRun), logger)

	imdsStore := agentimds.NewStore()

	fetcher := agentfetch.New(client, reconciler, imdsStore, cfg.MachineID, fetchInterval, logger)

	metricsReg := telemetry.NewMetricsRegistry()

	imdsSrv := &http.Server{
		Addr:         cfg.IMDSListenAddr,
		Handler:      agentimds.NewHandler(imdsStore, fetcher.PhoneHome).Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		return fetcher.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("instance-metadata endpoint listening", "addr", cfg.IMDSListenAddr)
		if err := imdsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("imds server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics endpoint listening", "addr", metricsSrv.Addr, "path", cfg.MetricsPath)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down forge-agent")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = imdsSrv.Shutdown(shutdownCtx)
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Package app wires together every Forge domain package into the forge-api
// process: HTTP handlers under /api/v1, the managed-host state machine
// controller, and the NSG propagation aggregator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/forgecp/forge/internal/audit"
	"github.com/forgecp/forge/internal/auth"
	"github.com/forgecp/forge/internal/config"
	"github.com/forgecp/forge/internal/httpserver"
	"github.com/forgecp/forge/internal/notify"
	"github.com/forgecp/forge/internal/platform"
	"github.com/forgecp/forge/internal/telemetry"
	"github.com/forgecp/forge/pkg/extsvc"
	"github.com/forgecp/forge/pkg/instance"
	"github.com/forgecp/forge/pkg/machine"
	"github.com/forgecp/forge/pkg/nsg"
	"github.com/forgecp/forge/pkg/tenant"
	"github.com/forgecp/forge/pkg/validation"
	"github.com/forgecp/forge/pkg/vpc"
)

// tenantLookup adapts tenant.Store to auth.TenantLookup, which cannot
// import pkg/tenant directly without creating an import cycle through
// pkg/tenant's own dependency on internal/httpserver.
type tenantLookup struct {
	store *tenant.Store
}

func (l tenantLookup) GetBySlug(ctx context.Context, slug string) (auth.TenantRef, error) {
	t, err := l.store.GetBySlug(ctx, slug)
	if err != nil {
		return auth.TenantRef{}, err
	}
	return auth.TenantRef{ID: t.ID}, nil
}

// Run is the forge-api entry point: it reads config, connects to
// infrastructure, wires every domain package, and serves until ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting forge-api", "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	tickInterval, err := time.ParseDuration(cfg.ControllerTickInterval)
	if err != nil {
		return fmt.Errorf("parsing controller tick interval %q: %w", cfg.ControllerTickInterval, err)
	}

	// --- Stores ---
	tenantStore := tenant.NewStore(pool)
	machineStore := machine.NewStore(pool)
	healthStore := machine.NewHealthStore(pool, rdb, logger)
	overrideStore := machine.NewOverrideStore(pool)
	validationStore := validation.NewStore(pool)
	nsgStore := nsg.NewStore(pool)
	propStore := nsg.NewPropagationStore(rdb, logger)
	vpcStore := vpc.NewStore(pool)
	instanceStore := instance.NewStore(pool)
	extsvcStore := extsvc.NewStore(pool)
	secretStore := extsvc.NewRedisSecretStore(rdb)

	slackNotifier := notify.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)

	// --- Services ---
	tenantService := tenant.NewService(tenantStore)
	machineService := machine.NewService(machineStore, healthStore, overrideStore, slackNotifier)
	validationService := validation.NewService(validationStore)
	nsgService := nsg.NewService(nsgStore, propStore)
	vpcService := vpc.NewService(vpcStore)
	instanceService := instance.NewService(instanceStore)
	extsvcService := extsvc.NewService(extsvcStore, secretStore)

	// The machine controller and the validation catalog are independent
	// packages; this closure is the only place that couples them, adapting
	// validation.Result to machine.ValidationResult.
	validationGate := machine.NewValidationGate(func(ctx context.Context, machineID string) (machine.ValidationResult, bool, error) {
		result, done, err := validationService.ResultForMachine(ctx, machineID)
		if err != nil || !done {
			return machine.ValidationResult{}, done, err
		}
		return machine.ValidationResult{Passed: result.Passed, Summary: result.Summary}, true, nil
	})
	onEnterValidation := func(ctx context.Context, machineID string) error {
		_, err := validationService.StartRuns(ctx, machineID)
		return err
	}

	controller := machine.NewController(pool, validationGate, onEnterValidation, healthStore, slackNotifier, logger,
		telemetry.MachineStateTransitionsTotal, telemetry.ControllerTickDuration, tickInterval)
	propRunner := nsg.NewRunner(nsgStore, propStore, logger, telemetry.NSGPropagationStatus, tickInterval)

	auditWriter := audit.NewWriter(pool, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	phoneHomeLimiter := auth.NewRateLimiter(rdb, "phone_home", cfg.PhoneHomeRateLimitPerMinute, time.Minute)

	// OIDC operator login is optional; it activates only when an issuer is
	// configured, so forge-api runs on API keys alone by default.
	var oidcAuth *auth.OIDCAuthenticator
	if cfg.OIDCIssuerURL != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return fmt.Errorf("configuring OIDC authenticator: %w", err)
		}
		logger.Info("OIDC operator login enabled", "issuer", cfg.OIDCIssuerURL)
	}

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg, oidcAuth, tenantLookup{tenantStore}, cfg.DevMode)

	if oidcAuth != nil {
		oauth2Cfg := &oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     oidcAuth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		}
		flowHandler := auth.NewOIDCFlowHandler(oauth2Cfg, oidcAuth, tenantLookup{tenantStore}, rdb, logger)
		srv.Router.Get("/auth/login", flowHandler.HandleLogin)
		srv.Router.Get("/auth/callback", flowHandler.HandleCallback)
	}

	srv.APIRouter.Mount("/tenants", tenant.NewHandler(tenantService, logger).Routes())
	srv.APIRouter.Mount("/machines", machine.NewHandler(machineService, logger, phoneHomeLimiter).Routes())
	srv.APIRouter.Mount("/validation", validation.NewHandler(validationService, logger).Routes())
	srv.APIRouter.Mount("/security-groups", nsg.NewHandler(nsgService, logger).Routes())
	srv.APIRouter.Mount("/vpcs", vpc.NewHandler(vpcService, logger).Routes())
	srv.APIRouter.Mount("/instances", instance.NewHandler(instanceService, logger).Routes())
	srv.APIRouter.Mount("/extension-services", extsvc.NewHandler(extsvcService, logger).Routes())
	srv.APIRouter.Mount("/audit-log", audit.NewHandler(pool, logger).Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		return propRunner.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down forge-api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

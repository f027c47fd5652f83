package cli

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"missioncontrol/internal/config"
	"missioncontrol/internal/credential"
	"missioncontrol/internal/events"
	"missioncontrol/internal/integration"
	"missioncontrol/internal/logging"
	"missioncontrol/internal/provider"
	"missioncontrol/internal/store"
	"missioncontrol/internal/telemetry"
)

// app holds the wired engine shared by the commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   *store.Store
	metrics *telemetry.Metrics
	hub     *events.Hub
	service *integration.Service

	logCloser io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dsn, err := dsnOrErr(cfg)
	if err != nil {
		return nil, err
	}

	logger, closer := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := store.Open(openCtx, dsn)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	metrics := &telemetry.Metrics{}
	hub := events.NewHub(events.WithMetrics(metrics), events.WithLogger(logger))

	runner := credential.ExecRunner{Timeout: cfg.Secrets.CommandTimeout}
	secrets := credential.NewOnePasswordCLI(cfg.Secrets.OPBinary, runner)
	resolver := credential.NewResolver(credential.Options{
		Secrets:       secrets,
		Runner:        runner,
		GogBinary:     cfg.Secrets.GogBinary,
		OpenClawPaths: cfg.OpenClaw.ConfigPaths,
		Logger:        logger,
	})
	validator := provider.New(provider.WithMetrics(metrics), provider.WithLogger(logger))
	tester := integration.NewTester(integration.TesterOptions{
		Resolver:  resolver,
		Validator: validator,
		Secrets:   secrets,
		Runner:    runner,
		GogBinary: cfg.Secrets.GogBinary,
		Logger:    logger,
	})
	service := integration.NewService(st, tester,
		integration.WithHooks(integration.NotifyHook(hub)),
		integration.WithMetrics(metrics),
		integration.WithLogger(logger),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		metrics:   metrics,
		hub:       hub,
		service:   service,
		logCloser: closer,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logCloser.Close()
}

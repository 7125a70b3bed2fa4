package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/authguard/config"
	"github.com/angeloszaimis/authguard/internal/circuitbreaker"
	"github.com/angeloszaimis/authguard/internal/credcache"
	"github.com/angeloszaimis/authguard/internal/fetcher"
	"github.com/angeloszaimis/authguard/internal/metrics"
	"github.com/angeloszaimis/authguard/internal/retry"
	"github.com/angeloszaimis/authguard/internal/transport"
	"github.com/angeloszaimis/authguard/pkg/logger"
)

// app holds what every command builds from the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	level    *slog.LevelVar
	recorder *metrics.Recorder
	closers  []io.Closer
}

func newApp(cmd *cobra.Command, opts *rootOptions, withRuntimeMetrics bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		level:    new(slog.LevelVar),
		recorder: metrics.NewRecorder(withRuntimeMetrics),
	}
	a.level.Set(logger.ParseLevel(cfg.LogLevel))

	writers := []io.Writer{cmd.ErrOrStderr()}
	if cfg.LogDir != "" {
		sink, err := logger.NewFileSink(cfg.LogDir)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "authguard: file logging disabled: %v\n", err)
		} else {
			writers = append(writers, sink)
			a.closers = append(a.closers, sink)
		}
	}

	a.logger = logger.NewLeveled(a.level, false, cfg.Env, writers...).With(
		slog.String("invocation_id", uuid.NewString()),
		slog.String("command", cmd.Name()),
	)
	return a, nil
}

func (a *app) cache() *credcache.Cache {
	return credcache.New(credcache.Path(a.cfg.CacheDir),
		credcache.WithLogger(a.logger))
}

func (a *app) breaker() *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker(
		circuitbreaker.StatePath(a.cfg.CacheDir),
		a.cfg.CircuitBreakerThreshold,
		a.cfg.CoolDown(),
		circuitbreaker.WithLogger(a.logger),
		circuitbreaker.OnStateChange(func(_, to circuitbreaker.State) {
			a.recorder.BreakerChanged(to.String())
		}),
	)
}

// fetcher checks the active profile's files and builds the mTLS client.
func (a *app) fetcher() (*fetcher.Fetcher, error) {
	profile, err := a.cfg.ActiveProfile()
	if err != nil {
		return nil, err
	}
	if err := a.cfg.ValidatePaths(); err != nil {
		return nil, err
	}

	client, err := transport.NewMTLS(transport.Options{
		CertPath: profile.CertPath,
		KeyPath:  profile.KeyPath,
		CAPath:   profile.CAPath,
		Timeout:  a.cfg.RequestTimeoutDuration(),
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mTLS client: %w", err)
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = a.cfg.MaxAttempts
	policy.InitialDelay = a.cfg.InitialBackoffDuration()

	return fetcher.New(a.cache(), a.breaker(), client, fetcher.Options{
		URL:            transport.EndpointURL(profile.Endpoint, profile.RoleAlias),
		Margin:         a.cfg.RefreshMargin(),
		AttemptTimeout: a.cfg.RequestTimeoutDuration(),
		Policy:         policy,
		Logger:         a.logger,
		Recorder:       a.recorder,
	}), nil
}

// close writes the metrics textfile, if configured, and closes log sinks.
func (a *app) close() {
	if a.cfg.MetricsFile != "" {
		if err := a.recorder.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn("could not write metrics file",
				slog.String("path", a.cfg.MetricsFile), slog.String("error", err.Error()))
		}
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

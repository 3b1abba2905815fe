package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emojirades/onboarding/internal/handshake"
	"github.com/emojirades/onboarding/internal/metrics"
	"github.com/emojirades/onboarding/internal/onboarding"
	"github.com/emojirades/onboarding/internal/server"
	"github.com/emojirades/onboarding/internal/slackauth"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the onboarding HTTP service",
	Long: `Run the onboarding endpoints:

  /initiate  redirect to Slack's authorize page with a fresh state token
  /onboard   Slack's redirect target, installs the bot and assigns a shard

The admin listener serves /healthz and /metrics.

Signals:
  SIGINT, SIGTERM  shut down gracefully
  SIGHUP           drop cached client secrets, e.g. after a rotation`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)
	ctx := context.Background()

	cfg, err := loadConfig(p)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, cfg, p, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.log

	secretCache, err := newSecretSource(cfg)
	if err != nil {
		return p.Error("failed to create secret source", err.Error(), nil)
	}

	handshakes, err := handshake.NewRedisStore(rt.rdb, cfg.Redis.Namespace)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := onboarding.NewService(onboarding.Config{
		SecretName:   cfg.Secrets.Name,
		HandshakeTTL: cfg.OAuth.StateTTL(),
		ShardLimit:   cfg.Shards.Limit,
		QueuePrefix:  cfg.Shards.QueuePrefix,
		AlertQueue:   cfg.Shards.AlertQueue,
		Layout:       cfg.Layout(),
		ProductName:  cfg.Server.ProductName,
	}, onboarding.Dependencies{
		Handshakes: handshakes,
		Secrets:    secretCache,
		Exchanger: slackauth.NewClient(slackauth.Config{
			AuthorizeURL: cfg.OAuth.AuthorizeURL,
			AccessURL:    cfg.OAuth.AccessURL,
			HTTPTimeout:  cfg.OAuth.HTTPTimeout,
		}),
		Objects: rt.objects,
		Queue:   rt.queue,
		Metrics: metrics.New(reg),
		Logger:  log.Named("onboarding"),
	})
	if err != nil {
		return err
	}

	// Listeners run until a signal or a serve error
	errCh := make(chan error, 2)
	listeners := []*server.Listener{
		server.NewListener("public", cfg.Server.Listen,
			server.NewHandler(log.Named("server"), svc, cfg.Server.FallbackURL), log),
	}
	if addr := cfg.Server.AdminAddr(); addr != "" {
		listeners = append(listeners, server.NewListener("admin", addr, server.NewAdminHandler(rt.rdb, reg), log))
	}

	for _, l := range listeners {
		if err := l.Start(errCh); err != nil {
			shutdown(log, listeners)
			return p.ErrorWithContext("failed to start listener", err.Error(), map[string]string{"Address": l.Addr()}, nil)
		}
	}

	log.Info("Onboarding service started",
		zap.String("namespace", cfg.Redis.Namespace),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("shard_limit", cfg.Shards.Limit))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				secretCache.Flush()
				log.Info("Secret cache flushed")
				continue
			}
			log.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))
			return shutdown(log, listeners)
		case serveErr := <-errCh:
			log.Error("Listener failed", zap.Error(serveErr))
			shutdown(log, listeners)
			return serveErr
		}
	}
}

func shutdown(log *zap.Logger, listeners []*server.Listener) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, l := range listeners {
		if err := l.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	log.Info("Onboarding service stopped")
	return errors.Join(errs...)
}

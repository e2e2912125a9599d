package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	slackapi "github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/v-yash/jarvis/internal/adapter/inbound/slackbot"
	"github.com/v-yash/jarvis/internal/adapter/inbound/webhook"
	"github.com/v-yash/jarvis/internal/adapter/outbound/kubernetes"
	slacknotifier "github.com/v-yash/jarvis/internal/adapter/outbound/notification/slack"
	"github.com/v-yash/jarvis/internal/adapter/outbound/persistence/sqlite"
	"github.com/v-yash/jarvis/internal/config"
	"github.com/v-yash/jarvis/internal/domain/service"
	"github.com/v-yash/jarvis/pkg/health"
	"github.com/v-yash/jarvis/pkg/version"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack gateway",
		Long: `Run the Slack gateway in the mode selected by slack.mode:

  socket  connect out over Socket Mode; /metrics, /healthz and /readyz are
          served on server.metricsPort
  http    serve /slack/commands, /slack/interactions and /slack/options on
          server.port, next to the ops endpoints`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, buildLogger(cfg.Logging))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// --- Database ---
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening sqlite store: %w", err)
	}
	defer store.Close()
	audits := sqlite.NewAuditRepo(store)

	// --- Kubernetes ---
	clients, err := kubernetes.NewClients(cfg.Kubernetes.InCluster, cfg.Kubernetes.Kubeconfig)
	if err != nil {
		return fmt.Errorf("connecting to kubernetes: %w", err)
	}
	cluster := kubernetes.NewExecutorFromClients(clients)

	// --- Domain services ---
	cache := service.NewSearchCache(cluster, service.SearchCacheConfig{
		Namespaces:      cfg.Kubernetes.Namespaces,
		RefreshInterval: cfg.Cache.RefreshInterval,
		PodLimit:        cfg.Cache.PodLimit,
		DeploymentLimit: cfg.Cache.DeploymentLimit,
	}, logger)
	dispatcher := service.NewDispatcher(cluster, newSanitizer(cfg), cache, dispatcherConfig(cfg), logger)

	directory := slacknotifier.NewDirectory(cfg.Slack.BotToken, cfg.Slack.UserCacheTTL)
	access := service.NewAccessPolicy(directory, service.AccessConfig{
		AllowedUsers: cfg.Access.AllowedUsers,
		AdminUsers:   cfg.Access.AdminUsers,
	})
	notifier := slacknotifier.NewNotifier(slacknotifier.Config{
		BotToken:        cfg.Slack.BotToken,
		UploadThreshold: cfg.Slack.FileUploadThreshold,
	}, logger)

	gateway := service.NewGateway(dispatcher, access, cache, notifier, audits, service.GatewayConfig{
		Workers:        cfg.Dispatch.Workers,
		QueueSize:      cfg.Dispatch.QueueSize,
		PerUserRate:    cfg.Dispatch.PerUserRate,
		PerUserBurst:   cfg.Dispatch.PerUserBurst,
		SummaryChannel: cfg.Slack.AuditChannel,
	}, logger)

	// --- Health checker ---
	checker := health.NewChecker()
	checker.Register("database", store.HealthCheck)
	checker.Register("kubernetes", cluster.HealthCheck)
	checker.Register("search_cache", func(context.Context) error {
		return cache.Healthy(cfg.Cache.MaxAge)
	})

	ops := map[string]http.Handler{
		"GET /metrics": promhttp.Handler(),
		"GET /healthz": checker.LivenessHandler(),
		"GET /readyz":  checker.ReadinessHandler(),
	}

	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("starting search cache: %w", err)
	}
	defer cache.Stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gateway.Run(gCtx)
	})

	newRouter := func(views slackbot.ViewAPI) *slackbot.Router {
		return slackbot.NewRouter(views, gateway, cfg.Kubernetes.Namespaces, logger)
	}

	switch cfg.Slack.Mode {
	case config.SlackModeHTTP:
		server := webhook.NewServer(webhook.ServerConfig{
			Port:          cfg.Server.Port,
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			SigningSecret: cfg.Slack.SigningSecret,
			MaxBodyBytes:  cfg.Slack.HTTP.MaxBodyBytes,
			RateLimit:     cfg.Slack.HTTP.RateLimit,
		}, webhook.NewHandler(newRouter(slackapi.New(cfg.Slack.BotToken))), ops, logger)
		g.Go(func() error {
			return server.Start(gCtx)
		})

	default:
		bot := slackbot.NewBot(slackbot.Config{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
		}, newRouter, logger)
		g.Go(func() error {
			logger.Info("starting slack bot", "mode", "socket")
			return bot.Start(gCtx)
		})
		if cfg.Server.MetricsPort > 0 {
			g.Go(func() error {
				return serveOps(gCtx, cfg.Server.MetricsPort, ops, cfg.Server.ShutdownTimeout, logger)
			})
		}
	}

	logger.Info("jarvis started",
		"version", version.String(),
		"mode", cfg.Slack.Mode,
		"namespaces", cfg.Kubernetes.Namespaces,
		"workers", cfg.Dispatch.Workers,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server exited with error: %w", err)
	}

	logger.Info("jarvis stopped")
	return nil
}

// serveOps runs the metrics and health endpoints until ctx is cancelled.
func serveOps(ctx context.Context, port int, handlers map[string]http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	mux := http.NewServeMux()
	for pattern, h := range handlers {
		mux.Handle(pattern, h)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting metrics server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

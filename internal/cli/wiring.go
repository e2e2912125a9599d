package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/v-yash/jarvis/internal/adapter/outbound/persistence/sqlite"
	"github.com/v-yash/jarvis/internal/config"
	"github.com/v-yash/jarvis/internal/domain/service"
)

// buildLogger constructs a slog.Logger based on config.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func newSanitizer(cfg *config.Config) *service.Sanitizer {
	return service.NewSanitizer(service.SanitizerConfig{
		AllowedBinaries: cfg.Kubernetes.Exec.AllowedBinaries,
		DeniedPrefixes:  cfg.Kubernetes.Exec.DeniedPrefixes,
		AllowShell:      cfg.Kubernetes.Exec.AllowShell,
	})
}

func dispatcherConfig(cfg *config.Config) service.DispatcherConfig {
	return service.DispatcherConfig{
		BlockedNamespaces: cfg.Kubernetes.BlockedNamespaces,
		MinReplicas:       cfg.Kubernetes.MinReplicas,
		MaxReplicas:       cfg.Kubernetes.MaxReplicas,
		ExecTimeout:       cfg.Kubernetes.ExecTimeout,
		MaxOutputLines:    cfg.Kubernetes.MaxOutputLines,
		MaxOutputChars:    cfg.Kubernetes.MaxOutputChars,
		EventLimit:        cfg.Kubernetes.EventLimit,
	}
}

func openStore(cfg *config.Config) (*sqlite.Store, error) {
	return sqlite.NewStore(sqlite.Config{
		Path:              cfg.Database.SQLite.Path,
		MaxOpenConns:      cfg.Database.SQLite.MaxOpenConns,
		PragmaJournalMode: cfg.Database.SQLite.PragmaJournalMode,
		PragmaBusyTimeout: cfg.Database.SQLite.PragmaBusyTimeout,
	})
}

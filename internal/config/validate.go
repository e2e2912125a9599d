package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		errs = append(errs, "server.metricsPort must be between 0 and 65535")
	}

	if !cfg.Kubernetes.InCluster && cfg.Kubernetes.Kubeconfig == "" {
		errs = append(errs, "kubernetes.kubeconfig is required when inCluster is false")
	}
	if len(cfg.Kubernetes.Namespaces) == 0 {
		errs = append(errs, "kubernetes.namespaces must list at least one namespace")
	}
	for _, ns := range cfg.Kubernetes.Namespaces {
		if cfg.Kubernetes.IsBlocked(ns) {
			errs = append(errs, fmt.Sprintf("kubernetes.namespaces contains blocked namespace %q", ns))
		}
	}
	if cfg.Kubernetes.ExecTimeout <= 0 {
		errs = append(errs, "kubernetes.execTimeout must be positive")
	}
	if cfg.Kubernetes.MinReplicas < 1 || cfg.Kubernetes.MaxReplicas < cfg.Kubernetes.MinReplicas ||
		cfg.Kubernetes.MaxReplicas > MaxReplicaCeiling {
		errs = append(errs, fmt.Sprintf("kubernetes replica bounds are invalid (min %d, max %d, must stay within 1..%d)",
			cfg.Kubernetes.MinReplicas, cfg.Kubernetes.MaxReplicas, MaxReplicaCeiling))
	}

	if cfg.Dispatch.Workers <= 0 {
		errs = append(errs, "dispatch.workers must be positive")
	}
	if cfg.Dispatch.QueueSize < 0 {
		errs = append(errs, "dispatch.queueSize must not be negative")
	}
	if cfg.Dispatch.PerUserRate < 0 {
		errs = append(errs, "dispatch.perUserRate must not be negative")
	}

	if cfg.Slack.BotToken == "" {
		errs = append(errs, "slack.botToken is required")
	}
	switch cfg.Slack.Mode {
	case SlackModeSocket:
		if cfg.Slack.AppToken == "" {
			errs = append(errs, "slack.appToken is required when slack.mode is socket")
		}
	case SlackModeHTTP:
		if cfg.Slack.SigningSecret == "" {
			errs = append(errs, "slack.signingSecret is required when slack.mode is http")
		}
	default:
		errs = append(errs, fmt.Sprintf("slack.mode must be socket or http (got %q)", cfg.Slack.Mode))
	}

	if cfg.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite (got %q)", cfg.Database.Driver))
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.Path == "" {
		errs = append(errs, "database.sqlite.path is required when driver is sqlite")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn or error (got %q)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

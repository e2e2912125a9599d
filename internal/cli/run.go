package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/v-yash/jarvis/internal/adapter/outbound/kubernetes"
	"github.com/v-yash/jarvis/internal/domain/service"
	"github.com/v-yash/jarvis/pkg/apierror"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run -- <kubectl tokens>",
		Short: "Dispatch one command against the cluster and print the result",
		Long: `Validate and dispatch a single command with the same rules the Slack
gateway applies, using the kubernetes section of --config. Access policy and
Slack delivery are skipped.`,
		Example: `  jarvis run -- describe deployment api -n payments
  jarvis run -- scale deployment api --replicas=3 -n payments`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readOrDefault(cmd, root.configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.Logging)

			clients, err := kubernetes.NewClients(cfg.Kubernetes.InCluster, cfg.Kubernetes.Kubeconfig)
			if err != nil {
				return fmt.Errorf("connecting to kubernetes: %w", err)
			}
			dispatcher := service.NewDispatcher(kubernetes.NewExecutorFromClients(clients), newSanitizer(cfg), nil, dispatcherConfig(cfg), logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := runOnce(ctx, dispatcher, args, logger)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), apierror.UserMessage(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the command")
	return cmd
}

// runOnce validates tokens and dispatches the resulting command.
func runOnce(ctx context.Context, dispatcher *service.Dispatcher, tokens []string, logger *slog.Logger) (string, error) {
	parsed, err := service.Validate(tokens)
	if err != nil {
		return "", err
	}
	logger.Debug("dispatching", "command", parsed.String())
	return dispatcher.Dispatch(ctx, parsed)
}

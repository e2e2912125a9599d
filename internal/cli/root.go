// Package cli implements the jarvis command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/v-yash/jarvis/internal/config"
	"github.com/v-yash/jarvis/pkg/version"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the jarvis command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "jarvis",
		Short: "Slack chat-ops gateway for Kubernetes",
		Long: `jarvis lets an allow-listed Slack audience run a small, validated set of
kubectl-style commands (get, describe, exec, rollout restart, scale) against a
cluster. Results are delivered as direct messages.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config file")

	cmd.AddCommand(
		newServeCommand(opts),
		newCheckCommand(opts),
		newRunCommand(opts),
		newAuditCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

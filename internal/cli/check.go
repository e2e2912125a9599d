package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/v-yash/jarvis/internal/config"
	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/service"
	"github.com/v-yash/jarvis/pkg/apierror"
)

func newCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check -- <kubectl tokens>",
		Short: "Validate a command offline",
		Long: `Run a command through the validator and, for exec, the sanitizer without
contacting the cluster or Slack. The exec policy comes from --config when the
file exists and from the built-in defaults otherwise.`,
		Example: `  jarvis check -- get pods -n payments
  jarvis check -- exec web-7d9f -n payments -- ls -la /tmp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readOrDefault(cmd, root.configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			parsed, argv, err := check(cfg, args)
			if err != nil {
				fmt.Fprintln(out, "rejected:", apierror.UserMessage(err))
				return err
			}
			fmt.Fprintln(out, "ok:", parsed.String())
			if argv != nil {
				fmt.Fprintln(out, "argv:", strings.Join(argv, " "))
			}
			return nil
		},
	}
}

// check validates tokens and sanitizes the exec payload, if any.
func check(cfg *config.Config, tokens []string) (model.Command, []string, error) {
	cmd, err := service.Validate(tokens)
	if err != nil {
		return model.Command{}, nil, err
	}
	if cmd.Verb != model.VerbExec {
		return cmd, nil, nil
	}
	sanitized, err := newSanitizer(cfg).Sanitize(cmd.ExecTokens())
	if err != nil {
		return model.Command{}, nil, err
	}
	return cmd, sanitized.Argv, nil
}

// readOrDefault reads the config without validating it. A missing file is
// fine unless --config was given explicitly.
func readOrDefault(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Read(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.DefaultConfig(), nil
	}
	return nil, err
}

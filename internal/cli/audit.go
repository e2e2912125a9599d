package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/v-yash/jarvis/internal/adapter/outbound/persistence/sqlite"
	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

type auditOptions struct {
	user      string
	verb      string
	namespace string
	outcome   string
	since     time.Duration
	page      int
	limit     int
}

func newAuditCommand(root *rootOptions) *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent commands from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readOrDefault(cmd, root.configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("opening sqlite store: %w", err)
			}
			defer store.Close()

			result, err := sqlite.NewAuditRepo(store).List(cmd.Context(), opts.filter(time.Now()), outbound.PageRequest{
				Page: opts.page,
				Size: opts.limit,
				Desc: true,
			})
			if err != nil {
				return fmt.Errorf("listing audits: %w", err)
			}
			printAudits(cmd.OutOrStdout(), result)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.user, "user", "", "only commands from this Slack user ID")
	f.StringVar(&opts.verb, "verb", "", "only this verb (get, describe, restart, scale, exec)")
	f.StringVarP(&opts.namespace, "namespace", "n", "", "only this namespace")
	f.StringVar(&opts.outcome, "outcome", "", "only this outcome (succeeded, rejected, failed)")
	f.DurationVar(&opts.since, "since", 0, "only commands newer than this, e.g. 24h")
	f.IntVar(&opts.page, "page", 0, "page number, starting at 0")
	f.IntVar(&opts.limit, "limit", 20, "rows per page")
	return cmd
}

func (o *auditOptions) filter(now time.Time) outbound.AuditFilter {
	f := outbound.AuditFilter{
		UserID:    o.user,
		Verb:      o.verb,
		Namespace: o.namespace,
		Outcome:   o.outcome,
	}
	if o.since > 0 {
		since := now.Add(-o.since)
		f.Since = &since
	}
	return f
}

func printAudits(out io.Writer, result outbound.PageResult[model.CommandAudit]) {
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No audit records.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tOUTCOME\tDURATION\tCOMMAND")
	for _, a := range result.Items {
		user := a.UserEmail
		if user == "" {
			user = a.UserID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.CreatedAt.Local().Format(time.DateTime),
			user,
			a.Outcome,
			a.Duration.Round(time.Millisecond),
			a.Command,
		)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\npage %d, %d of %d records\n", result.Page, len(result.Items), result.TotalCount)
}

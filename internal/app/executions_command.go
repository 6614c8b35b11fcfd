package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/journal"
)

func (s *runtimeState) newExecutionsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List recorded executions for reconciliation review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open execution journal", err)
			}
			defer func() { _ = store.Close() }()
			results, err := store.List(limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list executions", err)
			}
			return s.renderData("executions", results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of executions to list")
	return cmd
}

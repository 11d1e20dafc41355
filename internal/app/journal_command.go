package app

import (
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/ggonzalez94/mfi-cli/internal/journal"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newJournalCommand() *cobra.Command {
	root := &cobra.Command{Use: "journal", Short: "Inspect the record of state-changing commands"}
	var (
		statusArg string
		limit     int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := journal.ParseStatus(statusArg)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "parse --status", err)
			}
			j, err := s.openJournal()
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open journal", err)
			}
			entries, err := j.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list journal", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), entries)
		},
	}
	list.Flags().StringVar(&statusArg, "status", "", "Filter by status (aborted|failed|submitted)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum entries to return")
	root.AddCommand(list)
	return root
}

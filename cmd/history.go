package cmd

import (
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/loog-project/prefwatch/internal/report"
	"github.com/loog-project/prefwatch/internal/store"
	bboltStore "github.com/loog-project/prefwatch/internal/store/bbolt"
	"github.com/loog-project/prefwatch/internal/util"
)

// historyLockTimeout bounds the wait for a running prefwatch that holds the
// revision file.
const historyLockTimeout = 2 * time.Second

var historyCmd = &cobra.Command{
	Use:   "history FILE [DOMAINS...]",
	Short: "Prints the changes recorded in a revision file",
	Long: `history prints every change recorded in a revision file written by
prefwatch --output, oldest first. Changes are grouped by the capture they were
observed in and can be restricted to some domains and by --filter.`,
	Args: cobra.MinimumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveDefault
		}
		return domainCompletion(cmd, args, toComplete)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog := setupDebugLog()
		defer closeLog()

		prog, renderer, err := prepareOutput(report.DarkTheme)
		if err != nil {
			return err
		}

		cs, err := bboltStore.Open(args[0], nil, historyLockTimeout)
		if err != nil {
			return fmt.Errorf("open revision file: %w", err)
		}
		defer func() {
			_ = cs.Close()
		}()

		reports, err := collectHistory(cs, prog, args[1:])
		if err != nil {
			return err
		}

		changes := 0
		for _, rep := range reports {
			changes += len(rep.Changes)
			if err := renderer.Write(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
		}

		summary := setupLog.Info().
			Str("changes", humanize.Comma(int64(changes))).
			Int("captures", len(reports))
		if len(reports) > 0 {
			summary = summary.Str("last-change", humanize.Time(reports[len(reports)-1].Time))
		}
		summary.Msg("History loaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

// collectHistory loads the recorded changes of domains (all when empty) that
// pass prog. Changes of one capture are grouped into a single report; reports
// are ordered by capture time.
func collectHistory(cs store.ChangeStore, prog *vm.Program, domains []string) ([]report.Report, error) {
	var (
		reports []report.Report
		walkErr error
	)
	err := cs.WalkRevisions(func(domain string, _ *store.Snapshot, rev *store.Revision) bool {
		if rev == nil {
			return true // baselines carry no changes
		}
		if len(domains) > 0 && !slices.Contains(domains, domain) {
			return true
		}
		kept, err := util.FilterChanges(prog, domain, store.ToChanges(rev.Changes))
		if err != nil {
			walkErr = fmt.Errorf("filter changes of %s: %w", domain, err)
			return false
		}
		if len(kept) > 0 {
			reports = append(reports, report.Report{Time: rev.Time, Changes: kept})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	slices.SortStableFunc(reports, func(a, b report.Report) int {
		return a.Time.Compare(b.Time)
	})

	merged := reports[:0]
	for _, rep := range reports {
		if n := len(merged); n > 0 && merged[n-1].Time.Equal(rep.Time) {
			merged[n-1].Changes = append(merged[n-1].Changes, rep.Changes...)
			continue
		}
		merged = append(merged, rep)
	}
	return merged, nil
}

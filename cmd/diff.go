package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loog-project/prefwatch/internal/defaults"
	"github.com/loog-project/prefwatch/internal/report"
	"github.com/loog-project/prefwatch/internal/util"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

var diffLabel string

var diffCmd = &cobra.Command{
	Use:   "diff OLD NEW",
	Short: "Prints the structural differences between two plist files",
	Long: `diff compares two property list files (binary, XML or OpenStep) and prints
every key path that was added, removed or modified. Paths are rooted at --label.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog := setupDebugLog()
		defer closeLog()

		prog, renderer, err := prepareOutput(report.DarkTheme)
		if err != nil {
			return err
		}

		left, err := defaults.DecodeFile(args[0])
		if err != nil {
			return err
		}
		right, err := defaults.DecodeFile(args[1])
		if err != nil {
			return err
		}

		rec := plistdiff.NewRecorder()
		plistdiff.Diff(left, right, rec, diffLabel)

		kept, err := util.FilterChanges(prog, diffLabel, rec.Changes())
		if err != nil {
			return fmt.Errorf("filter changes: %w", err)
		}
		return renderer.Write(cmd.OutOrStdout(), report.Report{Time: time.Now(), Changes: kept})
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffLabel, "label", "root",
		"Path of the root value in reported changes")
	rootCmd.AddCommand(diffCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/report"
	"github.com/pable/go-osu-metrics/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <run-prefix>",
	Short: "Show a stored match cost run by id prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	prefix := args[0]

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetMatchRunByPrefix(prefix)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "No run found with id prefix %q\n", prefix)
		return nil
	}
	costs, err := db.GetMatchCosts(run.ID)
	if err != nil {
		return fmt.Errorf("get costs: %w", err)
	}

	report.PrintRunList(os.Stdout, []storage.MatchRun{*run})
	fmt.Fprintln(os.Stdout)
	report.PrintStoredCosts(os.Stdout, costs)
	return nil
}

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/report"
	"github.com/pable/go-osu-metrics/internal/storage"
)

var (
	cPrompt   = color.New(color.FgMagenta, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the history database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(_ *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cGreeting.Println("osumetrics shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("osumetrics")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		cmd, args := tokens[0], tokens[1:]

		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			shellHelp()
		case "list":
			shellList(db)
		case "plays":
			shellPlays(db, args)
		case "show":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: show <run-prefix>")
				continue
			}
			shellShow(db, args[0])
		case "trend":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: trend <user-id>")
				continue
			}
			shellTrend(db, args[0])
		case "player":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: player <user-id> [<user-id>...]")
				continue
			}
			shellPlayer(db, args)
		default:
			cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", cmd)
		}
	}
	return scanner.Err()
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"list", "list stored match cost runs"},
		{"plays [user-id]", "list stored recent plays"},
		{"show <run-prefix>", "show a stored run's ranking"},
		{"trend <user-id>", "match cost trend for one player"},
		{"player <user-id> [...]", "cross-run totals for one or more players (" + string(costs.DefaultFormula) + ")"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-30s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}

func shellList(db *storage.DB) {
	runs, err := db.ListMatchRuns()
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(runs) == 0 {
		cMuted.Println("No runs stored yet.")
		return
	}
	report.PrintRunList(os.Stdout, runs)
}

func shellPlays(db *storage.DB, args []string) {
	var userID int64
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			cError.Fprintf(os.Stderr, "invalid user id %q\n", args[0])
			return
		}
		userID = id
	}
	recs, err := db.ListPerformance(userID, 20)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(recs) == 0 {
		cMuted.Println("No plays stored yet.")
		return
	}
	report.PrintPerformanceHistory(os.Stdout, recs)
}

func shellShow(db *storage.DB, prefix string) {
	run, err := db.GetMatchRunByPrefix(prefix)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if run == nil {
		cWarn.Fprintf(os.Stderr, "no run found with prefix %q\n", prefix)
		return
	}
	stored, err := db.GetMatchCosts(run.ID)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	report.PrintRunList(os.Stdout, []storage.MatchRun{*run})
	fmt.Println()
	report.PrintStoredCosts(os.Stdout, stored)
}

func shellTrend(db *storage.DB, arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		cError.Fprintf(os.Stderr, "invalid user id %q\n", arg)
		return
	}
	hist, err := db.GetPlayerCostHistory(id)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(hist) == 0 {
		cMuted.Println("no stored runs for this player")
		return
	}
	report.PrintCostTrendTable(os.Stdout, hist)
}

func shellPlayer(db *storage.DB, args []string) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			cError.Fprintf(os.Stderr, "invalid user id %q\n", arg)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	runs, err := db.QualifyingRuns(ids, string(costs.DefaultFormula), time.Time{}, 1)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(runs) == 0 {
		cMuted.Println("no stored runs for these players")
		return
	}
	runIDs := make([]string, len(runs))
	for i, r := range runs {
		runIDs[i] = r.ID
	}
	totals, err := db.RosterTotals(ids, runIDs)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Println()
	report.PrintPlayerTotals(os.Stdout, totals)
}

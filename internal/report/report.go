// Package report renders match costs, recomputed plays and stored history as
// terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-osu-metrics/internal/matchcost"
	"github.com/pable/go-osu-metrics/internal/model"
)

var (
	cBlue  = color.New(color.FgBlue, color.Bold)
	cRed   = color.New(color.FgRed, color.Bold)
	cMVP   = color.New(color.FgYellow, color.Bold)
	cMuted = color.New(color.Faint)
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// teamLabel colours a team name.
func teamLabel(t model.Team) string {
	switch t {
	case model.TeamBlue:
		return cBlue.Sprint(t.String())
	case model.TeamRed:
		return cRed.Sprint(t.String())
	default:
		return t.String()
	}
}

// PrintMatchSummary prints a one-line header for a ranked match.
// runID is shown when the run was stored.
func PrintMatchSummary(w io.Writer, rep *matchcost.Report, runID string) {
	name := rep.Match.Name
	if name == "" {
		name = "match " + strconv.FormatInt(rep.Match.ID, 10)
	}
	fmt.Fprintf(w, "\n%s  |  Formula: %s  |  Games: %d", name, rep.Formula, rep.TotalGames)
	if rep.Warmups > 0 {
		fmt.Fprintf(w, " (+%d warmup)", rep.Warmups)
	}
	if rep.TeamVersus {
		fmt.Fprintf(w, "  |  Score: %s %d – %d %s",
			teamLabel(model.TeamBlue), rep.Tally.Blue, rep.Tally.Red, teamLabel(model.TeamRed))
	}
	if mvp := rep.MVP(); mvp != nil {
		fmt.Fprintf(w, "  |  MVP: %s", cMVP.Sprint(mvp.DisplayName()))
	}
	if runID != "" {
		fmt.Fprintf(w, "  |  Run: %s", shortID(runID))
	}
	fmt.Fprint(w, "\n\n")
}

// PrintMatchCosts prints the ranking. Team-versus matches get one table per
// team, in ranking order within each team; other matches a single table.
func PrintMatchCosts(w io.Writer, results []model.CostResult, teamVersus bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No games were played in this match.")
		return
	}
	if !teamVersus {
		printCostTable(w, results, true)
		return
	}
	for _, team := range []model.Team{model.TeamBlue, model.TeamRed} {
		var rows []model.CostResult
		for _, r := range results {
			if r.Team == team {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s TEAM\n", teamLabel(team))
		printCostTable(w, rows, false)
		fmt.Fprintln(w)
	}
}

func printCostTable(w io.Writer, results []model.CostResult, withTeam bool) {
	table := newTable(w)
	if withTeam {
		table.Header(" ", "#", "PLAYER", "TEAM", "GAMES", "COST")
	} else {
		table.Header(" ", "#", "PLAYER", "GAMES", "COST")
	}

	for i, r := range results {
		marker := " "
		if r.IsMVP {
			marker = cMVP.Sprint("MVP")
		}
		row := []any{marker, strconv.Itoa(i + 1), r.DisplayName()}
		if withTeam {
			row = append(row, teamLabel(r.Team))
		}
		row = append(row, strconv.Itoa(r.Games), fmt.Sprintf("%.2f", r.Value))
		table.Append(row...)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMods(mods []string) string {
	if len(mods) == 0 {
		return "NM"
	}
	return strings.Join(mods, "")
}

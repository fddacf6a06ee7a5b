package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pable/go-osu-metrics/internal/storage"
)

// PrintRunList prints stored match cost runs, one per line.
func PrintRunList(w io.Writer, runs []storage.MatchRun) {
	fmt.Fprintf(w, "%-8s  %-10s  %-12s  %-10s  %5s  %s\n",
		"RUN", "MATCH", "DATE", "FORMULA", "SCORE", "NAME")
	fmt.Fprintf(w, "%-8s  %-10s  %-12s  %-10s  %5s  %s\n",
		"────────", "──────────", "────────────", "──────────", "─────", "────")
	for _, r := range runs {
		score := "-"
		if r.TeamVersus {
			score = fmt.Sprintf("%d-%d", r.Tally.Blue, r.Tally.Red)
		}
		fmt.Fprintf(w, "%-8s  %-10d  %-12s  %-10s  %5s  %s\n",
			shortID(r.ID), r.MatchID, r.CreatedAt.Format("2006-01-02"), r.Formula, score, r.MatchName)
	}
}

// PrintStoredCosts prints the ranking of a stored run.
func PrintStoredCosts(w io.Writer, costs []storage.StoredCost) {
	table := newTable(w)
	table.Header(" ", "#", "PLAYER", "TEAM", "GAMES", "COST")
	for _, c := range costs {
		marker := " "
		if c.IsMVP {
			marker = cMVP.Sprint("MVP")
		}
		table.Append(marker, strconv.Itoa(c.Position), c.DisplayName(), teamLabel(c.Team),
			strconv.Itoa(c.Games), fmt.Sprintf("%.2f", c.Value))
	}
	table.Render()
}

// PrintCostTrendTable prints one row per stored appearance, oldest first,
// with a running average per formula.
func PrintCostTrendTable(w io.Writer, hist []storage.CostHistoryEntry) {
	table := newTable(w)
	table.Header("DATE", "MATCH", "FORMULA", "TEAM", "GAMES", "COST", "RANK", "AVG", "SAMPLE")

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, e := range hist {
		sums[e.Formula] += e.Cost
		counts[e.Formula]++
		rank := fmt.Sprintf("%d/%d", e.Position, e.Players)
		if e.IsMVP {
			rank = cMVP.Sprint(rank)
		}
		table.Append(
			e.CreatedAt.Format("2006-01-02"),
			strconv.FormatInt(e.MatchID, 10),
			e.Formula,
			teamLabel(e.Team),
			strconv.Itoa(e.Games),
			fmt.Sprintf("%.2f", e.Cost),
			rank,
			fmt.Sprintf("%.2f", sums[e.Formula]/float64(counts[e.Formula])),
			sampleFlag(e.Games),
		)
	}
	table.Render()
}

// PrintPerformanceHistory prints stored recomputed plays.
func PrintPerformanceHistory(w io.Writer, recs []storage.PerformanceRecord) {
	table := newTable(w)
	table.Header("DATE", "PLAYER", "MODE", "BEATMAP", "MODS", "RANK", "STARS", "PP", "FC PP", "DONE")
	for _, p := range recs {
		stars := cMuted.Sprint("—")
		if p.Result.Stars != nil {
			stars = fmt.Sprintf("%.2f", *p.Result.Stars)
		}
		name := p.Username
		if name == "" {
			name = strconv.FormatInt(p.UserID, 10)
		}
		table.Append(
			p.CreatedAt.Format("2006-01-02"),
			name,
			string(p.Mode),
			fmt.Sprintf("%s [%s]", p.Title, p.Version),
			formatMods(p.Mods),
			p.Rank,
			stars,
			fmt.Sprintf("%.2f", p.Result.Played.PP),
			fmt.Sprintf("%.2f", p.Result.FullCombo.PP),
			fmt.Sprintf("%.0f%%", p.Result.Completion),
		)
	}
	table.Render()
}

// sampleFlag marks costs built from few games, which swing heavily.
func sampleFlag(games int) string {
	switch {
	case games >= 8:
		return "OK"
	case games >= 4:
		return "LOW"
	default:
		return "VERY_LOW"
	}
}

// PrintPlayerTotals prints cross-run totals, one row per player.
func PrintPlayerTotals(w io.Writer, totals []storage.PlayerTotals) {
	table := newTable(w)
	table.Header("PLAYER", "RUNS", "GAMES", "AVG COST", "BEST", "MVP", "MVP%")
	for _, t := range totals {
		name := t.Username
		if name == "" {
			name = strconv.FormatInt(t.UserID, 10)
		}
		mvpRate := 0.0
		if t.Runs > 0 {
			mvpRate = float64(t.MVPs) / float64(t.Runs) * 100
		}
		table.Append(
			name,
			strconv.Itoa(t.Runs),
			strconv.Itoa(t.Games),
			fmt.Sprintf("%.2f", t.AvgCost()),
			fmt.Sprintf("%.2f", t.BestCost),
			strconv.Itoa(t.MVPs),
			fmt.Sprintf("%.0f%%", mvpRate),
		)
	}
	table.Render()
}

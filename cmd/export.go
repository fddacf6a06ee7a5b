package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/storage"
)

var (
	exportTeam     string
	exportPlayers  string
	exportRoster   string
	exportFormula  string
	exportSince    int
	exportQuorum   int
	exportOut      string
	exportHalfLife float64
)

// rosterFile is the schema for --roster JSON files.
type rosterFile struct {
	Team    string  `json:"team"`
	Players []int64 `json:"players"`
}

// teamExport is the top-level JSON document written by export.
type teamExport struct {
	Team          string         `json:"team"`
	Formula       string         `json:"formula"`
	Players       []playerExport `json:"players"`
	TeamCost      float64        `json:"team_cost"`
	GeneratedAt   string         `json:"generated_at"`
	WindowDays    int            `json:"window_days"`
	LatestRunDate string         `json:"latest_run_date"`
	RunCount      int            `json:"run_count"`
}

// playerExport is one roster member's block.
type playerExport struct {
	UserID       int64   `json:"user_id"`
	Username     string  `json:"username"`
	Runs         int     `json:"runs"`
	Games        int     `json:"games"`
	AvgCost      float64 `json:"avg_cost"`
	WeightedCost float64 `json:"weighted_cost"`
	BestCost     float64 `json:"best_cost"`
	MVPRate      float64 `json:"mvp_rate"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export roster match cost stats as JSON",
	Long: `Queries the history database for a roster and produces a JSON summary of
each player's stored match costs for one formula.

Specify the roster via --players (comma-separated osu! user ids) or
--roster (path to a JSON file). If both are provided, --players takes precedence.
If --team is set alongside --roster, it overrides the name from the roster file.

Only runs in which at least --quorum roster players appear are used. Costs are
weighted by age with an exponential decay of the given half-life.

Example:
  osumetrics export --team "Team A" --players "2,124493,39828" --out team-a.json
  osumetrics export --roster team-a.json --formula flashlight --quorum 2`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportTeam, "team", "", "team name for the output JSON")
	exportCmd.Flags().StringVar(&exportPlayers, "players", "", "comma-separated osu! user ids")
	exportCmd.Flags().StringVar(&exportRoster, "roster", "", `roster JSON file: {"team":"...","players":[2,124493,...]}`)
	exportCmd.Flags().StringVar(&exportFormula, "formula", string(costs.DefaultFormula), "formula of the runs to include")
	exportCmd.Flags().IntVar(&exportSince, "since", 90, "look-back window in days")
	exportCmd.Flags().IntVar(&exportQuorum, "quorum", 2, "min roster players per run to include it")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (default: stdout)")
	exportCmd.Flags().Float64Var(&exportHalfLife, "half-life", 35,
		"temporal decay half-life in days (0 = uniform weights)")
}

func runExport(_ *cobra.Command, _ []string) error {
	teamName, userIDs, err := resolveRoster()
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return fmt.Errorf("no players specified: use --players or --roster")
	}
	if teamName == "" {
		return fmt.Errorf("no team name specified: use --team or include it in the roster file")
	}
	formula, err := costs.ParseFormula(exportFormula)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	since := time.Now().AddDate(0, 0, -exportSince)
	fmt.Fprintf(os.Stderr, "Querying %s runs for %d players since %s (quorum=%d)...\n",
		formula, len(userIDs), since.Format("2006-01-02"), exportQuorum)

	runs, err := db.QualifyingRuns(userIDs, string(formula), since, exportQuorum)
	if err != nil {
		return fmt.Errorf("query qualifying runs: %w", err)
	}
	if len(runs) == 0 {
		explainNoRuns(db, userIDs, string(formula), since)
		return fmt.Errorf("no qualifying runs found in the last %d days with quorum=%d", exportSince, exportQuorum)
	}
	fmt.Fprintf(os.Stderr, "Found %d qualifying runs\n", len(runs))

	runIDs := make([]string, len(runs))
	for i, r := range runs {
		runIDs[i] = r.ID
	}
	totals, err := db.RosterTotals(userIDs, runIDs)
	if err != nil {
		return fmt.Errorf("roster totals: %w", err)
	}
	perRun, err := db.RosterCostsByRun(userIDs, runIDs)
	if err != nil {
		return fmt.Errorf("roster costs: %w", err)
	}

	weighted := weightedCosts(perRun, time.Now(), exportHalfLife)
	out := teamExport{
		Team:          teamName,
		Formula:       string(formula),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		WindowDays:    exportSince,
		LatestRunDate: runs[0].CreatedAt.Format("2006-01-02"),
		RunCount:      len(runs),
	}
	for _, t := range totals {
		p := playerExport{
			UserID:       t.UserID,
			Username:     t.Username,
			Runs:         t.Runs,
			Games:        t.Games,
			AvgCost:      roundTo2dp(t.AvgCost()),
			WeightedCost: roundTo2dp(weighted[t.UserID]),
			BestCost:     roundTo2dp(t.BestCost),
		}
		if t.Runs > 0 {
			p.MVPRate = roundTo2dp(float64(t.MVPs) / float64(t.Runs))
		}
		out.Players = append(out.Players, p)
		fmt.Fprintf(os.Stderr, "  %-20s  runs=%2d  avg=%.2f  weighted=%.2f  mvp=%.0f%%\n",
			p.Username, p.Runs, p.AvgCost, p.WeightedCost, p.MVPRate*100)
	}
	sort.SliceStable(out.Players, func(i, j int) bool {
		return out.Players[i].WeightedCost > out.Players[j].WeightedCost
	})
	out.TeamCost = teamCost(out.Players)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	if exportOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(exportOut, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", exportOut)
	return nil
}

// explainNoRuns prints per-player run counts without the quorum filter so the
// user knows what data exists.
func explainNoRuns(db *storage.DB, userIDs []int64, formula string, since time.Time) {
	counts, err := db.PlayerRunCounts(userIDs, formula, since)
	if err != nil {
		return
	}
	if len(counts) == 0 {
		fmt.Fprintf(os.Stderr, "hint: none of the %d roster players appear in a stored %s run in the last %d days; run 'osumetrics matchcosts --save' first\n",
			len(userIDs), formula, exportSince)
		return
	}
	fmt.Fprintf(os.Stderr, "Per-player run counts (last %d days, no quorum filter):\n", exportSince)
	for _, c := range counts {
		fmt.Fprintf(os.Stderr, "  %-20s  %d run(s)\n", c.Username, c.Count)
	}
	if exportQuorum > 1 {
		fmt.Fprintf(os.Stderr, "hint: no single run has %d+ roster players together; try --quorum %d\n",
			exportQuorum, exportQuorum-1)
	}
}

// resolveRoster returns the team name and user id list from flags.
// --players takes precedence over --roster; --team always overrides the roster file name.
func resolveRoster() (teamName string, userIDs []int64, err error) {
	if exportPlayers != "" {
		for _, raw := range strings.Split(exportPlayers, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return "", nil, fmt.Errorf("invalid user id %q: %w", raw, err)
			}
			userIDs = append(userIDs, id)
		}
		return exportTeam, userIDs, nil
	}
	if exportRoster != "" {
		data, readErr := os.ReadFile(exportRoster)
		if readErr != nil {
			return "", nil, fmt.Errorf("read roster file: %w", readErr)
		}
		var rf rosterFile
		if jsonErr := json.Unmarshal(data, &rf); jsonErr != nil {
			return "", nil, fmt.Errorf("parse roster file: %w", jsonErr)
		}
		name := rf.Team
		if exportTeam != "" {
			name = exportTeam
		}
		return name, rf.Players, nil
	}
	return exportTeam, nil, nil
}

// decayWeight returns exp(-ln(2)/halfLife * age in days). halfLife <= 0 gives 1.
func decayWeight(created, ref time.Time, halfLife float64) float64 {
	if halfLife <= 0 {
		return 1
	}
	days := ref.Sub(created).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-math.Log(2) / halfLife * days)
}

// weightedCosts returns the decay-weighted mean cost per player.
func weightedCosts(perRun []storage.PlayerRunCost, ref time.Time, halfLife float64) map[int64]float64 {
	sums := make(map[int64]float64)
	weights := make(map[int64]float64)
	for _, c := range perRun {
		w := decayWeight(c.CreatedAt, ref, halfLife)
		sums[c.UserID] += w * c.Cost
		weights[c.UserID] += w
	}
	out := make(map[int64]float64, len(sums))
	for id, s := range sums {
		if weights[id] > 0 {
			out[id] = s / weights[id]
		}
	}
	return out
}

// teamCost is the mean weighted cost of the (up to) four strongest players,
// players being sorted descending.
func teamCost(players []playerExport) float64 {
	top := players
	if len(top) > 4 {
		top = top[:4]
	}
	if len(top) == 0 {
		return 0
	}
	var sum float64
	for _, p := range top {
		sum += p.WeightedCost
	}
	return roundTo2dp(sum / float64(len(top)))
}

func roundTo2dp(v float64) float64 {
	return math.Round(v*100) / 100
}

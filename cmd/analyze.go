package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/storage"
)

const analyzeSystemPrompt = `You are an osu! tournament performance analyst. You are given structured data
from a match cost tool and a question from the player or team captain.

Rules:
- Answer ONLY from the data provided. Never invent or estimate statistics.
- Always cite specific numbers when making a claim.
- If the data is insufficient to answer confidently, say so explicitly.
- Be concise and actionable.
- Costs from different formulas are not comparable; never mix them.

Metrics glossary:
- Match cost: a player's contribution relative to the lobby. 1.0 is an average player.
- osuplus: 2/(n+2) times the sum of score/average ratios; rewards playing many maps.
- bathbot: average ratio plus 0.5, with a participation bonus up to x1.4 and +2% per extra mod combination.
- flashlight: median-based ratio times a participation factor.
- games: maps the player took part in. Fewer than 4 games makes a cost unreliable.
- MVP: the highest cost in the run.
- pp: performance points of a play; fc_pp is the same play with a full combo.
- completion: percentage of the map played before failing.`

var (
	analyzeModel  string
	analyzeAPIKey string

	analyzePlayerFormula string
	analyzePlayerLast    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "AI-powered grounded analysis of stored runs (requires ANTHROPIC_API_KEY)",
}

var analyzePlayerCmd = &cobra.Command{
	Use:   "player <user-id> <question>",
	Short: "Analyze a player's stored match costs and plays with AI",
	Args:  cobra.ExactArgs(2),
	RunE:  runAnalyzePlayer,
}

var analyzeMatchCmd = &cobra.Command{
	Use:   "match <run-prefix> <question>",
	Short: "Analyze a single stored run with AI",
	Args:  cobra.ExactArgs(2),
	RunE:  runAnalyzeMatch,
}

func init() {
	analyzeCmd.PersistentFlags().StringVar(&analyzeModel, "model", "", "Anthropic model to use (default from config)")
	analyzeCmd.PersistentFlags().StringVar(&analyzeAPIKey, "api-key", "", "Anthropic API key (falls back to config and $ANTHROPIC_API_KEY)")

	analyzePlayerCmd.Flags().StringVar(&analyzePlayerFormula, "formula", "", "only use runs of this formula")
	analyzePlayerCmd.Flags().IntVar(&analyzePlayerLast, "last", 0, "only use the N most recent runs")

	analyzeCmd.AddCommand(analyzePlayerCmd)
	analyzeCmd.AddCommand(analyzeMatchCmd)
}

func runAnalyzePlayer(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	question := args[1]

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	hist, err := db.GetPlayerCostHistory(id)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	hist = filterHistory(hist, analyzePlayerFormula, analyzePlayerLast)
	plays, err := db.ListPerformance(id, 20)
	if err != nil {
		return fmt.Errorf("query plays: %w", err)
	}
	if len(hist) == 0 && len(plays) == 0 {
		return fmt.Errorf("no data found for user %d (after filters)", id)
	}

	filters := map[string]interface{}{
		"formula": analyzePlayerFormula,
		"last":    analyzePlayerLast,
	}
	contextJSON, err := buildPlayerContext(id, hist, plays, filters)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}
	return callAnthropic(cmd.Context(), analyzeAPIKey, analyzeModel, contextJSON, question)
}

func runAnalyzeMatch(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetMatchRunByPrefix(args[0])
	if err != nil {
		return fmt.Errorf("find run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("no run found with id prefix %q", args[0])
	}
	question := args[1]

	costs, err := db.GetMatchCosts(run.ID)
	if err != nil {
		return fmt.Errorf("query costs: %w", err)
	}

	contextJSON, err := buildMatchContext(run, costs)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}
	return callAnthropic(cmd.Context(), analyzeAPIKey, analyzeModel, contextJSON, question)
}

// filterHistory keeps entries of formula (all when empty), then the last n (all when 0).
// hist is oldest first.
func filterHistory(hist []storage.CostHistoryEntry, formula string, last int) []storage.CostHistoryEntry {
	var out []storage.CostHistoryEntry
	for _, e := range hist {
		if formula != "" && !strings.EqualFold(e.Formula, formula) {
			continue
		}
		out = append(out, e)
	}
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out
}

// buildPlayerContext serialises a player's stored history into compact JSON.
func buildPlayerContext(userID int64, hist []storage.CostHistoryEntry, plays []storage.PerformanceRecord, filters map[string]interface{}) (string, error) {
	type runEntry struct {
		Date     string  `json:"date"`
		Match    string  `json:"match"`
		Formula  string  `json:"formula"`
		Team     string  `json:"team"`
		Games    int     `json:"games"`
		Cost     float64 `json:"cost"`
		Position int     `json:"position"`
		Players  int     `json:"players"`
		MVP      bool    `json:"mvp"`
	}
	type playEntry struct {
		Date       string   `json:"date"`
		Mode       string   `json:"mode"`
		Beatmap    string   `json:"beatmap"`
		Mods       []string `json:"mods"`
		Rank       string   `json:"rank"`
		Stars      *float64 `json:"stars,omitempty"`
		PP         float64  `json:"pp"`
		Accuracy   float64  `json:"accuracy"`
		FCPP       float64  `json:"fc_pp"`
		Completion float64  `json:"completion"`
	}

	name := ""
	runs := make([]runEntry, 0, len(hist))
	for _, e := range hist {
		runs = append(runs, runEntry{
			Date:     e.CreatedAt.Format("2006-01-02"),
			Match:    e.MatchName,
			Formula:  e.Formula,
			Team:     string(e.Team),
			Games:    e.Games,
			Cost:     roundTo2dp(e.Cost),
			Position: e.Position,
			Players:  e.Players,
			MVP:      e.IsMVP,
		})
	}
	recent := make([]playEntry, 0, len(plays))
	for _, p := range plays {
		if name == "" {
			name = p.Username
		}
		var stars *float64
		if p.Result.Stars != nil {
			v := roundTo2dp(*p.Result.Stars)
			stars = &v
		}
		recent = append(recent, playEntry{
			Date:       p.PlayedAt.Format("2006-01-02"),
			Mode:       string(p.Mode),
			Beatmap:    fmt.Sprintf("%s [%s]", p.Title, p.Version),
			Mods:       p.Mods,
			Rank:       p.Rank,
			Stars:      stars,
			PP:         roundTo2dp(p.Result.Played.PP),
			Accuracy:   roundTo2dp(p.Result.Played.Accuracy),
			FCPP:       roundTo2dp(p.Result.FullCombo.PP),
			Completion: roundTo2dp(p.Result.Completion),
		})
	}

	doc := map[string]interface{}{
		"subject":       "player",
		"user_id":       userID,
		"player":        name,
		"runs_analyzed": len(runs),
		"filters":       filters,
		"runs":          runs,
		"recent_plays":  recent,
	}
	b, err := json.Marshal(doc)
	return string(b), err
}

// buildMatchContext serialises a single stored run into compact JSON.
func buildMatchContext(run *storage.MatchRun, costs []storage.StoredCost) (string, error) {
	type playerEntry struct {
		Name     string  `json:"name"`
		Team     string  `json:"team"`
		Games    int     `json:"games"`
		Cost     float64 `json:"cost"`
		Position int     `json:"position"`
		MVP      bool    `json:"mvp"`
	}

	players := make([]playerEntry, 0, len(costs))
	for _, c := range costs {
		players = append(players, playerEntry{
			Name:     c.DisplayName(),
			Team:     string(c.Team),
			Games:    c.Games,
			Cost:     roundTo2dp(c.Value),
			Position: c.Position,
			MVP:      c.IsMVP,
		})
	}

	doc := map[string]interface{}{
		"subject":     "match",
		"match_id":    run.MatchID,
		"name":        run.MatchName,
		"formula":     run.Formula,
		"team_versus": run.TeamVersus,
		"total_games": run.TotalGames,
		"warmups":     run.Warmups,
		"players":     players,
	}
	if run.TeamVersus {
		doc["score"] = fmt.Sprintf("%d-%d", run.Tally.Blue, run.Tally.Red)
	}

	b, err := json.Marshal(doc)
	return string(b), err
}

// callAnthropic streams a response from the Anthropic API and prints it to stdout.
func callAnthropic(ctx context.Context, apiKey, modelID, dataJSON, question string) error {
	if apiKey == "" {
		apiKey = cfg.Analyze.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("no API key: set ANTHROPIC_API_KEY, analyze.api_key or use --api-key")
	}
	if modelID == "" {
		modelID = cfg.Analyze.Model
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	userMsg := fmt.Sprintf("DATA:\n%s\n\nQUESTION: %s", dataJSON, question)

	fmt.Fprintln(os.Stdout, "\n─── AI Analysis ─────────────────────────────────────")

	stream := client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: analyzeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMsg)),
		},
	})

	for stream.Next() {
		evt := stream.Current()
		if evt.Type == "content_block_delta" {
			delta := evt.AsContentBlockDelta()
			if delta.Delta.Type == "text_delta" {
				fmt.Fprint(os.Stdout, delta.Delta.AsTextDelta().Text)
			}
		}
	}
	fmt.Fprintln(os.Stdout, "\n─────────────────────────────────────────────────────")

	if err := stream.Err(); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "authentication") {
			return fmt.Errorf("API authentication failed: check your API key")
		}
		return fmt.Errorf("streaming error: %w", err)
	}
	return nil
}

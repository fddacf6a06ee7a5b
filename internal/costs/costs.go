// Package costs ranks the players of a match with one of the match cost formulas.
package costs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pable/go-osu-metrics/internal/aggregator"
	"github.com/pable/go-osu-metrics/internal/model"
)

// Formula names a match cost formula.
type Formula string

const (
	FormulaOsuplus    Formula = "osuplus"
	FormulaBathbot    Formula = "bathbot"
	FormulaFlashlight Formula = "flashlight"
)

// DefaultFormula is used when none is requested.
const DefaultFormula = FormulaBathbot

// Scorer maps aggregated match data to one cost per player, in player encounter order.
type Scorer interface {
	Score(res *aggregator.Result) []model.CostResult
}

// scorers is the formula lookup table.
var scorers = map[Formula]Scorer{
	FormulaOsuplus:    osuplus{},
	FormulaBathbot:    bathbot{},
	FormulaFlashlight: flashlight{},
}

// Formulas lists the available formulas in a stable order.
func Formulas() []Formula {
	return []Formula{FormulaOsuplus, FormulaBathbot, FormulaFlashlight}
}

// ParseFormula validates a formula name. An empty name yields DefaultFormula.
func ParseFormula(s string) (Formula, error) {
	f := Formula(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return DefaultFormula, nil
	}
	if _, ok := scorers[f]; !ok {
		return "", fmt.Errorf("unknown formula %q (want one of %v)", s, Formulas())
	}
	return f, nil
}

// Compute scores every player, sorts by cost descending (ties keep encounter
// order) and marks the first entry as MVP.
func Compute(f Formula, res *aggregator.Result) ([]model.CostResult, error) {
	scorer, ok := scorers[f]
	if !ok {
		return nil, fmt.Errorf("unknown formula %q", f)
	}
	results := scorer.Score(res)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Value > results[j].Value
	})
	if len(results) > 0 {
		results[0].IsMVP = true
	}
	return results, nil
}

// playerRecords groups records by player while preserving game order.
func playerRecords(res *aggregator.Result) map[int64][]model.PlayerGameRecord {
	out := make(map[int64][]model.PlayerGameRecord, len(res.Players))
	for _, r := range res.Records {
		out[r.UserID] = append(out[r.UserID], r)
	}
	return out
}

// newResult fills the identity fields of a cost result. The team is the one
// on the player's last record.
func newResult(p *model.PlayerAggregate, recs []model.PlayerGameRecord) model.CostResult {
	team := p.Team
	if len(recs) > 0 {
		team = recs[len(recs)-1].Team
	}
	return model.CostResult{
		UserID:   p.UserID,
		Username: p.Username,
		Team:     team,
		Games:    len(recs),
	}
}

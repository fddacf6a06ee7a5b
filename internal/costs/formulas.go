package costs

import (
	"math"

	"github.com/pable/go-osu-metrics/internal/aggregator"
	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/stats"
)

// osuplus: 2/(n+2) × Σ mean ratios.
type osuplus struct{}

func (osuplus) Score(res *aggregator.Result) []model.CostResult {
	byPlayer := playerRecords(res)
	out := make([]model.CostResult, 0, len(res.Players))
	for _, p := range res.Players {
		recs := byPlayer[p.UserID]
		var sum float64
		for _, r := range recs {
			sum += r.MeanRatio
		}
		c := newResult(p, recs)
		c.Value = 2 / float64(len(recs)+2) * sum
		out = append(out, c)
	}
	return out
}

// bathbot: (Σ mean ratios + n/2 + tie-break) / n × scale bonus × mod bonus.
type bathbot struct{}

func (bathbot) Score(res *aggregator.Result) []model.CostResult {
	byPlayer := playerRecords(res)
	tieBreak := res.Tally.TieBreak()
	out := make([]model.CostResult, 0, len(res.Players))
	for _, p := range res.Players {
		recs := byPlayer[p.UserID]
		n := float64(len(recs))

		var sum, tb float64
		for _, r := range recs {
			sum += r.MeanRatio
		}
		if tieBreak && len(recs) > 0 {
			tb = recs[len(recs)-1].TieBreakRatio
		}

		participation := n * 0.5
		average := 1 / n
		modBonus := 1 + 0.02*math.Max(0, float64(p.Mods.Len()-2))

		c := newResult(p, recs)
		c.Value = (sum + participation + tb) * average * ScaleBonus(len(recs), res.TotalGames) * modBonus
		out = append(out, c)
	}
	return out
}

// ScaleBonus is 1.4^(((played−1)/(total−1))^0.6). A match with a single game
// leaves the exponent base undefined; the bonus is then 1, the value it has
// for a player who appeared in only one game of a longer match.
func ScaleBonus(played, total int) float64 {
	if total <= 1 {
		return 1
	}
	return math.Pow(1.4, math.Pow(float64(played-1)/float64(total-1), 0.6))
}

// flashlight: mean of median ratios × cbrt(n / median games played).
type flashlight struct{}

func (flashlight) Score(res *aggregator.Result) []model.CostResult {
	byPlayer := playerRecords(res)

	plays := make([]float64, 0, len(res.Players))
	for _, p := range res.Players {
		plays = append(plays, float64(len(byPlayer[p.UserID])))
	}
	medianPlays := stats.Median(plays)

	out := make([]model.CostResult, 0, len(res.Players))
	for _, p := range res.Players {
		recs := byPlayer[p.UserID]
		n := float64(len(recs))
		var sum float64
		for _, r := range recs {
			sum += r.MedianRatio
		}
		c := newResult(p, recs)
		c.Value = sum / n * math.Cbrt(n/medianPlays)
		out = append(out, c)
	}
	return out
}

package difficulty

import "github.com/pable/go-osu-metrics/internal/model"

// Accuracy returns the accuracy of the hit counts in percent, using the
// weighting of the given mode. An empty play is 0.
func Accuracy(mode model.Mode, s model.Statistics) float64 {
	var num, denom float64
	switch mode {
	case model.ModeTaiko:
		num = float64(s.Count300) + 0.5*float64(s.Count100)
		denom = float64(s.Count300 + s.Count100 + s.CountMiss)
	case model.ModeFruits:
		num = float64(s.Count300 + s.Count100 + s.Count50)
		denom = float64(s.Count300 + s.Count100 + s.Count50 + s.CountMiss + s.CountKatu)
	case model.ModeMania:
		num = 300*float64(s.CountGeki+s.Count300) + 200*float64(s.CountKatu) + 100*float64(s.Count100) + 50*float64(s.Count50)
		denom = 300 * float64(s.CountGeki+s.Count300+s.CountKatu+s.Count100+s.Count50+s.CountMiss)
	default:
		num = 300*float64(s.Count300) + 100*float64(s.Count100) + 50*float64(s.Count50)
		denom = 300 * float64(s.TotalHits())
	}
	if denom == 0 {
		return 0
	}
	return num / denom * 100
}

// FullComboStatistics turns every miss into a great.
func FullComboStatistics(s model.Statistics) model.Statistics {
	s.Count300 += s.CountMiss
	s.CountMiss = 0
	return s
}

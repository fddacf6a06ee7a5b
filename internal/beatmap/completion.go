package beatmap

import (
	"fmt"

	"github.com/pable/go-osu-metrics/internal/model"
)

// Completion estimates the percentage of a beatmap's active duration a play
// covered. Passes are always 100. For fails the last judged object is the one
// at index totalHits−1:
//
//	(t[totalHits−1] − t[0]) / (t[last] − t[0]) × 100
//
// A fail with no judgements is 0. More judgements than objects is clamped to
// the last object.
func Completion(timeline []int, stats model.Statistics, failed bool) (float64, error) {
	if !failed {
		return 100, nil
	}
	if len(timeline) < 2 {
		return 0, fmt.Errorf("%w: %d hit objects", ErrMalformedBeatmap, len(timeline))
	}
	first, last := timeline[0], timeline[len(timeline)-1]
	duration := last - first
	if duration <= 0 {
		return 0, fmt.Errorf("%w: no active duration", ErrMalformedBeatmap)
	}

	hits := stats.TotalHits()
	if hits <= 0 {
		return 0, nil
	}
	if hits > len(timeline) {
		hits = len(timeline)
	}
	return float64(timeline[hits-1]-first) / float64(duration) * 100, nil
}

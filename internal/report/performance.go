package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pable/go-osu-metrics/internal/performance"
)

// PrintPerformance prints a recomputed recent play.
func PrintPerformance(w io.Writer, rep *performance.Report) {
	s := rep.Score
	fmt.Fprintf(w, "\n%s  |  %s - %s [%s] +%s  |  Rank: %s\n",
		rep.User.Username, s.Beatmapset.Artist, s.Beatmapset.Title, s.Beatmap.Version,
		formatMods(s.Mods), s.Rank)
	if rep.Result.Stars != nil {
		fmt.Fprintf(w, "Stars: %.2f★  ", *rep.Result.Stars)
	}
	fmt.Fprintf(w, "Score: %d  |  Combo: %dx/%dx  |  Map completion: %.2f%%\n\n",
		s.Score, s.MaxCombo, rep.Meta.MaxCombo, rep.Result.Completion)

	table := newTable(w)
	table.Header("", "PP", "ACC", "300", "100", "50", "MISS")
	st := s.Statistics
	table.Append("played",
		fmt.Sprintf("%.2f", rep.Result.Played.PP),
		fmt.Sprintf("%.2f%%", rep.Result.Played.Accuracy),
		strconv.Itoa(st.Count300), strconv.Itoa(st.Count100), strconv.Itoa(st.Count50), strconv.Itoa(st.CountMiss),
	)
	table.Append("if FC",
		fmt.Sprintf("%.2f", rep.Result.FullCombo.PP),
		fmt.Sprintf("%.2f%%", rep.Result.FullCombo.Accuracy),
		cMuted.Sprint("—"), "", "", "",
	)
	table.Render()
}

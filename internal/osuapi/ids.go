package osuapi

import (
	"fmt"
	"regexp"
	"strconv"
)

var matchIDPattern = regexp.MustCompile(`^(?:https?://(?:osu|old)\.ppy\.sh/(?:community/matches|mp)/)?(\d+)/?$`)

// ParseMatchID accepts a bare match id or a match URL such as
// https://osu.ppy.sh/community/matches/123 or https://osu.ppy.sh/mp/123.
func ParseMatchID(s string) (int64, error) {
	m := matchIDPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid match id or url %q", s)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid match id %q: %w", m[1], err)
	}
	return id, nil
}

package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Mode is an osu! ruleset as named by the API.
type Mode string

const (
	ModeOsu    Mode = "osu"
	ModeTaiko  Mode = "taiko"
	ModeFruits Mode = "fruits"
	ModeMania  Mode = "mania"
)

// Modes lists every ruleset in display order.
var Modes = []Mode{ModeOsu, ModeTaiko, ModeFruits, ModeMania}

// ParseMode accepts the API names plus the common aliases "std", "catch" and "ctb".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "osu", "std", "standard":
		return ModeOsu, nil
	case "taiko":
		return ModeTaiko, nil
	case "fruits", "catch", "ctb":
		return ModeFruits, nil
	case "mania":
		return ModeMania, nil
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// Team is the side a player was on during a game.
type Team string

const (
	TeamNone Team = "none"
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

func (t Team) String() string {
	switch t {
	case TeamBlue:
		return "BLUE"
	case TeamRed:
		return "RED"
	default:
		return "-"
	}
}

// TeamType is the lobby's team mode for a single game.
type TeamType string

const (
	TeamTypeHeadToHead TeamType = "head-to-head"
	TeamTypeTagCoop    TeamType = "tag-coop"
	TeamTypeTeamVS     TeamType = "team-vs"
	TeamTypeTagTeamVS  TeamType = "tag-team-vs"
)

// EventType tags a MatchEvent.
type EventType string

const (
	EventMatchCreated   EventType = "match-created"
	EventMatchDisbanded EventType = "match-disbanded"
	EventPlayerJoined   EventType = "player-joined"
	EventPlayerLeft     EventType = "player-left"
	EventPlayerKicked   EventType = "player-kicked"
	EventHostChanged    EventType = "host-changed"
	EventOther          EventType = "other"
)

// ---- Remote match history ----

// Match is the lobby header returned with every page of events.
type Match struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// EventDetail carries the event tag.
type EventDetail struct {
	Type EventType `json:"type"`
	Text string    `json:"text,omitempty"`
}

// MatchEvent is one entry of a lobby history. Game is non-nil for game events.
type MatchEvent struct {
	ID        int64       `json:"id"`
	Detail    EventDetail `json:"detail"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    *int64      `json:"user_id"`
	Game      *Game       `json:"game,omitempty"`
}

// IsGame reports whether the event carries a played game.
func (e MatchEvent) IsGame() bool { return e.Game != nil }

// GameBeatmap is the subset of beatmap fields embedded in a game.
type GameBeatmap struct {
	ID           int64 `json:"id"`
	BeatmapsetID int64 `json:"beatmapset_id"`
}

// Game is one played beatmap inside a match.
type Game struct {
	ID        int64        `json:"id"`
	BeatmapID int64        `json:"beatmap_id"`
	Mode      Mode         `json:"mode"`
	TeamType  TeamType     `json:"team_type"`
	Mods      []string     `json:"mods"`
	Beatmap   *GameBeatmap `json:"beatmap"`
	Scores    []Score      `json:"scores"`
}

// BeatmapsetID returns the set id of the played beatmap, or 0 when the beatmap was deleted.
func (g *Game) BeatmapsetID() int64 {
	if g.Beatmap == nil {
		return 0
	}
	return g.Beatmap.BeatmapsetID
}

// ScoreSlot is the per-score lobby information.
type ScoreSlot struct {
	Slot int  `json:"slot"`
	Team Team `json:"team"`
	Pass bool `json:"pass"`
}

// Score is one player's result in one game.
type Score struct {
	UserID int64     `json:"user_id"`
	Score  int64     `json:"score"`
	Mods   []string  `json:"mods"`
	Match  ScoreSlot `json:"match"`
}

// MatchPage is a single response from the match endpoint.
type MatchPage struct {
	Match         Match        `json:"match"`
	Events        []MatchEvent `json:"events"`
	Users         []User       `json:"users"`
	FirstEventID  int64        `json:"first_event_id"`
	LatestEventID int64        `json:"latest_event_id"`
}

// MatchHistory is a complete, chronologically ordered event list.
type MatchHistory struct {
	Match  Match
	Events []MatchEvent
}

// User is the public profile subset we need.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url"`
	CountryCode string `json:"country_code"`
}

// ---- Derived match statistics ----

// ModSet is the set of distinct mod combinations a player used.
type ModSet map[string]struct{}

// NewModSet returns a set seeded with the empty combination ("no mods").
func NewModSet() ModSet {
	return ModSet{"": {}}
}

// Add inserts a combination.
func (s ModSet) Add(combo string) { s[combo] = struct{}{} }

// Len returns the number of distinct combinations, including the empty one.
func (s ModSet) Len() int { return len(s) }

// Sorted returns the combinations in lexical order.
func (s ModSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// PlayerGameRecord is one (player, game) pair with its normalized values.
type PlayerGameRecord struct {
	UserID        int64
	GameIndex     int
	BeatmapsetID  int64
	Score         int64
	TieBreakScore int64
	Team          Team

	MeanRatio     float64 // score ÷ game mean
	MedianRatio   float64 // score ÷ game median
	TieBreakRatio float64 // last game only
}

// PlayerAggregate accumulates per-player match information.
type PlayerAggregate struct {
	UserID   int64
	Username string // empty when the lookup failed
	Team     Team   // last seen
	Mods     ModSet
}

// DisplayName falls back to the numeric id when no username is known.
func (p *PlayerAggregate) DisplayName() string {
	return displayName(p.Username, p.UserID)
}

// MatchTally counts games won per team.
type MatchTally struct {
	Blue int
	Red  int
}

// TieBreak reports whether the final tally is a one-game difference.
func (t MatchTally) TieBreak() bool {
	d := t.Blue - t.Red
	return d == 1 || d == -1
}

// CostResult is one player's match cost under a formula.
type CostResult struct {
	UserID   int64
	Username string
	Team     Team
	Games    int
	Value    float64
	IsMVP    bool
}

// DisplayName falls back to the numeric id when no username is known.
func (c *CostResult) DisplayName() string {
	return displayName(c.Username, c.UserID)
}

func displayName(name string, id int64) string {
	if name != "" {
		return name
	}
	return strconv.FormatInt(id, 10)
}

// ---- Recent plays and performance ----

// Statistics are the raw hit counts of a play.
type Statistics struct {
	Count300  int `json:"count_300"`
	Count100  int `json:"count_100"`
	Count50   int `json:"count_50"`
	CountMiss int `json:"count_miss"`
	CountGeki int `json:"count_geki"`
	CountKatu int `json:"count_katu"`
}

// TotalHits is the sum of the four judgement categories used for map completion.
func (s Statistics) TotalHits() int {
	return s.Count300 + s.Count100 + s.Count50 + s.CountMiss
}

// RecentBeatmap is the beatmap subset embedded in a score.
type RecentBeatmap struct {
	ID               int64   `json:"id"`
	BeatmapsetID     int64   `json:"beatmapset_id"`
	DifficultyRating float64 `json:"difficulty_rating"`
	Version          string  `json:"version"`
	Mode             Mode    `json:"mode"`
}

// RecentBeatmapset is the beatmapset subset embedded in a score.
type RecentBeatmapset struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// RecentScore is a single play from a user's recent activity.
type RecentScore struct {
	ID         int64            `json:"id"`
	UserID     int64            `json:"user_id"`
	Accuracy   float64          `json:"accuracy"`
	Mods       []string         `json:"mods"`
	Score      int64            `json:"score"`
	MaxCombo   int              `json:"max_combo"`
	Statistics Statistics       `json:"statistics"`
	Rank       string           `json:"rank"`
	CreatedAt  time.Time        `json:"created_at"`
	Beatmap    RecentBeatmap    `json:"beatmap"`
	Beatmapset RecentBeatmapset `json:"beatmapset"`
}

// Failed reports whether the play ended in a fail.
func (s RecentScore) Failed() bool { return s.Rank == "F" }

// BeatmapMeta holds the fields we need from the beatmap endpoint.
type BeatmapMeta struct {
	ID               int64   `json:"id"`
	BeatmapsetID     int64   `json:"beatmapset_id"`
	MaxCombo         int     `json:"max_combo"`
	DifficultyRating float64 `json:"difficulty_rating"`
	Mode             Mode    `json:"mode"`
	Version          string  `json:"version"`
	TotalLength      int     `json:"total_length"`
}

// Performance is a performance-point value with the accuracy it was computed for.
type Performance struct {
	PP       float64
	Accuracy float64 // percent
}

// PerformanceResult combines the recomputed values for one play.
type PerformanceResult struct {
	Stars      *float64 // nil for modes without a local difficulty calculation
	Completion float64  // percent
	Played     Performance
	FullCombo  Performance
}

package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pable/go-osu-metrics/internal/model"
)

// MatchRun is one stored match cost computation.
type MatchRun struct {
	ID         string
	MatchID    int64
	MatchName  string
	Formula    string
	TeamVersus bool
	Tally      model.MatchTally
	TotalGames int
	Warmups    int
	CreatedAt  time.Time
}

// StoredCost is a stored player cost of a run.
type StoredCost struct {
	model.CostResult
	Position int // 1-based rank in the run
}

// CostHistoryEntry is one appearance of a player in a stored run.
type CostHistoryEntry struct {
	RunID     string
	MatchID   int64
	MatchName string
	Formula   string
	Team      model.Team
	Games     int
	Cost      float64
	IsMVP     bool
	Position  int
	Players   int
	CreatedAt time.Time
}

// PerformanceRecord is a stored recomputed play.
type PerformanceRecord struct {
	ID        string
	UserID    int64
	Username  string
	Mode      model.Mode
	ScoreID   int64
	BeatmapID int64
	Title     string
	Version   string
	Rank      string
	Mods      []string
	Result    model.PerformanceResult
	PlayedAt  time.Time
	CreatedAt time.Time
}

// InsertMatchRun stores a run and its ranked costs in one transaction and
// returns the generated run id. run.ID and run.CreatedAt are filled in when empty.
func (db *DB) InsertMatchRun(run MatchRun, costs []model.CostResult) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO match_runs(id, match_id, match_name, formula, team_versus, blue_wins, red_wins, total_games, warmups, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.MatchID, run.MatchName, run.Formula, boolInt(run.TeamVersus),
		run.Tally.Blue, run.Tally.Red, run.TotalGames, run.Warmups,
		run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert match_runs: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO match_costs(run_id, user_id, username, team, games, cost, is_mvp, position)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, c := range costs {
		_, err = stmt.Exec(run.ID, c.UserID, c.Username, string(c.Team), c.Games, c.Value, boolInt(c.IsMVP), i+1)
		if err != nil {
			return "", fmt.Errorf("insert match_costs for %d: %w", c.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

const matchRunColumns = `id, match_id, match_name, formula, team_versus, blue_wins, red_wins, total_games, warmups, created_at`

func scanMatchRun(sc interface{ Scan(...interface{}) error }) (MatchRun, error) {
	var (
		r         MatchRun
		tv        int
		createdAt string
	)
	err := sc.Scan(&r.ID, &r.MatchID, &r.MatchName, &r.Formula, &tv,
		&r.Tally.Blue, &r.Tally.Red, &r.TotalGames, &r.Warmups, &createdAt)
	if err != nil {
		return r, err
	}
	r.TeamVersus = tv != 0
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// ListMatchRuns returns all stored runs, newest first.
func (db *DB) ListMatchRuns() ([]MatchRun, error) {
	rows, err := db.conn.Query(`SELECT ` + matchRunColumns + ` FROM match_runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRun
	for rows.Next() {
		r, err := scanMatchRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetMatchRunByPrefix finds the newest run whose id starts with prefix.
// It returns nil, nil when nothing matches.
func (db *DB) GetMatchRunByPrefix(prefix string) (*MatchRun, error) {
	row := db.conn.QueryRow(`SELECT `+matchRunColumns+` FROM match_runs
		WHERE id LIKE ? ORDER BY created_at DESC LIMIT 1`, stripLikeWildcards(prefix)+"%")
	r, err := scanMatchRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetMatchCosts returns the costs of a run in ranking order.
func (db *DB) GetMatchCosts(runID string) ([]StoredCost, error) {
	rows, err := db.conn.Query(`
		SELECT user_id, username, team, games, cost, is_mvp, position
		FROM match_costs WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredCost
	for rows.Next() {
		var (
			c    StoredCost
			team string
			mvp  int
		)
		if err := rows.Scan(&c.UserID, &c.Username, &team, &c.Games, &c.Value, &mvp, &c.Position); err != nil {
			return nil, err
		}
		c.Team = model.Team(team)
		c.IsMVP = mvp != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetPlayerCostHistory returns every stored appearance of userID, oldest first.
func (db *DB) GetPlayerCostHistory(userID int64) ([]CostHistoryEntry, error) {
	rows, err := db.conn.Query(`
		SELECT r.id, r.match_id, r.match_name, r.formula, c.team, c.games, c.cost, c.is_mvp, c.position,
		       (SELECT COUNT(1) FROM match_costs x WHERE x.run_id = r.id),
		       r.created_at
		FROM match_costs c
		JOIN match_runs r ON r.id = c.run_id
		WHERE c.user_id = ?
		ORDER BY r.created_at, r.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CostHistoryEntry
	for rows.Next() {
		var (
			e         CostHistoryEntry
			team      string
			mvp       int
			createdAt string
		)
		if err := rows.Scan(&e.RunID, &e.MatchID, &e.MatchName, &e.Formula, &team, &e.Games,
			&e.Cost, &mvp, &e.Position, &e.Players, &createdAt); err != nil {
			return nil, err
		}
		e.Team = model.Team(team)
		e.IsMVP = mvp != 0
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertPerformance stores a recomputed play and returns its id.
func (db *DB) InsertPerformance(p PerformanceRecord) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	var stars sql.NullFloat64
	if p.Result.Stars != nil {
		stars = sql.NullFloat64{Float64: *p.Result.Stars, Valid: true}
	}
	var playedAt string
	if !p.PlayedAt.IsZero() {
		playedAt = p.PlayedAt.UTC().Format(timeLayout)
	}

	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO performance_results(
			id, user_id, username, mode, score_id, beatmap_id, title, version, rank, mods,
			stars, completion, pp, accuracy, fc_pp, fc_accuracy, played_at, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.Username, string(p.Mode), p.ScoreID, p.BeatmapID, p.Title, p.Version, p.Rank,
		strings.Join(p.Mods, ","),
		stars, p.Result.Completion, p.Result.Played.PP, p.Result.Played.Accuracy,
		p.Result.FullCombo.PP, p.Result.FullCombo.Accuracy,
		playedAt, p.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert performance_results: %w", err)
	}
	return p.ID, nil
}

// ListPerformance returns stored plays, newest first. userID 0 means every user.
func (db *DB) ListPerformance(userID int64, limit int) ([]PerformanceRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`
		SELECT id, user_id, username, mode, score_id, beatmap_id, title, version, rank, mods,
		       stars, completion, pp, accuracy, fc_pp, fc_accuracy, played_at, created_at
		FROM performance_results
		WHERE (? = 0 OR user_id = ?)
		ORDER BY created_at DESC, id
		LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PerformanceRecord
	for rows.Next() {
		var (
			p                   PerformanceRecord
			mode, mods          string
			stars               sql.NullFloat64
			playedAt, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &mode, &p.ScoreID, &p.BeatmapID,
			&p.Title, &p.Version, &p.Rank, &mods, &stars, &p.Result.Completion,
			&p.Result.Played.PP, &p.Result.Played.Accuracy,
			&p.Result.FullCombo.PP, &p.Result.FullCombo.Accuracy,
			&playedAt, &createdAt); err != nil {
			return nil, err
		}
		p.Mode = model.Mode(mode)
		if mods != "" {
			p.Mods = strings.Split(mods, ",")
		}
		if stars.Valid {
			v := stars.Float64
			p.Result.Stars = &v
		}
		p.PlayedAt = parseTime(playedAt)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteMatchRun removes a run and its costs. It reports whether a run existed.
func (db *DB) DeleteMatchRun(id string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM match_runs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// stripLikeWildcards drops % and _ so a prefix only matches literally.
func stripLikeWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}

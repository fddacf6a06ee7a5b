package storage

import (
	"fmt"
	"strings"
	"time"
)

// RunRef identifies a stored run, used by the roster exporter.
type RunRef struct {
	ID        string
	MatchID   int64
	MatchName string
	CreatedAt time.Time
}

// PlayerTotals holds summed cost data for one player across several runs.
type PlayerTotals struct {
	UserID   int64
	Username string
	Runs     int
	Games    int
	CostSum  float64
	BestCost float64
	MVPs     int
}

// AvgCost is the mean cost per run.
func (p PlayerTotals) AvgCost() float64 {
	if p.Runs == 0 {
		return 0
	}
	return p.CostSum / float64(p.Runs)
}

// PlayerRunCost is one player's cost in one run (not aggregated).
type PlayerRunCost struct {
	UserID    int64
	RunID     string
	Cost      float64
	IsMVP     bool
	CreatedAt time.Time
}

// PlayerRunCount holds how many runs a single roster player appears in.
type PlayerRunCount struct {
	UserID   int64
	Username string
	Count    int
}

// QualifyingRuns returns runs of formula created at or after since in which at
// least quorum of the given users appear, newest first.
func (db *DB) QualifyingRuns(userIDs []int64, formula string, since time.Time, quorum int) ([]RunRef, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := int64Args(userIDs)
	args = append(args, formula, since.UTC().Format(timeLayout))

	query := fmt.Sprintf(`
		SELECT r.id, r.match_id, r.match_name, r.created_at
		FROM match_runs r
		JOIN match_costs c ON c.run_id = r.id
		WHERE c.user_id IN (%s)
		  AND r.formula = ?
		  AND r.created_at >= ?
		GROUP BY r.id
		HAVING COUNT(DISTINCT c.user_id) >= %d
		ORDER BY r.created_at DESC`,
		placeholders(len(userIDs)), quorum)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRef
	for rows.Next() {
		var (
			r         RunRef
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.MatchID, &r.MatchName, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RosterTotals returns per-player sums across the given runs, ordered by
// number of runs descending (most active players first).
func (db *DB) RosterTotals(userIDs []int64, runIDs []string) ([]PlayerTotals, error) {
	if len(userIDs) == 0 || len(runIDs) == 0 {
		return nil, nil
	}
	args := int64Args(userIDs)
	for _, id := range runIDs {
		args = append(args, id)
	}

	// username comes from the newest run the player appears in
	query := fmt.Sprintf(`
		SELECT c.user_id,
		       (SELECT x.username FROM match_costs x JOIN match_runs xr ON xr.id = x.run_id
		         WHERE x.user_id = c.user_id ORDER BY xr.created_at DESC LIMIT 1),
		       COUNT(1), SUM(c.games), SUM(c.cost), MAX(c.cost), SUM(c.is_mvp)
		FROM match_costs c
		WHERE c.user_id IN (%s)
		  AND c.run_id IN (%s)
		GROUP BY c.user_id
		ORDER BY COUNT(1) DESC, c.user_id`,
		placeholders(len(userIDs)), placeholders(len(runIDs)))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerTotals
	for rows.Next() {
		var p PlayerTotals
		if err := rows.Scan(&p.UserID, &p.Username, &p.Runs, &p.Games, &p.CostSum, &p.BestCost, &p.MVPs); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RosterCostsByRun returns every (player, run) cost for the given runs, oldest first.
func (db *DB) RosterCostsByRun(userIDs []int64, runIDs []string) ([]PlayerRunCost, error) {
	if len(userIDs) == 0 || len(runIDs) == 0 {
		return nil, nil
	}
	args := int64Args(userIDs)
	for _, id := range runIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT c.user_id, c.run_id, c.cost, c.is_mvp, r.created_at
		FROM match_costs c
		JOIN match_runs r ON r.id = c.run_id
		WHERE c.user_id IN (%s)
		  AND c.run_id IN (%s)
		ORDER BY r.created_at, c.user_id`,
		placeholders(len(userIDs)), placeholders(len(runIDs)))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerRunCost
	for rows.Next() {
		var (
			p         PlayerRunCost
			mvp       int
			createdAt string
		)
		if err := rows.Scan(&p.UserID, &p.RunID, &p.Cost, &mvp, &createdAt); err != nil {
			return nil, err
		}
		p.IsMVP = mvp != 0
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlayerRunCounts returns, for each user, the number of runs of formula they
// appear in since the given time, without any quorum filter. Used to explain
// an empty QualifyingRuns result.
func (db *DB) PlayerRunCounts(userIDs []int64, formula string, since time.Time) ([]PlayerRunCount, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := int64Args(userIDs)
	args = append(args, formula, since.UTC().Format(timeLayout))

	query := fmt.Sprintf(`
		SELECT c.user_id, MAX(c.username), COUNT(DISTINCT c.run_id)
		FROM match_costs c
		JOIN match_runs r ON r.id = c.run_id
		WHERE c.user_id IN (%s)
		  AND r.formula = ?
		  AND r.created_at >= ?
		GROUP BY c.user_id
		ORDER BY c.user_id`,
		placeholders(len(userIDs)))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerRunCount
	for rows.Next() {
		var p PlayerRunCount
		if err := rows.Scan(&p.UserID, &p.Username, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// placeholders returns a comma-separated string of n "?" for SQL IN clauses,
// e.g. placeholders(3) → "?,?,?".
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for analysis history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id INTEGER PRIMARY KEY,
			created_at TEXT NOT NULL,
			log_path TEXT NOT NULL,
			intervals INTEGER NOT NULL,
			total_tasks INTEGER NOT NULL,
			avg_task_sec REAL NOT NULL,
			uptime_hours REAL NOT NULL,
			uptime_known INTEGER NOT NULL,
			report TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertAnalysis stores one exported analysis and returns its id.
func (s *Store) InsertAnalysis(ctx context.Context, rec model.AnalysisRecord) (int64, error) {
	known := 0
	if rec.UptimeKnown {
		known = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (created_at, log_path, intervals, total_tasks, avg_task_sec, uptime_hours, uptime_known, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.LogPath,
		rec.Intervals,
		rec.TotalTasks,
		rec.AvgTaskSec,
		rec.UptimeHours,
		known,
		rec.Report,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAnalyses returns stored analyses oldest first. A positive last keeps
// only the most recent ones.
func (s *Store) ListAnalyses(ctx context.Context, last int) ([]model.AnalysisRecord, error) {
	query := `SELECT id, created_at, log_path, intervals, total_tasks, avg_task_sec, uptime_hours, uptime_known, report
		FROM analyses
		ORDER BY created_at ASC, id ASC`
	args := []any{}
	if last > 0 {
		query = `SELECT * FROM (
			SELECT id, created_at, log_path, intervals, total_tasks, avg_task_sec, uptime_hours, uptime_known, report
			FROM analyses
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`
		args = append(args, last)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.AnalysisRecord
	for rows.Next() {
		var rec model.AnalysisRecord
		var createdAt string
		var known int
		if err := rows.Scan(&rec.ID, &createdAt, &rec.LogPath, &rec.Intervals, &rec.TotalTasks,
			&rec.AvgTaskSec, &rec.UptimeHours, &known, &rec.Report); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = parsed
		rec.UptimeKnown = known == 1
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBefore removes analyses created before cutoff and reports how many went.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package result

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	run_at        TEXT NOT NULL,
	goal_id       INTEGER NOT NULL,
	goal          TEXT NOT NULL,
	variant       TEXT NOT NULL,
	backend       TEXT NOT NULL,
	model         TEXT NOT NULL,
	task          TEXT NOT NULL,
	checklist     TEXT NOT NULL,
	raw_output    TEXT NOT NULL,
	verdict       TEXT NOT NULL,
	judgments     TEXT NOT NULL,
	rationale     TEXT NOT NULL,
	stages        TEXT NOT NULL,
	latency_ms    INTEGER NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	error         TEXT NOT NULL,
	error_kind    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_variant_backend ON runs(variant, backend);
`

// SQLiteLog mirrors run records into a SQLite database.
type SQLiteLog struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Append(rec RunRecord) error {
	row, err := encodeRow(&rec)
	if err != nil {
		return err
	}
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = v
	}
	// Integer columns go in as numbers.
	args[2], args[14], args[15], args[16] = rec.GoalID, rec.LatencyMS, rec.InputTokens, rec.OutputTokens

	query := fmt.Sprintf("INSERT INTO runs (%s) VALUES (?%s)",
		strings.Join(columns, ", "), strings.Repeat(", ?", len(columns)-1))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.db.Exec(query, args...); err != nil {
		return fmt.Errorf("inserting run %s: %w", rec.ID, err)
	}
	return nil
}

// Records returns all stored records in insertion order.
func (l *SQLiteLog) Records() ([]RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query("SELECT " + strings.Join(columns, ", ") + " FROM runs ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec                  RunRecord
			runAt, stages        string
			checklist, judgments string
		)
		if err := rows.Scan(&rec.ID, &runAt, &rec.GoalID, &rec.Goal, &rec.Variant, &rec.Backend, &rec.Model,
			&rec.Task, &checklist, &rec.RawOutput, &rec.Verdict, &judgments, &rec.Rationale, &stages,
			&rec.LatencyMS, &rec.InputTokens, &rec.OutputTokens, &rec.Error, &rec.ErrorKind); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if rec.RunAt, err = time.Parse(time.RFC3339, runAt); err != nil {
			return nil, fmt.Errorf("run %s run_at: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(checklist), &rec.Checklist); err != nil {
			return nil, fmt.Errorf("run %s checklist: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(judgments), &rec.Judgments); err != nil {
			return nil, fmt.Errorf("run %s judgments: %w", rec.ID, err)
		}
		if stages != "" {
			rec.Stages = strings.Split(stages, ">")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

package vm

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ProfileStore handles SQLite storage for profiling runs. Each saved report
// gets a fresh run id so successive executions of the same program can be
// compared.
type ProfileStore struct {
	db     *sql.DB
	dbPath string
}

// OpenProfileStore opens or creates the profile database at dbPath.
func OpenProfileStore(dbPath string) (*ProfileStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		program TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS method_profiles (
		run_id TEXT NOT NULL REFERENCES runs(id),
		method TEXT NOT NULL,
		call_count INTEGER NOT NULL,
		opcode TEXT NOT NULL,
		op_count INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating method_profiles table: %w", err)
	}

	return &ProfileStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *ProfileStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a profiling report under a new run id and returns the id.
func (s *ProfileStore) SaveRun(program string, report []MethodProfile) (string, error) {
	runID := "run_" + uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO runs (id, program) VALUES (?, ?)", runID, program)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO method_profiles
		(run_id, method, call_count, opcode, op_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range report {
		if len(row.OpCounts) == 0 {
			_, err = stmt.Exec(runID, row.Name, row.CallCount, "", 0)
			if err != nil {
				return "", fmt.Errorf("saving profile row: %w", err)
			}
			continue
		}
		for op, n := range row.OpCounts {
			_, err = stmt.Exec(runID, row.Name, row.CallCount, op.String(), n)
			if err != nil {
				return "", fmt.Errorf("saving profile row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// HotMethods returns the methods of a run ordered by call count, hottest
// first, limited to n rows.
func (s *ProfileStore) HotMethods(runID string, n int) ([]MethodProfile, error) {
	rows, err := s.db.Query(`SELECT method, MAX(call_count)
		FROM method_profiles WHERE run_id = ?
		GROUP BY method ORDER BY MAX(call_count) DESC LIMIT ?`, runID, n)
	if err != nil {
		return nil, fmt.Errorf("querying hot methods: %w", err)
	}
	defer rows.Close()

	var out []MethodProfile
	for rows.Next() {
		var row MethodProfile
		if err := rows.Scan(&row.Name, &row.CallCount); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/voicebridge/pkg/logger"
)

// CallStorage handles storage of call lifecycle records
type CallStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCallStorage creates a new SQLite call storage
func NewCallStorage(db *sql.DB, log *logger.Logger) *CallStorage {
	storage := &CallStorage{
		db:     db,
		logger: log.Named("sqlite-calls"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		log.Error("Failed to initialize call storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *CallStorage) initDB() error {
	// Create calls table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_sid TEXT NOT NULL,
			stream_sid TEXT,
			direction TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'initiated',
			turns INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create calls table: %w", err)
	}

	// Create indexes for performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_calls_call_sid ON calls(call_sid)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)`,
	}

	for _, indexSQL := range indexes {
		_, err = s.db.Exec(indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create call index: %w", err)
		}
	}

	return nil
}

// StartCall records a new call and returns its row ID
func (s *CallStorage) StartCall(callSID, direction string) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO calls (call_sid, direction, status, started_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		callSID,
		direction,
		StatusInitiated,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert call: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// SetStreaming marks the call as streaming and records the provider call and
// stream identifiers, which inbound sessions only learn from the transport's
// start event.
func (s *CallStorage) SetStreaming(id int64, callSID, streamSID string) error {
	_, err := s.db.Exec(
		`UPDATE calls SET status = ?, call_sid = ?, stream_sid = ? WHERE id = ?`,
		StatusStreaming, callSID, streamSID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update call stream: %w", err)
	}
	return nil
}

// FinishCall records the terminal status, end time and turn count of a call
func (s *CallStorage) FinishCall(id int64, status string, turns int) error {
	_, err := s.db.Exec(
		`UPDATE calls SET status = ?, turns = ?, ended_at = ? WHERE id = ?`,
		status,
		turns,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish call: %w", err)
	}
	return nil
}

// GetRecentCalls returns recent calls, newest first
func (s *CallStorage) GetRecentCalls(limit int) ([]*CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, call_sid, stream_sid, direction, status, turns, started_at, ended_at, created_at
		FROM calls
		ORDER BY started_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent calls: %w", err)
	}
	defer rows.Close()

	return s.scanCallRows(rows)
}

// GetCallBySID returns the most recent record for a call SID
func (s *CallStorage) GetCallBySID(callSID string) (*CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, call_sid, stream_sid, direction, status, turns, started_at, ended_at, created_at
		FROM calls
		WHERE call_sid = ?
		ORDER BY started_at DESC
		LIMIT 1`,
		callSID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query call by SID: %w", err)
	}
	defer rows.Close()

	records, err := s.scanCallRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// scanCallRows scans database rows into CallRecord structs
func (s *CallStorage) scanCallRows(rows *sql.Rows) ([]*CallRecord, error) {
	var records []*CallRecord
	for rows.Next() {
		var record CallRecord
		var startedAt, createdAt string
		var streamSID, endedAt sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.CallSID,
			&streamSID,
			&record.Direction,
			&record.Status,
			&record.Turns,
			&startedAt,
			&endedAt,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}

		// Parse timestamps
		var err error
		record.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		// Handle nullable fields
		if streamSID.Valid {
			record.StreamSID = streamSID.String
		}
		if endedAt.Valid && endedAt.String != "" {
			record.EndedAt, err = time.Parse(time.RFC3339, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ended_at: %w", err)
			}
		}

		records = append(records, &record)
	}

	return records, nil
}

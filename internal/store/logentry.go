package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fernhollow/sprout/internal/model"
)

type LogEntryStore struct {
	db *sql.DB
}

func NewLogEntryStore(db *sql.DB) *LogEntryStore {
	return &LogEntryStore{db: db}
}

func scanLogEntry(scanner interface{ Scan(...any) error }) (*model.LogEntry, error) {
	var e model.LogEntry
	var endedAt sql.NullTime
	var amount sql.NullFloat64
	err := scanner.Scan(
		&e.ID, &e.BabyID, &e.UserID, &e.Kind, &e.StartedAt, &endedAt,
		&amount, &e.Note, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		e.EndedAt = &endedAt.Time
	}
	if amount.Valid {
		e.AmountML = &amount.Float64
	}
	return &e, nil
}

const logEntryCols = `id, baby_id, user_id, kind, started_at, ended_at, amount_ml, note, created_at, updated_at`

func (s *LogEntryStore) Create(babyID, userID int64, kind string, startedAt time.Time, endedAt *time.Time, amountML *float64, note string) (*model.LogEntry, error) {
	result, err := s.db.Exec(
		`INSERT INTO log_entries (baby_id, user_id, kind, started_at, ended_at, amount_ml, note) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		babyID, userID, kind, startedAt, nullTime(endedAt), nullFloat(amountML), note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert log entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *LogEntryStore) GetByID(id int64) (*model.LogEntry, error) {
	row := s.db.QueryRow(`SELECT `+logEntryCols+` FROM log_entries WHERE id = ?`, id)
	e, err := scanLogEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log entry: %w", err)
	}
	return e, nil
}

// ListByBaby returns a baby's log entries, newest first. kind filters to one
// event type when non-empty; limit caps the result when positive.
func (s *LogEntryStore) ListByBaby(babyID int64, kind string, limit int) ([]model.LogEntry, error) {
	query := `SELECT ` + logEntryCols + ` FROM log_entries WHERE baby_id = ?`
	args := []any{babyID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *LogEntryStore) Update(id int64, kind string, startedAt time.Time, endedAt *time.Time, amountML *float64, note string) (*model.LogEntry, error) {
	_, err := s.db.Exec(
		`UPDATE log_entries SET kind = ?, started_at = ?, ended_at = ?, amount_ml = ?, note = ?, updated_at = datetime('now') WHERE id = ?`,
		kind, startedAt, nullTime(endedAt), nullFloat(amountML), note, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update log entry: %w", err)
	}
	return s.GetByID(id)
}

func (s *LogEntryStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM log_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete log entry: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

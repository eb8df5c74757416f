package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fernhollow/sprout/internal/model"
)

type BabyStore struct {
	db *sql.DB
}

func NewBabyStore(db *sql.DB) *BabyStore {
	return &BabyStore{db: db}
}

func scanBaby(scanner interface{ Scan(...any) error }) (*model.Baby, error) {
	var b model.Baby
	var weight sql.NullFloat64
	err := scanner.Scan(&b.ID, &b.Name, &b.BirthDate, &b.Gender, &weight, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if weight.Valid {
		b.WeightKg = &weight.Float64
	}
	return &b, nil
}

const babyCols = `id, name, birth_date, gender, weight_kg, created_at, updated_at`

// Create inserts the baby and its owner membership in one transaction so a
// baby can never exist without an owner.
func (s *BabyStore) Create(name string, birthDate time.Time, gender string, weightKg *float64, ownerID int64) (*model.Baby, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO babies (name, birth_date, gender, weight_kg) VALUES (?, ?, ?, ?)`,
		name, birthDate, gender, nullFloat(weightKg),
	)
	if err != nil {
		return nil, fmt.Errorf("insert baby: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO baby_members (baby_id, user_id, role) VALUES (?, ?, ?)`,
		id, ownerID, model.RoleOwner,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

func (s *BabyStore) GetByID(id int64) (*model.Baby, error) {
	row := s.db.QueryRow(`SELECT `+babyCols+` FROM babies WHERE id = ?`, id)
	b, err := scanBaby(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get baby: %w", err)
	}
	return b, nil
}

func (s *BabyStore) Update(id int64, name string, birthDate time.Time, gender string, weightKg *float64) (*model.Baby, error) {
	_, err := s.db.Exec(
		`UPDATE babies SET name = ?, birth_date = ?, gender = ?, weight_kg = ?, updated_at = datetime('now') WHERE id = ?`,
		name, birthDate, gender, nullFloat(weightKg), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update baby: %w", err)
	}
	return s.GetByID(id)
}

func (s *BabyStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM babies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete baby: %w", err)
	}
	return nil
}

// ListForUser returns every baby the user is a member of.
func (s *BabyStore) ListForUser(userID int64) ([]model.Baby, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.name, b.birth_date, b.gender, b.weight_kg, b.created_at, b.updated_at
		 FROM babies b
		 JOIN baby_members m ON b.id = m.baby_id
		 WHERE m.user_id = ?
		 ORDER BY b.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list babies for user: %w", err)
	}
	defer rows.Close()

	var babies []model.Baby
	for rows.Next() {
		b, err := scanBaby(rows)
		if err != nil {
			return nil, fmt.Errorf("scan baby: %w", err)
		}
		babies = append(babies, *b)
	}
	return babies, rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

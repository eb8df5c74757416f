package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/fernhollow/sprout/internal/model"
)

// NormalizeEmail lower-cases and trims an email address. Every store and
// handler that compares emails goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var lastLogin sql.NullTime
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

const userCols = `id, email, password_hash, name, created_at, last_login_at`

func (s *UserStore) Create(email, passwordHash, name string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, name) VALUES (?, ?, ?)`,
		NormalizeEmail(email), passwordHash, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, NormalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) TouchLastLogin(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET last_login_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/fernhollow/sprout/internal/model"
)

type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	err := scanner.Scan(&m.ID, &m.BabyID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const membershipCols = `id, baby_id, user_id, role, created_at`

// Get returns the caller's membership for a baby, or nil if they are not a
// member. This is the authorization gate for every baby-scoped operation.
func (s *MembershipStore) Get(babyID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM baby_members WHERE baby_id = ? AND user_id = ?`,
		babyID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// Add grants the user a role on the baby. The insert is idempotent: if the
// user is already a member the existing row is returned unchanged, never an
// error.
func (s *MembershipStore) Add(babyID, userID int64, role string) (*model.Membership, error) {
	_, err := s.db.Exec(
		`INSERT INTO baby_members (baby_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (baby_id, user_id) DO NOTHING`,
		babyID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add membership: %w", err)
	}
	m, err := s.Get(babyID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("add membership: row missing after insert")
	}
	return m, nil
}

// Remove deletes a membership row. Role checks (owners are not removable)
// happen at the handler.
func (s *MembershipStore) Remove(babyID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM baby_members WHERE baby_id = ? AND user_id = ?`,
		babyID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

// ListMembers returns membership rows joined with user email and name for
// the caregivers listing.
func (s *MembershipStore) ListMembers(babyID int64) ([]model.Member, error) {
	rows, err := s.db.Query(
		`SELECT m.user_id, u.email, u.name, m.role, m.created_at
		 FROM baby_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.baby_id = ?
		 ORDER BY m.created_at ASC`,
		babyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fernhollow/sprout/internal/model"
)

// InvitationStore persists caregiver invitations. An invitation is created
// pending and moves to exactly one of accepted, revoked, or expired; terminal
// states are sticky. Every transition is a conditional write guarded by
// status = 'pending', so two concurrent requests racing on the same row
// resolve to a single winner; the loser sees zero rows affected.
type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	var acceptedAt sql.NullTime
	err := scanner.Scan(
		&inv.ID, &inv.BabyID, &inv.Email, &inv.Role, &inv.TokenHash,
		&inv.ExpiresAt, &inv.Status, &inv.InvitedBy, &inv.CreatedAt, &acceptedAt,
	)
	if err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return &inv, nil
}

const invitationCols = `id, baby_id, email, role, token_hash, expires_at, status, invited_by, created_at, accepted_at`

func (s *InvitationStore) Create(babyID int64, email, role, tokenHash string, invitedBy int64, expiresAt time.Time) (*model.Invitation, error) {
	result, err := s.db.Exec(
		`INSERT INTO invitations (baby_id, email, role, token_hash, expires_at, invited_by) VALUES (?, ?, ?, ?, ?, ?)`,
		babyID, NormalizeEmail(email), role, tokenHash, expiresAt, invitedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InvitationStore) GetByID(id int64) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// GetByTokenHash is the authoritative lookup for the accept flow: the caller
// proves possession of the raw token, we find the row by its hash.
func (s *InvitationStore) GetByTokenHash(tokenHash string) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE token_hash = ?`, tokenHash)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by token hash: %w", err)
	}
	return inv, nil
}

// HasPending reports whether a pending, unexpired invitation already exists
// for the (baby, email) pair. Used to block duplicate invite spam.
func (s *InvitationStore) HasPending(babyID int64, email string, now time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM invitations WHERE baby_id = ? AND email = ? AND status = ? AND expires_at > ?`,
		babyID, NormalizeEmail(email), model.InviteStatusPending, now,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending invitations: %w", err)
	}
	return count > 0, nil
}

// ListByBaby returns all invitations for a baby, newest first.
func (s *InvitationStore) ListByBaby(babyID int64) ([]model.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM invitations WHERE baby_id = ? ORDER BY created_at DESC`,
		babyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invites []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// MarkExpired flips a pending invitation to expired. Returns true if this
// call performed the transition. Callers treat the write as best effort: the
// read-path expiry check is authoritative, this just persists it.
func (s *InvitationStore) MarkExpired(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ? WHERE id = ? AND status = ?`,
		model.InviteStatusExpired, id, model.InviteStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark invitation expired: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Revoke flips a pending invitation to revoked. Zero rows affected means the
// invitation had already settled, which callers treat as success since
// revocation is idempotent.
func (s *InvitationStore) Revoke(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ? WHERE id = ? AND status = ?`,
		model.InviteStatusRevoked, id, model.InviteStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("revoke invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Accept atomically transitions a pending invitation to accepted and grants
// the user its membership, in one transaction. Returns false without error
// when the conditional update affects zero rows: some other request already
// settled the invitation, and at most one accept may win.
func (s *InvitationStore) Accept(id, userID int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE invitations SET status = ?, accepted_at = datetime('now') WHERE id = ? AND status = ?`,
		model.InviteStatusAccepted, id, model.InviteStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("accept invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	var babyID int64
	var role string
	if err := tx.QueryRow(
		`SELECT baby_id, role FROM invitations WHERE id = ?`, id,
	).Scan(&babyID, &role); err != nil {
		return false, fmt.Errorf("read accepted invitation: %w", err)
	}

	// Idempotent: accepting while already a member is a no-op on membership.
	if _, err := tx.Exec(
		`INSERT INTO baby_members (baby_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (baby_id, user_id) DO NOTHING`,
		babyID, userID, role,
	); err != nil {
		return false, fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

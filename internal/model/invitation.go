package model

import "time"

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
	InviteStatusExpired  = "expired"
)

// Invitation is a pending-or-settled invite to join a baby's caregivers.
// Only the SHA-256 hash of the invite token is ever stored; possession of the
// emailed link is the sole credential for accepting.
type Invitation struct {
	ID         int64      `json:"id"`
	BabyID     int64      `json:"baby_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Status     string     `json:"status"`
	InvitedBy  int64      `json:"invited_by"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// IsExpired reports whether a still-pending invitation is past its expiry at
// the given instant. Terminal statuses are never considered expired here;
// they already settled.
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InviteStatusPending && !now.Before(i.ExpiresAt)
}

// IsPending reports whether the invitation can still be accepted at the given
// instant.
func (i *Invitation) IsPending(now time.Time) bool {
	return i.Status == InviteStatusPending && now.Before(i.ExpiresAt)
}

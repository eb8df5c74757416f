package model

import "time"

const (
	RoleOwner     = "owner"
	RoleCaregiver = "caregiver"
)

type Membership struct {
	ID        int64     `json:"id"`
	BabyID    int64     `json:"baby_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a membership row joined with the user it belongs to, as returned
// by the caregivers listing.
type Member struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

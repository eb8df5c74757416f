package model

import "time"

const (
	LogKindFeeding = "feeding"
	LogKindDiaper  = "diaper"
	LogKindSleep   = "sleep"
	LogKindPumping = "pumping"
)

// ValidLogKind reports whether kind is one of the recordable event types.
func ValidLogKind(kind string) bool {
	switch kind {
	case LogKindFeeding, LogKindDiaper, LogKindSleep, LogKindPumping:
		return true
	}
	return false
}

type LogEntry struct {
	ID        int64      `json:"id"`
	BabyID    int64      `json:"baby_id"`
	UserID    int64      `json:"user_id"`
	Kind      string     `json:"kind"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	AmountML  *float64   `json:"amount_ml,omitempty"`
	Note      string     `json:"note"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

package model

import (
	"testing"
	"time"
)

func TestInvitationPredicates(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		status      string
		now         time.Time
		wantExpired bool
		wantPending bool
	}{
		{"pending before expiry", InviteStatusPending, expires.Add(-time.Minute), false, true},
		{"pending at expiry", InviteStatusPending, expires, true, false},
		{"pending after expiry", InviteStatusPending, expires.Add(time.Minute), true, false},
		{"accepted never expires", InviteStatusAccepted, expires.Add(time.Hour), false, false},
		{"revoked never expires", InviteStatusRevoked, expires.Add(time.Hour), false, false},
		{"expired stays settled", InviteStatusExpired, expires.Add(time.Hour), false, false},
	}
	for _, tc := range cases {
		inv := Invitation{Status: tc.status, ExpiresAt: expires}
		if got := inv.IsExpired(tc.now); got != tc.wantExpired {
			t.Errorf("%s: IsExpired = %v, want %v", tc.name, got, tc.wantExpired)
		}
		if got := inv.IsPending(tc.now); got != tc.wantPending {
			t.Errorf("%s: IsPending = %v, want %v", tc.name, got, tc.wantPending)
		}
	}
}

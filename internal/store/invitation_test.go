package store

import (
	"testing"
	"time"

	"github.com/fernhollow/sprout/internal/model"
)

func setupInvitationTest(t *testing.T) (*InvitationStore, *MembershipStore, int64, int64) {
	t.Helper()
	db := setupTestDB(t)
	us := NewUserStore(db)
	bs := NewBabyStore(db)
	babyID, ownerID := seedBabyWithOwner(t, us, bs)
	return NewInvitationStore(db), NewMembershipStore(db), babyID, ownerID
}

func TestInvitationCreate(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)

	expires := time.Now().UTC().Add(24 * time.Hour)
	inv, err := is.Create(babyID, "Care@X.com", model.RoleCaregiver, "hash-1", ownerID, expires)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if inv.Email != "care@x.com" {
		t.Errorf("email = %q, want normalized care@x.com", inv.Email)
	}
	if inv.Status != model.InviteStatusPending {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if inv.AcceptedAt != nil {
		t.Error("expected nil accepted_at")
	}
}

func TestInvitationDuplicateTokenHash(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)

	expires := time.Now().UTC().Add(24 * time.Hour)
	if _, err := is.Create(babyID, "a@x.com", model.RoleCaregiver, "same-hash", ownerID, expires); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := is.Create(babyID, "b@x.com", model.RoleCaregiver, "same-hash", ownerID, expires); err == nil {
		t.Fatal("expected unique constraint error for duplicate token hash")
	}
}

func TestInvitationGetByTokenHash(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)

	expires := time.Now().UTC().Add(24 * time.Hour)
	created, _ := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, expires)

	inv, err := is.GetByTokenHash("hash-1")
	if err != nil {
		t.Fatalf("get by token hash: %v", err)
	}
	if inv == nil || inv.ID != created.ID {
		t.Fatal("expected to find invitation by token hash")
	}

	missing, err := is.GetByTokenHash("no-such-hash")
	if err != nil {
		t.Fatalf("get by token hash: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token hash")
	}
}

func TestInvitationHasPending(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)
	now := time.Now().UTC()

	pending, err := is.HasPending(babyID, "care@x.com", now)
	if err != nil {
		t.Fatalf("has pending: %v", err)
	}
	if pending {
		t.Error("expected no pending invitation")
	}

	if _, err := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, now.Add(time.Hour)); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	pending, err = is.HasPending(babyID, "CARE@x.com", now)
	if err != nil {
		t.Fatalf("has pending: %v", err)
	}
	if !pending {
		t.Error("expected pending invitation (case-insensitive email)")
	}

	// A past-expiry pending row no longer counts, even before write-back.
	if pending, _ := is.HasPending(babyID, "care@x.com", now.Add(2*time.Hour)); pending {
		t.Error("expected expired pending invitation not to count")
	}
}

func TestInvitationRevokeIdempotent(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)

	inv, _ := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, time.Now().UTC().Add(time.Hour))

	did, err := is.Revoke(inv.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !did {
		t.Error("expected first revoke to transition")
	}

	// Second revoke is a no-op, never an error.
	did, err = is.Revoke(inv.ID)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if did {
		t.Error("expected second revoke to affect zero rows")
	}

	got, _ := is.GetByID(inv.ID)
	if got.Status != model.InviteStatusRevoked {
		t.Errorf("status = %q, want revoked", got.Status)
	}
}

func TestInvitationMarkExpiredOnlyPending(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)

	inv, _ := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, time.Now().UTC().Add(time.Hour))

	if _, err := is.Revoke(inv.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Terminal states are sticky: expiry must not overwrite revoked.
	did, err := is.MarkExpired(inv.ID)
	if err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	if did {
		t.Error("expected mark expired to skip a revoked invitation")
	}

	got, _ := is.GetByID(inv.ID)
	if got.Status != model.InviteStatusRevoked {
		t.Errorf("status = %q, want revoked", got.Status)
	}
}

func TestInvitationAccept(t *testing.T) {
	is, ms, babyID, ownerID := setupInvitationTest(t)
	db := is.db
	us := NewUserStore(db)

	care, _ := us.Create("care@x.com", "hash", "Care")
	inv, _ := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, time.Now().UTC().Add(time.Hour))

	won, err := is.Accept(inv.ID, care.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !won {
		t.Fatal("expected first accept to win")
	}

	got, _ := is.GetByID(inv.ID)
	if got.Status != model.InviteStatusAccepted {
		t.Errorf("status = %q, want accepted", got.Status)
	}
	if got.AcceptedAt == nil {
		t.Error("expected accepted_at to be set")
	}

	m, err := ms.Get(babyID, care.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m == nil || m.Role != model.RoleCaregiver {
		t.Fatalf("expected caregiver membership, got %+v", m)
	}
}

func TestInvitationAcceptOnlyOnce(t *testing.T) {
	is, ms, babyID, ownerID := setupInvitationTest(t)
	us := NewUserStore(is.db)

	care, _ := us.Create("care@x.com", "hash", "Care")
	inv, _ := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, time.Now().UTC().Add(time.Hour))

	if won, _ := is.Accept(inv.ID, care.ID); !won {
		t.Fatal("expected first accept to win")
	}
	// The conditional write makes the second accept lose, not duplicate.
	won, err := is.Accept(inv.ID, care.ID)
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if won {
		t.Error("expected second accept to affect zero rows")
	}

	members, _ := ms.ListMembers(babyID)
	if len(members) != 2 {
		t.Errorf("expected 2 members (owner + caregiver), got %d", len(members))
	}
}

func TestInvitationAcceptAlreadyMember(t *testing.T) {
	is, ms, babyID, ownerID := setupInvitationTest(t)
	us := NewUserStore(is.db)

	care, _ := us.Create("care@x.com", "hash", "Care")
	if _, err := ms.Add(babyID, care.ID, model.RoleCaregiver); err != nil {
		t.Fatalf("add membership: %v", err)
	}

	inv, _ := is.Create(babyID, "care@x.com", model.RoleCaregiver, "hash-1", ownerID, time.Now().UTC().Add(time.Hour))

	// Accepting while already a member settles the invite and leaves the
	// membership untouched.
	won, err := is.Accept(inv.ID, care.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !won {
		t.Fatal("expected accept to win")
	}

	members, _ := ms.ListMembers(babyID)
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}
}

func TestInvitationListByBaby(t *testing.T) {
	is, _, babyID, ownerID := setupInvitationTest(t)

	expires := time.Now().UTC().Add(time.Hour)
	if _, err := is.Create(babyID, "a@x.com", model.RoleCaregiver, "hash-a", ownerID, expires); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := is.Create(babyID, "b@x.com", model.RoleCaregiver, "hash-b", ownerID, expires); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	invites, err := is.ListByBaby(babyID)
	if err != nil {
		t.Fatalf("list by baby: %v", err)
	}
	if len(invites) != 2 {
		t.Errorf("expected 2 invitations, got %d", len(invites))
	}
}

package store

import (
	"testing"
	"time"

	"github.com/fernhollow/sprout/internal/model"
)

var testBirthDate = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func TestBabyCreateGrantsOwnership(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	bs := NewBabyStore(db)
	ms := NewMembershipStore(db)

	owner, err := us.Create("owner@x.com", "hash", "Owner")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	weight := 3.4
	baby, err := bs.Create("June", testBirthDate, "girl", &weight, owner.ID)
	if err != nil {
		t.Fatalf("create baby: %v", err)
	}
	if baby.Name != "June" {
		t.Errorf("name = %q, want June", baby.Name)
	}
	if baby.WeightKg == nil || *baby.WeightKg != 3.4 {
		t.Errorf("weight = %v, want 3.4", baby.WeightKg)
	}

	m, err := ms.Get(baby.ID, owner.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m == nil {
		t.Fatal("expected owner membership to exist")
	}
	if m.Role != model.RoleOwner {
		t.Errorf("role = %q, want owner", m.Role)
	}
}

func TestBabyCreateInvalidOwnerRollsBack(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBabyStore(db)

	// User 999 does not exist; the foreign key fails the membership insert
	// and the baby insert must roll back with it.
	if _, err := bs.Create("June", testBirthDate, "girl", nil, 999); err == nil {
		t.Fatal("expected error for nonexistent owner")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM babies`).Scan(&count); err != nil {
		t.Fatalf("count babies: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 babies after rollback, got %d", count)
	}
}

func TestBabyGetByIDNotFound(t *testing.T) {
	bs := NewBabyStore(setupTestDB(t))

	b, err := bs.GetByID(999)
	if err != nil {
		t.Fatalf("get baby: %v", err)
	}
	if b != nil {
		t.Error("expected nil for nonexistent baby")
	}
}

func TestBabyUpdate(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	bs := NewBabyStore(db)

	owner, _ := us.Create("owner@x.com", "hash", "Owner")
	baby, err := bs.Create("June", testBirthDate, "girl", nil, owner.ID)
	if err != nil {
		t.Fatalf("create baby: %v", err)
	}

	updated, err := bs.Update(baby.ID, "Juniper", testBirthDate, "girl", nil)
	if err != nil {
		t.Fatalf("update baby: %v", err)
	}
	if updated.Name != "Juniper" {
		t.Errorf("name = %q, want Juniper", updated.Name)
	}
}

func TestBabyListForUser(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	bs := NewBabyStore(db)

	alice, _ := us.Create("alice@x.com", "hash", "Alice")
	bob, _ := us.Create("bob@x.com", "hash", "Bob")

	if _, err := bs.Create("June", testBirthDate, "girl", nil, alice.ID); err != nil {
		t.Fatalf("create baby: %v", err)
	}
	if _, err := bs.Create("Theo", testBirthDate, "boy", nil, alice.ID); err != nil {
		t.Fatalf("create baby: %v", err)
	}

	babies, err := bs.ListForUser(alice.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(babies) != 2 {
		t.Fatalf("expected 2 babies for alice, got %d", len(babies))
	}

	babies, err = bs.ListForUser(bob.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(babies) != 0 {
		t.Errorf("expected 0 babies for bob, got %d", len(babies))
	}
}

func TestBabyDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	bs := NewBabyStore(db)
	ms := NewMembershipStore(db)

	owner, _ := us.Create("owner@x.com", "hash", "Owner")
	baby, _ := bs.Create("June", testBirthDate, "girl", nil, owner.ID)

	if err := bs.Delete(baby.ID); err != nil {
		t.Fatalf("delete baby: %v", err)
	}

	m, err := ms.Get(baby.ID, owner.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m != nil {
		t.Error("expected membership to cascade on baby delete")
	}
}

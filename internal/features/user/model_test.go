package user

import (
	"testing"
	"time"

	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

func strPtr(s string) *string { return &s }

func TestFindOrCreateOnlyUpdatesDrift(t *testing.T) {
	db := testutil.NewDB(t, &User{})
	now := time.Now().UTC().Truncate(time.Second)

	first, created, err := FindOrCreate(db, Profile{
		TelegramID: "111",
		Username:   "ann",
		FirstName:  "Ann",
		LastName:   strPtr("Lee"),
	}, now)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if !created || first.Role != types.RoleUser || first.HasActiveSubscription {
		t.Fatalf("unexpected new user: created=%v %+v", created, first)
	}

	second, created, err := FindOrCreate(db, Profile{
		TelegramID: "111",
		Username:   "ann",
		FirstName:  "Anna",
		LastName:   strPtr("Lee"),
	}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if created {
		t.Fatal("second login must reuse the row")
	}
	if second.ID != first.ID || second.TelegramID != "111" {
		t.Fatal("identity fields changed")
	}
	if second.FirstName != "Anna" || second.Username != "ann" || second.LastName == nil || *second.LastName != "Lee" {
		t.Fatalf("unexpected profile: %+v", second)
	}
	if second.LastLoginAt == nil || !second.LastLoginAt.After(now) {
		t.Fatalf("lastLoginAt not bumped: %v", second.LastLoginAt)
	}

	var count int64
	db.Model(&User{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one user row, got %d", count)
	}
}

func TestFindOrCreateRequiresTelegramID(t *testing.T) {
	db := testutil.NewDB(t, &User{})
	if _, _, err := FindOrCreate(db, Profile{TelegramID: "  "}, time.Now()); err != ErrTelegramIDRequired {
		t.Fatalf("expected ErrTelegramIDRequired, got %v", err)
	}
}

func TestEnsureAdmins(t *testing.T) {
	db := testutil.NewDB(t, &User{})
	if _, _, err := FindOrCreate(db, Profile{TelegramID: "10", FirstName: "Existing"}, time.Now()); err != nil {
		t.Fatal(err)
	}

	changed, err := EnsureAdmins(db, []string{"10", "20", ""})
	if err != nil {
		t.Fatal(err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}

	changed, err = EnsureAdmins(db, []string{"10", "20"})
	if err != nil || changed != 0 {
		t.Fatalf("second run changed=%d err=%v", changed, err)
	}

	admins, total, err := List(db, ListFilters{Role: types.RoleAdmin}, pagination.Params{Page: 1, Limit: 10})
	if err != nil || total != 2 || len(admins) != 2 {
		t.Fatalf("admins=%d total=%d err=%v", len(admins), total, err)
	}
}

func TestHasContentAccess(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		user *User
		want bool
	}{
		{"nil", nil, false},
		{"no subscription", &User{Role: types.RoleUser}, false},
		{"active", &User{Role: types.RoleUser, HasActiveSubscription: true, SubscriptionEndDate: &future}, true},
		{"lapsed", &User{Role: types.RoleUser, HasActiveSubscription: true, SubscriptionEndDate: &past}, false},
		{"admin", &User{Role: types.RoleAdmin}, true},
	}
	for _, tt := range tests {
		if got := tt.user.HasContentAccess(now); got != tt.want {
			t.Errorf("%s: HasContentAccess() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

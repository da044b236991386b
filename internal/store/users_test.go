package store

import (
	"context"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "mojca", "Mojca Novak", "hash123", model.RoleVolunteer)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "mojca" || user.DisplayName != "Mojca Novak" {
		t.Errorf("unexpected user: %+v", user)
	}
	if user.Role != model.RoleVolunteer {
		t.Errorf("expected role %q, got %q", model.RoleVolunteer, user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "mojca" {
		t.Errorf("expected username 'mojca', got %q", got.Username)
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice", "", "hash", model.RoleAdmin)

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Name() != "alice" {
		t.Errorf("expected display name to fall back to username, got %q", user.Name())
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestInvalidRoleRejected(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := CreateUser(context.Background(), database, "eve", "", "hash", "superuser"); err == nil {
		t.Error("expected unknown role to be rejected by the database")
	}
}

func TestListAndCountUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "b", "", "hash", model.RoleVolunteer)
	CreateUser(ctx, database, "a", "", "hash", model.RoleCoordinator)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "a" {
		t.Errorf("expected 2 users ordered by username, got %+v", users)
	}

	n, err := CountUsers(ctx, database)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestDeleteUserFreesUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "deleteme", "", "hash", model.RoleVolunteer)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}

	if got, _ := GetUserByUsername(ctx, database, "deleteme"); got != nil {
		t.Error("expected deleted user to be hidden from login lookup")
	}
	if _, err := CreateUser(ctx, database, "deleteme", "", "hash", model.RoleVolunteer); err != nil {
		t.Errorf("expected username to be reusable after delete: %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "", "oldhash", model.RoleVolunteer)
	UpdateUserPassword(ctx, database, user.ID, "newhash")
	UpdateUser(ctx, database, user.ID, "Pat", model.RoleCoordinator)

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
	if got.DisplayName != "Pat" || got.Role != model.RoleCoordinator {
		t.Errorf("unexpected user after update: %+v", got)
	}
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/iste-sc/portal/authz"
)

func TestProfileService_EnsureProfileCreatesPublicRow(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("user-1", "alice.k@college.edu", "Alice K", "", "public").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewProfileService(mockDB, nil, nil)
	err = svc.EnsureProfile(context.Background(), &authz.Principal{
		ID:    "user-1",
		Email: "alice.k@college.edu",
	})
	if err != nil {
		t.Fatalf("EnsureProfile failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestProfileService_EnsureProfileSkipsExisting(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	svc := NewProfileService(mockDB, nil, nil)
	err = svc.EnsureProfile(context.Background(), &authz.Principal{ID: "user-1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("EnsureProfile failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Insert should be skipped for existing profile: %v", err)
	}
}

func TestProfileService_SetRoleRejectsUnknown(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	svc := NewProfileService(mockDB, nil, nil)
	if err := svc.SetRole(context.Background(), "user-1", "superuser"); err == nil {
		t.Fatal("Expected error for role outside the enumeration")
	}
}

func TestProfileService_SetRoleMissingProfile(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("UPDATE profiles SET role").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewProfileService(mockDB, nil, nil)
	err = svc.SetRole(context.Background(), "ghost", "execom")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestNormalizeBranch(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CSE", "CSE"},
		{"cse", "Cse"},
		{"computer science", "Computer Science"},
		{"  ", ""},
		{"MECH", "MECH"},
	}
	for _, tt := range tests {
		if got := normalizeBranch(tt.in); got != tt.want {
			t.Errorf("normalizeBranch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

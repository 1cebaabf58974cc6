package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAccessKeyService_CreateAndVerify(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO access_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewAccessKeyService(mockDB)
	key, plaintext, err := svc.Create("library kiosk", "admin-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	parts := strings.Split(plaintext, "_")
	if len(parts) != 3 || parts[0] != "iste" {
		t.Fatalf("Plaintext key %q has wrong shape", plaintext)
	}
	if strings.Contains(key.KeyHash, parts[2]) {
		t.Fatal("Stored hash must not contain the secret")
	}

	// Verify against the stored bcrypt hash.
	mock.ExpectQuery("SELECT id, name, key_hash").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "key_hash", "created_by", "created_at", "last_used_at", "is_active",
		}).AddRow(key.ID, key.Name, key.KeyHash, "admin-1", time.Now(), nil, true))
	mock.ExpectExec("UPDATE access_keys SET last_used_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := svc.Verify(plaintext)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("Verify returned key %q, want %q", got.ID, key.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestAccessKeyService_VerifyWrongSecret(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO access_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewAccessKeyService(mockDB)
	key, plaintext, err := svc.Create("library kiosk", "admin-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mock.ExpectQuery("SELECT id, name, key_hash").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "key_hash", "created_by", "created_at", "last_used_at", "is_active",
		}).AddRow(key.ID, key.Name, key.KeyHash, "admin-1", time.Now(), nil, true))

	parts := strings.Split(plaintext, "_")
	tampered := parts[0] + "_" + parts[1] + "_" + strings.Repeat("0", len(parts[2]))
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrAccessKeyInvalid) {
		t.Fatalf("Expected ErrAccessKeyInvalid, got %v", err)
	}
}

func TestAccessKeyService_VerifyMalformed(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	svc := NewAccessKeyService(mockDB)
	for _, bad := range []string{"", "iste", "iste_only-two", "wrong_aa_bb", "iste_a_b_c"} {
		if _, err := svc.Verify(bad); !errors.Is(err, ErrAccessKeyInvalid) {
			t.Errorf("Verify(%q): expected ErrAccessKeyInvalid, got %v", bad, err)
		}
	}
}

package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/iste-sc/portal/db"
)

func TestCertificateService_IssueRequiresApprovedRegistration(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT full_name, email, status FROM registrations").
		WithArgs("reg-1", "event-1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name", "email", "status"}).
			AddRow("Alice", "alice@college.edu", db.RegistrationPending))

	svc := NewCertificateService(mockDB)
	_, err = svc.Issue(db.IssueCertificateRequest{EventID: "event-1", RegistrationID: "reg-1"}, "admin-1")
	if err == nil {
		t.Fatal("Expected error issuing certificate for pending registration")
	}
}

func TestCertificateService_Issue(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT full_name, email, status FROM registrations").
		WillReturnRows(sqlmock.NewRows([]string{"full_name", "email", "status"}).
			AddRow("Alice", "alice@college.edu", db.RegistrationApproved))
	mock.ExpectExec("INSERT INTO certificates").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewCertificateService(mockDB)
	cert, err := svc.Issue(db.IssueCertificateRequest{EventID: "event-1", RegistrationID: "reg-1"}, "admin-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if !strings.HasPrefix(cert.Code, "ISTE-") {
		t.Errorf("Code %q missing ISTE- prefix", cert.Code)
	}
	if random := strings.TrimPrefix(cert.Code, "ISTE-"); strings.ContainsAny(random, "01OI") {
		t.Errorf("Code %q contains ambiguous characters after the prefix", cert.Code)
	}
	if cert.RecipientEmail != "alice@college.edu" {
		t.Errorf("RecipientEmail = %q", cert.RecipientEmail)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCertificateService_VerifyRevoked(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT c.id").
		WithArgs("ISTE-ABCDE-FGHJK").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_id", "registration_id", "recipient_name", "recipient_email", "code",
			"file_url", "issued_by", "issued_at", "is_revoked", "title",
		}).AddRow("cert-1", "event-1", "reg-1", "Alice", "alice@college.edu",
			"ISTE-ABCDE-FGHJK", "", "admin-1", time.Now(), true, "Intro to Go"))

	svc := NewCertificateService(mockDB)
	cert, err := svc.Verify("ISTE-ABCDE-FGHJK")
	if !errors.Is(err, ErrCertificateRevoked) {
		t.Fatalf("Expected ErrCertificateRevoked, got %v", err)
	}
	if cert.RecipientName != "Alice" {
		t.Error("Revoked verify should still return the record")
	}
}

func TestCertificateService_VerifyUnknownCode(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT c.id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_id", "registration_id", "recipient_name", "recipient_email", "code",
			"file_url", "issued_by", "issued_at", "is_revoked", "title",
		}))

	svc := NewCertificateService(mockDB)
	_, err = svc.Verify("ISTE-XXXXX-XXXXX")
	if !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("Expected ErrCertificateNotFound, got %v", err)
	}
}

func TestVerificationCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := verificationCode()
		if err != nil {
			t.Fatalf("verificationCode failed: %v", err)
		}
		if len(code) != 16 {
			t.Fatalf("Code %q has length %d, want 16", code, len(code))
		}
		if seen[code] {
			t.Fatalf("Duplicate code %q", code)
		}
		seen[code] = true
	}
}

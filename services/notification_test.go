package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/iste-sc/portal/db"
)

func TestNotificationService_CreateValidatesAudience(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	svc := NewNotificationService(mockDB, nil)
	_, err = svc.Create(context.Background(), db.CreateNotificationRequest{
		Title:    "Hack night",
		Body:     "Friday 6pm",
		Audience: "everyone",
	}, "execom-1")
	if err == nil {
		t.Fatal("Expected error for unknown audience")
	}
}

func TestNotificationService_CreateDefaultsToAll(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Nil redis: persistence succeeds, push enqueue is skipped.
	svc := NewNotificationService(mockDB, nil)
	n, err := svc.Create(context.Background(), db.CreateNotificationRequest{
		Title: "Hack night",
		Body:  "Friday 6pm",
	}, "execom-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if n.Audience != "all" {
		t.Errorf("Audience = %q, want %q", n.Audience, "all")
	}
	if n.Status != db.NotificationQueued {
		t.Errorf("Status = %q, want %q", n.Status, db.NotificationQueued)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestNotificationService_CreateRoleAudience(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewNotificationService(mockDB, nil)
	n, err := svc.Create(context.Background(), db.CreateNotificationRequest{
		Title:    "Budget review",
		Body:     "Submit reports by Monday",
		Audience: "Treasurer",
	}, "admin-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n.Audience != "treasurer" {
		t.Errorf("Audience = %q, want normalized %q", n.Audience, "treasurer")
	}
}

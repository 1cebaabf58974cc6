package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/iste-sc/portal/db"
)

func TestRegistrationOpen(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	starts := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		event db.Event
		want  bool
	}{
		{
			name:  "published, no window, before start",
			event: db.Event{IsPublished: true, StartsAt: starts},
			want:  true,
		},
		{
			name:  "unpublished never accepts",
			event: db.Event{IsPublished: false, StartsAt: starts},
			want:  false,
		},
		{
			name:  "window not yet open",
			event: db.Event{IsPublished: true, StartsAt: starts, RegOpensAt: &future},
			want:  false,
		},
		{
			name:  "window explicitly closed",
			event: db.Event{IsPublished: true, StartsAt: starts, RegClosesAt: &past},
			want:  false,
		},
		{
			name:  "event already started",
			event: db.Event{IsPublished: true, StartsAt: past},
			want:  false,
		},
		{
			name:  "close time after start keeps it open",
			event: db.Event{IsPublished: true, StartsAt: past, RegClosesAt: &future},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegistrationOpen(tt.event, now); got != tt.want {
				t.Errorf("RegistrationOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventService_CreateEventRejectsInvertedTimes(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	svc := NewEventService(mockDB)
	starts := time.Now().Add(24 * time.Hour)
	_, err = svc.CreateEvent(db.CreateEventRequest{
		Title:    "Broken workshop",
		StartsAt: starts,
		EndsAt:   starts.Add(-time.Hour),
	}, "admin-1")
	if err == nil {
		t.Fatal("Expected error for event ending before it starts")
	}
}

func TestEventService_CreateEventStartsUnpublished(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewEventService(mockDB)
	starts := time.Now().Add(24 * time.Hour)
	event, err := svc.CreateEvent(db.CreateEventRequest{
		Title:    "Intro to Go",
		StartsAt: starts,
		EndsAt:   starts.Add(2 * time.Hour),
	}, "admin-1")
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if event.IsPublished {
		t.Error("New events must start unpublished")
	}
	if event.ID == "" {
		t.Error("Expected generated event ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

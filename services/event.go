package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
)

type EventService struct {
	PG *sql.DB
}

func NewEventService(pg *sql.DB) *EventService {
	return &EventService{PG: pg}
}

// CreateEvent creates an unpublished event. Publishing is a separate step
// so drafts never leak onto the public site.
func (s *EventService) CreateEvent(req db.CreateEventRequest, createdBy string) (db.Event, error) {
	event := db.Event{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		Fee:         req.Fee,
		Capacity:    req.Capacity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		RegOpensAt:  req.RegOpensAt,
		RegClosesAt: req.RegClosesAt,
		IsPublished: false,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if !event.EndsAt.After(event.StartsAt) {
		return event, fmt.Errorf("event must end after it starts")
	}

	_, err := s.PG.Exec(`
		INSERT INTO events (id, title, description, venue, fee, capacity, starts_at, ends_at,
			reg_opens_at, reg_closes_at, is_published, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, event.ID, event.Title, event.Description, event.Venue, event.Fee, event.Capacity,
		event.StartsAt, event.EndsAt, event.RegOpensAt, event.RegClosesAt,
		event.IsPublished, event.CreatedBy, event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return event, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

func (s *EventService) UpdateEvent(id string, req db.UpdateEventRequest) (db.Event, error) {
	sets := []string{}
	args := []interface{}{}
	i := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}

	if req.Title != nil {
		add("title", *req.Title)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Venue != nil {
		add("venue", *req.Venue)
	}
	if req.Fee != nil {
		add("fee", *req.Fee)
	}
	if req.Capacity != nil {
		add("capacity", *req.Capacity)
	}
	if req.StartsAt != nil {
		add("starts_at", *req.StartsAt)
	}
	if req.EndsAt != nil {
		add("ends_at", *req.EndsAt)
	}
	if req.RegOpensAt != nil {
		add("reg_opens_at", *req.RegOpensAt)
	}
	if req.RegClosesAt != nil {
		add("reg_closes_at", *req.RegClosesAt)
	}
	if req.IsPublished != nil {
		add("is_published", *req.IsPublished)
	}

	if len(sets) == 0 {
		return s.GetEvent(id)
	}

	add("updated_at", time.Now())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d", strings.Join(sets, ", "), i)
	result, err := s.PG.Exec(query, args...)
	if err != nil {
		return db.Event{}, fmt.Errorf("failed to update event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return db.Event{}, fmt.Errorf("event not found")
	}

	return s.GetEvent(id)
}

// SetPosterURL records the uploaded poster location.
func (s *EventService) SetPosterURL(id, posterURL string) error {
	result, err := s.PG.Exec(`UPDATE events SET poster_url = $1, updated_at = $2 WHERE id = $3`,
		posterURL, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set poster: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("event not found")
	}
	return nil
}

func (s *EventService) GetEvent(id string) (db.Event, error) {
	var e db.Event
	err := s.PG.QueryRow(`
		SELECT e.id, e.title, e.description, e.venue, COALESCE(e.poster_url, ''), e.fee, e.capacity,
			   e.starts_at, e.ends_at, e.reg_opens_at, e.reg_closes_at, e.is_published,
			   COALESCE(e.created_by, ''), e.created_at, e.updated_at,
			   (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status != 'rejected')
		FROM events e
		WHERE e.id = $1
	`, id).Scan(&e.ID, &e.Title, &e.Description, &e.Venue, &e.PosterURL, &e.Fee, &e.Capacity,
		&e.StartsAt, &e.EndsAt, &e.RegOpensAt, &e.RegClosesAt, &e.IsPublished,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.RegistrationCount)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("event not found")
	}
	if err != nil {
		return e, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ListEvents returns events newest-first. With publishedOnly set it serves
// the public site; dashboards pass false to see drafts too.
func (s *EventService) ListEvents(publishedOnly bool, limit, offset int) ([]db.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT e.id, e.title, e.description, e.venue, COALESCE(e.poster_url, ''), e.fee, e.capacity,
			   e.starts_at, e.ends_at, e.reg_opens_at, e.reg_closes_at, e.is_published,
			   COALESCE(e.created_by, ''), e.created_at, e.updated_at,
			   (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status != 'rejected')
		FROM events e`
	if publishedOnly {
		query += ` WHERE e.is_published = true`
	}
	query += fmt.Sprintf(` ORDER BY e.starts_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.PG.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []db.Event{}
	for rows.Next() {
		var e db.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Venue, &e.PosterURL, &e.Fee,
			&e.Capacity, &e.StartsAt, &e.EndsAt, &e.RegOpensAt, &e.RegClosesAt, &e.IsPublished,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.RegistrationCount); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *EventService) DeleteEvent(id string) error {
	result, err := s.PG.Exec(`DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("event not found")
	}
	return nil
}

// RegistrationOpen reports whether an event currently accepts registrations.
// Unset window bounds fall back to the event start time.
func RegistrationOpen(e db.Event, now time.Time) bool {
	if !e.IsPublished {
		return false
	}
	if e.RegOpensAt != nil && now.Before(*e.RegOpensAt) {
		return false
	}
	closes := e.StartsAt
	if e.RegClosesAt != nil {
		closes = *e.RegClosesAt
	}
	return now.Before(closes)
}

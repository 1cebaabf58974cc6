package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
)

var (
	ErrRegistrationClosed = errors.New("registrations are closed for this event")
	ErrEventFull          = errors.New("event has reached capacity")
	ErrAlreadyRegistered  = errors.New("this email is already registered")
	ErrProofRequired      = errors.New("payment proof is required for paid events")
)

// RegistrationService handles both event registrations and chapter
// membership applications. A membership application is a registration row
// with no event attached.
type RegistrationService struct {
	PG      *sql.DB
	Storage *StorageService
	Bucket  string
}

func NewRegistrationService(pg *sql.DB, storage *StorageService, bucket string) *RegistrationService {
	return &RegistrationService{PG: pg, Storage: storage, Bucket: bucket}
}

// Create validates and records a registration. Paid events require a
// payment proof; free events ignore one if attached. userID is empty for
// anonymous public submissions.
func (s *RegistrationService) Create(ctx context.Context, req db.CreateRegistrationRequest, userID string, proof *FileUpload) (db.Registration, error) {
	reg := db.Registration{
		ID:         uuid.New().String(),
		EventID:    req.EventID,
		UserID:     userID,
		FullName:   strings.TrimSpace(req.FullName),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      strings.TrimSpace(req.Phone),
		Branch:     req.Branch,
		CollegeID:  req.CollegeID,
		PaymentRef: req.PaymentRef,
		Status:     db.RegistrationPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	fee := 0
	if req.EventID != "" {
		event, err := s.eventForRegistration(req.EventID)
		if err != nil {
			return reg, err
		}
		if !RegistrationOpen(event, time.Now()) {
			return reg, ErrRegistrationClosed
		}
		if event.Capacity > 0 && event.RegistrationCount >= event.Capacity {
			return reg, ErrEventFull
		}
		fee = event.Fee
	}

	dup, err := s.emailTaken(reg.EventID, reg.Email)
	if err != nil {
		return reg, err
	}
	if dup {
		return reg, ErrAlreadyRegistered
	}

	if fee > 0 && proof == nil {
		return reg, ErrProofRequired
	}

	if proof != nil {
		objectPath := fmt.Sprintf("%s/%s%s", proofFolder(reg.EventID), reg.ID, safeExt(proof.Filename))
		url, err := s.Storage.Upload(ctx, s.Bucket, objectPath, proof.Reader, proof.ContentType)
		if err != nil {
			return reg, fmt.Errorf("failed to store payment proof: %w", err)
		}
		reg.PaymentProofURL = url
	}

	_, err = s.PG.Exec(`
		INSERT INTO registrations (id, event_id, user_id, full_name, email, phone, branch,
			college_id, payment_proof_url, payment_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, reg.ID, nullIfEmpty(reg.EventID), nullIfEmpty(reg.UserID), reg.FullName, reg.Email,
		reg.Phone, reg.Branch, reg.CollegeID, reg.PaymentProofURL, reg.PaymentRef,
		reg.Status, reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return reg, fmt.Errorf("failed to create registration: %w", err)
	}

	log.Printf("Registration %s created (event=%q email=%s)", reg.ID, reg.EventID, reg.Email)
	return reg, nil
}

// Review moves a pending registration to approved or rejected. Decided
// registrations stay decided.
func (s *RegistrationService) Review(id string, req db.ReviewRegistrationRequest, reviewerID string) (db.Registration, error) {
	if req.Status != db.RegistrationApproved && req.Status != db.RegistrationRejected {
		return db.Registration{}, fmt.Errorf("status must be %q or %q", db.RegistrationApproved, db.RegistrationRejected)
	}

	now := time.Now()
	result, err := s.PG.Exec(`
		UPDATE registrations
		SET status = $1, reviewed_by = $2, reviewed_at = $3, review_note = $4, updated_at = $3
		WHERE id = $5 AND status = $6
	`, req.Status, reviewerID, now, req.Note, id, db.RegistrationPending)
	if err != nil {
		return db.Registration{}, fmt.Errorf("failed to review registration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return db.Registration{}, fmt.Errorf("registration not found or already reviewed")
	}

	log.Printf("Registration %s %s by %s", id, req.Status, reviewerID)
	return s.Get(id)
}

func (s *RegistrationService) Get(id string) (db.Registration, error) {
	row := s.PG.QueryRow(registrationSelect+` WHERE r.id = $1`, id)
	reg, err := scanRegistration(row)
	if err == sql.ErrNoRows {
		return reg, fmt.Errorf("registration not found")
	}
	if err != nil {
		return reg, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// List filters by event and status. Empty eventID with membership=true
// returns chapter membership applications.
func (s *RegistrationService) List(eventID, status string, membership bool, limit, offset int) ([]db.Registration, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	conds := []string{}
	args := []interface{}{}
	i := 1
	if membership {
		conds = append(conds, "r.event_id IS NULL")
	} else if eventID != "" {
		conds = append(conds, fmt.Sprintf("r.event_id = $%d", i))
		args = append(args, eventID)
		i++
	}
	if status != "" {
		conds = append(conds, fmt.Sprintf("r.status = $%d", i))
		args = append(args, status)
		i++
	}

	query := registrationSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %d OFFSET %d", limit, offset)

	return s.queryRegistrations(query, args...)
}

// ListForUser returns a member's own registrations for their dashboard.
func (s *RegistrationService) ListForUser(userID string) ([]db.Registration, error) {
	query := registrationSelect + ` WHERE r.user_id = $1 ORDER BY r.created_at DESC`
	return s.queryRegistrations(query, userID)
}

const registrationSelect = `
	SELECT r.id, COALESCE(r.event_id::text, ''), COALESCE(r.user_id, ''), r.full_name, r.email,
		   r.phone, COALESCE(r.branch, ''), COALESCE(r.college_id, ''),
		   COALESCE(r.payment_proof_url, ''), COALESCE(r.payment_ref, ''), r.status,
		   COALESCE(r.reviewed_by, ''), r.reviewed_at, COALESCE(r.review_note, ''),
		   r.created_at, r.updated_at, COALESCE(e.title, '')
	FROM registrations r
	LEFT JOIN events e ON e.id = r.event_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistration(row rowScanner) (db.Registration, error) {
	var r db.Registration
	err := row.Scan(&r.ID, &r.EventID, &r.UserID, &r.FullName, &r.Email, &r.Phone, &r.Branch,
		&r.CollegeID, &r.PaymentProofURL, &r.PaymentRef, &r.Status, &r.ReviewedBy,
		&r.ReviewedAt, &r.ReviewNote, &r.CreatedAt, &r.UpdatedAt, &r.EventTitle)
	return r, err
}

func (s *RegistrationService) queryRegistrations(query string, args ...interface{}) ([]db.Registration, error) {
	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := []db.Registration{}
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

func (s *RegistrationService) eventForRegistration(eventID string) (db.Event, error) {
	var e db.Event
	err := s.PG.QueryRow(`
		SELECT e.id, e.fee, e.capacity, e.starts_at, e.reg_opens_at, e.reg_closes_at, e.is_published,
			   (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status != 'rejected')
		FROM events e
		WHERE e.id = $1
	`, eventID).Scan(&e.ID, &e.Fee, &e.Capacity, &e.StartsAt, &e.RegOpensAt, &e.RegClosesAt,
		&e.IsPublished, &e.RegistrationCount)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("event not found")
	}
	if err != nil {
		return e, fmt.Errorf("failed to load event: %w", err)
	}
	return e, nil
}

func (s *RegistrationService) emailTaken(eventID, email string) (bool, error) {
	var exists bool
	var err error
	if eventID == "" {
		err = s.PG.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id IS NULL AND email = $1 AND status != 'rejected')`,
			email).Scan(&exists)
	} else {
		err = s.PG.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND email = $2 AND status != 'rejected')`,
			eventID, email).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate registration: %w", err)
	}
	return exists, nil
}

func proofFolder(eventID string) string {
	if eventID == "" {
		return "membership"
	}
	return eventID
}

// safeExt keeps only plain file extensions so user-supplied filenames
// cannot steer object paths.
func safeExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".pdf":
		return ext
	default:
		return ""
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

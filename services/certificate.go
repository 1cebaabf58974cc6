package services

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrCertificateRevoked  = errors.New("certificate has been revoked")
)

// CertificateService issues participation certificates against approved
// registrations and serves the public verification lookup.
type CertificateService struct {
	PG *sql.DB
}

func NewCertificateService(pg *sql.DB) *CertificateService {
	return &CertificateService{PG: pg}
}

// Issue creates a certificate for an approved registration. The
// verification code is what recipients share; it never encodes anything.
func (s *CertificateService) Issue(req db.IssueCertificateRequest, issuedBy string) (db.Certificate, error) {
	var name, email, status string
	err := s.PG.QueryRow(`
		SELECT full_name, email, status FROM registrations WHERE id = $1 AND event_id = $2
	`, req.RegistrationID, req.EventID).Scan(&name, &email, &status)
	if err == sql.ErrNoRows {
		return db.Certificate{}, fmt.Errorf("registration not found for this event")
	}
	if err != nil {
		return db.Certificate{}, fmt.Errorf("failed to load registration: %w", err)
	}
	if status != db.RegistrationApproved {
		return db.Certificate{}, fmt.Errorf("registration is not approved")
	}

	code, err := verificationCode()
	if err != nil {
		return db.Certificate{}, err
	}

	cert := db.Certificate{
		ID:             uuid.New().String(),
		EventID:        req.EventID,
		RegistrationID: req.RegistrationID,
		RecipientName:  name,
		RecipientEmail: email,
		Code:           code,
		IssuedBy:       issuedBy,
		IssuedAt:       time.Now(),
	}

	_, err = s.PG.Exec(`
		INSERT INTO certificates (id, event_id, registration_id, recipient_name, recipient_email,
			code, issued_by, issued_at, is_revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
	`, cert.ID, cert.EventID, cert.RegistrationID, cert.RecipientName, cert.RecipientEmail,
		cert.Code, cert.IssuedBy, cert.IssuedAt)
	if err != nil {
		return cert, fmt.Errorf("failed to issue certificate: %w", err)
	}

	log.Printf("Certificate %s issued for %s (event %s)", cert.Code, cert.RecipientEmail, cert.EventID)
	return cert, nil
}

// Verify looks up a certificate by its public code. Revoked certificates
// return ErrCertificateRevoked with the record so callers can show why.
func (s *CertificateService) Verify(code string) (db.Certificate, error) {
	var c db.Certificate
	err := s.PG.QueryRow(`
		SELECT c.id, c.event_id, c.registration_id, c.recipient_name, c.recipient_email, c.code,
			   COALESCE(c.file_url, ''), COALESCE(c.issued_by, ''), c.issued_at, c.is_revoked,
			   COALESCE(e.title, '')
		FROM certificates c
		LEFT JOIN events e ON e.id = c.event_id
		WHERE c.code = $1
	`, code).Scan(&c.ID, &c.EventID, &c.RegistrationID, &c.RecipientName, &c.RecipientEmail,
		&c.Code, &c.FileURL, &c.IssuedBy, &c.IssuedAt, &c.IsRevoked, &c.EventTitle)
	if err == sql.ErrNoRows {
		return c, ErrCertificateNotFound
	}
	if err != nil {
		return c, fmt.Errorf("failed to verify certificate: %w", err)
	}
	if c.IsRevoked {
		return c, ErrCertificateRevoked
	}
	return c, nil
}

func (s *CertificateService) SetRevoked(id string, revoked bool) error {
	result, err := s.PG.Exec(`UPDATE certificates SET is_revoked = $1 WHERE id = $2`, revoked, id)
	if err != nil {
		return fmt.Errorf("failed to update certificate: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

func (s *CertificateService) SetFileURL(id, fileURL string) error {
	result, err := s.PG.Exec(`UPDATE certificates SET file_url = $1 WHERE id = $2`, fileURL, id)
	if err != nil {
		return fmt.Errorf("failed to update certificate: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

func (s *CertificateService) ListByEvent(eventID string) ([]db.Certificate, error) {
	rows, err := s.PG.Query(`
		SELECT id, event_id, registration_id, recipient_name, recipient_email, code,
			   COALESCE(file_url, ''), COALESCE(issued_by, ''), issued_at, is_revoked
		FROM certificates
		WHERE event_id = $1
		ORDER BY issued_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	certs := []db.Certificate{}
	for rows.Next() {
		var c db.Certificate
		if err := rows.Scan(&c.ID, &c.EventID, &c.RegistrationID, &c.RecipientName,
			&c.RecipientEmail, &c.Code, &c.FileURL, &c.IssuedBy, &c.IssuedAt, &c.IsRevoked); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// ListForEmail powers the member dashboard "my certificates" view.
func (s *CertificateService) ListForEmail(email string) ([]db.Certificate, error) {
	rows, err := s.PG.Query(`
		SELECT c.id, c.event_id, c.registration_id, c.recipient_name, c.recipient_email, c.code,
			   COALESCE(c.file_url, ''), COALESCE(c.issued_by, ''), c.issued_at, c.is_revoked,
			   COALESCE(e.title, '')
		FROM certificates c
		LEFT JOIN events e ON e.id = c.event_id
		WHERE c.recipient_email = $1 AND c.is_revoked = false
		ORDER BY c.issued_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	certs := []db.Certificate{}
	for rows.Next() {
		var c db.Certificate
		if err := rows.Scan(&c.ID, &c.EventID, &c.RegistrationID, &c.RecipientName,
			&c.RecipientEmail, &c.Code, &c.FileURL, &c.IssuedBy, &c.IssuedAt, &c.IsRevoked,
			&c.EventTitle); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// codeAlphabet avoids 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func verificationCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate certificate code: %w", err)
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "ISTE-" + string(out[:5]) + "-" + string(out[5:]), nil
}

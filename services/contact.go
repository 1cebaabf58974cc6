package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
)

// ContactService stores public contact form submissions for the execom
// inbox.
type ContactService struct {
	PG *sql.DB
}

func NewContactService(pg *sql.DB) *ContactService {
	return &ContactService{PG: pg}
}

func (s *ContactService) Create(req db.CreateContactMessageRequest) (db.ContactMessage, error) {
	m := db.ContactMessage{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Subject:   strings.TrimSpace(req.Subject),
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: time.Now(),
	}
	if m.Message == "" {
		return m, fmt.Errorf("message is required")
	}

	_, err := s.PG.Exec(`
		INSERT INTO contact_messages (id, name, email, subject, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`, m.ID, m.Name, m.Email, m.Subject, m.Message, m.CreatedAt)
	if err != nil {
		return m, fmt.Errorf("failed to save message: %w", err)
	}
	return m, nil
}

func (s *ContactService) List(unreadOnly bool, limit, offset int) ([]db.ContactMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, name, email, COALESCE(subject, ''), message, is_read, created_at
		FROM contact_messages`
	if unreadOnly {
		query += ` WHERE is_read = false`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.PG.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := []db.ContactMessage{}
	for rows.Next() {
		var m db.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *ContactService) MarkRead(id string) error {
	result, err := s.PG.Exec(`UPDATE contact_messages SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message not found")
	}
	return nil
}

func (s *ContactService) Delete(id string) error {
	result, err := s.PG.Exec(`DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message not found")
	}
	return nil
}

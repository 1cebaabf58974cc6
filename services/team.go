package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
)

// TeamService maintains the public team page roster.
type TeamService struct {
	PG *sql.DB
}

func NewTeamService(pg *sql.DB) *TeamService {
	return &TeamService{PG: pg}
}

// ListActive returns the roster for the public site, grouped by caller
// using Wing and ordered by sort_order. year=0 means the latest year on
// record.
func (s *TeamService) ListActive(year int) ([]db.TeamMember, error) {
	if year == 0 {
		if err := s.PG.QueryRow(`SELECT COALESCE(MAX(year), 0) FROM team_members WHERE is_active = true`).Scan(&year); err != nil {
			return nil, fmt.Errorf("failed to find roster year: %w", err)
		}
	}

	rows, err := s.PG.Query(`
		SELECT id, name, position, COALESCE(wing, ''), COALESCE(photo_url, ''),
			   COALESCE(linkedin, ''), COALESCE(email, ''), sort_order, year, is_active, created_at
		FROM team_members
		WHERE is_active = true AND year = $1
		ORDER BY sort_order ASC, name ASC
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	defer rows.Close()

	return scanTeamMembers(rows)
}

// ListAll includes inactive entries for the admin dashboard.
func (s *TeamService) ListAll() ([]db.TeamMember, error) {
	rows, err := s.PG.Query(`
		SELECT id, name, position, COALESCE(wing, ''), COALESCE(photo_url, ''),
			   COALESCE(linkedin, ''), COALESCE(email, ''), sort_order, year, is_active, created_at
		FROM team_members
		ORDER BY year DESC, sort_order ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	defer rows.Close()

	return scanTeamMembers(rows)
}

func (s *TeamService) Create(req db.UpsertTeamMemberRequest) (db.TeamMember, error) {
	m := db.TeamMember{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Position:  req.Position,
		Wing:      req.Wing,
		PhotoURL:  req.PhotoURL,
		LinkedIn:  req.LinkedIn,
		Email:     req.Email,
		SortOrder: req.SortOrder,
		Year:      req.Year,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if m.Year == 0 {
		m.Year = time.Now().Year()
	}

	_, err := s.PG.Exec(`
		INSERT INTO team_members (id, name, position, wing, photo_url, linkedin, email,
			sort_order, year, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, m.ID, m.Name, m.Position, m.Wing, m.PhotoURL, m.LinkedIn, m.Email,
		m.SortOrder, m.Year, m.IsActive, m.CreatedAt)
	if err != nil {
		return m, fmt.Errorf("failed to create team member: %w", err)
	}
	return m, nil
}

func (s *TeamService) Update(id string, req db.UpsertTeamMemberRequest) error {
	result, err := s.PG.Exec(`
		UPDATE team_members
		SET name = $1, position = $2, wing = $3, photo_url = $4, linkedin = $5,
			email = $6, sort_order = $7, year = $8
		WHERE id = $9
	`, req.Name, req.Position, req.Wing, req.PhotoURL, req.LinkedIn, req.Email,
		req.SortOrder, req.Year, id)
	if err != nil {
		return fmt.Errorf("failed to update team member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("team member not found")
	}
	return nil
}

func (s *TeamService) SetActive(id string, active bool) error {
	result, err := s.PG.Exec(`UPDATE team_members SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update team member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("team member not found")
	}
	return nil
}

func (s *TeamService) Delete(id string) error {
	result, err := s.PG.Exec(`DELETE FROM team_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("team member not found")
	}
	return nil
}

func scanTeamMembers(rows *sql.Rows) ([]db.TeamMember, error) {
	members := []db.TeamMember{}
	for rows.Next() {
		var m db.TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Position, &m.Wing, &m.PhotoURL, &m.LinkedIn,
			&m.Email, &m.SortOrder, &m.Year, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

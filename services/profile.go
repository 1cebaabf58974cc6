package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/db"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileService reads and maintains the profile rows that back role
// resolution. Role changes go through SetRole only, which also drops the
// resolver's cached role so the next navigation sees the new one.
type ProfileService struct {
	PG       *sql.DB
	Auth     *SupabaseAuthService
	Resolver *authz.ProfileResolver
}

func NewProfileService(pg *sql.DB, auth *SupabaseAuthService, resolver *authz.ProfileResolver) *ProfileService {
	return &ProfileService{PG: pg, Auth: auth, Resolver: resolver}
}

var _ authz.ProfileSyncer = (*ProfileService)(nil)

// EnsureProfile creates the profile row for a principal on its first
// authenticated request. New rows get the public role; role upgrades are
// an explicit admin action, never automatic.
func (s *ProfileService) EnsureProfile(ctx context.Context, p *authz.Principal) error {
	var exists bool
	err := s.PG.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, p.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("profile lookup: %w", err)
	}
	if exists {
		return nil
	}

	fullName, avatar := s.claimIdentity(ctx, p)
	log.Printf("PROFILE creating row for %s (%s)", p.Email, p.ID)

	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, avatar_url, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Email, fullName, avatar, string(authz.RolePublic))
	if err != nil {
		return fmt.Errorf("profile insert: %w", err)
	}
	return nil
}

// claimIdentity re-validates the principal's token to pull the metadata
// claims, falling back to the email local part for the display name.
func (s *ProfileService) claimIdentity(ctx context.Context, p *authz.Principal) (fullName, avatar string) {
	if s.Auth != nil && p.Token != "" {
		if claims, err := s.Auth.ValidateToken(ctx, p.Token); err == nil {
			fullName = claims.FullName()
			avatar = claims.AvatarURL()
		}
	}
	if fullName == "" {
		local := p.Email
		if at := strings.Index(local, "@"); at > 0 {
			local = local[:at]
		}
		fullName = cases.Title(language.English).String(strings.ReplaceAll(local, ".", " "))
	}
	return fullName, avatar
}

// GetProfile returns one profile by principal ID.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*db.Profile, error) {
	var p db.Profile
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, email, full_name, COALESCE(branch, ''), COALESCE(phone, ''),
		       role, COALESCE(avatar_url, ''), is_active, created_at, updated_at
		FROM profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.Email, &p.FullName, &p.Branch, &p.Phone,
		&p.Role, &p.AvatarURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies the caller's own edits (name, branch, phone).
func (s *ProfileService) UpdateProfile(ctx context.Context, id string, req db.UpdateProfileRequest) (*db.Profile, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	if req.FullName != nil {
		args = append(args, *req.FullName)
		sets = append(sets, fmt.Sprintf("full_name = $%d", len(args)))
	}
	if req.Branch != nil {
		args = append(args, normalizeBranch(*req.Branch))
		sets = append(sets, fmt.Sprintf("branch = $%d", len(args)))
	}
	if req.Phone != nil {
		args = append(args, *req.Phone)
		sets = append(sets, fmt.Sprintf("phone = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $1`, strings.Join(sets, ", "))
	res, err := s.PG.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrProfileNotFound
	}
	return s.GetProfile(ctx, id)
}

// ListProfiles returns profiles, optionally filtered to one role.
func (s *ProfileService) ListProfiles(ctx context.Context, role string, limit, offset int) ([]db.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, email, full_name, COALESCE(branch, ''), COALESCE(phone, ''),
		       role, COALESCE(avatar_url, ''), is_active, created_at, updated_at
		FROM profiles`
	args := []interface{}{}
	if role != "" {
		args = append(args, role)
		query += ` WHERE role = $1`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.PG.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []db.Profile
	for rows.Next() {
		var p db.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Branch, &p.Phone,
			&p.Role, &p.AvatarURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetRole assigns a principal's role. Admin-only at the route layer; here
// the invariant enforced is that the value is a member of the closed
// enumeration and the cached role is invalidated.
func (s *ProfileService) SetRole(ctx context.Context, id string, role string) error {
	parsed, ok := authz.ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	res, err := s.PG.ExecContext(ctx, `
		UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1
	`, id, string(parsed))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}

	if s.Resolver != nil {
		s.Resolver.Invalidate(ctx, id)
	}
	log.Printf("PROFILE role of %s set to %s", id, parsed)
	return nil
}

// Deactivate disables a profile. An inactive profile no longer resolves a
// role, so every dashboard denies it.
func (s *ProfileService) Deactivate(ctx context.Context, id string) error {
	res, err := s.PG.ExecContext(ctx, `
		UPDATE profiles SET is_active = false, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}
	if s.Resolver != nil {
		s.Resolver.Invalidate(ctx, id)
	}
	return nil
}

func normalizeBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return branch
	}
	if strings.ToUpper(branch) == branch && len(branch) <= 5 {
		// Keep short acronyms (CSE, ECE, IT) as typed.
		return branch
	}
	return cases.Title(language.English).String(strings.ToLower(branch))
}

// Stats returns member counts per role for the admin dashboard.
func (s *ProfileService) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT role, COUNT(*) FROM profiles WHERE is_active = true GROUP BY role
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var role string
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		stats[role] = count
	}
	return stats, rows.Err()
}

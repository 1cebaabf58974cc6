package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrRoleNotFound means the principal has no profile row (or an inactive
// one). For gating purposes this is the same as a lookup failure.
var ErrRoleNotFound = errors.New("no role assigned to principal")

// ResolutionState is the explicit three-state result of a role lookup.
type ResolutionState int

const (
	ResolutionPending ResolutionState = iota
	ResolutionReady
	ResolutionFailed
)

// Resolution is the outcome of one role lookup. Failed carries the cause;
// Ready carries exactly one role. There is no partial state.
type Resolution struct {
	State ResolutionState
	Role  Role
	Err   error
}

// RoleResolver maps a principal ID to its single role by reading the
// persisted profile record. Resolvers never mutate roles.
type RoleResolver interface {
	Resolve(ctx context.Context, principalID string) Resolution
}

// ProfileResolver resolves roles from the profiles table, with a short-TTL
// redis cache in front. A cache miss or redis outage falls through to
// Postgres; a Postgres failure resolves to Failed, never to a role.
type ProfileResolver struct {
	PG       *sql.DB
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewProfileResolver(pg *sql.DB, rdb *redis.Client, cacheTTL time.Duration) *ProfileResolver {
	return &ProfileResolver{PG: pg, Redis: rdb, CacheTTL: cacheTTL}
}

var _ RoleResolver = (*ProfileResolver)(nil)

func roleCacheKey(principalID string) string {
	return "role:" + principalID
}

// Resolve reads the principal's role. Missing rows, unknown role strings
// and backend failures all resolve to Failed so the guard denies closed.
func (r *ProfileResolver) Resolve(ctx context.Context, principalID string) Resolution {
	if principalID == "" {
		return Resolution{State: ResolutionFailed, Err: ErrRoleNotFound}
	}

	if r.Redis != nil {
		cached, err := r.Redis.Get(ctx, roleCacheKey(principalID)).Result()
		if err == nil {
			if role, ok := ParseRole(cached); ok {
				return Resolution{State: ResolutionReady, Role: role}
			}
		} else if err != redis.Nil {
			log.Printf("ROLE CACHE read failed for %s: %v", principalID, err)
		}
	}

	var stored string
	err := r.PG.QueryRowContext(ctx, `
		SELECT role FROM profiles
		WHERE id = $1 AND is_active = true
	`, principalID).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resolution{State: ResolutionFailed, Err: ErrRoleNotFound}
		}
		return Resolution{State: ResolutionFailed, Err: fmt.Errorf("role lookup: %w", err)}
	}

	role, ok := ParseRole(stored)
	if !ok {
		return Resolution{State: ResolutionFailed, Err: fmt.Errorf("%w: unknown role %q", ErrRoleNotFound, stored)}
	}

	if r.Redis != nil && r.CacheTTL > 0 {
		if err := r.Redis.Set(ctx, roleCacheKey(principalID), string(role), r.CacheTTL).Err(); err != nil {
			log.Printf("ROLE CACHE write failed for %s: %v", principalID, err)
		}
	}

	return Resolution{State: ResolutionReady, Role: role}
}

// Invalidate drops the cached role for a principal. Called when an admin
// changes a role so the next navigation sees the new one.
func (r *ProfileResolver) Invalidate(ctx context.Context, principalID string) {
	if r.Redis == nil {
		return
	}
	if err := r.Redis.Del(ctx, roleCacheKey(principalID)).Err(); err != nil {
		log.Printf("ROLE CACHE invalidate failed for %s: %v", principalID, err)
	}
}

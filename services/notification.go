package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/db"
)

// NotificationQueueKey is the redis list the worker consumes from.
const NotificationQueueKey = "notifications:queue"

// NotificationService records notices for member dashboards and enqueues
// them for push delivery by the worker.
type NotificationService struct {
	PG    *sql.DB
	Redis *redis.Client
}

func NewNotificationService(pg *sql.DB, rdb *redis.Client) *NotificationService {
	return &NotificationService{PG: pg, Redis: rdb}
}

// Create persists the notification as queued and pushes its ID to the
// delivery queue. A redis outage only delays push delivery; the ticker
// sweep in the worker picks up queued rows eventually.
func (s *NotificationService) Create(ctx context.Context, req db.CreateNotificationRequest, createdBy string) (db.Notification, error) {
	audience := strings.ToLower(strings.TrimSpace(req.Audience))
	if audience == "" {
		audience = "all"
	}
	if audience != "all" {
		if _, ok := authz.ParseRole(audience); !ok {
			return db.Notification{}, fmt.Errorf("audience must be %q or a role name", "all")
		}
	}

	n := db.Notification{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Body:      req.Body,
		Audience:  audience,
		LinkURL:   req.LinkURL,
		Status:    db.NotificationQueued,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	_, err := s.PG.Exec(`
		INSERT INTO notifications (id, title, body, audience, link_url, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.Title, n.Body, n.Audience, n.LinkURL, n.Status, n.CreatedBy, n.CreatedAt)
	if err != nil {
		return n, fmt.Errorf("failed to create notification: %w", err)
	}

	if s.Redis != nil {
		if err := s.Redis.LPush(ctx, NotificationQueueKey, n.ID).Err(); err != nil {
			log.Printf("Notification %s: failed to enqueue, worker sweep will retry: %v", n.ID, err)
		}
	}
	return n, nil
}

// NextQueued blocks up to timeout waiting for a queued notification ID.
// Returns empty string on timeout.
func (s *NotificationService) NextQueued(ctx context.Context, timeout time.Duration) (string, error) {
	if s.Redis == nil {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
			return "", nil
		}
	}
	res, err := s.Redis.BRPop(ctx, timeout, NotificationQueueKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// BRPop returns [key, value]
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BRPOP reply: %v", res)
	}
	return res[1], nil
}

func (s *NotificationService) Get(id string) (db.Notification, error) {
	var n db.Notification
	err := s.PG.QueryRow(`
		SELECT id, title, body, audience, COALESCE(link_url, ''), status,
			   COALESCE(created_by, ''), created_at, delivered_at
		FROM notifications WHERE id = $1
	`, id).Scan(&n.ID, &n.Title, &n.Body, &n.Audience, &n.LinkURL, &n.Status,
		&n.CreatedBy, &n.CreatedAt, &n.DeliveredAt)
	if err == sql.ErrNoRows {
		return n, fmt.Errorf("notification not found")
	}
	if err != nil {
		return n, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListForRole returns notices visible to a member with the given role.
func (s *NotificationService) ListForRole(role authz.Role, limit int) ([]db.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return s.query(fmt.Sprintf(`
		SELECT id, title, body, audience, COALESCE(link_url, ''), status,
			   COALESCE(created_by, ''), created_at, delivered_at
		FROM notifications
		WHERE audience = 'all' OR audience = $1
		ORDER BY created_at DESC LIMIT %d`, limit), string(role))
}

// ListAll serves the admin dashboard, every audience and status.
func (s *NotificationService) ListAll(limit, offset int) ([]db.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.query(fmt.Sprintf(`
		SELECT id, title, body, audience, COALESCE(link_url, ''), status,
			   COALESCE(created_by, ''), created_at, delivered_at
		FROM notifications
		ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset))
}

// StaleQueuedIDs finds notifications stuck in queued state, used by the
// worker's sweep when the redis queue dropped them.
func (s *NotificationService) StaleQueuedIDs(olderThan time.Duration, limit int) ([]string, error) {
	rows, err := s.PG.Query(`
		SELECT id FROM notifications
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3
	`, db.NotificationQueued, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale notifications: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *NotificationService) MarkSent(id string) error {
	return s.setStatus(id, db.NotificationSent, true)
}

func (s *NotificationService) MarkFailed(id string) error {
	return s.setStatus(id, db.NotificationFailed, false)
}

func (s *NotificationService) setStatus(id, status string, delivered bool) error {
	var err error
	if delivered {
		_, err = s.PG.Exec(`UPDATE notifications SET status = $1, delivered_at = $2 WHERE id = $3`,
			status, time.Now(), id)
	} else {
		_, err = s.PG.Exec(`UPDATE notifications SET status = $1 WHERE id = $2`, status, id)
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification %s: %w", status, err)
	}
	return nil
}

func (s *NotificationService) query(query string, args ...interface{}) ([]db.Notification, error) {
	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []db.Notification{}
	for rows.Next() {
		var n db.Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Audience, &n.LinkURL, &n.Status,
			&n.CreatedBy, &n.CreatedAt, &n.DeliveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RegisterDevice upserts an FCM token for push delivery.
func (s *NotificationService) RegisterDevice(userID, fcmToken, platform string) error {
	if fcmToken == "" {
		return fmt.Errorf("fcm_token is required")
	}
	now := time.Now()
	_, err := s.PG.Exec(`
		INSERT INTO devices (id, user_id, fcm_token, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (fcm_token) DO UPDATE SET user_id = $2, platform = $4, updated_at = $5
	`, uuid.New().String(), userID, fcmToken, platform, now)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// TokensForAudience returns the FCM tokens a notification should reach.
func (s *NotificationService) TokensForAudience(audience string) ([]string, error) {
	query := `
		SELECT d.fcm_token
		FROM devices d
		JOIN profiles p ON p.id = d.user_id
		WHERE p.is_active = true`
	args := []interface{}{}
	if audience != "" && audience != "all" {
		query += ` AND p.role = $1`
		args = append(args, audience)
	}

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to collect device tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

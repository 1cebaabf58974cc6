package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
	"golang.org/x/crypto/bcrypt"
)

var ErrAccessKeyInvalid = errors.New("invalid access key")

// AccessKeyService manages the keys handed to external certificate
// verification kiosks. Keys look like iste_<id>_<secret>; only a bcrypt
// hash of the secret is stored, so a key is shown exactly once.
type AccessKeyService struct {
	PG *sql.DB
}

func NewAccessKeyService(pg *sql.DB) *AccessKeyService {
	return &AccessKeyService{PG: pg}
}

// Create mints a new key and returns the record plus the one-time
// plaintext.
func (s *AccessKeyService) Create(name, createdBy string) (db.AccessKey, string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return db.AccessKey{}, "", fmt.Errorf("failed to generate key: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return db.AccessKey{}, "", fmt.Errorf("failed to hash key: %w", err)
	}

	key := db.AccessKey{
		ID:        uuid.New().String(),
		Name:      name,
		KeyHash:   string(hash),
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		IsActive:  true,
	}

	_, err = s.PG.Exec(`
		INSERT INTO access_keys (id, name, key_hash, created_by, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.Name, key.KeyHash, key.CreatedBy, key.CreatedAt, key.IsActive)
	if err != nil {
		return key, "", fmt.Errorf("failed to create access key: %w", err)
	}

	plaintext := fmt.Sprintf("iste_%s_%s", shortID(key.ID), secret)
	log.Printf("Access key %q created by %s", name, createdBy)
	return key, plaintext, nil
}

// Verify checks a presented key and stamps last_used_at on success. All
// failure modes collapse to ErrAccessKeyInvalid.
func (s *AccessKeyService) Verify(presented string) (db.AccessKey, error) {
	parts := strings.Split(presented, "_")
	if len(parts) != 3 || parts[0] != "iste" {
		return db.AccessKey{}, ErrAccessKeyInvalid
	}
	idPrefix, secret := parts[1], parts[2]

	var key db.AccessKey
	err := s.PG.QueryRow(`
		SELECT id, name, key_hash, COALESCE(created_by, ''), created_at, last_used_at, is_active
		FROM access_keys
		WHERE is_active = true AND replace(id::text, '-', '') LIKE $1 || '%'
	`, idPrefix).Scan(&key.ID, &key.Name, &key.KeyHash, &key.CreatedBy, &key.CreatedAt,
		&key.LastUsedAt, &key.IsActive)
	if err == sql.ErrNoRows {
		return key, ErrAccessKeyInvalid
	}
	if err != nil {
		return key, fmt.Errorf("failed to look up access key: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)) != nil {
		return key, ErrAccessKeyInvalid
	}

	if _, err := s.PG.Exec(`UPDATE access_keys SET last_used_at = $1 WHERE id = $2`, time.Now(), key.ID); err != nil {
		log.Printf("Access key %s: failed to stamp last_used_at: %v", key.ID, err)
	}
	return key, nil
}

func (s *AccessKeyService) List() ([]db.AccessKey, error) {
	rows, err := s.PG.Query(`
		SELECT id, name, key_hash, COALESCE(created_by, ''), created_at, last_used_at, is_active
		FROM access_keys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list access keys: %w", err)
	}
	defer rows.Close()

	keys := []db.AccessKey{}
	for rows.Next() {
		var k db.AccessKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.CreatedBy, &k.CreatedAt,
			&k.LastUsedAt, &k.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan access key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *AccessKeyService) Revoke(id string) error {
	result, err := s.PG.Exec(`UPDATE access_keys SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke access key: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("access key not found")
	}
	return nil
}

func shortID(id string) string {
	trimmed := strings.ReplaceAll(uuid.MustParse(id).String(), "-", "")
	return trimmed[:8]
}

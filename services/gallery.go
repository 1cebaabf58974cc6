package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iste-sc/portal/db"
)

// GalleryService stores event photos and videos in the gallery bucket and
// tracks their metadata.
type GalleryService struct {
	PG      *sql.DB
	Storage *StorageService
	Bucket  string
}

func NewGalleryService(pg *sql.DB, storage *StorageService, bucket string) *GalleryService {
	return &GalleryService{PG: pg, Storage: storage, Bucket: bucket}
}

type GalleryUpload struct {
	File    *FileUpload
	EventID string
	Album   string
	Caption string
}

// Add uploads the media file and records the gallery item.
func (s *GalleryService) Add(ctx context.Context, up GalleryUpload, uploadedBy string) (db.GalleryItem, error) {
	item := db.GalleryItem{
		ID:         uuid.New().String(),
		EventID:    up.EventID,
		Album:      up.Album,
		Caption:    up.Caption,
		MediaType:  mediaTypeOf(up.File.ContentType),
		UploadedBy: uploadedBy,
		CreatedAt:  time.Now(),
	}
	if item.MediaType == "" {
		return item, fmt.Errorf("unsupported media type %q", up.File.ContentType)
	}

	folder := item.Album
	if folder == "" {
		folder = "misc"
	}
	objectPath := fmt.Sprintf("%s/%s%s", folder, item.ID, safeMediaExt(up.File.Filename))
	url, err := s.Storage.Upload(ctx, s.Bucket, objectPath, up.File.Reader, up.File.ContentType)
	if err != nil {
		return item, fmt.Errorf("failed to store media: %w", err)
	}
	item.MediaURL = url

	_, err = s.PG.Exec(`
		INSERT INTO gallery_items (id, event_id, album, caption, media_url, media_type, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, nullIfEmpty(item.EventID), item.Album, item.Caption, item.MediaURL,
		item.MediaType, item.UploadedBy, item.CreatedAt)
	if err != nil {
		return item, fmt.Errorf("failed to record gallery item: %w", err)
	}

	return item, nil
}

// List filters by album and/or event. Empty filters return everything,
// newest first.
func (s *GalleryService) List(album, eventID string, limit, offset int) ([]db.GalleryItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 60
	}
	if offset < 0 {
		offset = 0
	}

	conds := []string{}
	args := []interface{}{}
	i := 1
	if album != "" {
		conds = append(conds, fmt.Sprintf("album = $%d", i))
		args = append(args, album)
		i++
	}
	if eventID != "" {
		conds = append(conds, fmt.Sprintf("event_id = $%d", i))
		args = append(args, eventID)
		i++
	}

	query := `
		SELECT id, COALESCE(event_id::text, ''), COALESCE(album, ''), COALESCE(caption, ''),
			   media_url, media_type, COALESCE(uploaded_by, ''), created_at
		FROM gallery_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery: %w", err)
	}
	defer rows.Close()

	items := []db.GalleryItem{}
	for rows.Next() {
		var g db.GalleryItem
		if err := rows.Scan(&g.ID, &g.EventID, &g.Album, &g.Caption, &g.MediaURL,
			&g.MediaType, &g.UploadedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gallery item: %w", err)
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

// Albums returns the distinct album names for the public gallery index.
func (s *GalleryService) Albums() ([]string, error) {
	rows, err := s.PG.Query(`
		SELECT DISTINCT album FROM gallery_items WHERE album IS NOT NULL AND album != '' ORDER BY album
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	albums := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// Remove deletes the record and best-effort removes the stored object.
func (s *GalleryService) Remove(ctx context.Context, id string) error {
	var mediaURL string
	err := s.PG.QueryRow(`DELETE FROM gallery_items WHERE id = $1 RETURNING media_url`, id).Scan(&mediaURL)
	if err == sql.ErrNoRows {
		return fmt.Errorf("gallery item not found")
	}
	if err != nil {
		return fmt.Errorf("failed to remove gallery item: %w", err)
	}

	if objectPath := s.Storage.ObjectPathFromURL(s.Bucket, mediaURL); objectPath != "" {
		if err := s.Storage.Delete(ctx, s.Bucket, objectPath); err != nil {
			log.Printf("Gallery: failed to delete object %s: %v", objectPath, err)
		}
	}
	return nil
}

func mediaTypeOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return ""
	}
}

func safeMediaExt(filename string) string {
	ext := strings.ToLower(strings.TrimSpace(filenameExt(filename)))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif", ".mp4", ".webm":
		return ext
	default:
		return ""
	}
}

func filenameExt(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}

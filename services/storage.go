package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StorageService uploads files to Supabase Storage buckets over its REST
// API. Writes use the service role key; reads go through public bucket URLs.
type StorageService struct {
	BaseURL    string // e.g. https://xyz.supabase.co
	ServiceKey string
	HTTPClient *http.Client
}

// FileUpload carries an incoming multipart file through the service layer.
type FileUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

func NewStorageService(baseURL, serviceKey string) *StorageService {
	return &StorageService{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stores the object and returns its public URL. Existing objects at
// the same path are overwritten.
func (s *StorageService) Upload(ctx context.Context, bucket, objectPath string, body io.Reader, contentType string) (string, error) {
	if s.BaseURL == "" || s.ServiceKey == "" {
		return "", fmt.Errorf("storage not configured")
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, bucket, encodePath(objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("apikey", s.ServiceKey)
	req.Header.Set("x-upsert", "true")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("storage upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return s.PublicURL(bucket, objectPath), nil
}

// Delete removes an object. Missing objects are not an error.
func (s *StorageService) Delete(ctx context.Context, bucket, objectPath string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, bucket, encodePath(objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("apikey", s.ServiceKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Printf("Storage: delete of missing object %s/%s", bucket, objectPath)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storage delete failed: status %d", resp.StatusCode)
	}
	return nil
}

// PublicURL returns the unauthenticated read URL for an object in a
// public bucket.
func (s *StorageService) PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.BaseURL, bucket, encodePath(objectPath))
}

// ObjectPathFromURL recovers the bucket-relative path from a public URL
// produced by PublicURL. Returns empty when the URL is foreign.
func (s *StorageService) ObjectPathFromURL(bucket, publicURL string) string {
	prefix := fmt.Sprintf("%s/storage/v1/object/public/%s/", s.BaseURL, bucket)
	if !strings.HasPrefix(publicURL, prefix) {
		return ""
	}
	path, err := url.PathUnescape(strings.TrimPrefix(publicURL, prefix))
	if err != nil {
		return ""
	}
	return path
}

func encodePath(objectPath string) string {
	parts := strings.Split(objectPath, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

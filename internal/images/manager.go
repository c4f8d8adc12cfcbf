// Package images stores item photos behind an opaque reference and releases them with their items.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/pkg/uid"
)

// Backend persists image bytes. Owned reports whether deleting an item must delete its image;
// externally-owned backends are released best-effort.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ref string, err error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
	Owned() bool
}

// Config controls validation and processing of uploads.
type Config struct {
	AcceptedTypes []string
	Normalize     bool
	MaxDimension  int
	Timeout       time.Duration
}

// Manager validates uploads and maps them to references in a Backend.
type Manager struct {
	backend  Backend
	accepted map[string]bool
	cfg      Config
	logger   *slog.Logger
}

// NewManager creates a manager over backend.
func NewManager(backend Backend, cfg Config, logger *slog.Logger) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}

	accepted := make(map[string]bool, len(cfg.AcceptedTypes))
	for _, t := range cfg.AcceptedTypes {
		accepted[strings.ToLower(strings.TrimSpace(t))] = true
	}

	return &Manager{
		backend:  backend,
		accepted: accepted,
		cfg:      cfg,
		logger:   logger.With("component", "images"),
	}
}

// Store validates data and writes it to the backend, returning its reference.
// The declared content type and the sniffed one must both be accepted.
func (m *Manager) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", model.ErrInvalidMediaType)
	}

	declared := baseMediaType(contentType)
	if declared != "" && declared != "application/octet-stream" && !m.accepted[declared] {
		return "", fmt.Errorf("%w: %s is not an accepted image type", model.ErrInvalidMediaType, declared)
	}

	sniffed := http.DetectContentType(data)
	if !m.accepted[sniffed] {
		return "", fmt.Errorf("%w: content is %s", model.ErrInvalidMediaType, sniffed)
	}

	body, outType := data, sniffed
	if m.cfg.Normalize {
		processed, err := Normalize(data, m.cfg.MaxDimension)
		if err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrInvalidMediaType, err)
		}
		body, outType = processed, "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	ref, err := m.backend.Put(ctx, uid.New()+extension(outType), body, outType)
	if err != nil {
		return "", model.StorageError("store image", err)
	}
	return ref, nil
}

// Release deletes the image behind ref. A missing image is not an error.
// For externally-owned backends failures are logged and swallowed.
func (m *Manager) Release(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.backend.Delete(ctx, ref)
	if err == nil {
		return nil
	}
	if !m.backend.Owned() {
		m.logger.WarnContext(ctx, "best-effort image release failed", "ref", ref, "error", err)
		return nil
	}
	return model.StorageError("release image", err)
}

// Resolve maps ref to a URL a browser can load.
func (m *Manager) Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	return m.backend.URL(ref)
}

// Owned reports whether the manager owns the lifecycle of stored images.
func (m *Manager) Owned() bool {
	return m.backend.Owned()
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// URLPrefix is the path local images are served under.
const URLPrefix = "/uploads/"

// LocalBackend keeps images on the local filesystem. It owns the files it writes.
type LocalBackend struct {
	dir           string
	publicBaseURL string
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates dir if needed. When publicBaseURL is set, URLs are absolute
// so a frontend on another origin can load them.
func NewLocalBackend(dir, publicBaseURL string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalBackend{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Dir is the directory images are written to.
func (b *LocalBackend) Dir() string {
	return b.dir
}

// Put writes data via a temp file, fsync and atomic rename.
func (b *LocalBackend) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath := filepath.Join(b.dir, key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("fsync image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename image: %w", err)
	}

	return URLPrefix + key, nil
}

// Delete removes the file behind ref. A file that is already gone is not an error.
func (b *LocalBackend) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := b.fileName(ref)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(b.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image %s: %w", name, err)
	}
	return nil
}

// URL returns ref as served by this process, absolute when a public base URL is configured.
func (b *LocalBackend) URL(ref string) string {
	if b.publicBaseURL == "" {
		return ref
	}
	return b.publicBaseURL + ref
}

// Owned is true: local files die with their items.
func (b *LocalBackend) Owned() bool {
	return true
}

// fileName extracts the bare file name from ref and refuses anything that could leave dir.
func (b *LocalBackend) fileName(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("not a local image reference: %q", ref)
	}
	return name, nil
}

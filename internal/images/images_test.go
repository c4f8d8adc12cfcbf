package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lostfound-rest-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{100, 50, 800, 100, 50},
		{1600, 400, 800, 800, 200},
		{400, 1600, 800, 200, 800},
		{5000, 1, 800, 800, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestNormalize(t *testing.T) {
	out, err := Normalize(pngBytes(t, 1600, 400), 800)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", http.DetectContentType(out))

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	_, err = Normalize([]byte("definitely not an image"), 800)
	assert.Error(t, err)
}

func newLocalManager(t *testing.T, cfg Config) (*Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	backend, err := NewLocalBackend(dir, "")
	require.NoError(t, err)
	if cfg.AcceptedTypes == nil {
		cfg.AcceptedTypes = defaultTypes
	}
	return NewManager(backend, cfg, discard()), dir
}

func TestManager_StoreAndRelease(t *testing.T) {
	m, dir := newLocalManager(t, Config{Normalize: true})
	ctx := context.Background()

	ref, err := m.Store(ctx, pngBytes(t, 20, 10), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, URLPrefix))
	assert.True(t, strings.HasSuffix(ref, ".jpg"), "normalized images are stored as JPEG")
	assert.Equal(t, ref, m.Resolve(ref))
	assert.True(t, m.Owned())

	path := filepath.Join(dir, strings.TrimPrefix(ref, URLPrefix))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", http.DetectContentType(data))

	require.NoError(t, m.Release(ctx, ref))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.Release(ctx, ref), "releasing a missing image succeeds")
	assert.NoError(t, m.Release(ctx, ""))
}

func TestManager_StoreWithoutNormalize(t *testing.T) {
	m, dir := newLocalManager(t, Config{Normalize: false})
	raw := pngBytes(t, 4, 4)

	ref, err := m.Store(context.Background(), raw, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(ref, URLPrefix)))
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestManager_RejectsNonImages(t *testing.T) {
	m, dir := newLocalManager(t, Config{AcceptedTypes: []string{"image/jpeg"}})
	ctx := context.Background()

	tests := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{"empty", nil, "image/png"},
		{"text body", []byte("hello, world"), "image/jpeg"},
		{"declared type not accepted", pngBytes(t, 2, 2), "text/plain"},
		{"sniffed type not accepted", pngBytes(t, 2, 2), "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Store(ctx, tt.data, tt.contentType)
			assert.ErrorIs(t, err, model.ErrInvalidMediaType)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not leave files behind")
}

func TestManager_ResolveWithPublicBaseURL(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "https://api.example.edu/")
	require.NoError(t, err)
	m := NewManager(backend, Config{AcceptedTypes: defaultTypes}, discard())

	assert.Equal(t, "https://api.example.edu/uploads/a.jpg", m.Resolve("/uploads/a.jpg"))
	assert.Empty(t, m.Resolve(""))
}

type fakeBackend struct {
	owned     bool
	putErr    error
	deleteErr error
	deleted   []string
}

func (f *fakeBackend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	return "fake://" + key, nil
}

func (f *fakeBackend) Delete(ctx context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	return f.deleteErr
}

func (f *fakeBackend) URL(ref string) string { return ref }
func (f *fakeBackend) Owned() bool           { return f.owned }

func TestManager_BackendFailures(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")

	m := NewManager(&fakeBackend{owned: true, putErr: diskFull}, Config{AcceptedTypes: defaultTypes}, discard())
	_, err := m.Store(ctx, pngBytes(t, 2, 2), "image/png")
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.ErrorIs(t, err, diskFull)

	owned := NewManager(&fakeBackend{owned: true, deleteErr: diskFull}, Config{AcceptedTypes: defaultTypes}, discard())
	assert.ErrorIs(t, owned.Release(ctx, "fake://x"), model.ErrStorage)

	external := &fakeBackend{owned: false, deleteErr: diskFull}
	best := NewManager(external, Config{AcceptedTypes: defaultTypes}, discard())
	assert.NoError(t, best.Release(ctx, "fake://x"), "external releases are best-effort")
	assert.Equal(t, []string{"fake://x"}, external.deleted)
}

func TestLocalBackend_RefusesForeignReferences(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	for _, ref := range []string{"/uploads/../secret", "/uploads/a/b.jpg", "/uploads/", "/etc/passwd", "https://x/y.jpg"} {
		assert.Error(t, backend.Delete(ctx, ref), ref)
	}
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/internal/repository"
	"lostfound-rest-api/pkg/uid"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRepo(t *testing.T) *repository.SQLItemRepository {
	t.Helper()
	repo, err := repository.NewSQLiteItemRepository(context.Background(), filepath.Join(t.TempDir(), "items.db"), discard())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// fakeImages records stored and released references in memory.
type fakeImages struct {
	mu         sync.Mutex
	stored     map[string]bool
	released   []string
	storeErr   error
	releaseErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{stored: map[string]bool{}}
}

func (f *fakeImages) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := "/uploads/" + uid.New() + ".jpg"
	f.stored[ref] = true
	return ref, nil
}

func (f *fakeImages) Release(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, ref)
	if f.releaseErr != nil {
		return f.releaseErr
	}
	delete(f.stored, ref)
	return nil
}

func (f *fakeImages) Resolve(ref string) string { return "http://cdn.test" + ref }

func (f *fakeImages) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func (f *fakeImages) releasedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

// faultyRepo injects failures into an otherwise real repository.
type faultyRepo struct {
	repository.ItemRepository
	createErr  error
	listErr    error
	deleteErrs map[string]error
}

func (r *faultyRepo) Create(ctx context.Context, item *model.Item) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.ItemRepository.Create(ctx, item)
}

func (r *faultyRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Item, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.ItemRepository.ListExpired(ctx, cutoff, limit)
}

func (r *faultyRepo) DeleteExpired(ctx context.Context, id string, cutoff time.Time) (*model.Item, error) {
	if err := r.deleteErrs[id]; err != nil {
		return nil, err
	}
	return r.ItemRepository.DeleteExpired(ctx, id, cutoff)
}

func storedItem(t *testing.T, repo repository.ItemRepository, name string, createdAt time.Time) *model.Item {
	t.Helper()
	item := &model.Item{
		ID:          uid.New(),
		Name:        name,
		Location:    "Library",
		Department:  "Engineering",
		FounderName: "Alice",
		ImageRef:    "/uploads/" + uid.New() + ".jpg",
		Category:    model.CategoryOther,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

var errBoom = errors.New("boom")

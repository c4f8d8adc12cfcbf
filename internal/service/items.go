package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"lostfound-rest-api/internal/cache"
	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/internal/repository"
	"lostfound-rest-api/pkg/uid"
)

const (
	statsCacheKey = "items:stats:overview"
	topLocations  = 5
)

// ImageStore is the part of the image manager the item service needs.
type ImageStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	Release(ctx context.Context, ref string) error
	Resolve(ref string) string
}

// Upload is an image submitted with a new item.
type Upload struct {
	Data        []byte
	ContentType string
}

// ItemServiceConfig holds item lifecycle settings.
type ItemServiceConfig struct {
	Retention     time.Duration
	ExpiryWarning time.Duration
	Policy        model.Policy
	StatsTTL      time.Duration
}

// ItemService is the item store used by the HTTP layer: validation, ids, timestamps,
// image lifecycle and stats caching on top of an ItemRepository.
type ItemService struct {
	repo   repository.ItemRepository
	images ImageStore
	cache  cache.Cache
	cfg    ItemServiceConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewItemService creates a new item service. c may be nil to disable stats caching.
func NewItemService(repo repository.ItemRepository, images ImageStore, c cache.Cache, cfg ItemServiceConfig, logger *slog.Logger) *ItemService {
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 30 * time.Second
	}
	return &ItemService{
		repo:   repo,
		images: images,
		cache:  c,
		cfg:    cfg,
		logger: logger.With("component", "items"),
		now:    clock,
	}
}

// clock returns the current time at the precision every backend stores.
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Create validates in, stores the image and inserts the item.
// The image is released again if the insert fails.
func (s *ItemService) Create(ctx context.Context, in model.NewItemInput, upload Upload) (*model.Item, error) {
	in.Normalize()
	category, err := in.Validate(s.cfg.Policy)
	if err != nil {
		return nil, err
	}
	if len(upload.Data) == 0 {
		return nil, model.NewValidationError("image", "image is required")
	}

	ref, err := s.images.Store(ctx, upload.Data, upload.ContentType)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &model.Item{
		ID:          uid.New(),
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		Department:  in.Department,
		FounderName: in.FounderName,
		ContactInfo: in.ContactInfo,
		ImageRef:    ref,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		if relErr := s.images.Release(context.WithoutCancel(ctx), ref); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release image of unsaved item", "ref", ref, "error", relErr)
		}
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "item created", "item_id", item.ID, "category", item.Category)
	return item, nil
}

// Get returns the item with id.
func (s *ItemService) Get(ctx context.Context, id string) (*model.Item, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of items matching q.
func (s *ItemService) List(ctx context.Context, q model.ItemQuery) (*model.Page, error) {
	q = q.WithDefaults()

	items, total, err := s.repo.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}

	return &model.Page{
		Items:      items,
		Pagination: model.NewPagination(q.Page, q.Limit, total),
	}, nil
}

// Update applies patch to an unclaimed item.
func (s *ItemService) Update(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	patch.Normalize()
	if err := patch.Validate(s.cfg.Policy); err != nil {
		return nil, err
	}

	item, err := s.repo.UpdateUnclaimed(ctx, id, patch, s.now())
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	return item, nil
}

// Claim hands an unclaimed item to claimant. Exactly one of several concurrent claims succeeds.
func (s *ItemService) Claim(ctx context.Context, id, claimant string) (*model.Item, error) {
	name, err := model.ValidateClaimant(claimant)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.MarkClaimed(ctx, id, name, s.now())
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "item claimed", "item_id", item.ID)
	return item, nil
}

// Delete removes an item regardless of its state, then releases its image.
// A failed image release is logged and does not fail the delete.
func (s *ItemService) Delete(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.images.Release(context.WithoutCancel(ctx), item.ImageRef); err != nil {
		s.logger.ErrorContext(ctx, "failed to release image of deleted item",
			"item_id", item.ID, "ref", item.ImageRef, "error", err)
	}

	s.invalidateStats(ctx)
	s.logger.InfoContext(ctx, "item deleted", "item_id", item.ID, "claimed", item.Claimed)
	return item, nil
}

// Stats returns the overview counts, served from cache when one is configured.
func (s *ItemService) Stats(ctx context.Context) (*model.ItemStats, error) {
	if s.cache == nil {
		return s.computeStats(ctx)
	}

	// A computation racing an invalidation may write back stale counts; they live at most StatsTTL.
	raw, err := s.cache.GetOrSet(ctx, statsCacheKey, s.cfg.StatsTTL, func() ([]byte, error) {
		stats, err := s.computeStats(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return nil, err
	}

	var stats model.ItemStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return s.computeStats(ctx)
	}
	return &stats, nil
}

func (s *ItemService) computeStats(ctx context.Context) (*model.ItemStats, error) {
	stats, err := s.repo.Stats(ctx, topLocations)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.cfg.Retention)
	expiring, err := s.repo.CountExpiring(ctx, cutoff, cutoff.Add(s.cfg.ExpiryWarning))
	if err != nil {
		return nil, err
	}
	stats.ExpiringSoon = expiring

	if stats.Categories == nil {
		stats.Categories = []model.CategoryCount{}
	}
	if stats.TopLocations == nil {
		stats.TopLocations = []model.LocationCount{}
	}
	return stats, nil
}

// InvalidateStats drops the cached overview.
func (s *ItemService) InvalidateStats(ctx context.Context) {
	s.invalidateStats(ctx)
}

func (s *ItemService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate stats cache", "error", err)
	}
}

// ExpiresAt reports when item becomes eligible for automatic removal.
func (s *ItemService) ExpiresAt(item *model.Item) (time.Time, bool) {
	return item.ExpiresAt(s.cfg.Retention)
}

// ImageURL resolves the item's image reference to a loadable URL.
func (s *ItemService) ImageURL(item *model.Item) string {
	return s.images.Resolve(item.ImageRef)
}

// Ping checks the item store.
func (s *ItemService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

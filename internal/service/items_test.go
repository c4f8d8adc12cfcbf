package service

import (
	"context"
	"testing"
	"time"

	"lostfound-rest-api/internal/cache"
	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/pkg/uid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItemService(t *testing.T, repo *faultyRepo, images *fakeImages, c cache.Cache) *ItemService {
	t.Helper()
	svc := NewItemService(repo, images, c, ItemServiceConfig{
		Retention:     72 * time.Hour,
		ExpiryWarning: time.Hour,
	}, discard())
	svc.now = func() time.Time { return now }
	return svc
}

func validInput() model.NewItemInput {
	return model.NewItemInput{
		Name:        "  Blue Wallet ",
		Description: "leather",
		Location:    "Library",
		Department:  "Engineering",
		FounderName: "Alice",
		Category:    "wallet",
	}
}

var jpegUpload = Upload{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"}

func TestItemService_Create(t *testing.T) {
	images := newFakeImages()
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, images, nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, validInput(), jpegUpload)
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Blue Wallet", item.Name)
	assert.Equal(t, model.CategoryWallet, item.Category)
	assert.False(t, item.Claimed)
	assert.True(t, item.CreatedAt.Equal(now))
	assert.Equal(t, 1, images.live())
	assert.Equal(t, "http://cdn.test"+item.ImageRef, svc.ImageURL(item))

	expires, ok := svc.ExpiresAt(item)
	require.True(t, ok)
	assert.True(t, expires.Equal(now.Add(72*time.Hour)))

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
}

func TestItemService_CreateRejectsInvalidInput(t *testing.T) {
	images := newFakeImages()
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, images, nil)
	ctx := context.Background()

	in := validInput()
	in.Name = "   "
	in.Category = "spaceship"
	_, err := svc.Create(ctx, in, jpegUpload)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	_, err = svc.Create(ctx, validInput(), Upload{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "image", verr.Fields[0].Field)

	assert.Zero(t, images.live(), "no image is stored for rejected input")
}

func TestItemService_CreateReleasesImageWhenInsertFails(t *testing.T) {
	images := newFakeImages()
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t), createErr: errBoom}, images, nil)

	_, err := svc.Create(context.Background(), validInput(), jpegUpload)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, images.live())
	assert.Len(t, images.releasedRefs(), 1)
}

func TestItemService_CreatePropagatesImageErrors(t *testing.T) {
	images := newFakeImages()
	images.storeErr = model.ErrInvalidMediaType
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, images, nil)

	_, err := svc.Create(context.Background(), validInput(), jpegUpload)
	assert.ErrorIs(t, err, model.ErrInvalidMediaType)
}

func TestItemService_ClaimLifecycle(t *testing.T) {
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, newFakeImages(), nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, validInput(), jpegUpload)
	require.NoError(t, err)

	_, err = svc.Claim(ctx, item.ID, "   ")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	name := "Wallet (green)"
	updated, err := svc.Update(ctx, item.ID, model.ItemPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	claimed, err := svc.Claim(ctx, item.ID, " Bob ")
	require.NoError(t, err)
	assert.True(t, claimed.Claimed)
	assert.Equal(t, "Bob", claimed.ClaimedBy)
	require.NotNil(t, claimed.ClaimedAt)
	assert.True(t, claimed.ClaimedAt.Equal(now))

	_, err = svc.Claim(ctx, item.ID, "Carol")
	assert.ErrorIs(t, err, model.ErrAlreadyClaimed)

	other := "Something else"
	_, err = svc.Update(ctx, item.ID, model.ItemPatch{Name: &other})
	assert.ErrorIs(t, err, model.ErrClaimedImmutable)

	stored, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", stored.ClaimedBy, "the first claim is kept")
	assert.True(t, stored.ClaimedAt.Equal(*claimed.ClaimedAt))
	assert.Equal(t, name, stored.Name, "a rejected update changes nothing")

	_, ok := svc.ExpiresAt(claimed)
	assert.False(t, ok, "claimed items never expire")

	_, err = svc.Claim(ctx, uid.New(), "Bob")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestItemService_UpdateRejectsEmptyPatch(t *testing.T) {
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, newFakeImages(), nil)

	_, err := svc.Update(context.Background(), uid.New(), model.ItemPatch{})
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestItemService_DeleteSurvivesImageFailure(t *testing.T) {
	images := newFakeImages()
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, images, nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, validInput(), jpegUpload)
	require.NoError(t, err)
	_, err = svc.Claim(ctx, item.ID, "Bob")
	require.NoError(t, err)

	images.releaseErr = errBoom
	removed, err := svc.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, removed.Claimed, "claimed items can be deleted")
	assert.Equal(t, []string{item.ImageRef}, images.releasedRefs())

	_, err = svc.Get(ctx, item.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Delete(ctx, item.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestItemService_List(t *testing.T) {
	svc := newItemService(t, &faultyRepo{ItemRepository: newRepo(t)}, newFakeImages(), nil)
	ctx := context.Background()

	page, err := svc.List(ctx, model.ItemQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, model.DefaultLimit, page.Pagination.Limit)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, validInput(), jpegUpload)
		require.NoError(t, err)
	}

	page, err = svc.List(ctx, model.ItemQuery{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestItemService_StatsAreCachedUntilAWrite(t *testing.T) {
	repo := newRepo(t)
	svc := newItemService(t, &faultyRepo{ItemRepository: repo}, newFakeImages(), cache.NewMemoryCache(16, time.Hour))
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput(), jpegUpload)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)

	// Written behind the service's back: the cached overview is still served.
	storedItem(t, repo, "Umbrella", now.Add(-71*time.Hour-30*time.Minute))
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)

	svc.InvalidateStats(ctx)
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.Unclaimed)
	assert.EqualValues(t, 1, stats.ExpiringSoon)
	assert.NotNil(t, stats.TopLocations)
}

func TestItemService_StatsWithoutCache(t *testing.T) {
	repo := newRepo(t)
	svc := newItemService(t, &faultyRepo{ItemRepository: repo}, newFakeImages(), nil)
	ctx := context.Background()

	storedItem(t, repo, "fresh", now.Add(-time.Hour))
	storedItem(t, repo, "expiring", now.Add(-72*time.Hour+time.Minute))
	storedItem(t, repo, "overdue", now.Add(-73*time.Hour))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 1, stats.ExpiringSoon)
	require.NoError(t, svc.Ping(ctx))
}

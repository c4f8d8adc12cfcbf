package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"lostfound-rest-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSweeper(repo *faultyRepo, images *fakeImages, cfg SweeperConfig) *Sweeper {
	if cfg.Retention == 0 {
		cfg.Retention = 72 * time.Hour
	}
	s := NewSweeper(repo, images, cfg, discard())
	s.now = func() time.Time { return now }
	return s
}

type fakeLease struct {
	busy     bool
	err      error
	released atomic.Int32
}

func (l *fakeLease) Acquire(ctx context.Context) (func(context.Context), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.busy {
		return nil, false, nil
	}
	return func(context.Context) { l.released.Add(1) }, true, nil
}

func TestSweeper_RemovesOnlyExpiredUnclaimedItems(t *testing.T) {
	repo := newRepo(t)
	images := newFakeImages()
	ctx := context.Background()

	atCutoff := storedItem(t, repo, "at cutoff", now.Add(-72*time.Hour))
	old := storedItem(t, repo, "old", now.Add(-100*time.Hour))
	justInside := storedItem(t, repo, "just inside", now.Add(-72*time.Hour+time.Millisecond))
	claimed := storedItem(t, repo, "claimed", now.Add(-200*time.Hour))
	_, err := repo.MarkClaimed(ctx, claimed.ID, "Bob", now.Add(-150*time.Hour))
	require.NoError(t, err)
	soon := storedItem(t, repo, "soon", now.Add(-71*time.Hour-30*time.Minute))

	var notified atomic.Int32
	sw := newTestSweeper(&faultyRepo{ItemRepository: repo}, images, SweeperConfig{
		OnRemoved: func(context.Context) { notified.Add(1) },
	})

	result, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.Zero(t, result.Failed)
	assert.EqualValues(t, 2, result.ExpiringSoon, "items expiring before the next sweep are counted")
	assert.EqualValues(t, 1, notified.Load())
	assert.ElementsMatch(t, []string{atCutoff.ImageRef, old.ImageRef}, images.releasedRefs())

	for _, gone := range []string{atCutoff.ID, old.ID} {
		_, err := repo.GetByID(ctx, gone)
		assert.ErrorIs(t, err, model.ErrNotFound)
	}
	for _, kept := range []string{justInside.ID, claimed.ID, soon.ID} {
		_, err := repo.GetByID(ctx, kept)
		assert.NoError(t, err)
	}

	result, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Removed)
	assert.EqualValues(t, 1, notified.Load(), "empty sweeps do not notify")
}

func TestSweeper_WorksThroughSeveralBatches(t *testing.T) {
	repo := newRepo(t)
	for i := 0; i < 7; i++ {
		storedItem(t, repo, "old", now.Add(-80*time.Hour-time.Duration(i)*time.Minute))
	}

	sw := newTestSweeper(&faultyRepo{ItemRepository: repo}, newFakeImages(), SweeperConfig{BatchSize: 2, Concurrency: 2})
	result, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, result.Removed)
	assert.Equal(t, 7, result.Scanned)
}

func TestSweeper_IsolatesPerItemFailures(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	broken := storedItem(t, repo, "broken", now.Add(-90*time.Hour))
	fine := storedItem(t, repo, "fine", now.Add(-80*time.Hour))

	images := newFakeImages()
	sw := newTestSweeper(&faultyRepo{
		ItemRepository: repo,
		deleteErrs:     map[string]error{broken.ID: errBoom},
	}, images, SweeperConfig{})

	result, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Removed)

	_, err = repo.GetByID(ctx, broken.ID)
	assert.NoError(t, err, "a failed item stays for the next sweep")
	_, err = repo.GetByID(ctx, fine.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSweeper_CountsImageFailuresAsRemoved(t *testing.T) {
	repo := newRepo(t)
	item := storedItem(t, repo, "old", now.Add(-80*time.Hour))

	images := newFakeImages()
	images.releaseErr = errBoom
	sw := newTestSweeper(&faultyRepo{ItemRepository: repo}, images, SweeperConfig{})

	result, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.ImageFailures)

	_, err = repo.GetByID(context.Background(), item.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSweeper_ListFailureAbortsSweep(t *testing.T) {
	sw := newTestSweeper(&faultyRepo{ItemRepository: newRepo(t), listErr: errBoom}, newFakeImages(), SweeperConfig{})

	_, err := sw.RunOnce(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestSweeper_Lease(t *testing.T) {
	repo := newRepo(t)
	item := storedItem(t, repo, "old", now.Add(-80*time.Hour))
	ctx := context.Background()

	busy := &fakeLease{busy: true}
	sw := newTestSweeper(&faultyRepo{ItemRepository: repo}, newFakeImages(), SweeperConfig{Lease: busy})
	result, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, result.LeaseBusy)
	_, err = repo.GetByID(ctx, item.ID)
	assert.NoError(t, err, "nothing is removed without the lease")

	free := &fakeLease{}
	sw = newTestSweeper(&faultyRepo{ItemRepository: repo}, newFakeImages(), SweeperConfig{Lease: free})
	result, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.EqualValues(t, 1, free.released.Load())
}

func TestSweeper_SweepsWhenLeaseStoreFails(t *testing.T) {
	repo := newRepo(t)
	item := storedItem(t, repo, "old", now.Add(-80*time.Hour))
	ctx := context.Background()

	broken := &fakeLease{err: errBoom}
	sw := newTestSweeper(&faultyRepo{ItemRepository: repo}, newFakeImages(), SweeperConfig{Lease: broken})
	result, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, result.LeaseBusy)
	assert.Equal(t, 1, result.Removed)

	_, err = repo.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSweeper_StartSweepsImmediatelyAndStops(t *testing.T) {
	repo := newRepo(t)
	item := storedItem(t, repo, "old", now.Add(-80*time.Hour))

	sw := newTestSweeper(&faultyRepo{ItemRepository: repo}, newFakeImages(), SweeperConfig{Interval: time.Hour})
	sw.Start(context.Background())

	require.Eventually(t, func() bool {
		_, err := repo.GetByID(context.Background(), item.ID)
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sw.Stop()
		sw.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

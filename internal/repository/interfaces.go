package repository

import (
	"context"
	"time"

	"lostfound-rest-api/internal/model"
)

// ItemRepository defines item data access methods.
//
// Implementations must settle same-item races with conditional writes at the
// storage layer; none of them may hold a lock across the whole collection.
type ItemRepository interface {
	// Create inserts a new item.
	Create(ctx context.Context, item *model.Item) error

	// GetByID returns model.ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*model.Item, error)

	// UpdateUnclaimed applies patch only while the item is unclaimed.
	// Returns model.ErrClaimedImmutable for claimed items.
	UpdateUnclaimed(ctx context.Context, id string, patch model.ItemPatch, updatedAt time.Time) (*model.Item, error)

	// MarkClaimed atomically moves an unclaimed item to claimed.
	// Returns model.ErrAlreadyClaimed when another claim won.
	MarkClaimed(ctx context.Context, id, claimant string, at time.Time) (*model.Item, error)

	// Delete removes the item unconditionally and returns what was removed.
	Delete(ctx context.Context, id string) (*model.Item, error)

	// DeleteExpired removes the item only if it is still unclaimed and was created at or before cutoff.
	// Returns model.ErrNotFound when the item is gone or no longer eligible.
	DeleteExpired(ctx context.Context, id string, cutoff time.Time) (*model.Item, error)

	// ListExpired returns up to limit unclaimed items created at or before cutoff, oldest first.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Item, error)

	// CountExpiring counts unclaimed items created in (after, until].
	CountExpiring(ctx context.Context, after, until time.Time) (int64, error)

	// Query returns one page of matching items and the total number of matches.
	Query(ctx context.Context, q model.ItemQuery) ([]model.Item, int64, error)

	// Stats returns aggregate counts; ExpiringSoon is left for the caller.
	Stats(ctx context.Context, topLocations int) (*model.ItemStats, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"lostfound-rest-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBItemRepository implements ItemRepository using MongoDB.
// Claim and expiry races are settled by FindOneAndUpdate / FindOneAndDelete filters on "claimed".
type MongoDBItemRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

var _ ItemRepository = (*MongoDBItemRepository)(nil)

// NewMongoDBItemRepository connects to MongoDB and ensures the item indexes exist.
func NewMongoDBItemRepository(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoDBItemRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger = logger.With("component", "mongodb")
	coll := client.Database(database).Collection(collection)

	// No TTL index: expiry goes through the sweeper so images are released with their records.
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: 1}}},
		{Keys: bson.D{{Key: "claimed", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		logger.Warn("failed to create indexes", "error", err)
	}

	logger.Info("item repository initialized", "database", database, "collection", collection)
	return &MongoDBItemRepository{
		client:     client,
		collection: coll,
		logger:     logger,
	}, nil
}

// Create inserts a new item.
func (r *MongoDBItemRepository) Create(ctx context.Context, item *model.Item) error {
	if _, err := r.collection.InsertOne(ctx, item); err != nil {
		return model.StorageError("insert item", err)
	}
	return nil
}

// GetByID returns the item with the given id.
func (r *MongoDBItemRepository) GetByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, model.StorageError("get item", err)
	}
	return &item, nil
}

// UpdateUnclaimed applies patch only while the document is unclaimed.
func (r *MongoDBItemRepository) UpdateUnclaimed(ctx context.Context, id string, patch model.ItemPatch, updatedAt time.Time) (*model.Item, error) {
	set := patchDocument(patch)
	set["updatedAt"] = updatedAt

	return r.conditionalUpdate(ctx, id, bson.M{"$set": set}, model.ErrClaimedImmutable, "update item")
}

// MarkClaimed sets the claim fields only if the document is still unclaimed.
func (r *MongoDBItemRepository) MarkClaimed(ctx context.Context, id, claimant string, at time.Time) (*model.Item, error) {
	update := bson.M{"$set": bson.M{
		"claimed":   true,
		"claimedBy": claimant,
		"claimedAt": at,
		"updatedAt": at,
	}}
	return r.conditionalUpdate(ctx, id, update, model.ErrAlreadyClaimed, "claim item")
}

func (r *MongoDBItemRepository) conditionalUpdate(ctx context.Context, id string, update bson.M, conflict error, op string) (*model.Item, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var item model.Item
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "claimed": false}, update, opts).Decode(&item)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.StorageError(op, err)
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, model.StorageError(op, err)
	}
	if n == 0 {
		return nil, model.ErrNotFound
	}
	return nil, conflict
}

// Delete removes the item regardless of its state.
func (r *MongoDBItemRepository) Delete(ctx context.Context, id string) (*model.Item, error) {
	return r.findOneAndDelete(ctx, bson.M{"_id": id}, "delete item")
}

// DeleteExpired removes the item only while it is unclaimed and old enough.
func (r *MongoDBItemRepository) DeleteExpired(ctx context.Context, id string, cutoff time.Time) (*model.Item, error) {
	filter := bson.M{
		"_id":       id,
		"claimed":   false,
		"createdAt": bson.M{"$lte": cutoff},
	}
	return r.findOneAndDelete(ctx, filter, "delete expired item")
}

func (r *MongoDBItemRepository) findOneAndDelete(ctx context.Context, filter bson.M, op string) (*model.Item, error) {
	var item model.Item
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, model.StorageError(op, err)
	}
	return &item, nil
}

// ListExpired returns unclaimed items created at or before cutoff, oldest first.
func (r *MongoDBItemRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Item, error) {
	filter := bson.M{"claimed": false, "createdAt": bson.M{"$lte": cutoff}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	return r.find(ctx, filter, opts, "list expired items")
}

// CountExpiring counts unclaimed items created in (after, until].
func (r *MongoDBItemRepository) CountExpiring(ctx context.Context, after, until time.Time) (int64, error) {
	filter := bson.M{"claimed": false, "createdAt": bson.M{"$gt": after, "$lte": until}}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, model.StorageError("count expiring items", err)
	}
	return n, nil
}

// Query returns one page of matching items and the total match count.
func (r *MongoDBItemRepository) Query(ctx context.Context, q model.ItemQuery) ([]model.Item, int64, error) {
	q = q.WithDefaults()
	filter := buildMongoFilter(q.Filter)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, model.StorageError("count items", err)
	}

	opts := options.Find().
		SetSort(buildMongoSort(q.SortBy, q.SortOrder)).
		SetSkip(q.Offset()).
		SetLimit(int64(q.Limit))

	items, err := r.find(ctx, filter, opts, "query items")
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *MongoDBItemRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, op string) ([]model.Item, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, model.StorageError(op, err)
	}
	defer cursor.Close(ctx)

	items := []model.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, model.StorageError(op, err)
	}
	return items, nil
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// Stats returns totals, the category distribution and the busiest locations.
func (r *MongoDBItemRepository) Stats(ctx context.Context, topLocations int) (*model.ItemStats, error) {
	stats := &model.ItemStats{
		Categories:   []model.CategoryCount{},
		TopLocations: []model.LocationCount{},
	}

	var err error
	if stats.Total, err = r.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, model.StorageError("count items", err)
	}
	if stats.Claimed, err = r.collection.CountDocuments(ctx, bson.M{"claimed": true}); err != nil {
		return nil, model.StorageError("count claimed items", err)
	}
	stats.Unclaimed = stats.Total - stats.Claimed

	categories, err := r.groupBy(ctx, "$category", 0)
	if err != nil {
		return nil, model.StorageError("count categories", err)
	}
	for _, g := range categories {
		stats.Categories = append(stats.Categories, model.CategoryCount{Category: model.Category(g.Key), Count: g.Count})
	}

	locations, err := r.groupBy(ctx, "$location", topLocations)
	if err != nil {
		return nil, model.StorageError("count locations", err)
	}
	for _, g := range locations {
		stats.TopLocations = append(stats.TopLocations, model.LocationCount{Location: g.Key, Count: g.Count})
	}

	return stats, nil
}

func (r *MongoDBItemRepository) groupBy(ctx context.Context, field string, limit int) ([]groupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: field}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []groupCount
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks the MongoDB connection.
func (r *MongoDBItemRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (r *MongoDBItemRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// buildMongoFilter mirrors buildItemWhere: exact category/claimed, case-insensitive substrings otherwise.
func buildMongoFilter(f model.ItemFilter) bson.M {
	filter := bson.M{}

	if f.Category != nil {
		filter["category"] = string(*f.Category)
	}
	if f.Claimed != nil {
		filter["claimed"] = *f.Claimed
	}
	if f.Location != nil {
		filter["location"] = containsRegex(*f.Location)
	}
	if f.Department != nil {
		filter["department"] = containsRegex(*f.Department)
	}
	if f.Search != nil {
		re := containsRegex(*f.Search)
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"description": re},
		}
	}
	return filter
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// buildMongoSort orders by a whitelisted field; document fields share the API's names.
func buildMongoSort(field model.SortField, order model.SortOrder) bson.D {
	if !field.Valid() {
		field = model.SortByCreatedAt
	}
	dir := -1
	if order == model.SortAsc {
		dir = 1
	}
	return bson.D{{Key: string(field), Value: dir}, {Key: "_id", Value: 1}}
}

func patchDocument(p model.ItemPatch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Department != nil {
		set["department"] = *p.Department
	}
	if p.FounderName != nil {
		set["founderName"] = *p.FounderName
	}
	if p.ContactInfo != nil {
		set["contactInfo"] = *p.ContactInfo
	}
	if p.Category != nil {
		set["category"] = string(*p.Category)
	}
	return set
}

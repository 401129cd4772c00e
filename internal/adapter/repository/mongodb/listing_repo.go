package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const (
	listingsCollection = "listings"
	countersCollection = "counters"
	listingsCounter    = "listings"
)

type ListingRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	logger     *logger.Logger
}

func NewListingRepository(db *mongo.Database, log *logger.Logger) *ListingRepository {
	return &ListingRepository{
		collection: db.Collection(listingsCollection),
		counters:   db.Collection(countersCollection),
		logger:     log,
	}
}

// nextID hands out the sequential integer ids the catalog exposes.
func (r *ListingRepository) nextID(ctx context.Context) (int64, error) {
	var c counterDocument
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": listingsCounter},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate listing id: %w", err)
	}
	return c.Seq, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	id, err := r.nextID(ctx)
	if err != nil {
		r.logger.Error("ListingRepository.Create: id allocation failed", "error", err.Error())
		return err
	}
	now := time.Now().UTC()
	listing.ID = id
	listing.CreatedAt = now
	listing.UpdatedAt = now

	doc, err := toListingDocument(listing)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("ListingRepository.Create: insert failed", "listing_id", id, "error", err.Error())
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	listing.Sync = domain.SyncConfirmed
	return nil
}

func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	listing.UpdatedAt = time.Now().UTC()
	doc, err := toListingDocument(listing)
	if err != nil {
		return err
	}
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": listing.ID}, doc)
	if err != nil {
		r.logger.Error("ListingRepository.Update: replace failed", "listing_id", listing.ID, "error", err.Error())
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("ListingRepository.Delete: delete failed", "listing_id", id, "error", err.Error())
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id int64) (*domain.Listing, error) {
	var doc listingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing %d: %w", id, err)
	}
	return toDomainListing(&doc)
}

// FindByQuery returns listings in id order. An empty or "All" category matches every
// listing.
func (r *ListingRepository) FindByQuery(ctx context.Context, query domain.ListQuery) ([]*domain.Listing, error) {
	cursor, err := r.collection.Find(ctx, queryFilter(query), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		r.logger.Error("ListingRepository.FindByQuery: find failed", "category", query.Category, "error", err.Error())
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return toDomainListings(docs)
}

func queryFilter(q domain.ListQuery) bson.M {
	filter := bson.M{}
	if q.Category != "" && !strings.EqualFold(q.Category, domain.AllCategories) {
		category := q.Category
		if canonical, ok := domain.CanonicalCategory(category); ok {
			category = canonical
		}
		filter["category"] = category
	}
	if q.SellerID != "" {
		filter["seller_id"] = q.SellerID
	}
	return filter
}

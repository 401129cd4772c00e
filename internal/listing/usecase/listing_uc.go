package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/metrics"
)

const notifyTimeout = 30 * time.Second

// Notifier tells a seller that their listing went live.
type Notifier interface {
	SendListingCreatedEmail(toEmail, listingName string) error
}

// Deps are the collaborators of ListingUsecase. Everything except Repo may be nil.
type Deps struct {
	Repo      domain.ListingRepository
	Cache     domain.ListingCache
	Publisher domain.EventPublisher
	Sellers   domain.SellerDirectory
	Notifier  Notifier
	Metrics   *metrics.MetricsManager
	Logger    *logger.Logger
}

// ListingUsecase is the server side of the catalog: the authority that confirms or
// rejects the writes the engine issues optimistically.
type ListingUsecase struct {
	repo      domain.ListingRepository
	cache     domain.ListingCache
	publisher domain.EventPublisher
	sellers   domain.SellerDirectory
	notifier  Notifier
	metrics   *metrics.MetricsManager
	logger    *logger.Logger
	tracer    trace.Tracer
	notifies  sync.WaitGroup
}

func NewListingUsecase(d Deps) *ListingUsecase {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &ListingUsecase{
		repo:      d.Repo,
		cache:     d.Cache,
		publisher: d.Publisher,
		sellers:   d.Sellers,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		logger:    log,
		tracer:    otel.Tracer("catalog-service/listing-usecase"),
	}
}

func (uc *ListingUsecase) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return uc.tracer.Start(ctx, "ListingUsecase."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ListListings returns the listings matching q. An empty or "All" category lists
// everything; an unknown category is an invalid filter.
func (uc *ListingUsecase) ListListings(ctx context.Context, q domain.ListQuery) (listings []*domain.Listing, err error) {
	ctx, span := uc.span(ctx, "ListListings", attribute.String("category", q.Category), attribute.String("seller_id", q.SellerID))
	defer func() { endSpan(span, err) }()

	if q.Category != "" && !strings.EqualFold(q.Category, domain.AllCategories) {
		canonical, ok := domain.CanonicalCategory(q.Category)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidFilter, q.Category)
		}
		q.Category = canonical
	} else {
		q.Category = ""
	}

	if uc.cache != nil {
		cached, cerr := uc.cache.GetQuery(ctx, q)
		if cerr != nil {
			uc.logger.Warn("ListingUsecase.ListListings: cache read failed", "category", q.Category, "error", cerr.Error())
		} else if cached != nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
	}

	listings, err = uc.repo.FindByQuery(ctx, q)
	if err != nil {
		uc.logger.Error("ListingUsecase.ListListings: failed to query listings", "category", q.Category, "error", err.Error())
		return nil, err
	}
	if uc.cache != nil {
		if cerr := uc.cache.SetQuery(ctx, q, listings); cerr != nil {
			uc.logger.Warn("ListingUsecase.ListListings: cache write failed", "category", q.Category, "error", cerr.Error())
		}
	}
	return listings, nil
}

func (uc *ListingUsecase) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	listing, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrListingNotFound) {
			uc.logger.Error("ListingUsecase.GetListing: failed to find listing", "listing_id", id, "error", err.Error())
		}
		return nil, err
	}
	return listing, nil
}

// CreateListing stores a new listing owned by userID. The id and timestamps in the
// input are ignored.
func (uc *ListingUsecase) CreateListing(ctx context.Context, userID string, in domain.Listing) (out *domain.Listing, err error) {
	ctx, span := uc.span(ctx, "CreateListing", attribute.String("seller_id", userID))
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	uc.logger.Info("ListingUsecase.CreateListing: creating new listing", "seller_id", userID, "category", in.Category, "name", in.Name)

	listing := in
	listing.ID = 0
	listing.SellerID = userID
	listing.IsCustom = false
	listing.Sync = ""
	if err := domain.Validate(&listing); err != nil {
		uc.logger.Warn("ListingUsecase.CreateListing: rejected invalid listing", "seller_id", userID, "error", err.Error())
		return nil, err
	}

	if err := uc.repo.Create(ctx, &listing); err != nil {
		uc.logger.Error("ListingUsecase.CreateListing: failed to create listing", "seller_id", userID, "error", err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("listing_id", listing.ID))
	if uc.metrics != nil {
		uc.metrics.ListingsCreatedTotal.Inc()
	}

	uc.invalidate(ctx, listing.Category)
	if uc.publisher != nil {
		if perr := uc.publisher.PublishListingCreated(ctx, &listing); perr != nil {
			uc.logger.Warn("ListingUsecase.CreateListing: failed to publish event", "listing_id", listing.ID, "error", perr.Error())
		}
	}
	uc.notifySeller(listing)
	return &listing, nil
}

// UpdateListing replaces the listing with the full state in in. Only the owner may
// update; the owner and creation time cannot be changed.
func (uc *ListingUsecase) UpdateListing(ctx context.Context, userID string, in domain.Listing) (out *domain.Listing, err error) {
	ctx, span := uc.span(ctx, "UpdateListing", attribute.Int64("listing_id", in.ID), attribute.String("seller_id", userID))
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	existing, err := uc.repo.FindByID(ctx, in.ID)
	if err != nil {
		uc.logger.Warn("ListingUsecase.UpdateListing: failed to find listing", "listing_id", in.ID, "error", err.Error())
		return nil, err
	}
	if existing.SellerID != userID {
		uc.logger.Warn("ListingUsecase.UpdateListing: forbidden to update listing",
			"listing_id", in.ID, "listing_owner_id", existing.SellerID, "user_id_performing_action", userID)
		return nil, domain.ErrForbidden
	}

	listing := in
	listing.SellerID = existing.SellerID
	listing.CreatedAt = existing.CreatedAt
	listing.IsCustom = false
	listing.Sync = ""
	if err := domain.Validate(&listing); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, &listing); err != nil {
		uc.logger.Error("ListingUsecase.UpdateListing: failed to update listing in repo", "listing_id", in.ID, "error", err.Error())
		return nil, err
	}
	listing.Sync = domain.SyncConfirmed
	if uc.metrics != nil {
		uc.metrics.ListingUpdatesTotal.Inc()
	}

	uc.invalidate(ctx, existing.Category)
	if listing.Category != existing.Category {
		uc.invalidate(ctx, listing.Category)
	}
	if uc.publisher != nil {
		if perr := uc.publisher.PublishListingUpdated(ctx, &listing); perr != nil {
			uc.logger.Warn("ListingUsecase.UpdateListing: failed to publish event", "listing_id", listing.ID, "error", perr.Error())
		}
	}
	return &listing, nil
}

func (uc *ListingUsecase) DeleteListing(ctx context.Context, userID string, id int64) (err error) {
	ctx, span := uc.span(ctx, "DeleteListing", attribute.Int64("listing_id", id), attribute.String("seller_id", userID))
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return domain.ErrUnauthenticated
	}
	existing, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.SellerID != userID {
		uc.logger.Warn("ListingUsecase.DeleteListing: forbidden to delete listing",
			"listing_id", id, "listing_owner_id", existing.SellerID, "user_id_performing_action", userID)
		return domain.ErrForbidden
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		uc.logger.Error("ListingUsecase.DeleteListing: failed to delete listing in repo", "listing_id", id, "error", err.Error())
		return err
	}
	if uc.metrics != nil {
		uc.metrics.ListingDeletesTotal.Inc()
	}

	uc.invalidate(ctx, existing.Category)
	if uc.publisher != nil {
		if perr := uc.publisher.PublishListingDeleted(ctx, id, existing.Category); perr != nil {
			uc.logger.Warn("ListingUsecase.DeleteListing: failed to publish event", "listing_id", id, "error", perr.Error())
		}
	}
	return nil
}

func (uc *ListingUsecase) invalidate(ctx context.Context, category string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.InvalidateCategory(ctx, category); err != nil {
		uc.logger.Warn("ListingUsecase: cache invalidation failed", "category", category, "error", err.Error())
	}
}

// notifySeller mails the seller in the background. Failures are only logged.
func (uc *ListingUsecase) notifySeller(listing domain.Listing) {
	if uc.notifier == nil || uc.sellers == nil {
		return
	}
	uc.notifies.Add(1)
	go func() {
		defer uc.notifies.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		email, err := uc.sellers.GetEmailByID(ctx, listing.SellerID)
		if err != nil {
			uc.logger.Warn("ListingUsecase.notifySeller: no email for seller", "seller_id", listing.SellerID, "error", err.Error())
			return
		}
		if err := uc.notifier.SendListingCreatedEmail(email, listing.Name); err != nil {
			uc.logger.Warn("ListingUsecase.notifySeller: failed to send email", "seller_id", listing.SellerID, "listing_id", listing.ID, "error", err.Error())
			return
		}
		uc.logger.Info("ListingUsecase.notifySeller: listing created email sent", "listing_id", listing.ID)
	}()
}

// Wait blocks until background notifications have finished.
func (uc *ListingUsecase) Wait() {
	uc.notifies.Wait()
}

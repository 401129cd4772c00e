// Package catalog holds the in-process state of the marketplace catalog: the listing
// store with its optimistic mutations, the favorites set and the browse sessions that
// render them.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const (
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMutationTimeout = 10 * time.Second

	draftsKey      = "drafts"
	cacheKeyPrefix = "listings:"
)

var (
	ErrClosed = errors.New("catalog store is closed")

	errInterrupted       = errors.New("interrupted before the remote catalog confirmed it")
	errPredecessorFailed = errors.New("predecessor failed")
	errNoMediaStorage    = errors.New("media storage is not configured")
)

type Options struct {
	FetchTimeout    time.Duration
	MutationTimeout time.Duration
	Media           domain.MediaStorage
	Observer        MutationObserver
	Logger          *logger.Logger
}

type record struct {
	listing   domain.Listing
	confirmed *domain.Listing // last state acknowledged by the remote catalog
	seq       uint64
	version   uint64
	inflight  int
	failed    *Mutation
}

func (r *record) busy() bool {
	return r.inflight > 0 || r.failed != nil
}

func (r *record) syncState() domain.SyncState {
	switch {
	case r.failed != nil:
		return domain.SyncFailed
	case r.inflight > 0:
		return domain.SyncPending
	default:
		return domain.SyncConfirmed
	}
}

// Store is the authoritative in-memory listing set. Reads return copies; writes are
// applied locally first and confirmed against the remote catalog in the background.
type Store struct {
	mu       sync.Mutex
	draftsMu sync.Mutex

	remote   domain.RemoteCatalog
	kv       domain.KVStore
	media    domain.MediaStorage
	session  domain.SessionProvider
	bus      *bus.Bus
	logger   *logger.Logger
	observer MutationObserver
	rec      *reconciler

	fetchTimeout time.Duration

	records   map[int64]*record
	deleting  map[int64]*record
	aliases   map[int64]int64
	mutations map[uint64]*Mutation
	loaded    map[string]bool
	stale     map[string]bool
	onConfirm []func(provisional, confirmed int64)

	nextSeq         uint64
	nextMutation    uint64
	lastProvisional int64
	closed          bool
}

// NewStore creates a store and restores drafts left over from a previous run. Restored
// drafts are marked failed; they are resubmitted only through Retry.
func NewStore(ctx context.Context, remote domain.RemoteCatalog, kv domain.KVStore, session domain.SessionProvider, b *bus.Bus, opts Options) *Store {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MutationTimeout <= 0 {
		opts.MutationTimeout = DefaultMutationTimeout
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Store{
		remote:       remote,
		kv:           kv,
		media:        opts.Media,
		session:      session,
		bus:          b,
		logger:       opts.Logger,
		observer:     opts.Observer,
		rec:          newReconciler(opts.MutationTimeout),
		fetchTimeout: opts.FetchTimeout,
		records:      make(map[int64]*record),
		deleting:     make(map[int64]*record),
		aliases:      make(map[int64]int64),
		mutations:    make(map[uint64]*Mutation),
		loaded:       make(map[string]bool),
		stale:        make(map[string]bool),
	}
	s.restoreDrafts(ctx)
	return s
}

func (s *Store) restoreDrafts(ctx context.Context) {
	data, err := s.kv.Get(ctx, draftsKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("Store.restoreDrafts: failed to read drafts", "error", err.Error())
		}
		return
	}
	var drafts []domain.Listing
	if err := json.Unmarshal(data, &drafts); err != nil {
		s.logger.Warn("Store.restoreDrafts: discarding unreadable drafts", "error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range drafts {
		if !domain.IsProvisional(d.ID) {
			continue
		}
		s.nextSeq++
		m := s.newMutationLocked(MutationCreate, d.ID, d.Category)
		m.Status = MutationFailed
		m.Err = &domain.MutationError{Op: string(MutationCreate), ListingID: d.ID, Err: errInterrupted}
		m.SettledAt = time.Now()
		d.IsCustom = true
		d.Sync = domain.SyncFailed
		s.records[d.ID] = &record{listing: d, seq: s.nextSeq, version: 1, failed: m}
		if d.ID < s.lastProvisional {
			s.lastProvisional = d.ID
		}
	}
	if len(drafts) > 0 {
		s.logger.Info("Store.restoreDrafts: restored unconfirmed drafts", "count", len(drafts))
	}
}

// OnConfirm registers fn to run after a provisional id has been replaced by its confirmed id.
func (s *Store) OnConfirm(fn func(provisional, confirmed int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConfirm = append(s.onConfirm, fn)
}

// LoadCategory fetches the listings of a category from the remote catalog and merges
// them into the store. "All" loads every category. When the remote catalog cannot be
// read it returns the last known listings together with a *domain.FetchError.
func (s *Store) LoadCategory(ctx context.Context, category string) ([]domain.Listing, error) {
	cat, err := normaliseCategory(category)
	if err != nil {
		return nil, err
	}

	query := domain.ListQuery{}
	if cat != domain.AllCategories {
		query.Category = cat
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	rows, err := s.remote.List(fetchCtx, query)
	cancel()
	if err != nil {
		return s.fallback(ctx, cat, err)
	}

	s.mu.Lock()
	s.mergeLocked(cat, rows)
	s.loaded[cat] = true
	delete(s.stale, cat)
	out := s.snapshotLocked(cat)
	s.mu.Unlock()

	s.writeCache(ctx, cat, rows)
	s.logger.Debug("Store.LoadCategory: category loaded", "category", cat, "count", len(out))
	s.bus.PublishCatalogChanged(cat)
	return out, nil
}

func (s *Store) fallback(ctx context.Context, cat string, cause error) ([]domain.Listing, error) {
	s.observer.FetchFailed(cat)
	s.logger.Warn("Store.LoadCategory: remote fetch failed, serving last known listings",
		"category", cat, "error", cause.Error())

	s.mu.Lock()
	known := s.loaded[cat]
	s.mu.Unlock()

	if !known {
		if rows, ok := s.readCache(ctx, cat); ok {
			s.mu.Lock()
			s.mergeLocked(cat, rows)
			s.loaded[cat] = true
			s.mu.Unlock()
			known = true
		}
	}

	s.mu.Lock()
	s.stale[cat] = true
	out := s.snapshotLocked(cat)
	s.mu.Unlock()

	return out, &domain.FetchError{Category: cat, Stale: known, Err: cause}
}

// mergeLocked replaces the confirmed rows of cat with rows. Rows with a mutation in
// flight or a failed mutation keep their local state, and local drafts stay after the
// server rows.
func (s *Store) mergeLocked(cat string, rows []domain.Listing) {
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if row.ID <= 0 {
			continue
		}
		seen[row.ID] = true
		if _, ok := s.deleting[row.ID]; ok {
			continue
		}

		s.nextSeq++
		rec, ok := s.records[row.ID]
		if ok && rec.busy() {
			rec.seq = s.nextSeq
			continue
		}
		confirmed := fromRemote(row)
		if !ok {
			rec = &record{}
			s.records[row.ID] = rec
		}
		rec.listing = confirmed
		rec.confirmed = &confirmed
		rec.seq = s.nextSeq
	}

	var drafts []*record
	for id, rec := range s.records {
		if !inCategory(rec.listing, cat) {
			continue
		}
		if domain.IsProvisional(id) {
			drafts = append(drafts, rec)
			continue
		}
		if !seen[id] && !rec.busy() {
			delete(s.records, id)
		}
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].seq < drafts[j].seq })
	for _, rec := range drafts {
		s.nextSeq++
		rec.seq = s.nextSeq
	}
}

func (s *Store) writeCache(ctx context.Context, cat string, rows []domain.Listing) {
	data, err := json.Marshal(rows)
	if err != nil {
		s.logger.Warn("Store.writeCache: failed to encode listings", "category", cat, "error", err.Error())
		return
	}
	if err := s.kv.Set(ctx, cacheKeyPrefix+cat, data); err != nil {
		s.logger.Warn("Store.writeCache: failed to write fallback cache", "category", cat, "error", err.Error())
	}
}

func (s *Store) readCache(ctx context.Context, cat string) ([]domain.Listing, bool) {
	data, err := s.kv.Get(ctx, cacheKeyPrefix+cat)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("Store.readCache: failed to read fallback cache", "category", cat, "error", err.Error())
		}
		return nil, false
	}
	var rows []domain.Listing
	if err := json.Unmarshal(data, &rows); err != nil {
		s.logger.Warn("Store.readCache: unreadable fallback cache", "category", cat, "error", err.Error())
		return nil, false
	}
	return rows, true
}

// Snapshot returns the listings of a category in display order. "All" or "" returns
// every listing.
func (s *Store) Snapshot(category string) []domain.Listing {
	cat, err := normaliseCategory(category)
	if err != nil {
		return []domain.Listing{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(cat)
}

func (s *Store) snapshotLocked(cat string) []domain.Listing {
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		if inCategory(rec.listing, cat) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]domain.Listing, len(recs))
	for i, rec := range recs {
		out[i] = rec.listing
	}
	return out
}

// IsStale reports whether the last load of category had to fall back to old data.
func (s *Store) IsStale(category string) bool {
	cat, err := normaliseCategory(category)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale[cat]
}

// Get returns a listing by id. Provisional ids keep working after confirmation.
func (s *Store) Get(id int64) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[s.resolveLocked(id)]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return rec.listing, nil
}

// Mutations returns the pending and failed mutations, oldest first.
func (s *Store) Mutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mutation, 0, len(s.mutations))
	for _, m := range s.mutations {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateListing validates the draft, shows it immediately under a provisional id and
// submits it to the remote catalog in the background.
func (s *Store) CreateListing(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
	ident := s.session.Current()
	if !ident.Authenticated {
		return domain.Listing{}, domain.ErrUnauthenticated
	}
	l := draft.Listing(ident.SellerID)
	if err := domain.Validate(&l); err != nil {
		s.logger.Warn("Store.CreateListing: rejected draft", "seller_id", ident.SellerID, "error", err.Error())
		return domain.Listing{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Listing{}, ErrClosed
	}
	now := time.Now()
	l.ID = s.provisionalIDLocked(now)
	l.IsCustom = true
	l.Sync = domain.SyncPending
	l.CreatedAt = now
	l.UpdatedAt = now

	s.nextSeq++
	rec := &record{listing: l, seq: s.nextSeq, version: 1, inflight: 1}
	s.records[l.ID] = rec
	m := s.newMutationLocked(MutationCreate, l.ID, l.Category)
	provisional := l.ID
	s.rec.enqueue(provisional, func(ctx context.Context) { s.runCreate(ctx, m, provisional) })
	s.mu.Unlock()

	s.logger.Info("Store.CreateListing: listing created locally",
		"listing_id", l.ID, "seller_id", l.SellerID, "category", l.Category)
	s.persistDrafts(ctx)
	s.bus.PublishCatalogChanged(l.Category)
	return l, nil
}

func (s *Store) runCreate(ctx context.Context, m *Mutation, provisional int64) {
	s.mu.Lock()
	rec := s.lookupLocked(provisional)
	if rec == nil {
		s.settleOrphanLocked(m)
		s.mu.Unlock()
		return
	}
	payload := rec.listing
	sent := rec.version
	s.mu.Unlock()

	payload.ID = 0
	payload.IsCustom = false
	payload.Sync = ""
	created, err := s.remote.Create(ctx, payload)
	if err == nil && created.ID <= 0 {
		err = fmt.Errorf("remote catalog returned invalid id %d", created.ID)
	}
	if err != nil {
		s.fail(ctx, m, provisional, err)
		return
	}

	// new work for the confirmed id must join this lane before the id becomes visible
	s.rec.alias(provisional, created.ID)

	s.mu.Lock()
	s.aliases[provisional] = created.ID
	m.ListingID = created.ID
	var category string
	if rec, ok := s.records[provisional]; ok {
		s.confirmCreateLocked(rec, created, sent)
		delete(s.records, provisional)
		s.records[created.ID] = rec
		category = rec.listing.Category
	} else if rec, ok := s.deleting[provisional]; ok {
		s.confirmCreateLocked(rec, created, sent)
		delete(s.deleting, provisional)
		s.deleting[created.ID] = rec
		category = rec.listing.Category
	}
	s.settleLocked(m, MutationConfirmed, nil)
	hooks := append([]func(int64, int64){}, s.onConfirm...)
	s.mu.Unlock()

	s.logger.Info("Store.runCreate: listing confirmed", "provisional_id", provisional, "listing_id", created.ID)
	s.persistDrafts(ctx)
	for _, fn := range hooks {
		fn(provisional, created.ID)
	}
	if category != "" {
		s.bus.PublishCatalogChanged(category)
	}
}

func (s *Store) confirmCreateLocked(rec *record, created domain.Listing, sent uint64) {
	rec.inflight--
	confirmed := fromRemote(created)
	rec.confirmed = &confirmed
	if rec.version == sent {
		rec.listing = confirmed
	} else {
		rec.listing.ID = created.ID
		rec.listing.IsCustom = false
	}
	rec.listing.Sync = rec.syncState()
}

// UpdateListing applies patch locally and confirms it in the background. Only the
// seller who owns the listing may update it.
func (s *Store) UpdateListing(ctx context.Context, id int64, patch domain.Patch) (domain.Listing, error) {
	ident := s.session.Current()
	if !ident.Authenticated {
		return domain.Listing{}, domain.ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Listing{}, ErrClosed
	}
	id = s.resolveLocked(id)
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if rec.listing.SellerID != ident.SellerID {
		s.mu.Unlock()
		s.logger.Warn("Store.UpdateListing: forbidden to update listing",
			"listing_id", id, "listing_owner_id", rec.listing.SellerID, "seller_id", ident.SellerID)
		return domain.Listing{}, domain.ErrForbidden
	}

	next := patch.Apply(rec.listing)
	if err := domain.Validate(&next); err != nil {
		s.mu.Unlock()
		return domain.Listing{}, err
	}
	prevCategory := rec.listing.Category
	next.UpdatedAt = time.Now()
	rec.version++

	// a draft whose create failed only exists here; the next Retry sends the edited draft
	localOnly := domain.IsProvisional(id) && rec.inflight == 0
	if !localOnly {
		rec.inflight++
		m := s.newMutationLocked(MutationUpdate, id, next.Category)
		s.rec.enqueue(id, func(ctx context.Context) { s.runUpdate(ctx, m, id) })
	}
	rec.listing = next
	rec.listing.Sync = rec.syncState()
	out := rec.listing
	s.mu.Unlock()

	s.logger.Info("Store.UpdateListing: listing updated locally", "listing_id", id, "local_only", localOnly)
	if domain.IsProvisional(id) {
		s.persistDrafts(ctx)
	}
	s.publish(prevCategory, out.Category)
	return out, nil
}

func (s *Store) runUpdate(ctx context.Context, m *Mutation, id int64) {
	s.mu.Lock()
	id = s.resolveLocked(id)
	rec := s.lookupLocked(id)
	if rec == nil {
		s.settleOrphanLocked(m)
		s.mu.Unlock()
		return
	}
	if domain.IsProvisional(id) {
		// the create queued ahead of this update never reached the remote catalog
		rec.inflight--
		s.settleLocked(m, MutationFailed, &domain.MutationError{Op: string(m.Kind), ListingID: id, Err: errPredecessorFailed})
		rec.listing.Sync = rec.syncState()
		category := rec.listing.Category
		s.mu.Unlock()
		s.bus.PublishCatalogChanged(category)
		return
	}
	payload := rec.listing
	sent := rec.version
	s.mu.Unlock()

	payload.Sync = ""
	updated, err := s.remote.Update(ctx, payload)
	if err != nil {
		s.fail(ctx, m, id, err)
		return
	}

	s.mu.Lock()
	var categories []string
	if rec := s.lookupLocked(id); rec != nil {
		rec.inflight--
		confirmed := fromRemote(updated)
		confirmed.ID = id
		rec.confirmed = &confirmed
		if rec.failed != nil && rec.failed.Kind == MutationUpdate {
			// this write carried the full listing, so the earlier failure is superseded
			delete(s.mutations, rec.failed.ID)
			rec.failed = nil
		}
		categories = append(categories, rec.listing.Category)
		if rec.version == sent {
			rec.listing = confirmed
		}
		rec.listing.Sync = rec.syncState()
		categories = append(categories, rec.listing.Category)
	}
	s.settleLocked(m, MutationConfirmed, nil)
	s.mu.Unlock()

	s.publish(categories...)
}

// DeleteListing removes a listing locally and deletes it remotely in the background.
// If the remote catalog rejects the delete the listing is restored and marked failed.
func (s *Store) DeleteListing(ctx context.Context, id int64) error {
	ident := s.session.Current()
	if !ident.Authenticated {
		return domain.ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	id = s.resolveLocked(id)
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrListingNotFound
	}
	if rec.listing.SellerID != ident.SellerID {
		s.mu.Unlock()
		s.logger.Warn("Store.DeleteListing: forbidden to delete listing",
			"listing_id", id, "listing_owner_id", rec.listing.SellerID, "seller_id", ident.SellerID)
		return domain.ErrForbidden
	}
	category := rec.listing.Category

	if domain.IsProvisional(id) && rec.inflight == 0 {
		delete(s.records, id)
		if rec.failed != nil {
			delete(s.mutations, rec.failed.ID)
		}
		s.mu.Unlock()
		s.logger.Info("Store.DeleteListing: unconfirmed draft removed", "listing_id", id)
		s.persistDrafts(ctx)
		s.bus.PublishCatalogChanged(category)
		return nil
	}

	s.issueDeleteLocked(id, rec)
	s.mu.Unlock()

	s.logger.Info("Store.DeleteListing: listing removed locally", "listing_id", id)
	if domain.IsProvisional(id) {
		s.persistDrafts(ctx)
	}
	s.bus.PublishCatalogChanged(category)
	return nil
}

func (s *Store) issueDeleteLocked(id int64, rec *record) {
	delete(s.records, id)
	s.deleting[id] = rec
	if rec.failed != nil {
		delete(s.mutations, rec.failed.ID)
		rec.failed = nil
	}
	rec.inflight++
	rec.version++
	m := s.newMutationLocked(MutationDelete, id, rec.listing.Category)
	s.rec.enqueue(id, func(ctx context.Context) { s.runDelete(ctx, m, id) })
}

func (s *Store) runDelete(ctx context.Context, m *Mutation, id int64) {
	s.mu.Lock()
	id = s.resolveLocked(id)
	rec, ok := s.deleting[id]
	if !ok {
		s.settleLocked(m, MutationConfirmed, nil)
		s.mu.Unlock()
		return
	}
	if domain.IsProvisional(id) {
		// the create failed, so there is nothing to delete remotely
		delete(s.deleting, id)
		if rec.failed != nil {
			delete(s.mutations, rec.failed.ID)
		}
		s.settleLocked(m, MutationConfirmed, nil)
		s.mu.Unlock()
		s.persistDrafts(ctx)
		return
	}
	s.mu.Unlock()

	err := s.remote.Delete(ctx, id)
	if errors.Is(err, domain.ErrListingNotFound) {
		err = nil
	}
	if err != nil {
		s.fail(ctx, m, id, err)
		return
	}

	s.mu.Lock()
	delete(s.deleting, id)
	rec.inflight--
	if rec.failed != nil {
		// the listing is gone, so an earlier failed edit has nothing left to retry
		delete(s.mutations, rec.failed.ID)
		rec.failed = nil
	}
	s.settleLocked(m, MutationConfirmed, nil)
	s.mu.Unlock()
	s.logger.Info("Store.runDelete: delete confirmed", "listing_id", id)
}

// fail records a rejected remote write. A rejected delete puts the listing back.
func (s *Store) fail(ctx context.Context, m *Mutation, id int64, cause error) {
	mErr := &domain.MutationError{Op: string(m.Kind), ListingID: id, Err: cause}

	s.mu.Lock()
	id = s.resolveLocked(id)
	rec := s.lookupLocked(id)
	var category string
	if rec != nil {
		rec.inflight--
		if m.Kind == MutationDelete {
			delete(s.deleting, id)
			s.records[id] = rec
		}
		if rec.failed != nil && rec.failed.Kind != MutationCreate {
			delete(s.mutations, rec.failed.ID)
		}
		if rec.failed == nil || rec.failed.Kind != MutationCreate {
			rec.failed = m
		}
		rec.listing.Sync = rec.syncState()
		category = rec.listing.Category
	}
	s.settleLocked(m, MutationFailed, mErr)
	s.mu.Unlock()

	s.logger.Error("Store.fail: remote catalog rejected mutation",
		"op", string(m.Kind), "listing_id", id, "error", cause.Error())
	if domain.IsProvisional(id) {
		s.persistDrafts(ctx)
	}
	if category != "" {
		s.bus.PublishCatalogChanged(category)
	}
}

// Retry resubmits the failed mutation of a listing.
func (s *Store) Retry(ctx context.Context, id int64) error {
	ident := s.session.Current()
	if !ident.Authenticated {
		return domain.ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	id = s.resolveLocked(id)
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrListingNotFound
	}
	if rec.listing.SellerID != ident.SellerID {
		s.mu.Unlock()
		return domain.ErrForbidden
	}
	if rec.failed == nil {
		s.mu.Unlock()
		return domain.ErrNotRetryable
	}
	failed := rec.failed
	category := rec.listing.Category

	switch failed.Kind {
	case MutationDelete:
		s.issueDeleteLocked(id, rec)
	default:
		delete(s.mutations, failed.ID)
		rec.failed = nil
		rec.inflight++
		m := s.newMutationLocked(failed.Kind, id, category)
		if failed.Kind == MutationCreate {
			s.rec.enqueue(id, func(ctx context.Context) { s.runCreate(ctx, m, id) })
		} else {
			s.rec.enqueue(id, func(ctx context.Context) { s.runUpdate(ctx, m, id) })
		}
		rec.listing.Sync = rec.syncState()
	}
	s.mu.Unlock()

	s.logger.Info("Store.Retry: resubmitting mutation", "op", string(failed.Kind), "listing_id", id)
	s.bus.PublishCatalogChanged(category)
	return nil
}

// Discard drops the failed mutation of a listing. A failed draft is removed, a failed
// edit is reverted to the last confirmed state and a failed delete is forgotten.
func (s *Store) Discard(ctx context.Context, id int64) error {
	s.mu.Lock()
	id = s.resolveLocked(id)
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrListingNotFound
	}
	if rec.failed == nil {
		s.mu.Unlock()
		return domain.ErrNotRetryable
	}
	failed := rec.failed
	delete(s.mutations, failed.ID)
	rec.failed = nil
	prevCategory := rec.listing.Category

	switch {
	case failed.Kind == MutationCreate:
		delete(s.records, id)
	case failed.Kind == MutationUpdate && rec.confirmed != nil && rec.inflight == 0:
		rec.version++
		rec.listing = *rec.confirmed
	}
	// with a newer edit in flight the local state is that edit, and its confirmation settles it
	rec.listing.Sync = rec.syncState()
	category := rec.listing.Category
	s.mu.Unlock()

	s.logger.Info("Store.Discard: failed mutation discarded", "op", string(failed.Kind), "listing_id", id)
	if domain.IsProvisional(id) {
		s.persistDrafts(ctx)
	}
	s.publish(prevCategory, category)
	return nil
}

// UploadImage stores an image and returns the URL to put in a listing's ImageRef.
func (s *Store) UploadImage(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.media == nil {
		return "", errNoMediaStorage
	}
	url, err := s.media.Upload(ctx, fileName, data)
	if err != nil {
		s.logger.Error("Store.UploadImage: upload failed", "file_name", fileName, "error", err.Error())
		return "", fmt.Errorf("upload image %q: %w", fileName, err)
	}
	return url, nil
}

// Flush waits until every submitted mutation has settled or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	return s.rec.wait(ctx)
}

// Close stops accepting mutations and waits for the ones in flight. If ctx expires
// first the remaining remote calls are cancelled; their drafts stay persisted.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.rec.wait(ctx)
	if err != nil {
		s.logger.Warn("Store.Close: cancelling unsettled mutations", "error", err.Error())
		s.rec.abort()
		waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.rec.wait(waitCtx)
		cancel()
	}
	s.persistDrafts(context.Background())
	return err
}

func (s *Store) persistDrafts(ctx context.Context) {
	s.draftsMu.Lock()
	defer s.draftsMu.Unlock()

	s.mu.Lock()
	var recs []*record
	for id, rec := range s.records {
		if domain.IsProvisional(id) {
			recs = append(recs, rec)
		}
	}
	s.mu.Unlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	drafts := make([]domain.Listing, len(recs))
	for i, rec := range recs {
		drafts[i] = rec.listing
	}

	if len(drafts) == 0 {
		if err := s.kv.Delete(ctx, draftsKey); err != nil {
			s.logger.Warn("Store.persistDrafts: failed to clear drafts", "error", err.Error())
		}
		return
	}
	data, err := json.Marshal(drafts)
	if err != nil {
		s.logger.Warn("Store.persistDrafts: failed to encode drafts", "error", err.Error())
		return
	}
	if err := s.kv.Set(ctx, draftsKey, data); err != nil {
		s.logger.Warn("Store.persistDrafts: failed to write drafts", "error", err.Error())
	}
}

func (s *Store) newMutationLocked(kind MutationKind, id int64, category string) *Mutation {
	s.nextMutation++
	m := &Mutation{
		ID:        s.nextMutation,
		Kind:      kind,
		ListingID: id,
		Category:  category,
		Status:    MutationPending,
		IssuedAt:  time.Now(),
	}
	s.mutations[m.ID] = m
	return m
}

func (s *Store) settleLocked(m *Mutation, status MutationStatus, err error) {
	m.Status = status
	m.Err = err
	m.SettledAt = time.Now()
	if status == MutationConfirmed {
		delete(s.mutations, m.ID)
	}
	s.observer.MutationSettled(m.Kind, status, m.SettledAt.Sub(m.IssuedAt))
}

// settleOrphanLocked fails a mutation whose listing was discarded before it ran.
// Nothing is left to retry, so it is not kept.
func (s *Store) settleOrphanLocked(m *Mutation) {
	s.settleLocked(m, MutationFailed, domain.ErrListingNotFound)
	delete(s.mutations, m.ID)
}

// provisionalIDLocked returns a fresh negative id. Ids decrease strictly even when
// the clock does not advance.
func (s *Store) provisionalIDLocked(now time.Time) int64 {
	id := -now.UnixNano()
	if s.lastProvisional != 0 && id >= s.lastProvisional {
		id = s.lastProvisional - 1
	}
	for s.records[id] != nil || s.deleting[id] != nil {
		id--
	}
	s.lastProvisional = id
	return id
}

func (s *Store) resolveLocked(id int64) int64 {
	for {
		next, ok := s.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
}

func (s *Store) lookupLocked(id int64) *record {
	if rec, ok := s.records[id]; ok {
		return rec
	}
	return s.deleting[id]
}

func (s *Store) publish(categories ...string) {
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		s.bus.PublishCatalogChanged(c)
	}
}

func fromRemote(l domain.Listing) domain.Listing {
	if c, ok := domain.CanonicalCategory(l.Category); ok {
		l.Category = c
	}
	l.IsCustom = false
	l.Sync = domain.SyncConfirmed
	return l
}

func normaliseCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, domain.AllCategories) {
		return domain.AllCategories, nil
	}
	c, ok := domain.CanonicalCategory(category)
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", domain.ErrInvalidFilter, category)
	}
	return c, nil
}

func inCategory(l domain.Listing, cat string) bool {
	return cat == domain.AllCategories || strings.EqualFold(l.Category, cat)
}

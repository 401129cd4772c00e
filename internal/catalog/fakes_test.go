package catalog

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

const waitTimeout = 2 * time.Second

type result struct {
	listing domain.Listing
	err     error
}

// call is a remote write held until the test answers it.
type call struct {
	op      string
	listing domain.Listing
	id      int64
	reply   chan result
}

func (c *call) ok() {
	c.reply <- result{listing: c.listing}
}

func (c *call) confirm(id int64) {
	l := c.listing
	l.ID = id
	c.reply <- result{listing: l}
}

func (c *call) fail(err error) {
	c.reply <- result{err: err}
}

// fakeRemote answers writes immediately unless calls is set, in which case every
// write is handed to the test through calls.
type fakeRemote struct {
	mu        sync.Mutex
	listings  map[string][]domain.Listing
	listErr   error
	createErr error
	deleteErr error
	nextID    int64
	calls     chan *call
	lists     int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{listings: make(map[string][]domain.Listing), nextID: 100}
}

func (r *fakeRemote) gated() *fakeRemote {
	r.calls = make(chan *call, 16)
	return r
}

func (r *fakeRemote) List(ctx context.Context, q domain.ListQuery) ([]domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}
	if q.Category == "" {
		var all []domain.Listing
		for _, ls := range r.listings {
			all = append(all, ls...)
		}
		return all, nil
	}
	for cat, ls := range r.listings {
		if strings.EqualFold(cat, q.Category) {
			return append([]domain.Listing(nil), ls...), nil
		}
	}
	return []domain.Listing{}, nil
}

func (r *fakeRemote) hold(ctx context.Context, c *call) (domain.Listing, error) {
	c.reply = make(chan result, 1)
	select {
	case r.calls <- c:
	case <-ctx.Done():
		return domain.Listing{}, ctx.Err()
	}
	select {
	case res := <-c.reply:
		return res.listing, res.err
	case <-ctx.Done():
		return domain.Listing{}, ctx.Err()
	}
}

func (r *fakeRemote) Create(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if r.calls != nil {
		return r.hold(ctx, &call{op: "create", listing: l})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return domain.Listing{}, r.createErr
	}
	r.nextID++
	l.ID = r.nextID
	return l, nil
}

func (r *fakeRemote) Update(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if r.calls != nil {
		return r.hold(ctx, &call{op: "update", listing: l, id: l.ID})
	}
	return l, nil
}

func (r *fakeRemote) Delete(ctx context.Context, id int64) error {
	if r.calls != nil {
		_, err := r.hold(ctx, &call{op: "delete", id: id})
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteErr
}

func (r *fakeRemote) setListErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listErr = err
}

func (r *fakeRemote) setCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func nextCall(t *testing.T, calls <-chan *call) *call {
	t.Helper()
	select {
	case c := <-calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a remote call")
		return nil
	}
}

func expectNoCall(t *testing.T, calls <-chan *call) {
	t.Helper()
	select {
	case c := <-calls:
		t.Fatalf("unexpected remote %s call for listing %d", c.op, c.id)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (kv *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (kv *fakeKV) Set(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.setErr != nil {
		return kv.setErr
	}
	kv.data[key] = append([]byte(nil), value...)
	return nil
}

func (kv *fakeKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

func (kv *fakeKV) has(key string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.data[key]
	return ok
}

func (kv *fakeKV) failWrites(err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.setErr = err
}

type fakeSession struct {
	mu        sync.Mutex
	ident     domain.Identity
	listeners map[int]func(domain.Identity)
	next      int
}

func newFakeSession(sellerID string) *fakeSession {
	s := &fakeSession{listeners: make(map[int]func(domain.Identity))}
	if sellerID != "" {
		s.ident = domain.Identity{SellerID: sellerID, Authenticated: true}
	}
	return s
}

func (s *fakeSession) Current() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident
}

func (s *fakeSession) OnChange(fn func(domain.Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *fakeSession) set(ident domain.Identity) {
	s.mu.Lock()
	s.ident = ident
	fns := make([]func(domain.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ident)
	}
}

type fixture struct {
	remote  *fakeRemote
	kv      *fakeKV
	session *fakeSession
	bus     *bus.Bus
	store   *Store
}

func newFixture(t *testing.T, remote *fakeRemote) *fixture {
	t.Helper()
	f := &fixture{
		remote:  remote,
		kv:      newFakeKV(),
		session: newFakeSession("seller-1"),
		bus:     bus.New(nil),
	}
	f.store = f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) *Store {
	t.Helper()
	s := NewStore(context.Background(), f.remote, f.kv, f.session, f.bus, Options{
		FetchTimeout:    time.Second,
		MutationTimeout: 5 * time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := f.store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func listing(id int64, name string, price int64, category, typ, color string) domain.Listing {
	return domain.Listing{
		ID:       id,
		SellerID: "seller-1",
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Category: category,
		Type:     typ,
		Color:    color,
	}
}

func blouseDraft() domain.Draft {
	return domain.Draft{
		Name:     "Blouse",
		Price:    decimal.NewFromInt(25),
		Category: "clothes",
		Type:     "Women",
		Color:    "Red",
	}
}

func strPtr(s string) *string { return &s }

package catalog

import (
	"context"
	"sync"
	"time"
)

type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

type MutationStatus string

const (
	MutationPending   MutationStatus = "pending"
	MutationConfirmed MutationStatus = "confirmed"
	MutationFailed    MutationStatus = "failed"
)

// Mutation is one optimistic write on its way to the remote catalog.
type Mutation struct {
	ID        uint64
	Kind      MutationKind
	ListingID int64
	Category  string
	Status    MutationStatus
	Err       error
	IssuedAt  time.Time
	SettledAt time.Time
}

// MutationObserver is told about every settled mutation and every failed fetch.
type MutationObserver interface {
	MutationSettled(kind MutationKind, status MutationStatus, took time.Duration)
	FetchFailed(category string)
}

type nopObserver struct{}

func (nopObserver) MutationSettled(MutationKind, MutationStatus, time.Duration) {}
func (nopObserver) FetchFailed(string)                                          {}

type task func(ctx context.Context)

type lane struct {
	queue   []task
	running bool
}

// reconciler runs remote writes one lane per listing. Tasks of a lane run in the
// order they were enqueued; different lanes run concurrently. A lane can be reached
// under several ids once a provisional id has been confirmed.
type reconciler struct {
	mu      sync.Mutex
	lanes   map[int64]*lane
	active  int
	idle    chan struct{}
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func newReconciler(timeout time.Duration) *reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &reconciler{
		lanes:   make(map[int64]*lane),
		idle:    idle,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *reconciler) enqueue(id int64, t task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lanes[id]
	if l == nil {
		l = &lane{}
		r.lanes[id] = l
	}
	l.queue = append(l.queue, t)
	if !l.running {
		l.running = true
		if r.active == 0 {
			r.idle = make(chan struct{})
		}
		r.active++
		go r.drain(l)
	}
}

func (r *reconciler) drain(l *lane) {
	for {
		r.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			for id, other := range r.lanes {
				if other == l {
					delete(r.lanes, id)
				}
			}
			r.active--
			if r.active == 0 {
				close(r.idle)
			}
			r.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		t(ctx)
		cancel()
	}
}

// alias makes the lane of from reachable under to as well. It must be called from a
// task running on that lane, before the confirmed id is visible to callers.
func (r *reconciler) alias(from, to int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l := r.lanes[from]; l != nil {
		r.lanes[to] = l
	}
}

// wait blocks until every lane is idle or ctx is done.
func (r *reconciler) wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abort cancels the remote calls that are still running.
func (r *reconciler) abort() {
	r.cancel()
}

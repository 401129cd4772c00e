// Package bus delivers catalog and favorites change notifications to every open view.
package bus

import (
	"sync"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

type Topic string

const (
	TopicCatalogChanged   Topic = "catalog.changed"
	TopicFavoritesChanged Topic = "favorites.changed"
)

// Event is a change notification. Category is set for TopicCatalogChanged.
type Event struct {
	Topic    Topic
	Category string
	// Origin is "local" for changes made in this process and "remote" for
	// changes relayed from other processes.
	Origin string
}

type Handler func(Event)

type subscription struct {
	topic   Topic
	handler Handler
}

// Bus is a synchronous publish/subscribe hub. Subscribers run on the publisher's
// goroutine, in no particular order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	nextID uint64
	logger *logger.Logger
}

func New(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		subs:   make(map[uint64]subscription),
		logger: log,
	}
}

// Subscription is returned by Subscribe. Unsubscribe may be called any number of times.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

func (b *Bus) Subscribe(topic Topic, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = subscription{topic: topic, handler: h}
	return &Subscription{bus: b, id: b.nextID}
}

func (b *Bus) PublishCatalogChanged(category string) {
	b.Publish(Event{Topic: TopicCatalogChanged, Category: category, Origin: "local"})
}

func (b *Bus) PublishFavoritesChanged() {
	b.Publish(Event{Topic: TopicFavoritesChanged, Origin: "local"})
}

// Publish delivers ev to every current subscriber of its topic. Handlers are called
// outside the lock, so they may subscribe, unsubscribe or publish themselves.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == ev.Topic {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Bus.Publish: subscriber panicked", "topic", string(ev.Topic), "category", ev.Category, "panic", r)
		}
	}()
	h(ev)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

// Reloader refreshes a category from the catalog service.
type Reloader interface {
	LoadCategory(ctx context.Context, category string) ([]domain.Listing, error)
}

// Bridge turns listing.* events from other processes into catalog changes on the
// local bus. With a Reloader the category is reloaded first, and the store announces
// the change itself.
type Bridge struct {
	bus      *bus.Bus
	reloader Reloader
	timeout  time.Duration
	logger   *logger.Logger
	sub      *nats.Subscription
}

func NewBridge(b *bus.Bus, reloader Reloader, timeout time.Duration, log *logger.Logger) *Bridge {
	return &Bridge{bus: b, reloader: reloader, timeout: timeout, logger: log}
}

// Start subscribes to listing events on nc.
func (br *Bridge) Start(nc *nats.Conn) error {
	sub, err := nc.Subscribe(SubjectListingAll, br.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectListingAll, err)
	}
	br.sub = sub
	br.logger.Info("Bridge: listening for listing events", "subject", SubjectListingAll)
	return nil
}

func (br *Bridge) handle(msg *nats.Msg) {
	var ev ListingEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		br.logger.Warn("Bridge: dropping malformed event", "subject", msg.Subject, "error", err.Error())
		return
	}
	category := ev.Category
	if c, ok := domain.CanonicalCategory(category); ok {
		category = c
	}

	if br.reloader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), br.timeout)
		defer cancel()
		if _, err := br.reloader.LoadCategory(ctx, category); err != nil {
			br.logger.Warn("Bridge: reload after remote change failed", "category", category, "error", err.Error())
		}
		return
	}
	br.bus.Publish(bus.Event{Topic: bus.TopicCatalogChanged, Category: category, Origin: "remote"})
}

func (br *Bridge) Stop() error {
	if br.sub == nil {
		return nil
	}
	return br.sub.Unsubscribe()
}

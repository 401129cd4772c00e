package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const (
	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
	SubjectListingAll     = "listing.*"
)

// ListingEvent is the payload of every listing.* message.
type ListingEvent struct {
	ListingID  int64     `json:"listing_id"`
	SellerID   string    `json:"seller_id,omitempty"`
	Category   string    `json:"category"`
	OccurredAt time.Time `json:"occurred_at"`
}

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher implements domain.EventPublisher on NATS core subjects.
type Publisher struct {
	conn   conn
	logger *logger.Logger
}

// Connect dials NATS with reconnects enabled.
func Connect(url string, log *logger.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("catalog-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

func NewPublisher(c conn, log *logger.Logger) *Publisher {
	return &Publisher{conn: c, logger: log}
}

func (p *Publisher) publish(subject string, ev ListingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("Publisher: failed to publish event", "subject", subject, "listing_id", ev.ListingID, "error", err.Error())
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("Publisher: event published", "subject", subject, "listing_id", ev.ListingID)
	return nil
}

func (p *Publisher) PublishListingCreated(_ context.Context, l *domain.Listing) error {
	return p.publish(SubjectListingCreated, ListingEvent{ListingID: l.ID, SellerID: l.SellerID, Category: l.Category, OccurredAt: time.Now().UTC()})
}

func (p *Publisher) PublishListingUpdated(_ context.Context, l *domain.Listing) error {
	return p.publish(SubjectListingUpdated, ListingEvent{ListingID: l.ID, SellerID: l.SellerID, Category: l.Category, OccurredAt: time.Now().UTC()})
}

func (p *Publisher) PublishListingDeleted(_ context.Context, id int64, category string) error {
	return p.publish(SubjectListingDeleted, ListingEvent{ListingID: id, Category: category, OccurredAt: time.Now().UTC()})
}

package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/EcommerceGo/pkg/kafka"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
)

// TopicCartSnapshotSaved receives one event per persisted snapshot.
var TopicCartSnapshotSaved = pkgkafka.Topic("cart", "snapshot", "saved")

// EventTypeSnapshotSaved is the event type written for every persisted snapshot.
const EventTypeSnapshotSaved = "cart.snapshot.saved"

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart engine.
const SourceCartService = "cart-service"

// SnapshotSavedData is the payload for a cart.snapshot.saved event.
type SnapshotSavedData struct {
	Key      string     `json:"key"`
	Origin   string     `json:"origin"`
	Items    []LineData `json:"items"`
	Count    int        `json:"count"`
	Subtotal int64      `json:"subtotal"`
}

// LineData is the line payload within cart events.
type LineData struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	Color         string `json:"color,omitempty"`
	Size          string `json:"size,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	TotalPrice    int64  `json:"total_price"`
	PriceOverride bool   `json:"price_override,omitempty"`
}

// Publisher is the part of the Kafka producer the cart needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  Publisher
	key    string
	origin string
	logger *slog.Logger
}

// NewProducer creates an event producer for one storage key. origin
// identifies the engine instance that wrote the snapshot.
func NewProducer(kafka Publisher, key, origin string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		key:    key,
		origin: origin,
		logger: logger,
	}
}

// PublishSnapshotSaved publishes a cart.snapshot.saved event.
func (p *Producer) PublishSnapshotSaved(ctx context.Context, lines []domain.CartLine) error {
	items := make([]LineData, len(lines))
	for i, l := range lines {
		items[i] = LineData{
			ProductID:     l.ID,
			Name:          l.Name,
			SKU:           l.SKU,
			Color:         l.SelectedColor,
			Size:          l.SelectedSize,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			TotalPrice:    l.TotalPrice,
			PriceOverride: l.PriceOverridden,
		}
	}

	data := SnapshotSavedData{
		Key:      p.key,
		Origin:   p.origin,
		Items:    items,
		Count:    domain.Count(lines),
		Subtotal: domain.Subtotal(lines),
	}

	event, err := pkgkafka.NewEvent(EventTypeSnapshotSaved, p.key, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.snapshot.saved event: %w", err)
	}
	event.WithMetadata("origin", p.origin)

	if err := p.kafka.Publish(ctx, TopicCartSnapshotSaved, event); err != nil {
		return fmt.Errorf("publish cart.snapshot.saved event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.snapshot.saved event",
		slog.String("key", p.key),
		slog.Int("count", data.Count),
	)

	return nil
}

// OnSaved adapts PublishSnapshotSaved to the persistence saved hook. A
// publish failure is logged and never reaches the cart.
func (p *Producer) OnSaved(ctx context.Context, lines []domain.CartLine) {
	if err := p.PublishSnapshotSaved(ctx, lines); err != nil {
		p.logger.WarnContext(ctx, "failed to publish cart snapshot event",
			slog.String("key", p.key),
			slog.String("error", err.Error()),
		)
	}
}

package services

import (
	"context"
	"encoding/json"

	"catalog/internal/models"
)

// EventProductCreated is the event name emitted after a product is inserted.
const EventProductCreated = "product.created"

// EventPublisher delivers an encoded event to a broker. key identifies the entity.
type EventPublisher interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// ProductEvent is the payload published for product changes.
type ProductEvent struct {
	Event   string         `json:"event"`
	Product models.Product `json:"product"`
}

// publishCreated notifies the broker about a new product. Failures are logged only;
// the product is already stored.
func (s *ProductService) publishCreated(ctx context.Context, p models.Product) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(ProductEvent{Event: EventProductCreated, Product: p})
	if err != nil {
		s.logger.Warn("Failed to marshal product event", "id", p.ID, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, p.ID, body); err != nil {
		s.logger.Warn("Failed to publish product created event", "id", p.ID, "error", err)
		return
	}
	s.logger.Debug("Published product created event", "id", p.ID)
}

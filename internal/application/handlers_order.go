package application

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

type EventHandler interface {
	Handle(ctx context.Context, ev primitives.Event) error
}

// envelopeOf unwraps an integration envelope of one of the accepted types.
// Anything else is acknowledged and dropped.
func envelopeOf(handler string, ev primitives.Event, types ...string) (*primitives.IntegrationEventEnvelope, bool) {
	env, ok := ev.(*primitives.IntegrationEventEnvelope)
	if !ok {
		log.Warn().Str("handler", handler).Msgf("%s: invalid event type %T", handler, ev)
		return nil, false
	}
	for _, t := range types {
		if env.Type == t {
			return env, true
		}
	}
	return nil, false
}

// OrderPlacedHandler

type OrderPlacedHandler struct {
	service *ReserveStockService
}

func NewOrderPlacedHandler(s *ReserveStockService) *OrderPlacedHandler {
	return &OrderPlacedHandler{service: s}
}

func (h *OrderPlacedHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := envelopeOf("OrderPlacedHandler", ev, "OrderPlacedEvent")
	if !ok {
		return nil
	}

	var payload domain.OrderPlacedPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		log.Warn().Err(err).Msg("OrderPlacedHandler: failed to unmarshal payload")
		return nil
	}

	log.Info().
		Str("order_id", payload.OrderID.String()).
		Str("user_id", payload.UserID.String()).
		Int("lines", len(payload.Lines)).
		Msg("OrderPlacedHandler: received order")

	return h.service.HandleOrderPlaced(ctx, payload)
}

// OrderCancelledHandler

type OrderCancelledHandler struct {
	service *ReleaseReservationService
}

func NewOrderCancelledHandler(s *ReleaseReservationService) *OrderCancelledHandler {
	return &OrderCancelledHandler{service: s}
}

func (h *OrderCancelledHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := envelopeOf("OrderCancelledHandler", ev, "OrderCancelledEvent", "OrderRejectedEvent")
	if !ok {
		return nil
	}

	var payload domain.OrderCancelledPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		log.Warn().Err(err).Msg("OrderCancelledHandler: failed to unmarshal payload")
		return nil
	}
	if payload.OrderID == uuid.Nil {
		log.Warn().Msg("OrderCancelledHandler: missing orderId")
		return nil
	}

	log.Info().Str("order_id", payload.OrderID.String()).
		Msg("OrderCancelledHandler: releasing reservation")
	_, err := h.service.HandleOrderCancelled(ctx, payload.OrderID)
	return err
}

package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// ProductCreatedHandler adds new skus to the pool. A sku that already
// exists has its stock overwritten with the catalog's initial quantity.
type ProductCreatedHandler struct {
	pool        *domain.ResourcePool
	coordinator *ReservationCoordinator
	outbox      OutboxWriter
	timeout     time.Duration
}

func NewProductCreatedHandler(
	pool *domain.ResourcePool,
	coordinator *ReservationCoordinator,
	outbox OutboxWriter,
	timeout time.Duration,
) *ProductCreatedHandler {
	return &ProductCreatedHandler{
		pool:        pool,
		coordinator: coordinator,
		outbox:      outbox,
		timeout:     timeout,
	}
}

func (h *ProductCreatedHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := envelopeOf("ProductCreatedHandler", ev, "ProductCreated")
	if !ok {
		return nil
	}

	var payload domain.ProductCreatedPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		log.Warn().Err(err).Msg("ProductCreatedHandler: failed to unmarshal payload")
		return nil
	}
	if payload.Sku == "" {
		log.Warn().Msg("ProductCreatedHandler: missing sku")
		return nil
	}
	if payload.StockQuantity < 0 {
		log.Warn().Str("sku", payload.Sku).Int64("qty", payload.StockQuantity).
			Msg("ProductCreatedHandler: negative stock ignored")
		return nil
	}

	log.Info().Str("sku", payload.Sku).Int64("qty", payload.StockQuantity).
		Msg("ProductCreatedHandler: received ProductCreated")

	_, err := h.pool.Register(payload.Sku, payload.StockQuantity)
	if errors.Is(err, domain.ErrAlreadyExists) {
		err = h.coordinator.Restock(ctx, payload.Sku, payload.StockQuantity, h.timeout)
	}
	if err != nil {
		return err
	}

	adjEv := domain.NewCatalogStockAdjustedEvent(payload.Sku, payload.StockQuantity, "INITIAL_LOAD")
	return h.outbox.Enqueue(ctx, adjEv)
}

package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

type ReleaseReservationService struct {
	pool        *domain.ResourcePool
	coordinator *ReservationCoordinator
	ledger      domain.ReservationLedger
	outbox      OutboxWriter
	timeout     time.Duration
}

func NewReleaseReservationService(
	pool *domain.ResourcePool,
	coordinator *ReservationCoordinator,
	ledger domain.ReservationLedger,
	outbox OutboxWriter,
	timeout time.Duration,
) *ReleaseReservationService {
	return &ReleaseReservationService{
		pool:        pool,
		coordinator: coordinator,
		ledger:      ledger,
		outbox:      outbox,
		timeout:     timeout,
	}
}

// HandleOrderCancelled returns the order's units to the pool. Unknown,
// already released or currently releasing orders are a no-op. Returns the
// released reservation, or nil when nothing was released.
//
// The entry stays RELEASING while units are handed back, so a concurrent
// ReserveOrder for the same order cannot claim it in between.
func (s *ReleaseReservationService) HandleOrderCancelled(
	ctx context.Context,
	orderID uuid.UUID,
) (*domain.StockReservation, error) {
	res, err := s.ledger.Release(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	if err := s.coordinator.Restore(ctx, res.Lines, s.timeout); err != nil {
		// back to ACTIVE so a redelivery can try again
		if aerr := s.ledger.AbortRelease(ctx, orderID); aerr != nil {
			log.Error().Err(aerr).Str("order_id", orderID.String()).
				Msg("ReleaseReservationService: failed to reactivate reservation")
		}
		return nil, err
	}

	released, err := s.ledger.CompleteRelease(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID.String()).
			Msg("ReleaseReservationService: units restored but release could not be recorded")
		return nil, err
	}

	log.Info().Str("order_id", orderID.String()).Int("lines", len(released.Lines)).
		Msg("ReleaseReservationService: reservation released")

	if err := enqueueAdjustments(ctx, s.pool, s.outbox, released.Lines, "ORDER_RELEASED"); err != nil {
		return nil, err
	}
	return released, nil
}

package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// ReserveStockService turns an order into a coordinator reservation,
// records it in the ledger and publishes the result through the outbox.
type ReserveStockService struct {
	pool        *domain.ResourcePool
	coordinator *ReservationCoordinator
	ledger      domain.ReservationLedger
	outbox      OutboxWriter
	timeout     time.Duration
}

func NewReserveStockService(
	pool *domain.ResourcePool,
	coordinator *ReservationCoordinator,
	ledger domain.ReservationLedger,
	outbox OutboxWriter,
	timeout time.Duration,
) *ReserveStockService {
	return &ReserveStockService{
		pool:        pool,
		coordinator: coordinator,
		ledger:      ledger,
		outbox:      outbox,
		timeout:     timeout,
	}
}

// ReserveOrder reserves lines for orderID. A non-positive timeout uses the
// service default. When the order already holds a reservation it is
// returned with OutcomeReserved and nothing is taken twice. An order whose
// release is still in flight is reported as OutcomeContended.
//
// Units are taken before the ledger entry is claimed; a caller that loses
// the claim to a concurrent request for the same order hands its units
// back.
func (s *ReserveStockService) ReserveOrder(
	ctx context.Context,
	orderID, userID uuid.UUID,
	lines []domain.CartLine,
	timeout time.Duration,
) (domain.Outcome, *domain.StockReservation, error) {
	if orderID == uuid.Nil {
		return "", nil, errors.New("missing orderId")
	}
	if timeout <= 0 {
		timeout = s.timeout
	}

	existing, err := s.ledger.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	if existing != nil {
		switch existing.Status {
		case domain.ReservationActive:
			return domain.OutcomeReserved, existing, nil
		case domain.ReservationReleasing:
			return domain.OutcomeContended, nil, nil
		}
	}

	normalized, err := domain.NormalizeCart(lines)
	if err != nil {
		return "", nil, err
	}

	outcome, err := s.coordinator.ReserveLines(ctx, normalized, timeout)
	if err != nil || outcome != domain.OutcomeReserved {
		return outcome, nil, err
	}

	var reservation *domain.StockReservation
	if existing != nil {
		// released earlier, reserved again
		reservation, err = s.ledger.Reactivate(ctx, orderID, userID, normalized)
	} else {
		reservation = domain.NewStockReservation(orderID, userID, normalized)
		err = s.ledger.Insert(ctx, reservation)
	}
	if err != nil {
		if rerr := s.coordinator.Restore(ctx, normalized, timeout); rerr != nil {
			log.Error().Err(rerr).Str("order_id", orderID.String()).
				Msg("ReserveStockService: failed to restore units after losing the ledger entry")
			return "", nil, rerr
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.claimedBy(ctx, orderID)
		}
		return "", nil, err
	}

	if err := s.publishReserved(ctx, reservation); err != nil {
		return "", nil, err
	}
	return domain.OutcomeReserved, reservation, nil
}

// claimedBy reports the entry that a concurrent request for orderID wrote.
// Anything but an ACTIVE entry means that request is itself being undone.
func (s *ReserveStockService) claimedBy(
	ctx context.Context,
	orderID uuid.UUID,
) (domain.Outcome, *domain.StockReservation, error) {
	winner, err := s.ledger.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	if winner == nil || winner.Status != domain.ReservationActive {
		return domain.OutcomeContended, nil, nil
	}
	return domain.OutcomeReserved, winner, nil
}

// HandleOrderPlaced is the event-driven entry point. Contention is
// returned as an error so the bus redelivers the message later.
func (s *ReserveStockService) HandleOrderPlaced(
	ctx context.Context,
	payload domain.OrderPlacedPayload,
) error {
	if payload.OrderID == uuid.Nil {
		return errors.New("missing orderId")
	}
	if len(payload.Lines) == 0 {
		return s.publishFailed(ctx, payload, "", "No lines in order")
	}

	outcome, _, err := s.ReserveOrder(ctx, payload.OrderID, payload.UserID, payload.Lines, 0)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.publishFailed(ctx, payload, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrCartTooLarge):
		return s.publishFailed(ctx, payload, "INVALID", err.Error())
	case err != nil:
		return err
	}

	switch outcome {
	case domain.OutcomeOutOfStock:
		return s.publishFailed(ctx, payload, string(outcome), "Not enough stock")
	case domain.OutcomeContended:
		return errors.Wrapf(domain.ErrLockTimeout, "order %s", payload.OrderID)
	}
	return nil
}

func (s *ReserveStockService) publishReserved(ctx context.Context, res *domain.StockReservation) error {
	if err := s.outbox.Enqueue(ctx, domain.NewStockReservedEvent(res.OrderID, res.UserID, res.Lines)); err != nil {
		return err
	}
	return enqueueAdjustments(ctx, s.pool, s.outbox, res.Lines, "ORDER_RESERVED")
}

func (s *ReserveStockService) publishFailed(
	ctx context.Context,
	payload domain.OrderPlacedPayload,
	outcome, reason string,
) error {
	log.Info().
		Str("order_id", payload.OrderID.String()).
		Str("outcome", outcome).
		Msgf("ReserveStockService: reservation failed: %s", reason)
	ev := domain.NewStockReservationFailedEvent(payload.OrderID, payload.UserID, outcome, reason)
	return s.outbox.Enqueue(ctx, ev)
}

// enqueueAdjustments publishes the current stock of every touched sku.
// Values are read without guards, so they are a best-effort view.
func enqueueAdjustments(
	ctx context.Context,
	pool *domain.ResourcePool,
	outbox OutboxWriter,
	lines []domain.CartLine,
	reason string,
) error {
	for _, l := range lines {
		res, err := pool.Get(l.Sku)
		if err != nil {
			continue
		}
		ev := domain.NewCatalogStockAdjustedEvent(res.ID, res.Stock(), reason)
		if err := outbox.Enqueue(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

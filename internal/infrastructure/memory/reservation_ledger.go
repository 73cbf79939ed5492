package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// ReservationLedger is an in-memory domain.ReservationLedger. Entries are
// copied on the way in and out.
type ReservationLedger struct {
	mu      sync.Mutex
	byOrder map[uuid.UUID]*domain.StockReservation
}

func NewReservationLedger() *ReservationLedger {
	return &ReservationLedger{byOrder: make(map[uuid.UUID]*domain.StockReservation)}
}

func (l *ReservationLedger) GetByOrderID(_ context.Context, orderID uuid.UUID) (*domain.StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	return res.Clone(), nil
}

func (l *ReservationLedger) Insert(_ context.Context, r *domain.StockReservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byOrder[r.OrderID]; ok {
		return errors.Wrapf(domain.ErrAlreadyExists, "reservation for order %s", r.OrderID)
	}
	l.byOrder[r.OrderID] = r.Clone()
	return nil
}

func (l *ReservationLedger) Reactivate(
	_ context.Context,
	orderID, userID uuid.UUID,
	lines []domain.CartLine,
) (*domain.StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.byOrder[orderID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation for order %s", orderID)
	}
	if res.Status != domain.ReservationReleased {
		return nil, errors.Wrapf(domain.ErrAlreadyExists, "reservation for order %s is %s", orderID, res.Status)
	}
	res.UserID = userID
	res.Lines = append([]domain.CartLine(nil), lines...)
	res.ReservedAtUtc = time.Now().UTC()
	res.Reactivate()
	return res.Clone(), nil
}

func (l *ReservationLedger) Release(_ context.Context, orderID uuid.UUID) (*domain.StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.byOrder[orderID]
	if !ok || res.Status != domain.ReservationActive {
		return nil, nil
	}
	res.BeginRelease()
	return res.Clone(), nil
}

func (l *ReservationLedger) CompleteRelease(_ context.Context, orderID uuid.UUID) (*domain.StockReservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.releasing(orderID)
	if err != nil {
		return nil, err
	}
	res.MarkReleased()
	return res.Clone(), nil
}

func (l *ReservationLedger) AbortRelease(_ context.Context, orderID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.releasing(orderID)
	if err != nil {
		return err
	}
	res.Reactivate()
	return nil
}

// releasing returns the entry for orderID if it is RELEASING. l.mu must be
// held.
func (l *ReservationLedger) releasing(orderID uuid.UUID) (*domain.StockReservation, error) {
	res, ok := l.byOrder[orderID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation for order %s", orderID)
	}
	if res.Status != domain.ReservationReleasing {
		return nil, errors.Wrapf(domain.ErrInvariantViolation,
			"reservation for order %s is %s, not %s", orderID, res.Status, domain.ReservationReleasing)
	}
	return res, nil
}

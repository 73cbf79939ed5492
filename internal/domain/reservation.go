package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive ReservationStatus = "ACTIVE"
	// Units are being handed back; the order can be neither released again
	// nor reserved again until the release settles.
	ReservationReleasing ReservationStatus = "RELEASING"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// StockReservation records which units an order took from the pool so
// they can be handed back on cancellation. It lives only in memory.
type StockReservation struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	UserID        uuid.UUID
	Status        ReservationStatus
	ReservedAtUtc time.Time
	ReleasedAtUtc *time.Time
	Lines         []CartLine
}

func NewStockReservation(orderID, userID uuid.UUID, lines []CartLine) *StockReservation {
	return &StockReservation{
		ID:            uuid.New(),
		OrderID:       orderID,
		UserID:        userID,
		Status:        ReservationActive,
		ReservedAtUtc: time.Now().UTC(),
		Lines:         lines,
	}
}

func (r *StockReservation) BeginRelease() {
	r.Status = ReservationReleasing
}

func (r *StockReservation) MarkReleased() {
	if r.Status == ReservationReleased {
		return
	}
	now := time.Now().UTC()
	r.Status = ReservationReleased
	r.ReleasedAtUtc = &now
}

func (r *StockReservation) Reactivate() {
	r.Status = ReservationActive
	r.ReleasedAtUtc = nil
}

// Clone returns a deep copy so ledger entries are never aliased.
func (r *StockReservation) Clone() *StockReservation {
	c := *r
	c.Lines = append([]CartLine(nil), r.Lines...)
	if r.ReleasedAtUtc != nil {
		t := *r.ReleasedAtUtc
		c.ReleasedAtUtc = &t
	}
	return &c
}

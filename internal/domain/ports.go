package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReservationLedger keeps reservations per order. Implementations must be
// safe for concurrent use, and every status change is a compare-and-set on
// the stored entry:
//
//	(none)    --Insert-------> ACTIVE
//	ACTIVE    --Release------> RELEASING --CompleteRelease--> RELEASED
//	RELEASING --AbortRelease-> ACTIVE
//	RELEASED  --Reactivate---> ACTIVE
type ReservationLedger interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*StockReservation, error)
	// Insert fails with ErrAlreadyExists when the order already has an entry.
	Insert(ctx context.Context, r *StockReservation) error
	// Reactivate replaces the lines of a RELEASED entry and makes it ACTIVE.
	// It fails with ErrAlreadyExists when the entry is in any other state and
	// with ErrNotFound when there is no entry.
	Reactivate(ctx context.Context, orderID, userID uuid.UUID, lines []CartLine) (*StockReservation, error)
	// Release moves an ACTIVE entry to RELEASING and returns it. It returns
	// nil when there is nothing to release.
	Release(ctx context.Context, orderID uuid.UUID) (*StockReservation, error)
	// CompleteRelease moves a RELEASING entry to RELEASED.
	CompleteRelease(ctx context.Context, orderID uuid.UUID) (*StockReservation, error)
	// AbortRelease moves a RELEASING entry back to ACTIVE.
	AbortRelease(ctx context.Context, orderID uuid.UUID) error
}

type OutboxRepository interface {
	Insert(ctx context.Context, msg OutboxMessage) error
	GetPendingBatch(ctx context.Context, maxRetry, batchSize int) ([]OutboxMessage, error)
	Save(ctx context.Context, msg OutboxMessage) error
}

// SnapshotRepository stores periodic stock samples for diagnostics.
type SnapshotRepository interface {
	InsertBatch(ctx context.Context, takenAt time.Time, snaps []ResourceSnapshot) error
	Latest(ctx context.Context) ([]ResourceSnapshot, time.Time, error)
}

type OutboxMessage struct {
	ID             uuid.UUID
	Type           string
	PayloadJSON    string
	OccurredAtUtc  int64 // unix seconds
	RetryCount     int
	ProcessedAtUtc *int64
}

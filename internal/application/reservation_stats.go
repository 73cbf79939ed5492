package application

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

type StatsSnapshot struct {
	Reserved      uint64 `json:"reserved"`
	Contended     uint64 `json:"contended"`
	OutOfStock    uint64 `json:"outOfStock"`
	NotFound      uint64 `json:"notFound"`
	Rejected      uint64 `json:"rejected"`
	Faults        uint64 `json:"faults"`
	UnitsReserved uint64 `json:"unitsReserved"`
	UnitsRestored uint64 `json:"unitsRestored"`
}

func (s StatsSnapshot) Attempts() uint64 {
	return s.Reserved + s.Contended + s.OutOfStock + s.NotFound + s.Rejected + s.Faults
}

// ReservationStats is the one place reservation counters live. Every
// counter is guarded by mu; pass the instance to whoever needs it.
type ReservationStats struct {
	mu     sync.Mutex
	counts StatsSnapshot
}

func NewReservationStats() *ReservationStats {
	return &ReservationStats{}
}

func (s *ReservationStats) RecordOutcome(o domain.Outcome, units int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch o {
	case domain.OutcomeReserved:
		s.counts.Reserved++
		s.counts.UnitsReserved += uint64(units)
	case domain.OutcomeContended:
		s.counts.Contended++
	case domain.OutcomeOutOfStock:
		s.counts.OutOfStock++
	}
}

func (s *ReservationStats) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.counts.NotFound++
	case isRejection(err):
		s.counts.Rejected++
	default:
		s.counts.Faults++
	}
}

func (s *ReservationStats) RecordRestore(units int64) {
	s.mu.Lock()
	s.counts.UnitsRestored += uint64(units)
	s.mu.Unlock()
}

func (s *ReservationStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// isRejection reports errors caused by a malformed request rather than by
// the service.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrEmptyCart) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrCartTooLarge) ||
		errors.Is(err, domain.ErrInvalidStock)
}

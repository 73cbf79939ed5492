package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

var tracer = otel.Tracer("stocklock/application")

// errAcquireTimeout is internal: Reserve turns it into OutcomeContended,
// the other operations into domain.ErrLockTimeout.
var errAcquireTimeout = errors.New("acquire timeout")

// ReservationCoordinator decrements stock on a set of resources as one
// all-or-nothing step.
//
// Deadlock freedom comes from lock order alone: every operation locks its
// resources in ascending sku order, so no two callers can wait on each
// other in a cycle. Guards are acquired under a single time budget and are
// always released before the call returns.
type ReservationCoordinator struct {
	pool  *domain.ResourcePool
	stats *ReservationStats
}

func NewReservationCoordinator(pool *domain.ResourcePool, stats *ReservationStats) *ReservationCoordinator {
	return &ReservationCoordinator{pool: pool, stats: stats}
}

// Reserve takes one unit of every sku in cart. A sku listed twice is
// locked once and decremented twice.
func (c *ReservationCoordinator) Reserve(
	ctx context.Context,
	cart []string,
	timeout time.Duration,
) (domain.Outcome, error) {
	return c.ReserveLines(ctx, domain.CartFromSkus(cart), timeout)
}

// ReserveLines is Reserve with explicit quantities. Any shortfall on any
// line is OutcomeOutOfStock; there is no partial fulfilment.
func (c *ReservationCoordinator) ReserveLines(
	ctx context.Context,
	lines []domain.CartLine,
	timeout time.Duration,
) (domain.Outcome, error) {
	ctx, span := tracer.Start(ctx, "ReservationCoordinator.Reserve")
	defer span.End()

	plan, err := c.plan(lines)
	if err != nil {
		c.stats.RecordError(err)
		span.RecordError(err)
		return "", err
	}

	outcome, err := c.withLocks(ctx, plan, timeout, func() (domain.Outcome, error) {
		for _, step := range plan {
			if !step.res.CanTake(step.qty) {
				return domain.OutcomeOutOfStock, nil
			}
		}
		if err := takeAll(plan); err != nil {
			return "", err
		}
		return domain.OutcomeReserved, nil
	})
	if errors.Is(err, errAcquireTimeout) {
		outcome, err = domain.OutcomeContended, nil
	}

	if err != nil {
		c.stats.RecordError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrInvariantViolation) {
			log.Error().Err(err).Msg("ReservationCoordinator: invariant violated")
		}
		return "", err
	}

	c.stats.RecordOutcome(outcome, planUnits(plan))
	span.SetAttributes(
		attribute.String("reservation.outcome", string(outcome)),
		attribute.Int("reservation.skus", len(plan)),
	)
	return outcome, nil
}

// Restore hands units back to the pool, e.g. when an order is cancelled.
func (c *ReservationCoordinator) Restore(
	ctx context.Context,
	lines []domain.CartLine,
	timeout time.Duration,
) error {
	plan, err := c.plan(lines)
	if err != nil {
		return err
	}

	_, err = c.withLocks(ctx, plan, timeout, func() (domain.Outcome, error) {
		for _, step := range plan {
			step.res.Put(step.qty)
		}
		return "", nil
	})
	if errors.Is(err, errAcquireTimeout) {
		return errors.Wrap(domain.ErrLockTimeout, "restore")
	}
	if err != nil {
		return err
	}
	c.stats.RecordRestore(planUnits(plan))
	return nil
}

// Restock overwrites the stock of a single resource.
func (c *ReservationCoordinator) Restock(
	ctx context.Context,
	sku string,
	stock int64,
	timeout time.Duration,
) error {
	if stock < 0 {
		return domain.ErrInvalidStock
	}
	res, err := c.pool.Get(sku)
	if err != nil {
		return err
	}

	plan := []lockStep{{res: res}}
	_, err = c.withLocks(ctx, plan, timeout, func() (domain.Outcome, error) {
		res.Set(stock)
		return "", nil
	})
	if errors.Is(err, errAcquireTimeout) {
		return errors.Wrapf(domain.ErrLockTimeout, "restock %s", sku)
	}
	return err
}

type lockStep struct {
	res *domain.Resource
	qty int64
}

// plan validates the cart and resolves every sku before any lock is taken.
func (c *ReservationCoordinator) plan(lines []domain.CartLine) ([]lockStep, error) {
	normalized, err := domain.NormalizeCart(lines)
	if err != nil {
		return nil, err
	}
	if len(normalized) > c.pool.Len() {
		return nil, errors.Wrapf(domain.ErrCartTooLarge, "%d skus", len(normalized))
	}

	plan := make([]lockStep, 0, len(normalized))
	for _, l := range normalized {
		res, err := c.pool.Get(l.Sku)
		if err != nil {
			return nil, err
		}
		plan = append(plan, lockStep{res: res, qty: l.Quantity})
	}
	return plan, nil
}

// withLocks runs fn with every guard in plan held. plan must already be in
// lock order.
func (c *ReservationCoordinator) withLocks(
	ctx context.Context,
	plan []lockStep,
	timeout time.Duration,
	fn func() (domain.Outcome, error),
) (domain.Outcome, error) {
	set, err := acquireAll(ctx, plan, timeout)
	if err != nil {
		return "", err
	}
	defer set.release()

	return fn()
}

// lockSet holds the guards taken by one call. release is idempotent.
type lockSet struct {
	held []*domain.Resource
}

func (s *lockSet) release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		s.held[i].Unlock()
	}
	s.held = nil
}

// acquireAll locks plan in order under one deadline. On failure nothing is
// left held. A non-positive timeout means try once without waiting.
func acquireAll(ctx context.Context, plan []lockStep, timeout time.Duration) (*lockSet, error) {
	set := &lockSet{held: make([]*domain.Resource, 0, len(plan))}

	if timeout <= 0 {
		for _, step := range plan {
			if !step.res.TryLock() {
				set.release()
				return nil, errAcquireTimeout
			}
			set.held = append(set.held, step.res)
		}
		return set, nil
	}

	budget, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, step := range plan {
		if err := step.res.Lock(budget); err != nil {
			set.release()
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "reservation aborted")
			}
			return nil, errAcquireTimeout
		}
		set.held = append(set.held, step.res)
	}
	return set, nil
}

// takeAll decrements every step or none. Guards must be held.
func takeAll(plan []lockStep) error {
	for i, step := range plan {
		if err := step.res.Take(step.qty); err != nil {
			for _, done := range plan[:i] {
				done.res.Put(done.qty)
			}
			return err
		}
	}
	return nil
}

func planUnits(plan []lockStep) int64 {
	var n int64
	for _, step := range plan {
		n += step.qty
	}
	return n
}

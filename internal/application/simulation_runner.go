package application

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

var ErrInvalidSimulation = errors.New("invalid simulation request")

const (
	DefaultSimulationMaxOrders   = 10000
	DefaultSimulationMaxCartSize = 8
)

// SimulationLimits caps a single run. Zero fields take the defaults.
type SimulationLimits struct {
	MaxOrders   int
	MaxCartSize int
}

type SimulationRequest struct {
	Orders      int           `json:"orders"`
	CartSize    int           `json:"cartSize"`
	Parallelism int           `json:"parallelism"`
	Timeout     time.Duration `json:"-"`
}

type SimulationResult struct {
	Orders         int    `json:"orders"`
	Reserved       uint64 `json:"reserved"`
	Contended      uint64 `json:"contended"`
	OutOfStock     uint64 `json:"outOfStock"`
	Failed         uint64 `json:"failed"`
	UnitsReserved  uint64 `json:"unitsReserved"`
	TotalRemaining int64  `json:"totalRemaining"`
	TookMs         int64  `json:"tookMs"`
}

// SimulationRunner fires many concurrent orders with random carts at the
// coordinator and tallies the outcomes. Carts are drawn with replacement
// and in no particular order; ordering is the coordinator's job.
type SimulationRunner struct {
	pool        *domain.ResourcePool
	coordinator *ReservationCoordinator
	limits      SimulationLimits
}

func NewSimulationRunner(
	pool *domain.ResourcePool,
	coordinator *ReservationCoordinator,
	limits SimulationLimits,
) *SimulationRunner {
	if limits.MaxOrders <= 0 {
		limits.MaxOrders = DefaultSimulationMaxOrders
	}
	if limits.MaxCartSize <= 0 {
		limits.MaxCartSize = DefaultSimulationMaxCartSize
	}
	return &SimulationRunner{pool: pool, coordinator: coordinator, limits: limits}
}

func (r *SimulationRunner) Run(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	if req.Orders <= 0 || req.Orders > r.limits.MaxOrders {
		return SimulationResult{}, errors.Wrapf(ErrInvalidSimulation,
			"orders must be in [1, %d], got %d", r.limits.MaxOrders, req.Orders)
	}
	if req.CartSize <= 0 || req.CartSize > r.limits.MaxCartSize {
		return SimulationResult{}, errors.Wrapf(ErrInvalidSimulation,
			"cartSize must be in [1, %d], got %d", r.limits.MaxCartSize, req.CartSize)
	}

	ids := r.pool.IDs()
	if len(ids) == 0 {
		return SimulationResult{}, errors.Wrap(ErrInvalidSimulation, "pool is empty")
	}

	tally := NewReservationStats()
	begin := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	if req.Parallelism > 0 {
		g.SetLimit(req.Parallelism)
	}
	for i := 0; i < req.Orders; i++ {
		cart := randomCart(ids, req.CartSize)
		g.Go(func() error {
			outcome, err := r.coordinator.Reserve(gctx, cart, req.Timeout)
			if err != nil {
				tally.RecordError(err)
				if errors.Is(err, domain.ErrInvariantViolation) {
					return err
				}
				return nil
			}
			tally.RecordOutcome(outcome, int64(len(cart)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SimulationResult{}, err
	}

	counts := tally.Snapshot()
	res := SimulationResult{
		Orders:         req.Orders,
		Reserved:       counts.Reserved,
		Contended:      counts.Contended,
		OutOfStock:     counts.OutOfStock,
		Failed:         counts.NotFound + counts.Rejected + counts.Faults,
		UnitsReserved:  counts.UnitsReserved,
		TotalRemaining: r.pool.TotalStock(),
		TookMs:         time.Since(begin).Milliseconds(),
	}

	log.Info().
		Int("orders", res.Orders).
		Uint64("success", res.Reserved).
		Uint64("contended", res.Contended).
		Uint64("out_of_stock", res.OutOfStock).
		Int64("total_remaining", res.TotalRemaining).
		Int64("took_ms", res.TookMs).
		Msg("SimulationRunner: run finished")
	return res, nil
}

func randomCart(ids []string, size int) []string {
	cart := make([]string, size)
	for i := range cart {
		cart[i] = ids[rand.IntN(len(ids))]
	}
	return cart
}

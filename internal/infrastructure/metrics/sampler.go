package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/application"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// Sampler copies reservation counters and pool stock into the collector
// and, when a repository is set, stores the stock sample.
type Sampler struct {
	pool      *domain.ResourcePool
	stats     *application.ReservationStats
	collector *Collector
	snapshots domain.SnapshotRepository
	now       func() time.Time
}

func NewSampler(
	pool *domain.ResourcePool,
	stats *application.ReservationStats,
	collector *Collector,
	snapshots domain.SnapshotRepository,
) *Sampler {
	return &Sampler{
		pool:      pool,
		stats:     stats,
		collector: collector,
		snapshots: snapshots,
		now:       time.Now,
	}
}

func (s *Sampler) Name() string { return "metrics-sampler" }

func (s *Sampler) RunOnce(ctx context.Context) (int, error) {
	stats := s.stats.Snapshot()
	snaps := s.pool.Snapshot()

	s.collector.observeStats(stats)
	s.collector.observePool(snaps)

	var total int64
	for _, sn := range snaps {
		total += sn.Stock
		if sn.Stock < 0 {
			log.Error().Str("sku", sn.ID).Int64("stock", sn.Stock).
				Msg("Sampler: negative stock observed")
		}
	}
	log.Debug().
		Uint64("reserved", stats.Reserved).
		Uint64("contended", stats.Contended).
		Uint64("out_of_stock", stats.OutOfStock).
		Int64("total_stock", total).
		Msg("Sampler: sample taken")

	if s.snapshots == nil {
		return len(snaps), nil
	}
	if err := s.snapshots.InsertBatch(ctx, s.now(), snaps); err != nil {
		return 0, err
	}
	return len(snaps), nil
}

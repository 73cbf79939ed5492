package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/application"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

const namespace = "stocklock"

// Collector holds the gauges the sampler writes to. Counters mirror
// ReservationStats, so they are exposed as gauges set from samples.
type Collector struct {
	attempts      *prometheus.GaugeVec
	units         *prometheus.GaugeVec
	resourceStock *prometheus.GaugeVec
	totalStock    prometheus.Gauge
	resources     prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		attempts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reservation_attempts",
			Help:      "Reservation attempts by result, as last sampled.",
		}, []string{"result"}),
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reservation_units",
			Help:      "Units reserved and restored, as last sampled.",
		}, []string{"direction"}),
		resourceStock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_stock",
			Help:      "Current stock per resource.",
		}, []string{"sku"}),
		totalStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_stock",
			Help:      "Sum of stock over all resources.",
		}),
		resources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resources",
			Help:      "Number of resources in the pool.",
		}),
	}
	reg.MustRegister(c.attempts, c.units, c.resourceStock, c.totalStock, c.resources)
	return c
}

func (c *Collector) observeStats(s application.StatsSnapshot) {
	c.attempts.WithLabelValues(string(domain.OutcomeReserved)).Set(float64(s.Reserved))
	c.attempts.WithLabelValues(string(domain.OutcomeContended)).Set(float64(s.Contended))
	c.attempts.WithLabelValues(string(domain.OutcomeOutOfStock)).Set(float64(s.OutOfStock))
	c.attempts.WithLabelValues("NOT_FOUND").Set(float64(s.NotFound))
	c.attempts.WithLabelValues("REJECTED").Set(float64(s.Rejected))
	c.attempts.WithLabelValues("FAULT").Set(float64(s.Faults))
	c.units.WithLabelValues("reserved").Set(float64(s.UnitsReserved))
	c.units.WithLabelValues("restored").Set(float64(s.UnitsRestored))
}

func (c *Collector) observePool(snaps []domain.ResourceSnapshot) {
	var total int64
	for _, s := range snaps {
		c.resourceStock.WithLabelValues(s.ID).Set(float64(s.Stock))
		total += s.Stock
	}
	c.totalStock.Set(float64(total))
	c.resources.Set(float64(len(snaps)))
}

package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// Publisher is the part of the event bus the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, ev primitives.Event) error
}

// Dispatcher forwards pending outbox messages to the bus. Failures bump
// the retry count; messages past maxRetry are left in place.
type Dispatcher struct {
	repo      domain.OutboxRepository
	bus       Publisher
	maxRetry  int
	batchSize int
}

func NewDispatcher(repo domain.OutboxRepository, bus Publisher, maxRetry, batchSize int) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		bus:       bus,
		maxRetry:  maxRetry,
		batchSize: batchSize,
	}
}

func (d *Dispatcher) Name() string { return "outbox-dispatcher" }

func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	return d.DispatchOnce(ctx)
}

func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.repo.GetPendingBatch(ctx, d.maxRetry, d.batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		msg := &msgs[i]

		if !json.Valid([]byte(msg.PayloadJSON)) {
			log.Warn().Str("id", msg.ID.String()).Str("type", msg.Type).
				Msg("Outbox: payload is not valid JSON")
			msg.RetryCount++
			d.save(ctx, msg)
			continue
		}

		envelope := primitives.NewIntegrationEventEnvelope(msg.Type, msg.PayloadJSON)
		envelope.SetRoutingKey(msg.Type)

		if err := d.bus.Publish(ctx, &envelope); err != nil {
			log.Warn().Err(err).Str("type", msg.Type).Msg("Outbox: publish failed")
			msg.RetryCount++
		} else {
			now := time.Now().UTC().Unix()
			msg.ProcessedAtUtc = &now
			processed++
		}
		d.save(ctx, msg)
	}

	return processed, nil
}

func (d *Dispatcher) save(ctx context.Context, msg *domain.OutboxMessage) {
	if err := d.repo.Save(ctx, *msg); err != nil {
		log.Error().Err(err).Str("id", msg.ID.String()).Msg("Outbox: failed to save message")
	}
}

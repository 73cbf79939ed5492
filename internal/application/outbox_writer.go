package application

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

type OutboxWriter interface {
	Enqueue(ctx context.Context, ev primitives.Event) error
}

type outboxWriter struct {
	repo domain.OutboxRepository
	now  func() time.Time
}

func NewOutboxWriter(repo domain.OutboxRepository) OutboxWriter {
	return &outboxWriter{repo: repo, now: time.Now}
}

// Enqueue stores ev as a pending outbox message. The message type is the
// event routing key, falling back to the Go type name.
func (w *outboxWriter) Enqueue(ctx context.Context, ev primitives.Event) error {
	if ev == nil {
		return errors.New("outbox: nil event")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "outbox: marshal event")
	}

	eventType := ev.GetRoutingKey()
	if eventType == "" {
		eventType = typeNameOf(ev)
	}

	msg := domain.OutboxMessage{
		ID:            uuid.New(),
		Type:          eventType,
		PayloadJSON:   string(payload),
		OccurredAtUtc: w.now().UTC().Unix(),
	}
	return errors.Wrapf(w.repo.Insert(ctx, msg), "outbox: insert %s", eventType)
}

func typeNameOf(ev primitives.Event) string {
	t := reflect.TypeOf(ev)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

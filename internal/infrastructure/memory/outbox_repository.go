package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// OutboxRepository keeps outbox messages in memory. Used when no Postgres
// DSN is configured and in tests.
type OutboxRepository struct {
	mu   sync.Mutex
	seq  int64
	msgs map[uuid.UUID]entry
}

type entry struct {
	seq int64
	msg domain.OutboxMessage
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{msgs: make(map[uuid.UUID]entry)}
}

func (r *OutboxRepository) Insert(_ context.Context, msg domain.OutboxMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.msgs[msg.ID] = entry{seq: r.seq, msg: msg}
	return nil
}

func (r *OutboxRepository) GetPendingBatch(_ context.Context, maxRetry, batchSize int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]entry, 0)
	for _, e := range r.msgs {
		if e.msg.ProcessedAtUtc == nil && e.msg.RetryCount < maxRetry {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	if batchSize > 0 && len(pending) > batchSize {
		pending = pending[:batchSize]
	}

	out := make([]domain.OutboxMessage, 0, len(pending))
	for _, e := range pending {
		out = append(out, e.msg)
	}
	return out, nil
}

func (r *OutboxRepository) Save(_ context.Context, msg domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.msgs[msg.ID]
	if !ok {
		return errors.Errorf("outbox message %s not found", msg.ID)
	}
	e.msg.RetryCount = msg.RetryCount
	if msg.ProcessedAtUtc != nil {
		e.msg.ProcessedAtUtc = msg.ProcessedAtUtc
	}
	r.msgs[msg.ID] = e
	return nil
}

// All returns every stored message in insertion order.
func (r *OutboxRepository) All() []domain.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]entry, 0, len(r.msgs))
	for _, e := range r.msgs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]domain.OutboxMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.msg)
	}
	return out
}

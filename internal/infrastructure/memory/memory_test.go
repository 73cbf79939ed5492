package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

func TestReservationLedgerLifecycle(t *testing.T) {
	l := NewReservationLedger()
	ctx := context.Background()
	orderID := uuid.New()

	if got, err := l.GetByOrderID(ctx, orderID); got != nil || err != nil {
		t.Fatalf("GetByOrderID on empty ledger = %v, %v", got, err)
	}

	res := domain.NewStockReservation(orderID, uuid.New(), []domain.CartLine{{Sku: "item0", Quantity: 2}})
	if err := l.Insert(ctx, res); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := l.Insert(ctx, res); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second Insert err = %v, want ErrAlreadyExists", err)
	}

	// stored copies are not aliased
	res.Lines[0].Quantity = 99
	got, _ := l.GetByOrderID(ctx, orderID)
	if got.Lines[0].Quantity != 2 {
		t.Fatalf("ledger aliased caller's lines: %+v", got.Lines)
	}

	if _, err := l.Reactivate(ctx, orderID, uuid.New(), nil); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Reactivate of ACTIVE err = %v, want ErrAlreadyExists", err)
	}
	if _, err := l.CompleteRelease(ctx, orderID); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("CompleteRelease of ACTIVE err = %v, want ErrInvariantViolation", err)
	}

	releasing, err := l.Release(ctx, orderID)
	if err != nil || releasing == nil || releasing.Status != domain.ReservationReleasing {
		t.Fatalf("Release = %+v, %v", releasing, err)
	}
	if again, _ := l.Release(ctx, orderID); again != nil {
		t.Fatal("Release of a RELEASING entry returned it")
	}
	if _, err := l.Reactivate(ctx, orderID, uuid.New(), nil); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Reactivate of RELEASING err = %v, want ErrAlreadyExists", err)
	}

	if err := l.AbortRelease(ctx, orderID); err != nil {
		t.Fatalf("AbortRelease: %v", err)
	}
	if got, _ := l.GetByOrderID(ctx, orderID); got.Status != domain.ReservationActive {
		t.Fatalf("status after abort = %s, want ACTIVE", got.Status)
	}

	if _, err := l.Release(ctx, orderID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	released, err := l.CompleteRelease(ctx, orderID)
	if err != nil || released.Status != domain.ReservationReleased || released.ReleasedAtUtc == nil {
		t.Fatalf("CompleteRelease = %+v, %v", released, err)
	}
	if again, _ := l.Release(ctx, orderID); again != nil {
		t.Fatal("Release of a RELEASED entry returned it")
	}

	userID := uuid.New()
	lines := []domain.CartLine{{Sku: "item1", Quantity: 3}}
	active, err := l.Reactivate(ctx, orderID, userID, lines)
	if err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if active.ID != res.ID || active.Status != domain.ReservationActive || active.ReleasedAtUtc != nil ||
		active.UserID != userID || active.Lines[0] != lines[0] {
		t.Fatalf("Reactivate = %+v", active)
	}
	if _, err := l.Reactivate(ctx, orderID, userID, lines); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second Reactivate err = %v, want ErrAlreadyExists", err)
	}

	if _, err := l.Reactivate(ctx, uuid.New(), userID, lines); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Reactivate unknown err = %v, want ErrNotFound", err)
	}
	if err := l.AbortRelease(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("AbortRelease unknown err = %v, want ErrNotFound", err)
	}
}

// Only one of many concurrent reactivations of the same entry may win.
func TestReservationLedgerReactivateIsExclusive(t *testing.T) {
	l := NewReservationLedger()
	ctx := context.Background()
	orderID := uuid.New()

	_ = l.Insert(ctx, domain.NewStockReservation(orderID, uuid.New(), nil))
	_, _ = l.Release(ctx, orderID)
	_, _ = l.CompleteRelease(ctx, orderID)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Reactivate(ctx, orderID, uuid.New(), nil); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("%d reactivations won, want 1", wins.Load())
	}
}

func TestOutboxRepositoryPendingOrderAndRetry(t *testing.T) {
	r := NewOutboxRepository()
	ctx := context.Background()

	var ids []uuid.UUID
	for _, typ := range []string{"A", "B", "C"} {
		msg := domain.OutboxMessage{ID: uuid.New(), Type: typ, PayloadJSON: "{}"}
		ids = append(ids, msg.ID)
		if err := r.Insert(ctx, msg); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	batch, _ := r.GetPendingBatch(ctx, 3, 2)
	if len(batch) != 2 || batch[0].Type != "A" || batch[1].Type != "B" {
		t.Fatalf("batch = %+v", batch)
	}

	now := time.Now().Unix()
	batch[0].ProcessedAtUtc = &now
	batch[1].RetryCount = 3
	for _, m := range batch {
		if err := r.Save(ctx, m); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	batch, _ = r.GetPendingBatch(ctx, 3, 10)
	if len(batch) != 1 || batch[0].ID != ids[2] {
		t.Fatalf("pending = %+v", batch)
	}
	if len(r.All()) != 3 {
		t.Fatalf("All() = %d messages, want 3", len(r.All()))
	}

	if err := r.Save(ctx, domain.OutboxMessage{ID: uuid.New()}); err == nil {
		t.Fatal("Save of unknown message expected error")
	}
}

func TestSnapshotRepositoryKeepsLatest(t *testing.T) {
	r := NewSnapshotRepository()
	ctx := context.Background()

	t0 := time.Now()
	snaps := []domain.ResourceSnapshot{{ID: "item0", Stock: 3}}
	_ = r.InsertBatch(ctx, t0, snaps)
	snaps[0].Stock = 100

	t1 := t0.Add(time.Second)
	_ = r.InsertBatch(ctx, t1, []domain.ResourceSnapshot{{ID: "item0", Stock: 2}, {ID: "item1", Stock: 1}})

	got, at, err := r.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !at.Equal(t1) || len(got) != 2 || got[0].Stock != 2 {
		t.Fatalf("Latest = %+v at %s", got, at)
	}
}

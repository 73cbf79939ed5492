package application

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

func newTestCoordinator(t *testing.T, n int, stock int64) (*domain.ResourcePool, *ReservationCoordinator, *ReservationStats) {
	t.Helper()
	pool := domain.NewResourcePool()
	if err := pool.Initialize(n, stock); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	stats := NewReservationStats()
	return pool, NewReservationCoordinator(pool, stats), stats
}

func stockOf(t *testing.T, pool *domain.ResourcePool, id string) int64 {
	t.Helper()
	r, err := pool.Get(id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return r.Stock()
}

func TestReserveDecrementsEveryLine(t *testing.T) {
	pool, c, stats := newTestCoordinator(t, 3, 5)

	outcome, err := c.Reserve(context.Background(), []string{"item2", "item0"}, time.Second)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if outcome != domain.OutcomeReserved {
		t.Fatalf("outcome = %s, want RESERVED", outcome)
	}
	if stockOf(t, pool, "item0") != 4 || stockOf(t, pool, "item1") != 5 || stockOf(t, pool, "item2") != 4 {
		t.Fatalf("unexpected stock: %+v", pool.Snapshot())
	}
	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
	if s := stats.Snapshot(); s.Reserved != 1 || s.UnitsReserved != 2 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestReserveDuplicateIDsLockOnceAndCountTwice(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 2, 5)

	outcome, err := c.Reserve(context.Background(), []string{"item1", "item1", "item0"}, time.Second)
	if err != nil || outcome != domain.OutcomeReserved {
		t.Fatalf("Reserve = %s, %v", outcome, err)
	}
	if got := stockOf(t, pool, "item1"); got != 3 {
		t.Fatalf("item1 stock = %d, want 3", got)
	}
	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
}

func TestReserveUnknownIDFailsBeforeLocking(t *testing.T) {
	pool, c, stats := newTestCoordinator(t, 2, 5)

	// hold item0: a lookup failure must not wait on it
	r0, _ := pool.Get("item0")
	r0.TryLock()
	defer r0.Unlock()

	start := time.Now()
	_, err := c.Reserve(context.Background(), []string{"item0", "nope"}, time.Second)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("NotFound waited on a lock")
	}
	if stockOf(t, pool, "item0") != 5 {
		t.Fatal("stock changed on NotFound")
	}
	if s := stats.Snapshot(); s.NotFound != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestReserveRejectsInvalidCarts(t *testing.T) {
	_, c, stats := newTestCoordinator(t, 2, 5)
	ctx := context.Background()

	if _, err := c.Reserve(ctx, nil, time.Second); !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("empty cart err = %v", err)
	}
	if _, err := c.ReserveLines(ctx, []domain.CartLine{{Sku: "item0", Quantity: 0}}, time.Second); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("zero quantity err = %v", err)
	}
	if s := stats.Snapshot(); s.Rejected != 2 || s.Faults != 0 {
		t.Errorf("stats = %+v, want 2 rejected and no faults", s)
	}
}

func TestReserveCartLargerThanPool(t *testing.T) {
	_, c, _ := newTestCoordinator(t, 2, 5)

	_, err := c.Reserve(context.Background(), []string{"item0", "item1", "item2"}, time.Second)
	if !errors.Is(err, domain.ErrCartTooLarge) {
		t.Fatalf("err = %v, want ErrCartTooLarge", err)
	}
}

func TestReserveOutOfStockIsAllOrNothing(t *testing.T) {
	pool, c, stats := newTestCoordinator(t, 3, 1)
	r2, _ := pool.Get("item2")
	r2.TryLock()
	_ = r2.Take(1)
	r2.Unlock()

	outcome, err := c.Reserve(context.Background(), []string{"item0", "item1", "item2"}, time.Second)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if outcome != domain.OutcomeOutOfStock {
		t.Fatalf("outcome = %s, want OUT_OF_STOCK", outcome)
	}
	if stockOf(t, pool, "item0") != 1 || stockOf(t, pool, "item1") != 1 {
		t.Fatalf("partial decrement: %+v", pool.Snapshot())
	}
	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
	if s := stats.Snapshot(); s.OutOfStock != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestReserveLinesShortfallIsOutOfStock(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 2, 3)

	outcome, err := c.ReserveLines(context.Background(), []domain.CartLine{
		{Sku: "item0", Quantity: 2},
		{Sku: "item1", Quantity: 4},
	}, time.Second)
	if err != nil || outcome != domain.OutcomeOutOfStock {
		t.Fatalf("ReserveLines = %s, %v", outcome, err)
	}
	if pool.TotalStock() != 6 {
		t.Fatalf("total = %d, want 6", pool.TotalStock())
	}
}

func TestReserveContendedReleasesHeldLocks(t *testing.T) {
	pool, c, stats := newTestCoordinator(t, 3, 5)

	// item1 is held elsewhere; item0 will be acquired first and must be
	// released again when item1 times out.
	r1, _ := pool.Get("item1")
	if !r1.TryLock() {
		t.Fatal("TryLock")
	}

	outcome, err := c.Reserve(context.Background(), []string{"item1", "item0", "item2"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if outcome != domain.OutcomeContended {
		t.Fatalf("outcome = %s, want CONTENDED", outcome)
	}

	r0, _ := pool.Get("item0")
	if !r0.TryLock() {
		t.Fatal("item0 still held after Contended")
	}
	r0.Unlock()
	r1.Unlock()

	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
	if pool.TotalStock() != 15 {
		t.Fatalf("stock changed on Contended: %d", pool.TotalStock())
	}
	if s := stats.Snapshot(); s.Contended != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestReserveZeroTimeoutDoesNotBlock(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 2, 5)
	r1, _ := pool.Get("item1")
	r1.TryLock()
	defer r1.Unlock()

	start := time.Now()
	outcome, err := c.Reserve(context.Background(), []string{"item0", "item1"}, 0)
	if err != nil || outcome != domain.OutcomeContended {
		t.Fatalf("Reserve = %s, %v", outcome, err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatal("zero timeout blocked")
	}

	r0, _ := pool.Get("item0")
	if !r0.TryLock() {
		t.Fatal("item0 leaked")
	}
	r0.Unlock()
}

func TestReserveCancelledContextIsAnError(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 2, 5)
	r1, _ := pool.Get("item1")
	r1.TryLock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Reserve(ctx, []string{"item0", "item1"}, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	r1.Unlock()
	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreAndRestock(t *testing.T) {
	pool, c, stats := newTestCoordinator(t, 2, 5)
	ctx := context.Background()

	if err := c.Restore(ctx, []domain.CartLine{{Sku: "item0", Quantity: 3}}, time.Second); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if stockOf(t, pool, "item0") != 8 {
		t.Fatalf("item0 = %d, want 8", stockOf(t, pool, "item0"))
	}
	if err := c.Restock(ctx, "item1", 42, time.Second); err != nil {
		t.Fatalf("Restock: %v", err)
	}
	if stockOf(t, pool, "item1") != 42 {
		t.Fatalf("item1 = %d, want 42", stockOf(t, pool, "item1"))
	}
	if err := c.Restock(ctx, "item1", -1, time.Second); !errors.Is(err, domain.ErrInvalidStock) {
		t.Fatalf("err = %v, want ErrInvalidStock", err)
	}
	if s := stats.Snapshot(); s.UnitsRestored != 3 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestRestoreTimeoutIsLockTimeout(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 1, 5)
	r0, _ := pool.Get("item0")
	r0.TryLock()
	defer r0.Unlock()

	err := c.Restore(context.Background(), []domain.CartLine{{Sku: "item0", Quantity: 1}}, 20*time.Millisecond)
	if !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
	if stockOf(t, pool, "item0") != 5 {
		t.Fatal("stock changed on timeout")
	}
}

// Ten items with a thousand units each, a hundred concurrent orders of
// three random items in random order.
func TestConcurrentRandomCartsNoDeadlockAndConservation(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 10, 1000)
	ids := pool.IDs()

	var (
		mu        sync.Mutex
		decrement = make(map[string]int64)
		outcomes  = make(map[domain.Outcome]int)
	)

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < 100; i++ {
		cart := []string{
			ids[rand.IntN(len(ids))],
			ids[rand.IntN(len(ids))],
			ids[rand.IntN(len(ids))],
		}
		g.Go(func() error {
			outcome, err := c.Reserve(context.Background(), cart, 10*time.Second)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			outcomes[outcome]++
			if outcome == domain.OutcomeReserved {
				for _, id := range cart {
					decrement[id]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if took := time.Since(start); took > 5*time.Second {
		t.Fatalf("took %s, expected well under the lock timeout", took)
	}

	total := 0
	for o, n := range outcomes {
		switch o {
		case domain.OutcomeReserved, domain.OutcomeContended, domain.OutcomeOutOfStock:
		default:
			t.Fatalf("unexpected outcome %q", o)
		}
		total += n
	}
	if total != 100 {
		t.Fatalf("%d outcomes, want 100", total)
	}
	if outcomes[domain.OutcomeReserved] != 100 {
		t.Fatalf("reserved = %d, want 100 with a 10s budget", outcomes[domain.OutcomeReserved])
	}

	for _, id := range ids {
		if got, want := stockOf(t, pool, id), 1000-decrement[id]; got != want {
			t.Errorf("%s stock = %d, want %d", id, got, want)
		}
	}
	if got, want := pool.TotalStock(), int64(10000-3*outcomes[domain.OutcomeReserved]); got != want {
		t.Fatalf("total = %d, want %d", got, want)
	}
	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
}

// Heavy overlap with short timeouts: some attempts may be Contended, none
// may leak a decrement or a lock.
func TestConcurrentContentionAllOrNothing(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 4, 50)
	ids := pool.IDs()

	var (
		mu        sync.Mutex
		decrement = make(map[string]int64)
	)

	var g errgroup.Group
	for i := 0; i < 400; i++ {
		n := 1 + rand.IntN(len(ids))
		cart := make([]string, n)
		for j := range cart {
			cart[j] = ids[rand.IntN(len(ids))]
		}
		g.Go(func() error {
			outcome, err := c.Reserve(context.Background(), cart, time.Millisecond)
			if err != nil {
				return err
			}
			if outcome == domain.OutcomeReserved {
				mu.Lock()
				for _, id := range cart {
					decrement[id]++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	for _, id := range ids {
		got := stockOf(t, pool, id)
		if got < 0 {
			t.Fatalf("%s negative stock %d", id, got)
		}
		if want := 50 - decrement[id]; got != want {
			t.Errorf("%s stock = %d, want %d", id, got, want)
		}
	}
	if err := pool.VerifyQuiescent(); err != nil {
		t.Fatal(err)
	}
}

func TestSingleUnitTwoConcurrentCarts(t *testing.T) {
	for run := 0; run < 20; run++ {
		pool, c, _ := newTestCoordinator(t, 1, 1)

		results := make([]domain.Outcome, 2)
		var g errgroup.Group
		for i := range results {
			g.Go(func() error {
				o, err := c.Reserve(context.Background(), []string{"item0"}, 100*time.Millisecond)
				results[i] = o
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("Reserve: %v", err)
		}

		reserved := 0
		for _, o := range results {
			switch o {
			case domain.OutcomeReserved:
				reserved++
			case domain.OutcomeOutOfStock, domain.OutcomeContended:
			default:
				t.Fatalf("unexpected outcome %q", o)
			}
		}
		if reserved != 1 {
			t.Fatalf("run %d: %d reserved, want exactly 1 (%v)", run, reserved, results)
		}
		if got := stockOf(t, pool, "item0"); got != 0 {
			t.Fatalf("run %d: stock = %d, want 0", run, got)
		}
	}
}

func TestLockReleasedAfterEveryOutcome(t *testing.T) {
	pool, c, _ := newTestCoordinator(t, 3, 1)
	ctx := context.Background()

	carts := [][]string{
		{"item0", "item1"},          // reserved
		{"item1", "item2"},          // out of stock on item1
		{"item2"},                   // reserved
		{"item0", "item1", "item2"}, // out of stock
	}
	for _, cart := range carts {
		if _, err := c.Reserve(ctx, cart, time.Second); err != nil {
			t.Fatalf("Reserve(%v): %v", cart, err)
		}
		if err := pool.VerifyQuiescent(); err != nil {
			t.Fatalf("after %v: %v", cart, err)
		}
	}
	if pool.TotalStock() != 0 {
		t.Fatalf("total = %d, want 0", pool.TotalStock())
	}
}

func TestTakeAllRollsBackOnFault(t *testing.T) {
	pool, _, _ := newTestCoordinator(t, 3, 2)
	r0, _ := pool.Get("item0")
	r1, _ := pool.Get("item1")
	r2, _ := pool.Get("item2")

	// the last step cannot be satisfied, which CanTake normally rules out
	err := takeAll([]lockStep{{res: r0, qty: 1}, {res: r1, qty: 2}, {res: r2, qty: 3}})
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("err = %v, want ErrInvariantViolation", err)
	}
	for _, r := range []*domain.Resource{r0, r1, r2} {
		if r.Stock() != 2 {
			t.Fatalf("%s stock = %d, want 2", r.ID, r.Stock())
		}
	}
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// SnapshotRepository keeps only the most recent sample.
type SnapshotRepository struct {
	mu      sync.Mutex
	takenAt time.Time
	snaps   []domain.ResourceSnapshot
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{}
}

func (r *SnapshotRepository) InsertBatch(_ context.Context, takenAt time.Time, snaps []domain.ResourceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.takenAt = takenAt
	r.snaps = append([]domain.ResourceSnapshot(nil), snaps...)
	return nil
}

func (r *SnapshotRepository) Latest(_ context.Context) ([]domain.ResourceSnapshot, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.ResourceSnapshot(nil), r.snaps...), r.takenAt, nil
}

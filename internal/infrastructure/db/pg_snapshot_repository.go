package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

// PgSnapshotRepository persists stock samples taken by the metrics
// sampler. It is a diagnostic trail, not a source of truth.
type PgSnapshotRepository struct {
	db *sql.DB
}

func NewPgSnapshotRepository(db *sql.DB) *PgSnapshotRepository {
	return &PgSnapshotRepository{db: db}
}

func (r *PgSnapshotRepository) InsertBatch(ctx context.Context, takenAt time.Time, snaps []domain.ResourceSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin snapshot tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        insert into inventory_stock_snapshots (taken_at_utc, sku, stock)
        values ($1,$2,$3)
        on conflict (taken_at_utc, sku) do update set stock = excluded.stock
    `)
	if err != nil {
		return errors.Wrap(err, "prepare snapshot insert")
	}
	defer stmt.Close()

	takenAt = takenAt.UTC()
	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx, takenAt, s.ID, s.Stock); err != nil {
			return errors.Wrapf(err, "insert snapshot for %s", s.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit snapshot tx")
}

func (r *PgSnapshotRepository) Latest(ctx context.Context) ([]domain.ResourceSnapshot, time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
        select sku, stock, taken_at_utc
        from inventory_stock_snapshots
        where taken_at_utc = (select max(taken_at_utc) from inventory_stock_snapshots)
        order by sku
    `)
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "query latest snapshot")
	}
	defer rows.Close()

	var (
		out     []domain.ResourceSnapshot
		takenAt time.Time
	)
	for rows.Next() {
		var s domain.ResourceSnapshot
		if err := rows.Scan(&s.ID, &s.Stock, &takenAt); err != nil {
			return nil, time.Time{}, errors.Wrap(err, "scan snapshot")
		}
		out = append(out, s)
	}
	return out, takenAt, errors.Wrap(rows.Err(), "iterate snapshots")
}

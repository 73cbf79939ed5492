package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const schemaSQL = `
create table if not exists outbox_messages (
    id               uuid primary key,
    type             text not null,
    payload_json     text not null,
    occurred_at_utc  timestamptz not null,
    retry_count      int not null default 0,
    processed_at_utc timestamptz null
);

create index if not exists ix_outbox_pending
    on outbox_messages (occurred_at_utc)
    where processed_at_utc is null;

create table if not exists inventory_stock_snapshots (
    taken_at_utc timestamptz not null,
    sku          text not null,
    stock        bigint not null,
    primary key (taken_at_utc, sku)
);
`

// EnsureSchema creates the tables this service writes to.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return errors.Wrap(err, "ensure schema")
}

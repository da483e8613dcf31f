package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func (d *DB) UpsertCustomer(ctx context.Context, upsert *store.Customer) (*store.Customer, error) {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO customer (name, email, phone, created_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone
		RETURNING id, created_ts
	`,
		upsert.Name,
		upsert.Email,
		upsert.Phone,
		upsert.CreatedTs,
	).Scan(&upsert.ID, &upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert customer")
	}
	return upsert, nil
}

func (d *DB) GetCustomer(ctx context.Context, find *store.FindCustomer) (*store.Customer, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Email != nil {
		where, args = append(where, "email = ?"), append(args, *find.Email)
	}

	var customer store.Customer
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, created_ts
		FROM customer
		WHERE `+strings.Join(where, " AND ")+`
		LIMIT 1
	`, args...).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.CreatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get customer")
	}
	return &customer, nil
}

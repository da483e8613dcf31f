package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// CreateReservationIfAvailable atomically checks for overlap and inserts.
// A per-resource advisory lock serializes concurrent bookings on the same
// resource, so two sessions racing for one slot cannot both pass the check.
func (d *DB) CreateReservationIfAvailable(ctx context.Context, create *store.Reservation) (*store.Reservation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, create.Resource); err != nil {
		return nil, errors.Wrap(err, "failed to acquire resource lock")
	}

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM reservation
		WHERE resource = $1
			AND status IN ('pending', 'confirmed')
			AND start_ts < $3 AND $2 < end_ts
	`, create.Resource, create.StartTs, create.EndTs).Scan(&overlapping)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check overlap")
	}
	if overlapping > 0 {
		return nil, store.ErrReservationOverlap
	}

	stmt := `
		INSERT INTO reservation (uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts)
		VALUES (` + placeholders(10) + `)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, stmt,
		create.UID,
		create.Resource,
		create.ServiceType,
		create.CustomerID,
		create.StartTs,
		create.EndTs,
		create.Status,
		create.Note,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to insert reservation")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit reservation")
	}
	return create, nil
}

// MoveReservationIfAvailable cancels releaseID and inserts the replacement
// in one transaction under the same per-resource advisory lock the create
// path takes. When the target range overlaps another active reservation the
// whole transaction rolls back, leaving releaseID at its prior status.
func (d *DB) MoveReservationIfAvailable(ctx context.Context, releaseID int32, create *store.Reservation) (*store.Reservation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, create.Resource); err != nil {
		return nil, errors.Wrap(err, "failed to acquire resource lock")
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE reservation SET status = 'cancelled', updated_ts = $1 WHERE id = $2
	`, create.UpdatedTs, releaseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to release old slot")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return nil, errors.Errorf("reservation %d not found", releaseID)
	}

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM reservation
		WHERE resource = $1
			AND status IN ('pending', 'confirmed')
			AND start_ts < $3 AND $2 < end_ts
	`, create.Resource, create.StartTs, create.EndTs).Scan(&overlapping)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check overlap")
	}
	if overlapping > 0 {
		return nil, store.ErrReservationOverlap
	}

	stmt := `
		INSERT INTO reservation (uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts)
		VALUES (` + placeholders(10) + `)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, stmt,
		create.UID,
		create.Resource,
		create.ServiceType,
		create.CustomerID,
		create.StartTs,
		create.EndTs,
		create.Status,
		create.Note,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to insert reservation")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit move")
	}
	return create, nil
}

func (d *DB) ListReservations(ctx context.Context, find *store.FindReservation) ([]*store.Reservation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Resource != nil {
		where, args = append(where, "resource = "+placeholder(len(args)+1)), append(args, *find.Resource)
	}
	if find.ServiceType != nil {
		where, args = append(where, "service_type = "+placeholder(len(args)+1)), append(args, *find.ServiceType)
	}
	if find.CustomerID != nil {
		where, args = append(where, "customer_id = "+placeholder(len(args)+1)), append(args, *find.CustomerID)
	}
	if len(find.Statuses) > 0 {
		list := make([]string, 0, len(find.Statuses))
		for _, status := range find.Statuses {
			list = append(list, placeholder(len(args)+1))
			args = append(args, status)
		}
		where = append(where, "status IN ("+strings.Join(list, ", ")+")")
	}
	if find.StartsAfter != nil {
		where, args = append(where, "start_ts >= "+placeholder(len(args)+1)), append(args, *find.StartsAfter)
	}
	if find.StartsBefore != nil {
		where, args = append(where, "start_ts < "+placeholder(len(args)+1)), append(args, *find.StartsBefore)
	}

	query := `
		SELECT id, uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts
		FROM reservation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY start_ts ASC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reservations")
	}
	defer rows.Close()

	list := []*store.Reservation{}
	for rows.Next() {
		var reservation store.Reservation
		if err := rows.Scan(
			&reservation.ID,
			&reservation.UID,
			&reservation.Resource,
			&reservation.ServiceType,
			&reservation.CustomerID,
			&reservation.StartTs,
			&reservation.EndTs,
			&reservation.Status,
			&reservation.Note,
			&reservation.CreatedTs,
			&reservation.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan reservation")
		}
		list = append(list, &reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateReservation(ctx context.Context, update *store.UpdateReservation) (*store.Reservation, error) {
	set, args := []string{}, []any{}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.StartTs != nil {
		set, args = append(set, "start_ts = "+placeholder(len(args)+1)), append(args, *update.StartTs)
	}
	if update.EndTs != nil {
		set, args = append(set, "end_ts = "+placeholder(len(args)+1)), append(args, *update.EndTs)
	}
	if update.Note != nil {
		set, args = append(set, "note = "+placeholder(len(args)+1)), append(args, *update.Note)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)
	args = append(args, update.ID)

	stmt := `
		UPDATE reservation
		SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts
	`
	var reservation store.Reservation
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&reservation.ID,
		&reservation.UID,
		&reservation.Resource,
		&reservation.ServiceType,
		&reservation.CustomerID,
		&reservation.StartTs,
		&reservation.EndTs,
		&reservation.Status,
		&reservation.Note,
		&reservation.CreatedTs,
		&reservation.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update reservation")
	}
	return &reservation, nil
}

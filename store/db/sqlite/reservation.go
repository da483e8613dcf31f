package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// CreateReservationIfAvailable atomically checks for overlap and inserts.
// The single-connection pool plus a transaction serializes concurrent
// bookings; SQLite takes a database-level write lock for the transaction.
func (d *DB) CreateReservationIfAvailable(ctx context.Context, create *store.Reservation) (*store.Reservation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM reservation
		WHERE resource = ?
			AND status IN ('pending', 'confirmed')
			AND start_ts < ? AND ? < end_ts
	`, create.Resource, create.EndTs, create.StartTs).Scan(&overlapping)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check overlap")
	}
	if overlapping > 0 {
		return nil, store.ErrReservationOverlap
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO reservation (uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert reservation")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reservation id")
	}
	create.ID = int32(id)

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit reservation")
	}
	return create, nil
}

// MoveReservationIfAvailable cancels releaseID and inserts the replacement
// in one transaction. When the target range overlaps another active
// reservation the whole transaction rolls back, leaving releaseID at its
// prior status.
func (d *DB) MoveReservationIfAvailable(ctx context.Context, releaseID int32, create *store.Reservation) (*store.Reservation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE reservation SET status = 'cancelled', updated_ts = ? WHERE id = ?
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
		WHERE resource = ?
			AND status IN ('pending', 'confirmed')
			AND start_ts < ? AND ? < end_ts
	`, create.Resource, create.EndTs, create.StartTs).Scan(&overlapping)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check overlap")
	}
	if overlapping > 0 {
		return nil, store.ErrReservationOverlap
	}

	inserted, err := tx.ExecContext(ctx, `
		INSERT INTO reservation (uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert reservation")
	}
	id, err := inserted.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reservation id")
	}
	create.ID = int32(id)

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit move")
	}
	return create, nil
}

func (d *DB) ListReservations(ctx context.Context, find *store.FindReservation) ([]*store.Reservation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.Resource != nil {
		where, args = append(where, "resource = ?"), append(args, *find.Resource)
	}
	if find.ServiceType != nil {
		where, args = append(where, "service_type = ?"), append(args, *find.ServiceType)
	}
	if find.CustomerID != nil {
		where, args = append(where, "customer_id = ?"), append(args, *find.CustomerID)
	}
	if len(find.Statuses) > 0 {
		list := make([]string, 0, len(find.Statuses))
		for _, status := range find.Statuses {
			list = append(list, "?")
			args = append(args, status)
		}
		where = append(where, "status IN ("+strings.Join(list, ", ")+")")
	}
	if find.StartsAfter != nil {
		where, args = append(where, "start_ts >= ?"), append(args, *find.StartsAfter)
	}
	if find.StartsBefore != nil {
		where, args = append(where, "start_ts < ?"), append(args, *find.StartsBefore)
	}

	query := `
		SELECT id, uid, resource, service_type, customer_id, start_ts, end_ts, status, note, created_ts, updated_ts
		FROM reservation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY start_ts ASC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
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
		set, args = append(set, "status = ?"), append(args, *update.Status)
	}
	if update.StartTs != nil {
		set, args = append(set, "start_ts = ?"), append(args, *update.StartTs)
	}
	if update.EndTs != nil {
		set, args = append(set, "end_ts = ?"), append(args, *update.EndTs)
	}
	if update.Note != nil {
		set, args = append(set, "note = ?"), append(args, *update.Note)
	}
	set, args = append(set, "updated_ts = ?"), append(args, update.UpdatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE reservation SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to update reservation")
	}

	id := update.ID
	list, err := d.ListReservations(ctx, &store.FindReservation{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("reservation %d not found", update.ID)
	}
	return list[0], nil
}

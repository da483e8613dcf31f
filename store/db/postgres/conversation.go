package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func (d *DB) CreateConversationSession(ctx context.Context, create *store.ConversationSession) (*store.ConversationSession, error) {
	stmt := `
		INSERT INTO conversation_session (uid, summary, summarized_through_id, created_ts, last_active_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.Summary,
		create.SummarizedThroughID,
		create.CreatedTs,
		create.LastActiveTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation session")
	}
	return create, nil
}

func (d *DB) GetConversationSession(ctx context.Context, uid string) (*store.ConversationSession, error) {
	query := `
		SELECT id, uid, summary, summarized_through_id, created_ts, last_active_ts
		FROM conversation_session
		WHERE uid = $1
	`
	var session store.ConversationSession
	err := d.db.QueryRowContext(ctx, query, uid).Scan(
		&session.ID,
		&session.UID,
		&session.Summary,
		&session.SummarizedThroughID,
		&session.CreatedTs,
		&session.LastActiveTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conversation session")
	}
	return &session, nil
}

func (d *DB) UpdateConversationSession(ctx context.Context, update *store.UpdateConversationSession) error {
	set, args := []string{}, []any{}
	if update.Summary != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, *update.Summary)
	}
	if update.SummarizedThroughID != nil {
		set, args = append(set, "summarized_through_id = "+placeholder(len(args)+1)), append(args, *update.SummarizedThroughID)
	}
	if update.LastActiveTs != nil {
		set, args = append(set, "last_active_ts = "+placeholder(len(args)+1)), append(args, *update.LastActiveTs)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, update.ID)

	stmt := `UPDATE conversation_session SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update conversation session")
	}
	return nil
}

func (d *DB) DeleteConversationSession(ctx context.Context, uid string) error {
	stmt := `DELETE FROM conversation_session WHERE uid = $1`
	if _, err := d.db.ExecContext(ctx, stmt, uid); err != nil {
		return errors.Wrap(err, "failed to delete conversation session")
	}
	return nil
}

func (d *DB) DeleteExpiredConversationSessions(ctx context.Context, lastActiveBefore int64) (int64, error) {
	stmt := `DELETE FROM conversation_session WHERE last_active_ts < $1`
	result, err := d.db.ExecContext(ctx, stmt, lastActiveBefore)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired conversation sessions")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (d *DB) AppendConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	stmt := `
		INSERT INTO conversation_turn (session_id, role, content, intent_json, created_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.SessionID,
		create.Role,
		create.Content,
		create.IntentJSON,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to append conversation turn")
	}
	return create, nil
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	where, args := []string{"session_id = $1"}, []any{find.SessionID}
	if find.AfterID != nil {
		where, args = append(where, "id > "+placeholder(len(args)+1)), append(args, *find.AfterID)
	}

	order := "ASC"
	if find.Descending {
		order = "DESC"
	}
	query := `
		SELECT id, session_id, role, content, intent_json, created_ts
		FROM conversation_turn
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ` + order
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation turns")
	}
	defer rows.Close()

	list := []*store.ConversationTurn{}
	for rows.Next() {
		var turn store.ConversationTurn
		if err := rows.Scan(
			&turn.ID,
			&turn.SessionID,
			&turn.Role,
			&turn.Content,
			&turn.IntentJSON,
			&turn.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation turn")
		}
		list = append(list, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CountConversationTurns(ctx context.Context, sessionID int32) (int32, error) {
	var count int32
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM conversation_turn WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count conversation turns")
	}
	return count, nil
}

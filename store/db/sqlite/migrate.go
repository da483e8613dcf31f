package sqlite

import (
	"context"

	"github.com/pkg/errors"
)

// Migrate creates the schema if it does not exist yet. Embeddings are stored
// as JSON text; similarity search happens in the application layer.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customer (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL UNIQUE,
			phone TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservation (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			resource TEXT NOT NULL,
			service_type TEXT NOT NULL,
			customer_id INTEGER NOT NULL REFERENCES customer(id),
			start_ts BIGINT NOT NULL,
			end_ts BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			note TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_resource_time ON reservation (resource, start_ts, end_ts)`,
		`CREATE TABLE IF NOT EXISTS conversation_session (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			summary TEXT NOT NULL DEFAULT '',
			summarized_through_id INTEGER NOT NULL DEFAULT 0,
			created_ts BIGINT NOT NULL,
			last_active_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_turn (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES conversation_session(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			intent_json TEXT,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turn_session ON conversation_turn (session_id, id)`,
		`CREATE TABLE IF NOT EXISTS knowledge_document (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_node (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			normalized_label TEXT NOT NULL UNIQUE,
			source_ref TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_edge (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER NOT NULL REFERENCES knowledge_node(id) ON DELETE CASCADE,
			target_id INTEGER NOT NULL REFERENCES knowledge_node(id) ON DELETE CASCADE,
			relation TEXT NOT NULL,
			source_ref TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_edge_source ON knowledge_edge (source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_edge_target ON knowledge_edge (target_id)`,
		`CREATE TABLE IF NOT EXISTS chunk_embedding (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_uid TEXT NOT NULL UNIQUE,
			document_uid TEXT NOT NULL,
			content TEXT NOT NULL,
			model TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_embedding_document ON chunk_embedding (document_uid)`,
		`CREATE TABLE IF NOT EXISTS chunk_node (
			chunk_uid TEXT NOT NULL,
			node_id INTEGER NOT NULL REFERENCES knowledge_node(id) ON DELETE CASCADE,
			PRIMARY KEY (chunk_uid, node_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute migration statement: %.60s", stmt)
		}
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func (d *DB) GetKnowledgeDocument(ctx context.Context, uid string) (*store.KnowledgeDocument, error) {
	query := `
		SELECT id, uid, title, content_hash, chunk_count, created_ts, updated_ts
		FROM knowledge_document
		WHERE uid = $1
	`
	var doc store.KnowledgeDocument
	err := d.db.QueryRowContext(ctx, query, uid).Scan(
		&doc.ID,
		&doc.UID,
		&doc.Title,
		&doc.ContentHash,
		&doc.ChunkCount,
		&doc.CreatedTs,
		&doc.UpdatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get knowledge document")
	}
	return &doc, nil
}

func (d *DB) UpsertKnowledgeDocument(ctx context.Context, upsert *store.KnowledgeDocument) (*store.KnowledgeDocument, error) {
	stmt := `
		INSERT INTO knowledge_document (uid, title, content_hash, chunk_count, created_ts, updated_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (uid)
		DO UPDATE SET
			title = EXCLUDED.title,
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UID,
		upsert.Title,
		upsert.ContentHash,
		upsert.ChunkCount,
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.ID, &upsert.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert knowledge document")
	}
	return upsert, nil
}

func (d *DB) UpsertKnowledgeNode(ctx context.Context, upsert *store.KnowledgeNode) (*store.KnowledgeNode, error) {
	stmt := `
		INSERT INTO knowledge_node (type, label, normalized_label, source_ref, created_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (normalized_label)
		DO UPDATE SET normalized_label = EXCLUDED.normalized_label
		RETURNING id, type, label, source_ref, created_ts
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.Type,
		upsert.Label,
		upsert.NormalizedLabel,
		upsert.SourceRef,
		upsert.CreatedTs,
	).Scan(&upsert.ID, &upsert.Type, &upsert.Label, &upsert.SourceRef, &upsert.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert knowledge node")
	}
	return upsert, nil
}

func (d *DB) ListKnowledgeNodes(ctx context.Context, find *store.FindKnowledgeNode) ([]*store.KnowledgeNode, error) {
	where, args := []string{"1 = 1"}, []any{}
	if len(find.IDs) > 0 {
		list := make([]string, 0, len(find.IDs))
		for _, id := range find.IDs {
			list = append(list, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(list, ", ")+")")
	}
	if len(find.NormalizedLabels) > 0 {
		list := make([]string, 0, len(find.NormalizedLabels))
		for _, label := range find.NormalizedLabels {
			list = append(list, placeholder(len(args)+1))
			args = append(args, label)
		}
		where = append(where, "normalized_label IN ("+strings.Join(list, ", ")+")")
	}

	query := `
		SELECT id, type, label, normalized_label, source_ref, created_ts
		FROM knowledge_node
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list knowledge nodes")
	}
	defer rows.Close()

	list := []*store.KnowledgeNode{}
	for rows.Next() {
		var node store.KnowledgeNode
		if err := rows.Scan(
			&node.ID,
			&node.Type,
			&node.Label,
			&node.NormalizedLabel,
			&node.SourceRef,
			&node.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan knowledge node")
		}
		list = append(list, &node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CreateKnowledgeEdge(ctx context.Context, create *store.KnowledgeEdge) (*store.KnowledgeEdge, error) {
	stmt := `
		INSERT INTO knowledge_edge (source_id, target_id, relation, source_ref, created_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.SourceID,
		create.TargetID,
		create.Relation,
		create.SourceRef,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create knowledge edge")
	}
	return create, nil
}

func (d *DB) ListKnowledgeEdges(ctx context.Context, find *store.FindKnowledgeEdge) ([]*store.KnowledgeEdge, error) {
	where, args := []string{"1 = 1"}, []any{}
	if len(find.NodeIDs) > 0 {
		list := make([]string, 0, len(find.NodeIDs))
		for _, id := range find.NodeIDs {
			list = append(list, placeholder(len(args)+1))
			args = append(args, id)
		}
		in := strings.Join(list, ", ")
		where = append(where, "(source_id IN ("+in+") OR target_id IN ("+in+"))")
	}
	if find.SourceRef != nil {
		where, args = append(where, "source_ref = "+placeholder(len(args)+1)), append(args, *find.SourceRef)
	}

	query := `
		SELECT id, source_id, target_id, relation, source_ref, created_ts
		FROM knowledge_edge
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list knowledge edges")
	}
	defer rows.Close()

	list := []*store.KnowledgeEdge{}
	for rows.Next() {
		var edge store.KnowledgeEdge
		if err := rows.Scan(
			&edge.ID,
			&edge.SourceID,
			&edge.TargetID,
			&edge.Relation,
			&edge.SourceRef,
			&edge.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan knowledge edge")
		}
		list = append(list, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteKnowledgeEdgesBySource(ctx context.Context, sourceRef string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM knowledge_edge WHERE source_ref = $1`, sourceRef); err != nil {
		return errors.Wrap(err, "failed to delete knowledge edges by source")
	}
	return nil
}

func (d *DB) LinkChunkNodes(ctx context.Context, chunkUID string, nodeIDs []int32) error {
	for _, nodeID := range nodeIDs {
		stmt := `
			INSERT INTO chunk_node (chunk_uid, node_id)
			VALUES ($1, $2)
			ON CONFLICT (chunk_uid, node_id) DO NOTHING
		`
		if _, err := d.db.ExecContext(ctx, stmt, chunkUID, nodeID); err != nil {
			return errors.Wrap(err, "failed to link chunk node")
		}
	}
	return nil
}

func (d *DB) ListChunkNodeLinks(ctx context.Context, chunkUIDs []string) ([]*store.ChunkNodeLink, error) {
	if len(chunkUIDs) == 0 {
		return []*store.ChunkNodeLink{}, nil
	}

	list := make([]string, 0, len(chunkUIDs))
	args := []any{}
	for _, uid := range chunkUIDs {
		list = append(list, placeholder(len(args)+1))
		args = append(args, uid)
	}

	query := `
		SELECT chunk_uid, node_id
		FROM chunk_node
		WHERE chunk_uid IN (` + strings.Join(list, ", ") + `)
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chunk node links")
	}
	defer rows.Close()

	links := []*store.ChunkNodeLink{}
	for rows.Next() {
		var link store.ChunkNodeLink
		if err := rows.Scan(&link.ChunkUID, &link.NodeID); err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk node link")
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

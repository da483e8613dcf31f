package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func (d *DB) UpsertChunkEmbedding(ctx context.Context, upsert *store.ChunkEmbedding) (*store.ChunkEmbedding, error) {
	stmt := `
		INSERT INTO chunk_embedding (chunk_uid, document_uid, content, model, embedding, created_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (chunk_uid)
		DO UPDATE SET
			content = EXCLUDED.content,
			model = EXCLUDED.model,
			embedding = EXCLUDED.embedding
		RETURNING id, created_ts
	`
	vector := pgvector.NewVector(upsert.Embedding)
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.ChunkUID,
		upsert.DocumentUID,
		upsert.Content,
		upsert.Model,
		vector,
		upsert.CreatedTs,
	).Scan(&upsert.ID, &upsert.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert chunk embedding")
	}
	return upsert, nil
}

func (d *DB) DeleteChunkEmbeddingsByDocument(ctx context.Context, docUID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chunk_embedding WHERE document_uid = $1`, docUID); err != nil {
		return errors.Wrap(err, "failed to delete chunk embeddings by document")
	}
	return nil
}

func (d *DB) CountChunkEmbeddings(ctx context.Context) (int32, error) {
	var count int32
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunk_embedding`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count chunk embeddings")
	}
	return count, nil
}

// ChunkVectorSearch performs cosine similarity search using the pgvector
// `<=>` operator. Score is 1 - cosine distance.
func (d *DB) ChunkVectorSearch(ctx context.Context, opts *store.ChunkVectorSearchOptions) ([]*store.ChunkWithScore, error) {
	query := `
		SELECT id, chunk_uid, document_uid, content, model, embedding, 1 - (embedding <=> $1) AS score
		FROM chunk_embedding
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run chunk vector search")
	}
	defer rows.Close()

	list := []*store.ChunkWithScore{}
	for rows.Next() {
		var chunk store.ChunkEmbedding
		var vector pgvector.Vector
		var score float32
		if err := rows.Scan(
			&chunk.ID,
			&chunk.ChunkUID,
			&chunk.DocumentUID,
			&chunk.Content,
			&chunk.Model,
			&vector,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk embedding")
		}
		chunk.Embedding = vector.Slice()
		list = append(list, &store.ChunkWithScore{Chunk: &chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

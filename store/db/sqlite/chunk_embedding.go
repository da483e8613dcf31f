package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// Embeddings are stored as JSON arrays. SQLite has no vector type, so
// similarity search loads candidate rows and scores them in process.
func (d *DB) UpsertChunkEmbedding(ctx context.Context, upsert *store.ChunkEmbedding) (*store.ChunkEmbedding, error) {
	encoded, err := json.Marshal(upsert.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO chunk_embedding (chunk_uid, document_uid, content, model, embedding, created_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (chunk_uid)
		DO UPDATE SET
			content = excluded.content,
			model = excluded.model,
			embedding = excluded.embedding
		RETURNING id, created_ts
	`,
		upsert.ChunkUID,
		upsert.DocumentUID,
		upsert.Content,
		upsert.Model,
		string(encoded),
		upsert.CreatedTs,
	).Scan(&upsert.ID, &upsert.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert chunk embedding")
	}
	return upsert, nil
}

func (d *DB) DeleteChunkEmbeddingsByDocument(ctx context.Context, docUID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chunk_embedding WHERE document_uid = ?`, docUID); err != nil {
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

// ChunkVectorSearch scans all stored embeddings and ranks them by cosine
// similarity. Acceptable for the corpus sizes sqlite mode is meant for.
func (d *DB) ChunkVectorSearch(ctx context.Context, opts *store.ChunkVectorSearchOptions) ([]*store.ChunkWithScore, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, chunk_uid, document_uid, content, model, embedding, created_ts
		FROM chunk_embedding
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chunk embeddings")
	}
	defer rows.Close()

	list := []*store.ChunkWithScore{}
	for rows.Next() {
		var chunk store.ChunkEmbedding
		var encoded string
		if err := rows.Scan(
			&chunk.ID,
			&chunk.ChunkUID,
			&chunk.DocumentUID,
			&chunk.Content,
			&chunk.Model,
			&encoded,
			&chunk.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk embedding")
		}
		if err := json.Unmarshal([]byte(encoded), &chunk.Embedding); err != nil {
			return nil, errors.Wrapf(err, "failed to decode embedding for chunk %s", chunk.ChunkUID)
		}
		list = append(list, &store.ChunkWithScore{
			Chunk: &chunk,
			Score: cosineSimilarity(opts.Vector, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
	if len(list) > opts.Limit {
		list = list[:opts.Limit]
	}
	return list, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

package store

import (
	"context"

	"github.com/pkg/errors"
)

// ChunkEmbedding is the vector embedding of a document chunk. Embeddings are
// immutable once written; re-ingestion replaces the document's chunks rather
// than editing them.
type ChunkEmbedding struct {
	ID          int32
	ChunkUID    string
	DocumentUID string
	Content     string
	Model       string
	Embedding   []float32
	CreatedTs   int64
}

// ChunkWithScore is a vector search result with similarity score.
type ChunkWithScore struct {
	Chunk *ChunkEmbedding
	Score float32 // Cosine similarity, higher is more similar.
}

// ChunkVectorSearchOptions represents the options for chunk vector search.
type ChunkVectorSearchOptions struct {
	Vector []float32
	Limit  int
}

// Validate validates the ChunkVectorSearchOptions.
func (o *ChunkVectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.New("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 5
	}
	if o.Limit > 100 {
		return errors.Errorf("limit too large (max 100): %d", o.Limit)
	}
	return nil
}

func (s *Store) UpsertChunkEmbedding(ctx context.Context, upsert *ChunkEmbedding) (*ChunkEmbedding, error) {
	return s.driver.UpsertChunkEmbedding(ctx, upsert)
}

func (s *Store) DeleteChunkEmbeddingsByDocument(ctx context.Context, docUID string) error {
	return s.driver.DeleteChunkEmbeddingsByDocument(ctx, docUID)
}

func (s *Store) CountChunkEmbeddings(ctx context.Context) (int32, error) {
	return s.driver.CountChunkEmbeddings(ctx)
}

// ChunkVectorSearch performs cosine similarity search over chunk embeddings.
func (s *Store) ChunkVectorSearch(ctx context.Context, opts *ChunkVectorSearchOptions) ([]*ChunkWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.ChunkVectorSearch(ctx, opts)
}

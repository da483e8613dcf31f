package store

import (
	"context"
	"strings"
)

// KnowledgeNodeType distinguishes extracted entities from broader topics.
type KnowledgeNodeType string

const (
	KnowledgeNodeEntity KnowledgeNodeType = "entity"
	KnowledgeNodeTopic  KnowledgeNodeType = "topic"
)

// KnowledgeDocument tracks an ingested source document. The content hash
// makes re-ingestion of unchanged documents a no-op.
type KnowledgeDocument struct {
	ID          int32
	UID         string
	Title       string
	ContentHash string
	ChunkCount  int32
	CreatedTs   int64
	UpdatedTs   int64
}

// KnowledgeNode is a graph node. Nodes with the same normalized label are
// merged across chunks and documents.
type KnowledgeNode struct {
	ID              int32
	Type            KnowledgeNodeType
	Label           string
	NormalizedLabel string
	SourceRef       string
	CreatedTs       int64
}

// KnowledgeEdge is a directed relation between two nodes. The graph is a
// multigraph: the same (source, target, relation) may exist once per source
// document; retrieval deduplicates.
type KnowledgeEdge struct {
	ID        int32
	SourceID  int32
	TargetID  int32
	Relation  string
	SourceRef string
	CreatedTs int64
}

// ChunkNodeLink ties a chunk to a node mentioned in it.
type ChunkNodeLink struct {
	ChunkUID string
	NodeID   int32
}

type FindKnowledgeNode struct {
	IDs              []int32
	NormalizedLabels []string
}

type FindKnowledgeEdge struct {
	NodeIDs   []int32
	SourceRef *string
}

// NormalizeLabel is the canonical node-merge key: lowercase, whitespace
// collapsed and trimmed.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

func (s *Store) GetKnowledgeDocument(ctx context.Context, uid string) (*KnowledgeDocument, error) {
	return s.driver.GetKnowledgeDocument(ctx, uid)
}

func (s *Store) UpsertKnowledgeDocument(ctx context.Context, upsert *KnowledgeDocument) (*KnowledgeDocument, error) {
	return s.driver.UpsertKnowledgeDocument(ctx, upsert)
}

// UpsertKnowledgeNode inserts a node or returns the existing node with the
// same normalized label.
func (s *Store) UpsertKnowledgeNode(ctx context.Context, upsert *KnowledgeNode) (*KnowledgeNode, error) {
	if upsert.NormalizedLabel == "" {
		upsert.NormalizedLabel = NormalizeLabel(upsert.Label)
	}
	return s.driver.UpsertKnowledgeNode(ctx, upsert)
}

func (s *Store) ListKnowledgeNodes(ctx context.Context, find *FindKnowledgeNode) ([]*KnowledgeNode, error) {
	return s.driver.ListKnowledgeNodes(ctx, find)
}

func (s *Store) CreateKnowledgeEdge(ctx context.Context, create *KnowledgeEdge) (*KnowledgeEdge, error) {
	return s.driver.CreateKnowledgeEdge(ctx, create)
}

func (s *Store) ListKnowledgeEdges(ctx context.Context, find *FindKnowledgeEdge) ([]*KnowledgeEdge, error) {
	return s.driver.ListKnowledgeEdges(ctx, find)
}

// DeleteKnowledgeEdgesBySource removes all edges contributed by a source
// document. Used on re-ingestion to keep the operation idempotent.
func (s *Store) DeleteKnowledgeEdgesBySource(ctx context.Context, sourceRef string) error {
	return s.driver.DeleteKnowledgeEdgesBySource(ctx, sourceRef)
}

func (s *Store) LinkChunkNodes(ctx context.Context, chunkUID string, nodeIDs []int32) error {
	return s.driver.LinkChunkNodes(ctx, chunkUID, nodeIDs)
}

func (s *Store) ListChunkNodeLinks(ctx context.Context, chunkUIDs []string) ([]*ChunkNodeLink, error) {
	return s.driver.ListChunkNodeLinks(ctx, chunkUIDs)
}

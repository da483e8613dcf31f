package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/embedding"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/llm"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// Store is the persistence surface the knowledge package needs. *store.Store
// satisfies it.
type Store interface {
	GetKnowledgeDocument(ctx context.Context, uid string) (*store.KnowledgeDocument, error)
	UpsertKnowledgeDocument(ctx context.Context, upsert *store.KnowledgeDocument) (*store.KnowledgeDocument, error)
	UpsertKnowledgeNode(ctx context.Context, upsert *store.KnowledgeNode) (*store.KnowledgeNode, error)
	ListKnowledgeNodes(ctx context.Context, find *store.FindKnowledgeNode) ([]*store.KnowledgeNode, error)
	CreateKnowledgeEdge(ctx context.Context, create *store.KnowledgeEdge) (*store.KnowledgeEdge, error)
	ListKnowledgeEdges(ctx context.Context, find *store.FindKnowledgeEdge) ([]*store.KnowledgeEdge, error)
	DeleteKnowledgeEdgesBySource(ctx context.Context, sourceRef string) error
	LinkChunkNodes(ctx context.Context, chunkUID string, nodeIDs []int32) error
	ListChunkNodeLinks(ctx context.Context, chunkUIDs []string) ([]*store.ChunkNodeLink, error)
	UpsertChunkEmbedding(ctx context.Context, upsert *store.ChunkEmbedding) (*store.ChunkEmbedding, error)
	DeleteChunkEmbeddingsByDocument(ctx context.Context, docUID string) error
	CountChunkEmbeddings(ctx context.Context) (int32, error)
	ChunkVectorSearch(ctx context.Context, opts *store.ChunkVectorSearchOptions) ([]*store.ChunkWithScore, error)
}

// Document is an ingestion input. A zero UID gets one assigned.
type Document struct {
	UID      string
	Title    string
	Content  string
	Markdown bool
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	DocumentUID string `json:"documentUid"`
	Chunks      int    `json:"chunks"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Skipped     bool   `json:"skipped"`
}

// Builder ingests documents into the knowledge graph.
type Builder struct {
	store        Store
	llm          llm.Service
	embedder     embedding.Provider
	chunkSize    int
	chunkOverlap int
	concurrency  int
}

// NewBuilder creates a Builder. The LLM service may be nil; extraction then
// uses only the rule fallback.
func NewBuilder(st Store, llmService llm.Service, embedder embedding.Provider) *Builder {
	return &Builder{
		store:        st,
		llm:          llmService,
		embedder:     embedder,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		concurrency:  4,
	}
}

// Ingest chunks, embeds, and graphs one document. Re-ingesting identical
// content is a no-op; changed content replaces the document's prior chunks,
// embeddings, and source-scoped edges.
func (b *Builder) Ingest(ctx context.Context, doc *Document) (*IngestResult, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("document content is empty")
	}
	if doc.UID == "" {
		doc.UID = shortuuid.New()
	}

	hash := contentHash(doc.Content)
	existing, err := b.store.GetKnowledgeDocument(ctx, doc.UID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if existing != nil && existing.ContentHash == hash {
		slog.Debug("knowledge: content unchanged, skipping ingest", "document", doc.UID)
		return &IngestResult{DocumentUID: doc.UID, Chunks: int(existing.ChunkCount), Skipped: true}, nil
	}

	content := doc.Content
	if doc.Markdown {
		content = FlattenMarkdown([]byte(doc.Content))
	}
	chunks := SplitRunes(content, b.chunkSize, b.chunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	// Replace prior state scoped to this document before writing fresh rows.
	if err := b.store.DeleteChunkEmbeddingsByDocument(ctx, doc.UID); err != nil {
		return nil, fmt.Errorf("clear prior embeddings: %w", err)
	}
	if err := b.store.DeleteKnowledgeEdgesBySource(ctx, doc.UID); err != nil {
		return nil, fmt.Errorf("clear prior edges: %w", err)
	}

	vectors, err := b.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	nodeCount, edgeCount := 0, 0
	for i, chunk := range chunks {
		chunkUID := fmt.Sprintf("%s-%d", doc.UID, chunk.Index)
		if _, err := b.store.UpsertChunkEmbedding(ctx, &store.ChunkEmbedding{
			ChunkUID:    chunkUID,
			DocumentUID: doc.UID,
			Content:     chunk.Content,
			Model:       b.embedder.Model(),
			Embedding:   vectors[i],
			CreatedTs:   now,
		}); err != nil {
			return nil, fmt.Errorf("store chunk embedding: %w", err)
		}

		extraction := b.extractGraph(ctx, chunk.Content)
		nodeIDs := map[string]int32{}
		for _, entity := range extraction.Entities {
			node, err := b.store.UpsertKnowledgeNode(ctx, &store.KnowledgeNode{
				Type:            nodeType(entity.Type),
				Label:           entity.Label,
				NormalizedLabel: store.NormalizeLabel(entity.Label),
				SourceRef:       doc.UID,
				CreatedTs:       now,
			})
			if err != nil {
				return nil, fmt.Errorf("upsert node: %w", err)
			}
			nodeIDs[store.NormalizeLabel(entity.Label)] = node.ID
			nodeCount++
		}
		for _, rel := range extraction.Relations {
			sourceID, okS := nodeIDs[store.NormalizeLabel(rel.Source)]
			targetID, okT := nodeIDs[store.NormalizeLabel(rel.Target)]
			if !okS || !okT || sourceID == targetID {
				continue
			}
			if _, err := b.store.CreateKnowledgeEdge(ctx, &store.KnowledgeEdge{
				SourceID:  sourceID,
				TargetID:  targetID,
				Relation:  rel.Relation,
				SourceRef: doc.UID,
				CreatedTs: now,
			}); err != nil {
				return nil, fmt.Errorf("create edge: %w", err)
			}
			edgeCount++
		}
		ids := make([]int32, 0, len(nodeIDs))
		for _, id := range nodeIDs {
			ids = append(ids, id)
		}
		if err := b.store.LinkChunkNodes(ctx, chunkUID, ids); err != nil {
			return nil, fmt.Errorf("link chunk nodes: %w", err)
		}
	}

	if _, err := b.store.UpsertKnowledgeDocument(ctx, &store.KnowledgeDocument{
		UID:         doc.UID,
		Title:       doc.Title,
		ContentHash: hash,
		ChunkCount:  int32(len(chunks)),
		CreatedTs:   now,
		UpdatedTs:   now,
	}); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	slog.Info("knowledge: document ingested",
		"document", doc.UID,
		"chunks", len(chunks),
		"nodes", nodeCount,
		"edges", edgeCount,
	)
	return &IngestResult{
		DocumentUID: doc.UID,
		Chunks:      len(chunks),
		Nodes:       nodeCount,
		Edges:       edgeCount,
	}, nil
}

// embedChunks embeds all chunks with bounded concurrency, preserving order.
func (b *Builder) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.concurrency)

	const batchSize = 16
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end
		group.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, chunk := range chunks[start:end] {
				texts = append(texts, chunk.Content)
			}
			batch, err := b.embedder.EmbedBatch(groupCtx, texts)
			if err != nil {
				return fmt.Errorf("embed chunk batch [%d,%d): %w", start, end, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func nodeType(raw string) store.KnowledgeNodeType {
	if store.KnowledgeNodeType(raw) == store.KnowledgeNodeTopic {
		return store.KnowledgeNodeTopic
	}
	return store.KnowledgeNodeEntity
}

type graphExtraction struct {
	Entities []struct {
		Label string `json:"label"`
		Type  string `json:"type"`
	} `json:"entities"`
	Relations []struct {
		Source   string `json:"source"`
		Target   string `json:"target"`
		Relation string `json:"relation"`
	} `json:"relations"`
}

const graphPrompt = `Extract entities and relations from the text.
Respond with JSON only:
{"entities": [{"label": "...", "type": "entity|topic"}],
 "relations": [{"source": "...", "target": "...", "relation": "..."}]}
Relation sources and targets must be entity labels from the same response.`

// extractGraph asks the LLM for entities and relations, falling back to the
// rule extractor when the LLM is unavailable or returns garbage.
func (b *Builder) extractGraph(ctx context.Context, content string) *graphExtraction {
	if b.llm != nil {
		response, _, err := b.llm.ChatJSON(ctx, llm.FormatMessages(graphPrompt, content, nil))
		if err == nil {
			var extraction graphExtraction
			if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(response)), &extraction); jsonErr == nil && len(extraction.Entities) > 0 {
				return &extraction
			}
		} else {
			slog.Warn("knowledge: LLM graph extraction failed, using rule fallback", "error", err)
		}
	}
	return ruleGraphExtraction(content)
}

// ruleGraphExtraction treats capitalized multi-letter tokens as entities and
// links consecutive mentions with a co-occurs relation.
func ruleGraphExtraction(content string) *graphExtraction {
	extraction := &graphExtraction{}
	seen := map[string]bool{}
	var previousLabel, previousNorm string

	for _, token := range strings.Fields(content) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if len(token) < 2 || token[0] < 'A' || token[0] > 'Z' {
			continue
		}
		// Skip sentence-initial stop words that happen to be capitalized.
		if isStopWord(token) {
			continue
		}
		normalized := store.NormalizeLabel(token)
		if !seen[normalized] {
			seen[normalized] = true
			extraction.Entities = append(extraction.Entities, struct {
				Label string `json:"label"`
				Type  string `json:"type"`
			}{Label: token, Type: string(store.KnowledgeNodeEntity)})
		}
		if previousNorm != "" && previousNorm != normalized {
			extraction.Relations = append(extraction.Relations, struct {
				Source   string `json:"source"`
				Target   string `json:"target"`
				Relation string `json:"relation"`
			}{Source: previousLabel, Target: token, Relation: "co-occurs"})
		}
		previousLabel, previousNorm = token, normalized
	}
	return extraction
}

var stopWords = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"And": true, "But": true, "For": true, "With": true, "From": true,
	"You": true, "Your": true, "Our": true, "They": true, "When": true,
	"What": true, "How": true, "Where": true, "All": true, "Not": true,
	"Are": true, "Was": true, "Were": true, "Has": true, "Have": true,
	"Can": true, "Will": true, "Its": true, "It's": true, "There": true,
}

func isStopWord(token string) bool {
	return stopWords[token]
}

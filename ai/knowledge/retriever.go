package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/cache"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/embedding"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// DefaultBundleBudget caps a context bundle's total content in runes.
const DefaultBundleBudget = 6000

// Retrieval results are cached briefly so repeated grounding queries within
// a conversation skip the embedding call and vector search.
const (
	retrievalCacheSize = 256
	retrievalCacheTTL  = 5 * time.Minute
)

// Passage is one retrieved chunk with its similarity score.
type Passage struct {
	ChunkUID    string  `json:"chunkUid"`
	DocumentUID string  `json:"documentUid"`
	Content     string  `json:"content"`
	Score       float32 `json:"score"`
}

// Fact is one graph relation rendered with node labels. Primary facts come
// from the retrieved chunks' own nodes; expansion facts from the one-hop
// neighborhood.
type Fact struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Primary  bool   `json:"primary"`
}

// ContextBundle is the grounding material for one query.
type ContextBundle struct {
	Passages []Passage `json:"passages"`
	Facts    []Fact    `json:"facts"`
}

// Empty reports whether the bundle carries no grounding material.
func (b *ContextBundle) Empty() bool {
	return len(b.Passages) == 0 && len(b.Facts) == 0
}

// Render flattens the bundle into prompt text.
func (b *ContextBundle) Render() string {
	var sb strings.Builder
	for _, passage := range b.Passages {
		sb.WriteString(passage.Content)
		sb.WriteString("\n")
	}
	if len(b.Facts) > 0 {
		sb.WriteString("Known facts:\n")
		for _, fact := range b.Facts {
			fmt.Fprintf(&sb, "- %s %s %s\n", fact.Source, fact.Relation, fact.Target)
		}
	}
	return sb.String()
}

// Retriever answers grounding queries over the knowledge graph. Similarity
// is cosine, matching the stored embedding space.
type Retriever struct {
	store    Store
	embedder embedding.Provider
	budget   int
	cache    *cache.LRU[string, *ContextBundle]
}

// NewRetriever creates a Retriever with the default rune budget.
func NewRetriever(st Store, embedder embedding.Provider) *Retriever {
	return &Retriever{
		store:    st,
		embedder: embedder,
		budget:   DefaultBundleBudget,
		cache:    cache.NewLRU[string, *ContextBundle](retrievalCacheSize, retrievalCacheTTL),
	}
}

// InvalidateCache drops all cached retrieval results. Call it after new
// documents are ingested so fresh material becomes visible immediately
// instead of after the cache TTL.
func (r *Retriever) InvalidateCache() {
	r.cache.Clear()
}

// Retrieve embeds the query, finds the top-k nearest chunks, and expands one
// hop over the graph. An empty index yields an empty bundle and nil error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (*ContextBundle, error) {
	cacheKey := fmt.Sprintf("%d\x00%s", k, query)
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached, nil
	}

	bundle := &ContextBundle{Passages: []Passage{}, Facts: []Fact{}}

	count, err := r.store.CountChunkEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	if count == 0 {
		return bundle, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	opts := &store.ChunkVectorSearchOptions{Vector: vector, Limit: k}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	hits, err := r.store.ChunkVectorSearch(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	budget := r.budget
	chunkUIDs := make([]string, 0, len(hits))
	for _, hit := range hits {
		size := len([]rune(hit.Chunk.Content))
		if size > budget {
			break
		}
		budget -= size
		chunkUIDs = append(chunkUIDs, hit.Chunk.ChunkUID)
		bundle.Passages = append(bundle.Passages, Passage{
			ChunkUID:    hit.Chunk.ChunkUID,
			DocumentUID: hit.Chunk.DocumentUID,
			Content:     hit.Chunk.Content,
			Score:       hit.Score,
		})
	}

	facts, err := r.expandGraph(ctx, chunkUIDs)
	if err != nil {
		// Graph expansion is additive; a failure degrades to passages only.
		slog.Warn("knowledge: graph expansion failed", "error", err)
		return bundle, nil
	}
	for _, fact := range facts {
		size := len([]rune(fact.Source)) + len([]rune(fact.Relation)) + len([]rune(fact.Target)) + 4
		if size > budget {
			break
		}
		budget -= size
		bundle.Facts = append(bundle.Facts, fact)
	}
	r.cache.Set(cacheKey, bundle)
	return bundle, nil
}

// expandGraph maps the chunks to their nodes, walks one hop of edges, and
// renders deduplicated facts with primary facts first.
func (r *Retriever) expandGraph(ctx context.Context, chunkUIDs []string) ([]Fact, error) {
	if len(chunkUIDs) == 0 {
		return nil, nil
	}
	links, err := r.store.ListChunkNodeLinks(ctx, chunkUIDs)
	if err != nil {
		return nil, fmt.Errorf("list chunk nodes: %w", err)
	}
	if len(links) == 0 {
		return nil, nil
	}

	primaryIDs := map[int32]bool{}
	nodeIDs := []int32{}
	for _, link := range links {
		if !primaryIDs[link.NodeID] {
			primaryIDs[link.NodeID] = true
			nodeIDs = append(nodeIDs, link.NodeID)
		}
	}

	edges, err := r.store.ListKnowledgeEdges(ctx, &store.FindKnowledgeEdge{NodeIDs: nodeIDs})
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	// Resolve every endpoint label, including one-hop neighbors outside the
	// primary set.
	labelIDs := map[int32]bool{}
	allIDs := []int32{}
	for _, edge := range edges {
		for _, id := range []int32{edge.SourceID, edge.TargetID} {
			if !labelIDs[id] {
				labelIDs[id] = true
				allIDs = append(allIDs, id)
			}
		}
	}
	nodes, err := r.store.ListKnowledgeNodes(ctx, &store.FindKnowledgeNode{IDs: allIDs})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	labels := map[int32]string{}
	for _, node := range nodes {
		labels[node.ID] = node.Label
	}

	seen := map[string]bool{}
	facts := []Fact{}
	for _, edge := range edges {
		source, target := labels[edge.SourceID], labels[edge.TargetID]
		if source == "" || target == "" {
			continue
		}
		key := source + "\x00" + target + "\x00" + edge.Relation
		if seen[key] {
			continue
		}
		seen[key] = true
		facts = append(facts, Fact{
			Source:   source,
			Target:   target,
			Relation: edge.Relation,
			Primary:  primaryIDs[edge.SourceID] && primaryIDs[edge.TargetID],
		})
	}
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Primary && !facts[j].Primary
	})
	return facts, nil
}

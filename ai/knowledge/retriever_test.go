package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

func TestRetrieveEmptyIndex(t *testing.T) {
	retriever := NewRetriever(newFakeStore(), hashEmbedder{})

	bundle, err := retriever.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	require.True(t, bundle.Empty())
}

func TestRetrieveReturnsPassagesAndFacts(t *testing.T) {
	st := newFakeStore()
	mock := &graphLLM{response: `{
		"entities": [
			{"label": "Acme", "type": "entity"},
			{"label": "Consulting", "type": "topic"}
		],
		"relations": [
			{"source": "Acme", "target": "Consulting", "relation": "offers"}
		]
	}`}
	builder := NewBuilder(st, mock, hashEmbedder{})
	_, err := builder.Ingest(context.Background(), &Document{
		UID:     "doc-1",
		Content: "Acme offers consulting services on weekdays.",
	})
	require.NoError(t, err)

	retriever := NewRetriever(st, hashEmbedder{})
	bundle, err := retriever.Retrieve(context.Background(), "consulting availability", 5)
	require.NoError(t, err)

	require.NotEmpty(t, bundle.Passages)
	require.Contains(t, bundle.Passages[0].Content, "consulting")
	require.NotEmpty(t, bundle.Facts)
	require.Equal(t, "offers", bundle.Facts[0].Relation)
	require.True(t, bundle.Facts[0].Primary)
}

func TestRetrieveDeduplicatesFacts(t *testing.T) {
	st := newFakeStore()

	node1, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Acme", NormalizedLabel: "acme", Type: store.KnowledgeNodeEntity,
	})
	node2, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Berlin", NormalizedLabel: "berlin", Type: store.KnowledgeNodeEntity,
	})
	// Same relation recorded from two documents.
	for _, ref := range []string{"doc-1", "doc-2"} {
		_, err := st.CreateKnowledgeEdge(context.Background(), &store.KnowledgeEdge{
			SourceID: node1.ID, TargetID: node2.ID, Relation: "based-in", SourceRef: ref,
		})
		require.NoError(t, err)
	}
	_, err := st.UpsertChunkEmbedding(context.Background(), &store.ChunkEmbedding{
		ChunkUID: "doc-1-0", DocumentUID: "doc-1", Content: "Acme is based in Berlin.",
		Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0},
	})
	require.NoError(t, err)
	require.NoError(t, st.LinkChunkNodes(context.Background(), "doc-1-0", []int32{node1.ID, node2.ID}))

	retriever := NewRetriever(st, hashEmbedder{})
	bundle, err := retriever.Retrieve(context.Background(), "where is acme", 5)
	require.NoError(t, err)

	require.Len(t, bundle.Facts, 1)
}

func TestRetrieveOrdersPrimaryFactsFirst(t *testing.T) {
	st := newFakeStore()

	primary, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Acme", NormalizedLabel: "acme", Type: store.KnowledgeNodeEntity,
	})
	neighbor, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Globex", NormalizedLabel: "globex", Type: store.KnowledgeNodeEntity,
	})
	other, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Berlin", NormalizedLabel: "berlin", Type: store.KnowledgeNodeEntity,
	})

	// Expansion fact: Acme to the off-chunk neighbor.
	_, err := st.CreateKnowledgeEdge(context.Background(), &store.KnowledgeEdge{
		SourceID: primary.ID, TargetID: neighbor.ID, Relation: "partners-with", SourceRef: "doc-x",
	})
	require.NoError(t, err)
	// Primary fact: both endpoints on the retrieved chunk.
	_, err = st.CreateKnowledgeEdge(context.Background(), &store.KnowledgeEdge{
		SourceID: primary.ID, TargetID: other.ID, Relation: "based-in", SourceRef: "doc-1",
	})
	require.NoError(t, err)

	_, err = st.UpsertChunkEmbedding(context.Background(), &store.ChunkEmbedding{
		ChunkUID: "doc-1-0", DocumentUID: "doc-1", Content: "Acme is based in Berlin.",
		Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0},
	})
	require.NoError(t, err)
	require.NoError(t, st.LinkChunkNodes(context.Background(), "doc-1-0", []int32{primary.ID, other.ID}))

	retriever := NewRetriever(st, hashEmbedder{})
	bundle, err := retriever.Retrieve(context.Background(), "acme", 5)
	require.NoError(t, err)

	require.Len(t, bundle.Facts, 2)
	require.True(t, bundle.Facts[0].Primary)
	require.Equal(t, "based-in", bundle.Facts[0].Relation)
	require.False(t, bundle.Facts[1].Primary)
}

func TestRetrieveRespectsBudget(t *testing.T) {
	st := newFakeStore()
	builder := NewBuilder(st, nil, hashEmbedder{})
	_, err := builder.Ingest(context.Background(), &Document{
		UID:     "doc-1",
		Content: "Acme offers consulting services on weekdays and weekends.",
	})
	require.NoError(t, err)

	retriever := NewRetriever(st, hashEmbedder{})
	retriever.budget = 10

	bundle, err := retriever.Retrieve(context.Background(), "consulting", 5)
	require.NoError(t, err)
	require.Empty(t, bundle.Passages)
}

func TestBundleRender(t *testing.T) {
	bundle := &ContextBundle{
		Passages: []Passage{{Content: "Acme is based in Berlin."}},
		Facts:    []Fact{{Source: "Acme", Relation: "based-in", Target: "Berlin"}},
	}
	text := bundle.Render()

	require.Contains(t, text, "Acme is based in Berlin.")
	require.Contains(t, text, "- Acme based-in Berlin")
}

func TestExportGraph(t *testing.T) {
	st := newFakeStore()
	node1, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Acme", NormalizedLabel: "acme", Type: store.KnowledgeNodeEntity,
	})
	node2, _ := st.UpsertKnowledgeNode(context.Background(), &store.KnowledgeNode{
		Label: "Berlin", NormalizedLabel: "berlin", Type: store.KnowledgeNodeEntity,
	})
	_, err := st.CreateKnowledgeEdge(context.Background(), &store.KnowledgeEdge{
		SourceID: node1.ID, TargetID: node2.ID, Relation: "based-in",
	})
	require.NoError(t, err)

	export, err := Export(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 1)
	require.Equal(t, "based-in", export.Edges[0].Relation)
}

// countingEmbedder wraps hashEmbedder and counts Embed calls.
type countingEmbedder struct {
	hashEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.hashEmbedder.Embed(ctx, text)
}

func TestRetrieveCachesRepeatedQueries(t *testing.T) {
	st := newFakeStore()
	builder := NewBuilder(st, nil, hashEmbedder{})
	_, err := builder.Ingest(context.Background(), &Document{
		UID:     "doc-1",
		Content: "Acme offers consulting services on weekdays.",
	})
	require.NoError(t, err)

	embedder := &countingEmbedder{}
	retriever := NewRetriever(st, embedder)

	first, err := retriever.Retrieve(context.Background(), "consulting", 5)
	require.NoError(t, err)
	require.NotEmpty(t, first.Passages)
	require.Equal(t, 1, embedder.calls)

	second, err := retriever.Retrieve(context.Background(), "consulting", 5)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, embedder.calls)

	retriever.InvalidateCache()
	_, err = retriever.Retrieve(context.Background(), "consulting", 5)
	require.NoError(t, err)
	require.Equal(t, 2, embedder.calls)
}

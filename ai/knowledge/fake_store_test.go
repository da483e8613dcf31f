package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// fakeStore is an in-memory Store for exercising the builder and retriever
// without a database.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int32
	documents map[string]*store.KnowledgeDocument
	nodes     map[string]*store.KnowledgeNode // keyed by normalized label
	edges     []*store.KnowledgeEdge
	chunks    map[string]*store.ChunkEmbedding
	links     map[string][]int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: map[string]*store.KnowledgeDocument{},
		nodes:     map[string]*store.KnowledgeNode{},
		chunks:    map[string]*store.ChunkEmbedding{},
		links:     map[string][]int32{},
	}
}

func (f *fakeStore) id() int32 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GetKnowledgeDocument(_ context.Context, uid string) (*store.KnowledgeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documents[uid], nil
}

func (f *fakeStore) UpsertKnowledgeDocument(_ context.Context, upsert *store.KnowledgeDocument) (*store.KnowledgeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.documents[upsert.UID]; existing != nil {
		upsert.ID = existing.ID
		upsert.CreatedTs = existing.CreatedTs
	} else {
		upsert.ID = f.id()
	}
	f.documents[upsert.UID] = upsert
	return upsert, nil
}

func (f *fakeStore) UpsertKnowledgeNode(_ context.Context, upsert *store.KnowledgeNode) (*store.KnowledgeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.nodes[upsert.NormalizedLabel]; existing != nil {
		return existing, nil
	}
	upsert.ID = f.id()
	f.nodes[upsert.NormalizedLabel] = upsert
	return upsert, nil
}

func (f *fakeStore) ListKnowledgeNodes(_ context.Context, find *store.FindKnowledgeNode) ([]*store.KnowledgeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wantIDs := map[int32]bool{}
	for _, id := range find.IDs {
		wantIDs[id] = true
	}
	wantLabels := map[string]bool{}
	for _, label := range find.NormalizedLabels {
		wantLabels[label] = true
	}
	list := []*store.KnowledgeNode{}
	for _, node := range f.nodes {
		if len(wantIDs) > 0 && !wantIDs[node.ID] {
			continue
		}
		if len(wantLabels) > 0 && !wantLabels[node.NormalizedLabel] {
			continue
		}
		list = append(list, node)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeStore) CreateKnowledgeEdge(_ context.Context, create *store.KnowledgeEdge) (*store.KnowledgeEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	create.ID = f.id()
	f.edges = append(f.edges, create)
	return create, nil
}

func (f *fakeStore) ListKnowledgeEdges(_ context.Context, find *store.FindKnowledgeEdge) ([]*store.KnowledgeEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wantIDs := map[int32]bool{}
	for _, id := range find.NodeIDs {
		wantIDs[id] = true
	}
	list := []*store.KnowledgeEdge{}
	for _, edge := range f.edges {
		if len(wantIDs) > 0 && !wantIDs[edge.SourceID] && !wantIDs[edge.TargetID] {
			continue
		}
		if find.SourceRef != nil && edge.SourceRef != *find.SourceRef {
			continue
		}
		list = append(list, edge)
	}
	return list, nil
}

func (f *fakeStore) DeleteKnowledgeEdgesBySource(_ context.Context, sourceRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.edges[:0]
	for _, edge := range f.edges {
		if edge.SourceRef != sourceRef {
			kept = append(kept, edge)
		}
	}
	f.edges = kept
	return nil
}

func (f *fakeStore) LinkChunkNodes(_ context.Context, chunkUID string, nodeIDs []int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[chunkUID] = append(f.links[chunkUID], nodeIDs...)
	return nil
}

func (f *fakeStore) ListChunkNodeLinks(_ context.Context, chunkUIDs []string) ([]*store.ChunkNodeLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []*store.ChunkNodeLink{}
	for _, uid := range chunkUIDs {
		for _, nodeID := range f.links[uid] {
			list = append(list, &store.ChunkNodeLink{ChunkUID: uid, NodeID: nodeID})
		}
	}
	return list, nil
}

func (f *fakeStore) UpsertChunkEmbedding(_ context.Context, upsert *store.ChunkEmbedding) (*store.ChunkEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.chunks[upsert.ChunkUID]; existing != nil {
		upsert.ID = existing.ID
	} else {
		upsert.ID = f.id()
	}
	f.chunks[upsert.ChunkUID] = upsert
	return upsert, nil
}

func (f *fakeStore) DeleteChunkEmbeddingsByDocument(_ context.Context, docUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for uid, chunk := range f.chunks {
		if chunk.DocumentUID == docUID {
			delete(f.chunks, uid)
			delete(f.links, uid)
		}
	}
	return nil
}

func (f *fakeStore) CountChunkEmbeddings(_ context.Context) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int32(len(f.chunks)), nil
}

func (f *fakeStore) ChunkVectorSearch(_ context.Context, opts *store.ChunkVectorSearchOptions) ([]*store.ChunkWithScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []*store.ChunkWithScore{}
	for _, chunk := range f.chunks {
		var dot float32
		for i := range opts.Vector {
			if i < len(chunk.Embedding) {
				dot += opts.Vector[i] * chunk.Embedding[i]
			}
		}
		list = append(list, &store.ChunkWithScore{Chunk: chunk, Score: dot})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
	if len(list) > opts.Limit {
		list = list[:opts.Limit]
	}
	return list, nil
}

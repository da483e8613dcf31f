package knowledge

import (
	"context"
	"fmt"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// GraphNode is one node in an exported graph snapshot.
type GraphNode struct {
	ID    int32  `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// GraphEdge is one edge in an exported graph snapshot.
type GraphEdge struct {
	SourceID int32  `json:"sourceId"`
	TargetID int32  `json:"targetId"`
	Relation string `json:"relation"`
}

// GraphExport is a full snapshot of the knowledge graph, suitable for
// external visualization.
type GraphExport struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Export returns the whole graph.
func Export(ctx context.Context, st Store) (*GraphExport, error) {
	nodes, err := st.ListKnowledgeNodes(ctx, &store.FindKnowledgeNode{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	edges, err := st.ListKnowledgeEdges(ctx, &store.FindKnowledgeEdge{})
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	export := &GraphExport{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, node := range nodes {
		export.Nodes = append(export.Nodes, GraphNode{
			ID:    node.ID,
			Type:  string(node.Type),
			Label: node.Label,
		})
	}
	for _, edge := range edges {
		export.Edges = append(export.Edges, GraphEdge{
			SourceID: edge.SourceID,
			TargetID: edge.TargetID,
			Relation: edge.Relation,
		})
	}
	return export, nil
}

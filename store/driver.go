package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database drivers.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Customer model
	UpsertCustomer(ctx context.Context, upsert *Customer) (*Customer, error)
	GetCustomer(ctx context.Context, find *FindCustomer) (*Customer, error)

	// Reservation model
	CreateReservationIfAvailable(ctx context.Context, create *Reservation) (*Reservation, error)
	MoveReservationIfAvailable(ctx context.Context, releaseID int32, create *Reservation) (*Reservation, error)
	ListReservations(ctx context.Context, find *FindReservation) ([]*Reservation, error)
	UpdateReservation(ctx context.Context, update *UpdateReservation) (*Reservation, error)

	// Conversation model
	CreateConversationSession(ctx context.Context, create *ConversationSession) (*ConversationSession, error)
	GetConversationSession(ctx context.Context, uid string) (*ConversationSession, error)
	UpdateConversationSession(ctx context.Context, update *UpdateConversationSession) error
	DeleteConversationSession(ctx context.Context, uid string) error
	DeleteExpiredConversationSessions(ctx context.Context, lastActiveBefore int64) (int64, error)
	AppendConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error)
	ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error)
	CountConversationTurns(ctx context.Context, sessionID int32) (int32, error)

	// Knowledge model
	GetKnowledgeDocument(ctx context.Context, uid string) (*KnowledgeDocument, error)
	UpsertKnowledgeDocument(ctx context.Context, upsert *KnowledgeDocument) (*KnowledgeDocument, error)
	UpsertKnowledgeNode(ctx context.Context, upsert *KnowledgeNode) (*KnowledgeNode, error)
	ListKnowledgeNodes(ctx context.Context, find *FindKnowledgeNode) ([]*KnowledgeNode, error)
	CreateKnowledgeEdge(ctx context.Context, create *KnowledgeEdge) (*KnowledgeEdge, error)
	ListKnowledgeEdges(ctx context.Context, find *FindKnowledgeEdge) ([]*KnowledgeEdge, error)
	DeleteKnowledgeEdgesBySource(ctx context.Context, sourceRef string) error
	LinkChunkNodes(ctx context.Context, chunkUID string, nodeIDs []int32) error
	ListChunkNodeLinks(ctx context.Context, chunkUIDs []string) ([]*ChunkNodeLink, error)

	// Chunk embedding model
	UpsertChunkEmbedding(ctx context.Context, upsert *ChunkEmbedding) (*ChunkEmbedding, error)
	DeleteChunkEmbeddingsByDocument(ctx context.Context, docUID string) error
	CountChunkEmbeddings(ctx context.Context) (int32, error)
	ChunkVectorSearch(ctx context.Context, opts *ChunkVectorSearchOptions) ([]*ChunkWithScore, error)
}

// Package v1 exposes the JSON API under /api/v1.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/dialogue"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/knowledge"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/internal/profile"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps/channels"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// APIV1Service aggregates the domain services behind the JSON API.
type APIV1Service struct {
	ChatService        *ChatService
	ReservationService *ReservationService
	KnowledgeService   *KnowledgeService

	Profile *profile.Profile
	Store   *store.Store
}

// Dependencies carries the wired collaborators the API serves.
type Dependencies struct {
	Orchestrator  *dialogue.Orchestrator
	Memory        *dialogue.Memory
	Booking       booking.Service
	Builder       *knowledge.Builder
	Retriever     *knowledge.Retriever
	ChannelRouter *channels.ChannelRouter
	Profile       *profile.Profile
	Store         *store.Store
}

func NewAPIV1Service(deps *Dependencies) *APIV1Service {
	return &APIV1Service{
		ChatService: &ChatService{
			Orchestrator:  deps.Orchestrator,
			Memory:        deps.Memory,
			ChannelRouter: deps.ChannelRouter,
		},
		ReservationService: &ReservationService{
			Booking: deps.Booking,
			Store:   deps.Store,
		},
		KnowledgeService: &KnowledgeService{
			Builder:   deps.Builder,
			Retriever: deps.Retriever,
			Store:     deps.Store,
		},
		Profile: deps.Profile,
		Store:   deps.Store,
	}
}

// RegisterRoutes mounts all v1 routes on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	s.ChatService.RegisterRoutes(g)
	s.ReservationService.RegisterRoutes(g)
	s.KnowledgeService.RegisterRoutes(g)
}

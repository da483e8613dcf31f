package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/knowledge"
)

// KnowledgeService exposes document ingestion, retrieval, and graph export.
type KnowledgeService struct {
	Builder   *knowledge.Builder
	Retriever *knowledge.Retriever
	Store     knowledge.Store
}

func (s *KnowledgeService) RegisterRoutes(g *echo.Group) {
	g.POST("/knowledge/documents", s.ingestDocument)
	g.POST("/knowledge/retrieve", s.retrieve)
	g.GET("/knowledge/graph", s.exportGraph)
}

type ingestRequest struct {
	UID      string `json:"uid"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Markdown bool   `json:"markdown"`
}

func (s *KnowledgeService) ingestDocument(c echo.Context) error {
	if s.Builder == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge ingestion requires an embedding provider")
	}
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	result, err := s.Builder.Ingest(c.Request().Context(), &knowledge.Document{
		UID:      req.UID,
		Title:    req.Title,
		Content:  req.Content,
		Markdown: req.Markdown,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if s.Retriever != nil {
		// New material must be retrievable immediately, not after cache expiry.
		s.Retriever.InvalidateCache()
	}
	return c.JSON(http.StatusOK, result)
}

type retrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (s *KnowledgeService) retrieve(c echo.Context) error {
	if s.Retriever == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval requires an embedding provider")
	}
	var req retrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.K <= 0 {
		req.K = 5
	}

	bundle, err := s.Retriever.Retrieve(c.Request().Context(), req.Query, req.K)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bundle)
}

func (s *KnowledgeService) exportGraph(c echo.Context) error {
	export, err := knowledge.Export(c.Request().Context(), s.Store)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, export)
}

package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/dialogue"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps/channels"
)

// ChatService exposes the conversational endpoints.
type ChatService struct {
	Orchestrator  *dialogue.Orchestrator
	Memory        *dialogue.Memory
	ChannelRouter *channels.ChannelRouter
}

func (s *ChatService) RegisterRoutes(g *echo.Group) {
	g.POST("/chat", s.handleTurn)
	g.DELETE("/chat/sessions/:uid", s.clearSession)
	g.GET("/chat/sessions/:uid/transcript", s.exportTranscript)
	g.GET("/chat/sessions/:uid/stats", s.sessionStats)
	g.POST("/webhooks/:platform", s.handleChannelWebhook)
}

type chatTurnRequest struct {
	SessionUID string `json:"sessionUid"`
	Message    string `json:"message"`
}

func (s *ChatService) handleTurn(c echo.Context) error {
	var req chatTurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	reply, err := s.Orchestrator.HandleTurn(c.Request().Context(), req.SessionUID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *ChatService) clearSession(c echo.Context) error {
	uid := c.Param("uid")
	if err := s.Orchestrator.ResetSession(c.Request().Context(), uid); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *ChatService) exportTranscript(c echo.Context) error {
	uid := c.Param("uid")
	transcript, err := s.Memory.Export(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(transcript))
}

func (s *ChatService) sessionStats(c echo.Context) error {
	uid := c.Param("uid")
	stats, err := s.Memory.Stats(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// handleChannelWebhook receives platform webhooks (e.g. Telegram) and feeds
// them through the channel router. The platform always gets a 200 so it does
// not retry turns that already ran.
func (s *ChatService) handleChannelWebhook(c echo.Context) error {
	if s.ChannelRouter == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no chat channels configured")
	}
	platform := chat_apps.Platform(c.Param("platform"))
	if !platform.IsValid() {
		return echo.NewHTTPError(http.StatusNotFound, "unknown platform")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	headers := map[string]string{}
	for name := range c.Request().Header {
		headers[name] = c.Request().Header.Get(name)
	}

	if _, err := s.ChannelRouter.HandleWebhook(c.Request().Context(), platform, headers, body); err != nil {
		var channelErr *channels.ChannelError
		if errors.As(err, &channelErr) && channelErr.Code == "INVALID_SIGNATURE" {
			return echo.NewHTTPError(http.StatusUnauthorized, channelErr.Message)
		}
		// Parse and turn failures are acknowledged; the platform must not
		// redeliver them.
		c.Logger().Warnf("webhook handling failed: %v", err)
	}
	return c.NoContent(http.StatusOK)
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/drafting"
	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/rag"
	"github.com/adl-legal/legald/internal/retrieval"
)

// ChatMessage is one prior conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /api/v1/chat and /chat/stream.
type ChatRequest struct {
	Query       string         `json:"query"`
	History     []ChatMessage  `json:"history"`
	UserContext map[string]any `json:"user_context"`
}

// ChatResponse is the response body for POST /api/v1/chat. Error carries the
// generation-failure detail when the answer degraded to the apology text.
type ChatResponse struct {
	Answer  string            `json:"answer"`
	Sources []retrieval.Chunk `json:"sources"`
	Error   string            `json:"error,omitempty"`
}

// TemplatesResponse is the response body for GET /api/v1/templates.
type TemplatesResponse struct {
	Templates []drafting.Template `json:"templates"`
}

func (r *ChatRequest) toQuery() rag.Query {
	history := make([]llm.Message, 0, len(r.History))
	for _, m := range r.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return rag.Query{Text: r.Query, History: history, UserContext: r.UserContext}
}

func (s *Server) bindChat(c echo.Context) (*ChatRequest, error) {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	return &req, nil
}

// handleChat answers a question in one shot.
func (s *Server) handleChat(c echo.Context) error {
	req, err := s.bindChat(c)
	if err != nil {
		return err
	}

	result := s.service.Answer(c.Request().Context(), req.toQuery())

	resp := ChatResponse{Answer: result.Text, Sources: result.Sources}
	if resp.Sources == nil {
		resp.Sources = []retrieval.Chunk{}
	}
	if result.Err != nil {
		// The answer text already carries the user-safe apology; the error
		// detail lets callers tell it apart from a real answer.
		s.logger.Error("chat degraded to apology", zap.Error(result.Err))
		resp.Error = result.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// handleChatStream answers a question as a server-sent event stream. Each
// event's data is one JSON-encoded pipeline event: sources first, then
// content deltas, with error events terminal.
func (s *Server) handleChatStream(c echo.Context) error {
	req, err := s.bindChat(c)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for ev := range s.service.AnswerStream(ctx, req.toQuery()) {
		if ev.Type == rag.EventSources && ev.Sources == nil {
			ev.Sources = []retrieval.Chunk{}
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("stream event marshal failed", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			// Client went away; the pipeline notices via ctx.
			s.logger.Debug("stream write failed", zap.Error(err))
			return nil
		}
		resp.Flush()
	}
	return nil
}

// handleTemplates lists the supported drafting templates.
func (s *Server) handleTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, TemplatesResponse{Templates: drafting.List()})
}

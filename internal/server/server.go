package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/hook"
	"github.com/samcharles93/luachat/internal/logger"
	"github.com/samcharles93/luachat/internal/webui"
)

type ExchangeRequest struct {
	Input  string `json:"input"`
	Stream bool   `json:"stream,omitempty"`
}

type TurnResult struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type ExchangeResponse struct {
	ID    string       `json:"id"`
	Turns []TurnResult `json:"turns"`
}

type TranscriptResponse struct {
	Session string      `json:"session"`
	Turns   []chat.Turn `json:"turns"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type Server struct {
	session *Session
	log     logger.Logger
}

func NewServer(session *Session, log logger.Logger) *Server {
	return &Server{
		session: session,
		log:     logger.OrDiscard(log),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/session", s.handleSession)
	e.GET("/v1/transcript", s.handleTranscript)
	e.POST("/v1/exchanges", s.handleExchange)
}

func (s *Server) handleIndex(c *echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/html; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	_, err := res.Write(webui.Index())
	return err
}

func (s *Server) handleHealth(c *echo.Context) error {
	select {
	case <-s.session.Done():
		return writeError(c, http.StatusServiceUnavailable, "unavailable", ErrClosed.Error())
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.session.Info())
}

func (s *Server) handleTranscript(c *echo.Context) error {
	return c.JSON(http.StatusOK, TranscriptResponse{
		Session: s.session.ID(),
		Turns:   s.session.Transcript(),
	})
}

func (s *Server) handleExchange(c *echo.Context) error {
	req, err := decodeJSON[ExchangeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Input) == "" {
		return writeBadRequest(c, "input is required")
	}
	stream := req.Stream
	if v := c.QueryParam("stream"); v != "" {
		stream, err = strconv.ParseBool(v)
		if err != nil {
			return writeBadRequest(c, "stream: expected a boolean")
		}
	}

	id, events, err := s.session.Submit(c.Request().Context(), req.Input)
	switch {
	case errors.Is(err, ErrBusy):
		return writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrClosed):
		return writeError(c, http.StatusServiceUnavailable, "unavailable", err.Error())
	case err != nil:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}

	if !stream {
		return c.JSON(http.StatusOK, ExchangeResponse{ID: id, Turns: collect(events)})
	}

	w, err := newSSEWriter(c, id)
	if err != nil {
		drain(events)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	// Events are drained to the end even when the client has gone, or the
	// loop would block on the next token.
	var writeErr error
	for tok := range events {
		if writeErr == nil {
			writeErr = w.token(tok)
		}
	}
	if writeErr == nil {
		writeErr = w.done()
	}
	if writeErr != nil {
		s.log.Warn("stream write failed", "exchange", id, "err", writeErr)
	}
	return nil
}

func collect(events <-chan hook.Token) []TurnResult {
	turns := []TurnResult{}
	for tok := range events {
		if tok.Kind != hook.End {
			continue
		}
		t := TurnResult{Text: tok.Text}
		if tok.Err != nil {
			t.Error = tok.Err.Error()
		}
		turns = append(turns, t)
	}
	return turns
}

func drain(events <-chan hook.Token) {
	for range events {
	}
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Message: msg, Type: errType},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

package server

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/luachat/internal/hook"
)

// Event is one server-sent event of a streamed exchange.
type Event struct {
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
	Turn     int    `json:"turn"`
	Seq      int    `json:"sequence_number"`
	Delta    string `json:"delta,omitempty"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
	Turns    int    `json:"turns,omitempty"`
}

type sseWriter struct {
	w        io.Writer
	flusher  func()
	exchange string
	seq      int
	turn     int
}

func newSSEWriter(c *echo.Context, exchange string) (*sseWriter, error) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &sseWriter{
		w:        res,
		flusher:  flusher.Flush,
		exchange: exchange,
		seq:      1,
	}, nil
}

func (s *sseWriter) token(tok hook.Token) error {
	switch tok.Kind {
	case hook.Start:
		s.turn++
		return s.send(Event{Type: "turn.start"})
	case hook.Chunk:
		return s.send(Event{Type: "turn.delta", Delta: tok.Text})
	case hook.End:
		ev := Event{Type: "turn.end", Text: tok.Text}
		if tok.Err != nil {
			ev.Error = tok.Err.Error()
		}
		return s.send(ev)
	}
	return nil
}

func (s *sseWriter) done() error {
	return s.send(Event{Type: "exchange.done", Turns: s.turn})
}

func (s *sseWriter) send(ev Event) error {
	ev.Exchange = s.exchange
	ev.Turn = s.turn
	ev.Seq = s.seq
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, b); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher()
	}
	s.seq++
	return nil
}

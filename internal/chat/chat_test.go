package chat_test

import (
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/engine"
	"github.com/samcharles93/luachat/internal/engine/replay"
	"github.com/samcharles93/luachat/internal/template"
)

var tiny = template.Preset{
	Name:         "tiny",
	HeaderPrefix: "<A>",
	HeaderSuffix: ":",
	EndOfContent: "\n",
	Stops:        []string{"\n\n"},
}

func user(msg string) chat.Turn { return chat.Turn{Role: chat.RoleUser, Message: msg} }

func newReplay(t *testing.T, opts engine.ContextOptions, replies ...[]string) *replay.Context {
	t.Helper()
	h, err := replay.Replies(replies...).Context(opts)
	if err != nil {
		t.Fatalf("replay context: %v", err)
	}
	return h
}

func drain(t *testing.T, s *chat.Stream) ([]string, error) {
	t.Helper()
	var frags []string
	for {
		frag, err := s.Next()
		if errors.Is(err, io.EOF) {
			return frags, nil
		}
		if err != nil {
			return frags, err
		}
		frags = append(frags, frag)
	}
}

func TestStreamStopsAtStopSequence(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"Hel", "lo", "\n\n"})
	ctx := chat.NewFullRebuild(h, tiny, nil, chat.Options{})

	s, err := ctx.Chat(chat.Once(user("hi")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	frags, err := drain(t, s)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !slices.Equal(frags, []string{"Hel", "lo"}) {
		t.Fatalf("fragments = %q", frags)
	}
	if s.Text() != "Hello" {
		t.Fatalf("committed %q", s.Text())
	}
	if got, ok := ctx.LastCommitted(); !ok || got != "Hello" {
		t.Fatalf("last committed = %q %v", got, ok)
	}
	if h.Fed() != "<A>user:hi\n<A>assistant:" {
		t.Fatalf("fed %q", h.Fed())
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected sticky EOF, got %v", err)
	}
}

func TestStreamHoldsBackPartialStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reply  []string
		frags  []string
		commit string
	}{
		{"split stop", []string{"Hi", "\n", "\n"}, []string{"Hi"}, "Hi"},
		{"released prefix", []string{"a", "\n", "b", replay.EOSPiece}, []string{"a", "\nb"}, "a\nb"},
		{"stop inside token", []string{"ok\n", "\nignored"}, []string{"ok"}, "ok"},
		{"eos flushes held text", []string{"x\n", replay.EOSPiece}, []string{"x", "\n"}, "x\n"},
		{"empty turn", []string{"\n\n"}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newReplay(t, engine.ContextOptions{}, tt.reply)
			ctx := chat.NewFullRebuild(h, tiny, nil, chat.Options{})
			s, err := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
			if err != nil {
				t.Fatalf("chat: %v", err)
			}
			frags, err := drain(t, s)
			if err != nil {
				t.Fatalf("stream: %v", err)
			}
			if !slices.Equal(frags, tt.frags) {
				t.Fatalf("fragments = %q, want %q", frags, tt.frags)
			}
			if s.Text() != tt.commit {
				t.Fatalf("committed %q, want %q", s.Text(), tt.commit)
			}
		})
	}
}

func TestStreamAssemblesSplitRunes(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"\xe4\xb8", "\x96!", replay.EOSPiece})
	ctx := chat.NewFullRebuild(h, tiny, nil, chat.Options{})
	s, _ := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
	frags, err := drain(t, s)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !slices.Equal(frags, []string{"世!"}) {
		t.Fatalf("fragments = %q", frags)
	}
}

func TestStreamFlushesTruncatedRuneAtEOS(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"ok\xe4", replay.EOSPiece})
	ctx := chat.NewFullRebuild(h, tiny, nil, chat.Options{})
	s, _ := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
	frags, err := drain(t, s)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !slices.Equal(frags, []string{"ok", "\uFFFD"}) {
		t.Fatalf("fragments = %q", frags)
	}
	if got, _ := ctx.LastCommitted(); got != "ok\uFFFD" {
		t.Fatalf("committed %q", got)
	}
}

func TestStreamSkipsHeader(t *testing.T) {
	t.Parallel()

	p := tiny
	p.HeaderEnd = "<H>"
	h := newReplay(t, engine.ContextOptions{}, []string{"assistant", "<H>", "body", replay.EOSPiece})
	ctx := chat.NewFullRebuild(h, p, nil, chat.Options{})
	s, _ := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
	frags, err := drain(t, s)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !slices.Equal(frags, []string{"body"}) {
		t.Fatalf("fragments = %q", frags)
	}
}

func TestContinuousCursor(t *testing.T) {
	t.Parallel()

	system := []chat.Turn{{Role: chat.RoleSystem, Message: "sys"}}
	h := newReplay(t, engine.ContextOptions{BatchSize: 4}, []string{"ok", replay.EOSPiece}, []string{"fine", replay.EOSPiece})
	ctx := chat.NewContinuous(h, tiny, system, chat.Options{})

	first := tiny.Encode(append(slices.Clone(system), user("hi")))
	s, err := ctx.Chat(chat.Once(user("hi")), chat.SampleTemperature(0.7))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got, want := ctx.Cursor(), 1+len(first); got != want {
		t.Fatalf("cursor after first submit = %d, want %d", got, want)
	}
	if _, err := s.Collect(); err != nil {
		t.Fatalf("stream: %v", err)
	}
	// "ok" was fed back before the EOS was sampled.
	afterFirst := ctx.Cursor()
	if afterFirst != 1+len(first)+1 {
		t.Fatalf("cursor after first turn = %d", afterFirst)
	}
	if h.Cache() != afterFirst {
		t.Fatalf("cache %d does not match cursor %d", h.Cache(), afterFirst)
	}

	second := tiny.Encode([]chat.Turn{user("more")})
	s, err = ctx.Chat(chat.Once(user("more")), chat.SampleTopP(0.9, 1))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got := ctx.Cursor() - afterFirst; got != len(second) {
		t.Fatalf("second submit grew cursor by %d, want %d", got, len(second))
	}
	text, err := s.Collect()
	if err != nil || text != "fine" {
		t.Fatalf("second reply %q, %v", text, err)
	}
	if _, ok := ctx.LastCommitted(); ok {
		t.Fatalf("continuous context must not report committed text")
	}
	if h.Clears() != 0 {
		t.Fatalf("continuous context cleared the cache")
	}
}

func TestContinuousRejectsFull(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{})
	ctx := chat.NewContinuous(h, tiny, nil, chat.Options{})
	if _, err := ctx.Chat(chat.Full([]chat.Turn{user("x")}), chat.SampleDefault()); !errors.Is(err, chat.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if ctx.Cursor() != 0 || h.Decodes() != 0 {
		t.Fatalf("rejected request touched engine state")
	}
}

func TestFlushOnFullBatching(t *testing.T) {
	t.Parallel()

	for _, size := range []int{1, 2, 3, 7, 64} {
		h := newReplay(t, engine.ContextOptions{BatchSize: size}, []string{"x", replay.EOSPiece})
		ctx := chat.NewContinuous(h, tiny, nil, chat.Options{})
		s, err := ctx.Chat(chat.Once(user("a longer prompt")), chat.SampleDefault())
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
		if _, err := s.Collect(); err != nil {
			t.Fatalf("batch %d: %v", size, err)
		}
		n := 1 + len(tiny.Encode([]chat.Turn{user("a longer prompt")}))
		promptDecodes := (n + size - 1) / size
		if got := h.Decodes(); got != promptDecodes+1 {
			t.Fatalf("batch %d: decodes = %d, want %d", size, got, promptDecodes+1)
		}
	}
}

func TestFullRebuildResetsCursor(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{BatchSize: 5}, []string{"one", "\n\n"}, []string{"two", "\n\n"})
	history := []chat.Turn{{Role: chat.RoleSystem, Message: "sys"}}
	ctx := chat.NewFullRebuild(h, tiny, history, chat.Options{})

	for i, msg := range []string{"first", "second"} {
		s, err := ctx.Chat(chat.Once(user(msg)), chat.SampleDefault())
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
		want := 1 + len(tiny.Encode(ctx.Turns()))
		if ctx.Cursor() != want {
			t.Fatalf("turn %d: cursor %d, want %d", i, ctx.Cursor(), want)
		}
		if _, err := s.Collect(); err != nil {
			t.Fatalf("stream: %v", err)
		}
		if h.Clears() != i+1 {
			t.Fatalf("expected cache cleared at every turn, got %d clears", h.Clears())
		}
	}

	turns := ctx.Turns()
	want := []chat.Turn{
		{Role: chat.RoleSystem, Message: "sys"},
		user("first"),
		{Role: chat.RoleAssistant, Message: "one"},
		user("second"),
		{Role: chat.RoleAssistant, Message: "two"},
	}
	if !slices.Equal(turns, want) {
		t.Fatalf("history = %+v", turns)
	}
}

func TestFullRequestReplacesHistory(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"r", replay.EOSPiece})
	ctx := chat.NewFullRebuild(h, tiny, []chat.Turn{user("old")}, chat.Options{})
	s, err := ctx.Chat(chat.Full([]chat.Turn{user("new")}), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := s.Collect(); err != nil {
		t.Fatal(err)
	}
	if got := ctx.Turns(); len(got) != 2 || got[0].Message != "new" {
		t.Fatalf("history = %+v", got)
	}
}

func TestStreamIsExclusive(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"a", "b", replay.EOSPiece}, []string{"c", replay.EOSPiece})
	ctx := chat.NewContinuous(h, tiny, nil, chat.Options{})
	s, err := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := ctx.Chat(chat.Once(user("again")), chat.SampleDefault()); !errors.Is(err, chat.ErrStreamActive) {
		t.Fatalf("expected ErrStreamActive, got %v", err)
	}
	if err := ctx.Rewrite(func(t chat.Turn) chat.Turn { return t }); !errors.Is(err, chat.ErrStreamActive) {
		t.Fatalf("expected ErrStreamActive from Rewrite, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if ctx.Cursor() != h.Cache() {
		t.Fatalf("cursor %d, cache %d", ctx.Cursor(), h.Cache())
	}
	if _, err := ctx.Chat(chat.Once(user("again")), chat.SampleDefault()); err != nil {
		t.Fatalf("chat after close: %v", err)
	}
}

func TestCloseBeforeNextKeepsCursorInSync(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{BatchSize: 3}, []string{"a", replay.EOSPiece})
	ctx := chat.NewContinuous(h, tiny, nil, chat.Options{})
	s, err := ctx.Chat(chat.Once(user("hello")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ctx.Cursor() != h.Cache() {
		t.Fatalf("cursor %d, cache %d", ctx.Cursor(), h.Cache())
	}
}

func TestDecodeErrorEndsTurnOnly(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"partial", "more", replay.EOSPiece}, []string{"recovered", replay.EOSPiece})
	ctx := chat.NewFullRebuild(h, tiny, nil, chat.Options{})

	s, err := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	frag, err := s.Next()
	if err != nil || frag != "partial" {
		t.Fatalf("first fragment %q %v", frag, err)
	}
	h.FailNextDecode(&engine.DecodeError{Pos: ctx.Cursor(), Reason: "context exhausted"})
	if _, err := s.Next(); !errors.Is(err, engine.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := s.Next(); !errors.Is(err, engine.ErrDecode) {
		t.Fatalf("expected sticky ErrDecode, got %v", err)
	}
	if s.Err() == nil {
		t.Fatalf("Err() must report the turn error")
	}
	if ctx.Cursor() != h.Cache() {
		t.Fatalf("cursor %d, cache %d", ctx.Cursor(), h.Cache())
	}
	last, _ := ctx.LastCommitted()
	if last != "partial\ndecode at position "+strconv.Itoa(h.Cache())+": context exhausted" {
		t.Fatalf("committed %q", last)
	}

	s, err = ctx.Chat(chat.Once(user("retry")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat after failure: %v", err)
	}
	if text, err := s.Collect(); err != nil || text != "recovered" {
		t.Fatalf("retry %q %v", text, err)
	}
}

func TestTokenizationErrorSurfacesOnStream(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{}, []string{"never"})
	ctx := chat.NewContinuous(h, tiny, nil, chat.Options{})
	s, err := ctx.Chat(chat.Once(user("bad \xff")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat must not fail for engine errors: %v", err)
	}
	if _, err := s.Next(); !errors.Is(err, engine.ErrTokenization) {
		t.Fatalf("expected ErrTokenization, got %v", err)
	}
	if ctx.Cursor() != 0 {
		t.Fatalf("cursor moved to %d", ctx.Cursor())
	}
	s, err = ctx.Chat(chat.Once(user("fine")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if text, err := s.Collect(); err != nil || text != "never" {
		t.Fatalf("got %q %v", text, err)
	}
}

func TestEmptyRequest(t *testing.T) {
	t.Parallel()

	ctx := chat.NewFullRebuild(newReplay(t, engine.ContextOptions{}), tiny, nil, chat.Options{})
	if _, err := ctx.Chat(chat.Full(nil), chat.SampleDefault()); !errors.Is(err, chat.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	h := newReplay(t, engine.ContextOptions{})
	ctx := chat.NewFullRebuild(h, tiny, []chat.Turn{{Role: chat.RoleSystem, Message: "s"}, user("u")}, chat.Options{})
	err := ctx.Rewrite(func(t chat.Turn) chat.Turn {
		if t.Role == chat.RoleUser {
			t.Message = "[" + t.Message + "]"
		}
		return t
	})
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got := ctx.Turns()[1].Message; got != "[u]" {
		t.Fatalf("rewritten message %q", got)
	}
}

func TestSharedModelReleasedOnClose(t *testing.T) {
	t.Parallel()

	m := replay.Replies()
	shared := engine.Share(m)
	h, err := shared.NewContext(engine.ContextOptions{})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	ctx := chat.NewContinuous(h, tiny, nil, chat.Options{})
	if err := shared.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Closed() {
		t.Fatalf("model closed while a context holds it")
	}
	if err := ctx.Close(); err != nil {
		t.Fatal(err)
	}
	if !m.Closed() {
		t.Fatalf("model not closed after the last context")
	}
}

type crashingHandle struct{ *replay.Context }

func (crashingHandle) Decode(*engine.Batch) error { panic("native crash") }

func TestEnginePanicBecomesTurnError(t *testing.T) {
	t.Parallel()

	h := crashingHandle{newReplay(t, engine.ContextOptions{}, []string{"x"})}
	ctx := chat.NewFullRebuild(h, tiny, nil, chat.Options{})
	s, err := ctx.Chat(chat.Once(user("q")), chat.SampleDefault())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	_, err = s.Next()
	if !errors.Is(err, engine.ErrDecode) || !strings.Contains(err.Error(), "native crash") {
		t.Fatalf("expected recovered decode error, got %v", err)
	}
	if ctx.Cursor() != 0 {
		t.Fatalf("cursor %d after failed decode", ctx.Cursor())
	}
}

func TestSamplingString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    chat.Sampling
		want string
	}{
		{chat.SampleDefault(), "default"},
		{chat.SampleTemperature(0.5), "temperature(0.5)"},
		{chat.SampleTopP(0.9, 2), "top_p(0.9, min_keep=2)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("got %q want %q", got, tt.want)
		}
	}
}

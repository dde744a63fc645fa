package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/logger"
)

// withFlags restores the package-level flag values after a test.
func withFlags(t *testing.T) {
	t.Helper()
	saved := struct {
		promptPath, modelType, backend, replayPath string
		fullChat                                   bool
		maxContext, batchSize, seed, minKeep       int64
		temp, topP                                 float64
	}{promptPath, modelType, backend, replayPath, fullChat, maxContext, batchSize, seed, minKeep, temp, topP}
	t.Cleanup(func() {
		promptPath, modelType, backend, replayPath = saved.promptPath, saved.modelType, saved.backend, saved.replayPath
		fullChat = saved.fullChat
		maxContext, batchSize, seed, minKeep = saved.maxContext, saved.batchSize, saved.seed, saved.minKeep
		temp, topP = saved.temp, saved.topP
	})
}

func TestSamplingFromFlags(t *testing.T) {
	withFlags(t)

	temp, topP, minKeep = 0, 0, 1
	if got := samplingFromFlags(); got.Kind != chat.SampleDefault().Kind {
		t.Fatalf("default sampling = %s", got)
	}
	temp = 0.7
	if got := samplingFromFlags().String(); got != "temperature(0.7)" {
		t.Fatalf("temperature sampling = %s", got)
	}
	topP, minKeep = 0.9, 2
	if got := samplingFromFlags().String(); got != "top_p(0.9, min_keep=2)" {
		t.Fatalf("top-p sampling = %s", got)
	}
}

func TestOpenConversationReplay(t *testing.T) {
	withFlags(t)

	dir := t.TempDir()
	promptFile := filepath.Join(dir, "prompt.yaml")
	replayFile := filepath.Join(dir, "replay.yaml")
	if err := os.WriteFile(promptFile, []byte("content:\n  - role: system\n    message: answer in lua\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(replayFile, []byte("replies:\n  - [\"return \", \"1\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	promptPath, replayPath, backend, modelType = promptFile, replayFile, "replay", "chatml"
	maxContext, batchSize = 256, 16
	for _, full := range []bool{false, true} {
		fullChat = full
		conv, err := openConversation(logger.Discard())
		if err != nil {
			t.Fatalf("openConversation: %v", err)
		}
		want := "continuous"
		if full {
			want = "full"
		}
		if got := conv.chat.Strategy(); got != want {
			t.Fatalf("strategy = %q, want %q", got, want)
		}
		if turns := conv.chat.Turns(); len(turns) != 1 || turns[0].Role != chat.RoleSystem {
			t.Fatalf("turns = %+v", turns)
		}
		text, err := collectReply(conv.chat)
		if err != nil || text != "return 1" {
			t.Fatalf("reply = %q, %v", text, err)
		}
		if err := conv.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if conv.model.Refs() != 0 {
			t.Fatalf("model refs = %d after close", conv.model.Refs())
		}
	}
}

func collectReply(c chat.Context) (string, error) {
	s, err := c.Chat(chat.Once(chat.Turn{Role: chat.RoleUser, Message: "one"}), chat.SampleDefault())
	if err != nil {
		return "", err
	}
	return s.Collect()
}

func TestOpenConversationErrors(t *testing.T) {
	withFlags(t)

	promptPath, modelType = "", "chatml"
	backend, replayPath = "replay", ""
	if _, err := openConversation(logger.Discard()); !errors.Is(err, errNoReplay) {
		t.Fatalf("expected errNoReplay, got %v", err)
	}
	backend = "gpu"
	if _, err := openConversation(logger.Discard()); err == nil {
		t.Fatal("expected unknown backend error")
	}
	backend, modelType = "toy", "no-such-template"
	if _, err := openConversation(logger.Discard()); err == nil {
		t.Fatal("expected unknown template error")
	}
}

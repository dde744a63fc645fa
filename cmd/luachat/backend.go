package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/engine"
	"github.com/samcharles93/luachat/internal/engine/replay"
	"github.com/samcharles93/luachat/internal/engine/toy"
	"github.com/samcharles93/luachat/internal/logger"
	"github.com/samcharles93/luachat/internal/prompt"
	"github.com/samcharles93/luachat/internal/template"
)

var errNoReplay = errors.New("the replay backend needs --replay")

// conversation is the chat context built from the model flags together with
// the model reference it holds.
type conversation struct {
	chat     chat.Context
	model    *engine.Shared
	template template.Preset
}

func (c *conversation) Close() error {
	return errors.Join(c.chat.Close(), c.model.Close())
}

func openModel(log logger.Logger) (engine.Model, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "toy", "":
		log.Info("using toy backend", "seed", seed)
		return toy.New(toy.Config{Seed: seed}), nil
	case "replay":
		if replayPath == "" {
			return nil, errNoReplay
		}
		script, err := replay.Load(replayPath)
		if err != nil {
			return nil, err
		}
		log.Info("using replay backend", "path", replayPath, "script", script.Describe())
		return replay.New(script), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// openConversation resolves the template, loads the prompt file and creates
// the chat context selected by --full-chat.
func openConversation(log logger.Logger) (*conversation, error) {
	tpl, err := template.Resolve(modelType)
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}

	var turns []chat.Turn
	if promptPath != "" {
		turns, err = prompt.Load(promptPath)
		if err != nil {
			return nil, err
		}
	}

	m, err := openModel(log)
	if err != nil {
		return nil, err
	}
	shared := engine.Share(m)
	h, err := shared.NewContext(engine.ContextOptions{
		MaxContext: int(maxContext),
		BatchSize:  int(batchSize),
		Seed:       seed,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create context: %w", err), shared.Close())
	}

	opts := chat.Options{Logger: log}
	var c chat.Context
	if fullChat {
		c = chat.NewFullRebuild(h, tpl, turns, opts)
	} else {
		c = chat.NewContinuous(h, tpl, turns, opts)
	}
	log.Info("conversation ready",
		"strategy", c.Strategy(),
		"template", tpl.Name,
		"turns", len(turns),
		"max_context", maxContext,
	)
	return &conversation{chat: c, model: shared, template: tpl}, nil
}

// samplingFromFlags selects top-p when it restricts the distribution, then
// temperature, then the backend default.
func samplingFromFlags() chat.Sampling {
	switch {
	case topP > 0 && topP < 1:
		return chat.SampleTopP(float32(topP), int(minKeep))
	case temp > 0:
		return chat.SampleTemperature(float32(temp))
	}
	return chat.SampleDefault()
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/hook"
	"github.com/samcharles93/luachat/internal/logger"
	"github.com/samcharles93/luachat/internal/script"
)

func chatCmd() *cli.Command {
	var (
		streamMode string
		rawOutput  bool
		highlight  bool
		plain      bool
	)

	flags := append(commonModelFlags(), samplingFlags()...)
	flags = append(flags, loopFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "output pacing (instant, smooth, typewriter, quiet)",
			Value:       string(StreamInstant),
			Destination: &streamMode,
		},
		&cli.BoolFlag{
			Name:        "raw-output",
			Usage:       "escape control characters in model output",
			Destination: &rawOutput,
		},
		&cli.BoolFlag{
			Name:        "highlight",
			Usage:       "print each reply once complete, highlighted as Lua",
			Destination: &highlight,
		},
		&cli.BoolFlag{
			Name:        "plain",
			Usage:       "submit inputs and tool results without JSON envelopes",
			Destination: &plain,
		},
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with a model that answers in Lua",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyChatConfig(c, cfg, &streamMode, &highlight)

			mode, err := parseStreamMode(streamMode)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log := logger.FromContext(ctx).With("session", uuid.NewString())

			conv, err := openConversation(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() {
				if err := conv.Close(); err != nil {
					log.Warn("close conversation", "err", err)
				}
			}()

			lua := script.New(script.Options{
				Funcs:   demoTools(os.Stdout),
				Timeout: scriptTimeout,
				Logger:  log,
			})
			defer lua.Close()

			con := newConsole(newLineReader(), os.Stdout, consoleOptions{
				Mode:      mode,
				Raw:       rawOutput,
				Highlight: highlight,
				Envelope:  !plain,
				Marker:    noopMarker,
			})
			loop, err := hook.New(conv.chat, lua, con, hook.Options{
				NoopMarker:     noopMarker,
				Sampling:       samplingFromFlags(),
				ToolRole:       chat.ParseRole(toolRole),
				StripReasoning: stripReasoning,
				Logger:         log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			con.live = true

			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("chat finished", "turn", loop.Generated(), "cursor", conv.chat.Cursor())
			return nil
		},
	}
}

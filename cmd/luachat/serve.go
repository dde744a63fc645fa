package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/hook"
	"github.com/samcharles93/luachat/internal/logger"
	"github.com/samcharles93/luachat/internal/protocol"
	"github.com/samcharles93/luachat/internal/script"
	"github.com/samcharles93/luachat/internal/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := append(commonModelFlags(), samplingFlags()...)
	flags = append(flags, loopFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("LUACHAT_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve one chat session over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyServeConfig(c, cfg, &addr)
			log := logger.FromContext(ctx)

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
				Funcs:   demoTools(os.Stderr),
				Timeout: scriptTimeout,
				Logger:  log,
			})
			defer lua.Close()

			session, err := server.NewSession(server.SessionConfig{
				Chat:      conv.chat,
				Evaluator: lua,
				Loop: hook.Options{
					NoopMarker:     noopMarker,
					Sampling:       samplingFromFlags(),
					ToolRole:       chat.ParseRole(toolRole),
					StripReasoning: stripReasoning,
				},
				Format: hook.Funcs{
					Normalize:   protocol.UserMessage,
					ToolResult:  protocol.ToolResult,
					ScriptError: protocol.ToolError,
				},
				Template: conv.template.Name,
				Logger:   log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			session.Start(ctx)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.NewServer(session, log).Register(e)
			log.Info("starting server", "address", addr, "session", session.ID())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

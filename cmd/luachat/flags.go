package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

var (
	promptPath     string
	modelType      string
	fullChat       bool
	backend        string
	replayPath     string
	maxContext     int64
	batchSize      int64
	seed           int64
	temp           float64
	topP           float64
	minKeep        int64
	noopMarker     string
	toolRole       string
	stripReasoning bool
	scriptTimeout  time.Duration
	logLevel       string
	logFormat      string
	debug          bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "path to the prompt file (yaml, json or jsonc)",
			Destination: &promptPath,
		},
		&cli.StringFlag{
			Name:        "model-type",
			Aliases:     []string{"t", "template"},
			Usage:       "template preset name or path to a template file",
			Value:       "chatml",
			Destination: &modelType,
		},
		&cli.BoolFlag{
			Name:        "full-chat",
			Usage:       "rebuild the whole prompt on every turn instead of keeping the KV cache",
			Destination: &fullChat,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "inference backend (toy, replay)",
			Value:       "toy",
			Sources:     cli.EnvVars("LUACHAT_BACKEND"),
			Destination: &backend,
		},
		&cli.StringFlag{
			Name:        "replay",
			Usage:       "path to a replay script (replay backend)",
			Destination: &replayPath,
		},
		&cli.Int64Flag{
			Name:        "max-context",
			Aliases:     []string{"max-ctx", "ctx", "c"},
			Usage:       "max context length",
			Value:       2048,
			Destination: &maxContext,
		},
		&cli.Int64Flag{
			Name:        "batch-size",
			Usage:       "decode batch capacity",
			Value:       512,
			Destination: &batchSize,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed",
			Value:       0,
			Destination: &seed,
		},
	}
}

func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature (0 = backend default)",
			Destination: &temp,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p", "topp"},
			Usage:       "nucleus sampling mass (0 or 1 = disabled)",
			Destination: &topP,
		},
		&cli.Int64Flag{
			Name:        "min-keep",
			Usage:       "minimum candidates kept by top-p",
			Value:       1,
			Destination: &minKeep,
		},
	}
}

func loopFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "noop-marker",
			Usage:       "prefix marking a reply that must not be evaluated",
			Value:       "--",
			Destination: &noopMarker,
		},
		&cli.StringFlag{
			Name:        "tool-role",
			Usage:       "role tool results are submitted under (user, tool)",
			Value:       "user",
			Destination: &toolRole,
		},
		&cli.BoolFlag{
			Name:        "strip-reasoning",
			Usage:       "remove <think> blocks before evaluating a reply",
			Destination: &stripReasoning,
		},
		&cli.DurationFlag{
			Name:        "script-timeout",
			Usage:       "time limit for one script evaluation",
			Value:       5 * time.Second,
			Destination: &scriptTimeout,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LUACHAT_LOG_LEVEL"),
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, tint, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/luachat/internal/version"
)

func versionCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the build information as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return printVersion(os.Stdout, version.Resolve(), asJSON)
		},
	}
}

func printVersion(w io.Writer, info version.Info, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	label := lipgloss.NewRenderer(w).NewStyle().Faint(true).Width(12)
	row := func(k, v string) {
		if v != "" {
			_, _ = fmt.Fprintln(w, label.Render(k)+v)
		}
	}
	row("luachat", info.String())
	row("commit", info.Commit)
	row("built", info.BuildTime)
	row("go", info.GoVersion)
	return nil
}

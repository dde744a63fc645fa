package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/template"
)

func templatesCmd() *cli.Command {
	var show string

	return &cli.Command{
		Name:  "templates",
		Usage: "List the built-in prompt templates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "show",
				Usage:       "print the encoding of a sample conversation for one template or template file",
				Destination: &show,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r := lipgloss.NewRenderer(os.Stdout)
			name := r.NewStyle().Bold(true)
			faint := r.NewStyle().Faint(true)

			if show != "" {
				p, err := template.Resolve(show)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				fmt.Println(name.Render(p.Name))
				fmt.Println(p.Encode(sampleTurns))
				return nil
			}

			for _, n := range template.Names() {
				p, err := template.Lookup(n)
				if err != nil {
					return err
				}
				stops := make([]string, len(p.Stops))
				for i, s := range p.Stops {
					stops[i] = strconv.Quote(s)
				}
				fmt.Println(name.Width(12).Render(n), faint.Render("stops: "+strings.Join(stops, ", ")))
			}
			return nil
		},
	}
}

var sampleTurns = []chat.Turn{
	{Role: chat.RoleSystem, Message: "You answer in Lua."},
	{Role: chat.RoleUser, Message: "What is the weather?"},
	{Role: chat.RoleAssistant, Message: "return get_weather()"},
	{Role: chat.RoleUser, Message: "rain"},
}

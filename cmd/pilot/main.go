package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/pilot/internal/cli"
	"github.com/vburojevic/pilot/internal/config"
)

const quickStart = `pilot - CSP-style process graphs with online deadlock detection

START HERE (this is the command you want):
  pilot run <graph.json>

Other useful commands:
  pilot inspect <graph.json>            Show a graph's process/channel/bundle registry
  pilot watch <graph.json>              Run a graph with a live dashboard
  pilot replay <events.ndjson> --graph  Re-diagnose a recorded run offline
  pilot analyze <events.ndjson>         Summarize a recorded run
  pilot query <events.ndjson>           Filter a recorded run
  pilot doctor                          Check environment and configuration
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("pilot"),
		kong.Description("pilot: CSP-style message-passing process graphs with an online deadlock detector\n\nSTART HERE: pilot run <graph.json>"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	)

	globals := cli.NewGlobals(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}

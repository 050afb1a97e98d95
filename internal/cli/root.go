package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/vburojevic/pilot/internal/config"
)

// CLI is the root command structure for pilot.
type CLI struct {
	// Global flags
	Format  string `short:"f" default:"ndjson" enum:"ndjson,text" help:"Output format"`
	Quiet   bool   `short:"q" help:"Suppress non-essential output"`
	Verbose bool   `short:"v" help:"Show debug output"`

	Run     RunCmd     `cmd:"" help:"Launch a process graph and run its deadlock detector live"`
	Replay  ReplayCmd  `cmd:"" help:"Feed a recorded NDJSON event log through a detector instance offline"`
	Inspect InspectCmd `cmd:"" help:"Print a graph descriptor's process/channel/bundle registry as a table"`
	Analyze AnalyzeCmd `cmd:"" help:"Summarize a recorded NDJSON event log"`
	Watch   WatchCmd   `cmd:"" help:"Run a graph and render a live process/dependency dashboard"`
	Query   QueryCmd   `cmd:"" help:"Filter a recorded NDJSON event log"`
	Version VersionCmd `cmd:"" help:"Show version information"`
	Doctor  DoctorCmd  `cmd:"" help:"Check runtime environment and configuration"`
}

// Globals holds shared state for all commands.
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// NewGlobals creates a Globals instance from parsed CLI flags, falling back
// to cfg for any value the user left at its CLI default.
func NewGlobals(cli *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:  cli.Format,
		Quiet:   cli.Quiet,
		Verbose: cli.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	const cliDefaultFormat = "ndjson"
	if cli.Format == cliDefaultFormat && cfg.Format != "" {
		g.Format = cfg.Format
	}
	if !cli.Verbose && cfg.Verbose {
		g.Verbose = cfg.Verbose
	}
	return g
}

// Debug prints a debug message to stderr when verbose mode is enabled.
func (g *Globals) Debug(format string, args ...interface{}) {
	if g.Verbose {
		fmt.Fprintf(g.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// VersionCmd shows version information.
type VersionCmd struct{}

// Run executes the version command.
func (v *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		io.WriteString(globals.Stdout, `{"type":"version","version":"`+Version+`","commit":"`+Commit+`"}`+"\n")
	} else {
		io.WriteString(globals.Stdout, "pilot version "+Version+" ("+Commit+")\n")
	}
	return nil
}

// Version information, set at build time via -ldflags.
var (
	Version = "0.1.0"
	Commit  = "none"
)

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/vburojevic/pilot/internal/detector"
	"github.com/vburojevic/pilot/internal/engine"
	"github.com/vburojevic/pilot/internal/graphio"
	"github.com/vburojevic/pilot/internal/logrouter"
	"github.com/vburojevic/pilot/internal/perr"
	"github.com/vburojevic/pilot/internal/transport"
	"github.com/vburojevic/pilot/internal/tui"
	"github.com/vburojevic/pilot/internal/wire"
)

// WatchCmd runs a graph and renders a live bubbletea dashboard of every
// process's RUN/BLOCKED/DEAD state while it executes.
type WatchCmd struct {
	Graph string `arg:"" help:"Path to a JSON process graph descriptor"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(globals *Globals) error {
	if f, ok := globals.Stdout.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		run := &RunCmd{Graph: c.Graph, Timeout: 30 * time.Second}
		return run.Run(globals)
	}

	reg, scripts, err := graphio.LoadScript(c.Graph)
	if err != nil {
		return outputErrorCommon(globals, "graph_load_failed", err.Error())
	}

	names := make([]string, reg.NumProcesses())
	for _, p := range reg.Processes() {
		names[p.Rank] = p.Name
	}

	codec := &wire.Codec{Sep: globals.Config.Wire.Separator[0], FrameLen: globals.Config.Wire.FrameLen}
	log := zap.NewNop()
	det := detector.New(detector.Options{Codec: codec, Logger: log, QueueCap: globals.Config.Detector.QueueCap})
	if err := det.Start(reg); err != nil {
		return err
	}

	router := logrouter.New(codec, det, nil, reg, log)
	tr := transport.NewChanTransport()
	graph := engine.NewGraph(reg, tr, router, codec, log)
	for rank := range scripts {
		graph.SetBody(rank, scriptBody(reg, scripts[rank]))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	updates := make(chan tui.StateUpdate)
	done := make(chan error, 1)

	go func() {
		runErr := graph.Launch(ctx)
		var dl *perr.DeadlockError
		if d, ok := runErr.(*perr.DeadlockError); ok {
			dl = d
		}
		snap := router.Snapshot()
		u := tui.StateUpdate{States: snap.States, Causes: snap.Causes, Names: names}
		if dl != nil {
			u.Aborted = true
			u.Abort = fmt.Sprintf("%s(%d): %s", dl.Process, dl.Argument, dl.Reason)
			u.Trace = dl.Trace
		}
		select {
		case updates <- u:
		default:
		}
		done <- runErr
	}()

	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := router.Snapshot()
				select {
				case updates <- tui.StateUpdate{States: snap.States, Causes: snap.Causes, Names: names}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	model := tui.New(c.Graph, updates, done)
	p := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch: TUI error: %w", err)
	}
	return nil
}

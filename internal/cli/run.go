package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/pilot/internal/detector"
	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/engine"
	"github.com/vburojevic/pilot/internal/graphio"
	"github.com/vburojevic/pilot/internal/logrouter"
	"github.com/vburojevic/pilot/internal/output"
	"github.com/vburojevic/pilot/internal/perr"
	"github.com/vburojevic/pilot/internal/registry"
	"github.com/vburojevic/pilot/internal/transport"
	"github.com/vburojevic/pilot/internal/wire"
)

// RunCmd launches a process graph described by a JSON file and runs its
// scripted process bodies to completion or to a diagnosed deadlock.
type RunCmd struct {
	Graph   string        `arg:"" help:"Path to a JSON process graph descriptor"`
	Timeout time.Duration `default:"30s" help:"Abort the run if it has not finished by this deadline"`
}

// Run executes the run command.
func (c *RunCmd) Run(globals *Globals) error {
	reg, scripts, err := graphio.LoadScript(c.Graph)
	if err != nil {
		return outputErrorCommon(globals, "graph_load_failed", err.Error())
	}

	codec := &wire.Codec{Sep: globals.Config.Wire.Separator[0], FrameLen: globals.Config.Wire.FrameLen}
	log := zap.NewNop()

	det := detector.New(detector.Options{Codec: codec, Logger: log, QueueCap: globals.Config.Detector.QueueCap})
	if err := det.Start(reg); err != nil {
		return outputErrorCommon(globals, "detector_start_failed", err.Error())
	}

	var emit *output.Emitter
	if globals.Format == "ndjson" {
		emit = output.NewEmitter(globals.Stdout)
		emit.RunStart(domain.NewRunStart(c.Graph, reg.NumProcesses(), reg.NumChannels(), reg.NumBundles()))
	}

	router := logrouter.New(codec, det, emit, reg, log)
	tr := transport.NewChanTransport()
	graph := engine.NewGraph(reg, tr, router, codec, log)

	for rank := range scripts {
		graph.SetBody(rank, scriptBody(reg, scripts[rank]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	runErr := graph.Launch(ctx)

	var dl *perr.DeadlockError
	aborted := errors.As(runErr, &dl)
	if !aborted && runErr == nil {
		if endErr := det.End(); endErr != nil {
			runErr = endErr
		}
	}

	summary := domain.RunSummary{Aborted: aborted}
	if aborted {
		summary.AbortReason = dl.Reason
	}
	re := domain.NewRunEnd(aborted, procNameIfAborted(dl), reasonIfAborted(dl), summary)

	if globals.Format == "ndjson" {
		if aborted {
			emit.Deadlock(&domain.DeadlockRecord{Process: dl.Process, Argument: dl.Argument, Event: dl.Event, Reason: dl.Reason, Trace: dl.Trace})
		}
		emit.RunEnd(re)
	} else {
		tw := output.NewTextWriter(globals.Stdout)
		tw.WriteRunEnd(re)
		if aborted {
			fmt.Fprintf(globals.Stderr, "%s(%d): %s\n", dl.Process, dl.Argument, dl.Event)
			fmt.Fprintf(globals.Stderr, "%s\n", dl.Reason)
			for _, line := range dl.Trace {
				fmt.Fprintf(globals.Stderr, "%s\n", line)
			}
		}
	}

	if aborted {
		return dl
	}
	return runErr
}

func procNameIfAborted(dl *perr.DeadlockError) string {
	if dl == nil {
		return ""
	}
	return dl.Process
}

func reasonIfAborted(dl *perr.DeadlockError) string {
	if dl == nil {
		return ""
	}
	return dl.Reason
}

// scriptBody builds an engine.ProcessFunc that executes a fixed sequence of
// scripted channel/bundle operations, the runnable form of a graphio.Action
// list for `pilot run`/`pilot watch`.
func scriptBody(reg *registry.Registry, actions []graphio.Action) engine.ProcessFunc {
	return func(ctx context.Context, p *engine.Proc) error {
		for _, a := range actions {
			switch a.Op {
			case "write":
				cid, err := reg.ChannelByName(a.Channel)
				if err != nil {
					return err
				}
				if err := p.Write(ctx, cid, []byte(a.Payload)); err != nil {
					return err
				}
			case "read":
				cid, err := reg.ChannelByName(a.Channel)
				if err != nil {
					return err
				}
				if _, err := p.Read(ctx, cid); err != nil {
					return err
				}
			case "select":
				bid, err := reg.BundleByName(a.Bundle)
				if err != nil {
					return err
				}
				if _, _, err := p.Select(ctx, bid); err != nil {
					return err
				}
			case "broadcast":
				bid, err := reg.BundleByName(a.Bundle)
				if err != nil {
					return err
				}
				if err := p.Broadcast(ctx, bid, []byte(a.Payload)); err != nil {
					return err
				}
			case "gather":
				bid, err := reg.BundleByName(a.Bundle)
				if err != nil {
					return err
				}
				if _, err := p.Gather(ctx, bid); err != nil {
					return err
				}
			default:
				return fmt.Errorf("run: unknown scripted op %q", a.Op)
			}
		}
		return nil
	}
}

// Package engine implements pilot's user-facing process API: declare a
// process body per rank, launch all of them concurrently over a registry and
// a transport, and emit one wire event per blocking call to the log router
// before performing the transport operation — the Go analogue of pilot.c's
// LOGCALL macro, which logs before every PI_Write/PI_Read/PI_Select/
// PI_Broadcast/PI_Gather/PI_StartAll call.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/logrouter"
	"github.com/vburojevic/pilot/internal/registry"
	"github.com/vburojevic/pilot/internal/transport"
	"github.com/vburojevic/pilot/internal/wire"
)

// ProcessFunc is the body of one user process. It receives a Proc bound to
// its own rank and must return when the process is done; the engine emits
// the Finish lifecycle event on return (including on error).
type ProcessFunc func(ctx context.Context, p *Proc) error

// Graph is a launchable, fully-wired process graph: registry + transport +
// log router + one ProcessFunc per declared rank.
type Graph struct {
	reg     *registry.Registry
	tr      transport.Transport
	router  *logrouter.Router
	codec   *wire.Codec
	log     *zap.Logger
	bodies  []ProcessFunc
}

// NewGraph builds a Graph. reg must already be frozen (spec: configuration
// happens before launch).
func NewGraph(reg *registry.Registry, tr transport.Transport, router *logrouter.Router, codec *wire.Codec, log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{
		reg:    reg,
		tr:     tr,
		router: router,
		codec:  codec,
		log:    log,
		bodies: make([]ProcessFunc, reg.NumProcesses()),
	}
}

// SetBody assigns the function that rank will run. It must be called for
// every declared rank before Launch.
func (g *Graph) SetBody(rank int, fn ProcessFunc) {
	g.bodies[rank] = fn
}

// Launch starts every process body as a goroutine and waits for all of them
// to finish, mirroring PI_StartAll/PI_StopMain. It uses errgroup the way the
// teacher's launch command supervises concurrent work: the first body to
// return an error cancels ctx for the rest, but every still-running body is
// still waited on so Finish events are emitted in order, keeping the
// detector's process table consistent.
func (g *Graph) Launch(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for rank, body := range g.bodies {
		rank, body := rank, body
		if body == nil {
			return fmt.Errorf("engine: no body set for rank %d", rank)
		}
		eg.Go(func() error {
			p := &Proc{rank: rank, graph: g}
			runErr := body(ctx, p)
			if finErr := g.router.RouteFinish(rank); finErr != nil {
				return finErr
			}
			return runErr
		})
	}
	return eg.Wait()
}

// Proc is the per-rank handle passed to a ProcessFunc, exposing the blocking
// channel operations spec §1 names (Write/Read/Select/Broadcast/Gather).
type Proc struct {
	rank  int
	graph *Graph
}

// Rank returns this process's declared rank.
func (p *Proc) Rank() int { return p.rank }

// Write sends payload over channelID, logging the call before performing the
// transport send (LOGCALL order).
func (p *Proc) Write(ctx context.Context, channelID int, payload []byte) error {
	ch := p.graph.reg.Channel(channelID)
	if err := p.graph.router.Route(p.graph.codec.EncodeCall(p.rank, domain.OpWrite, channelID)); err != nil {
		return err
	}
	return p.graph.tr.Send(ctx, transport.Envelope{Source: p.rank, Dest: ch.Consumer, ChannelID: channelID, Payload: payload})
}

// Read receives a payload over channelID.
func (p *Proc) Read(ctx context.Context, channelID int) ([]byte, error) {
	ch := p.graph.reg.Channel(channelID)
	if err := p.graph.router.Route(p.graph.codec.EncodeCall(p.rank, domain.OpRead, channelID)); err != nil {
		return nil, err
	}
	env, err := p.graph.tr.Recv(ctx, ch.Producer, p.rank, channelID)
	if err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// Select waits on every member channel of bundleID and returns the id and
// payload of whichever producer becomes ready first. After the receive it
// logs a read on the chosen channel, which matches that producer's pending
// write in the detector.
func (p *Proc) Select(ctx context.Context, bundleID int) (int, []byte, error) {
	bundle := p.graph.reg.Bundle(bundleID)
	if err := p.graph.router.Route(p.graph.codec.EncodeCall(p.rank, domain.OpSelect, bundleID)); err != nil {
		return 0, nil, err
	}

	members := make([]transport.SelectMember, len(bundle.Members))
	for i, cid := range bundle.Members {
		ch := p.graph.reg.Channel(cid)
		members[i] = transport.SelectMember{Source: ch.Producer, Dest: p.rank, ChannelID: cid}
	}

	env, err := p.graph.tr.SelectRecv(ctx, members)
	if err != nil {
		return 0, nil, err
	}
	if err := p.graph.router.Route(p.graph.codec.EncodeCall(p.rank, domain.OpRead, env.ChannelID)); err != nil {
		return 0, nil, err
	}
	return env.ChannelID, env.Payload, nil
}

// Broadcast sends the same payload to every member channel of bundleID.
func (p *Proc) Broadcast(ctx context.Context, bundleID int, payload []byte) error {
	bundle := p.graph.reg.Bundle(bundleID)
	if err := p.graph.router.Route(p.graph.codec.EncodeCall(p.rank, domain.OpBroadcast, bundleID)); err != nil {
		return err
	}
	for _, cid := range bundle.Members {
		ch := p.graph.reg.Channel(cid)
		if err := p.graph.tr.Send(ctx, transport.Envelope{Source: p.rank, Dest: ch.Consumer, ChannelID: cid, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}

// Gather receives one payload from every member channel of bundleID, keyed
// by channel id.
func (p *Proc) Gather(ctx context.Context, bundleID int) (map[int][]byte, error) {
	bundle := p.graph.reg.Bundle(bundleID)
	if err := p.graph.router.Route(p.graph.codec.EncodeCall(p.rank, domain.OpGather, bundleID)); err != nil {
		return nil, err
	}
	out := make(map[int][]byte, len(bundle.Members))
	for _, cid := range bundle.Members {
		ch := p.graph.reg.Channel(cid)
		env, err := p.graph.tr.Recv(ctx, ch.Producer, p.rank, cid)
		if err != nil {
			return nil, err
		}
		out[cid] = env.Payload
	}
	return out, nil
}

// Package transport declares the message-passing contract spec §1 places
// out of scope as an external collaborator, and provides one concrete
// in-process implementation (ChanTransport) so the rest of the module is
// runnable without a real MPI cluster. Grounded on pilot.c's MPI wrappers:
// per-(source,dest,tag) FIFO delivery, blocking receive, non-blocking probe.
package transport

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Envelope is one message in flight between two ranks over a channel id
// (used as the MPI "tag" in the original).
type Envelope struct {
	Source, Dest int
	ChannelID    int
	Payload      []byte
}

// Transport is the collaborator interface the engine depends on. Any
// implementation must guarantee per-(source,dest,tag) FIFO delivery.
type Transport interface {
	// Send blocks until the message has been handed to the matching Recv.
	Send(ctx context.Context, e Envelope) error
	// Recv blocks until a message from source to dest on channelID arrives.
	Recv(ctx context.Context, source, dest, channelID int) (Envelope, error)
	// Probe reports whether a message is currently available without
	// consuming it (non-blocking).
	Probe(source, dest, channelID int) bool
	// SelectRecv waits on every member link at once and consumes exactly one
	// message, atomically across all of them — the multi-way rendezvous a
	// Select bundle needs so two simultaneously ready producers can't both be
	// drained while only one result reaches the caller.
	SelectRecv(ctx context.Context, members []SelectMember) (Envelope, error)
}

// SelectMember identifies one candidate link a Select call waits on.
type SelectMember struct {
	Source, Dest, ChannelID int
}

// ChanTransport is an in-process Transport built from unbuffered Go
// channels keyed by (source, dest, channelID), the natural analogue of a
// rendezvous-style MPI backend: Send and Recv are symmetric and each blocks
// until the other side is ready, which is exactly the semantics pilot's
// Write/Read calls need.
type ChanTransport struct {
	mu    sync.Mutex
	links map[linkKey]chan []byte
}

type linkKey struct{ source, dest, channelID int }

// NewChanTransport returns an empty ChanTransport. Links are created lazily
// on first use of a given (source, dest, channelID) triple.
func NewChanTransport() *ChanTransport {
	return &ChanTransport{links: make(map[linkKey]chan []byte)}
}

func (t *ChanTransport) link(k linkKey) chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.links[k]
	if !ok {
		ch = make(chan []byte)
		t.links[k] = ch
	}
	return ch
}

// Send implements Transport.
func (t *ChanTransport) Send(ctx context.Context, e Envelope) error {
	ch := t.link(linkKey{e.Source, e.Dest, e.ChannelID})
	select {
	case ch <- e.Payload:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport: send %d->%d chan %d: %w", e.Source, e.Dest, e.ChannelID, ctx.Err())
	}
}

// Recv implements Transport.
func (t *ChanTransport) Recv(ctx context.Context, source, dest, channelID int) (Envelope, error) {
	ch := t.link(linkKey{source, dest, channelID})
	select {
	case payload := <-ch:
		return Envelope{Source: source, Dest: dest, ChannelID: channelID, Payload: payload}, nil
	case <-ctx.Done():
		return Envelope{}, fmt.Errorf("transport: recv %d<-%d chan %d: %w", dest, source, channelID, ctx.Err())
	}
}

// Probe implements Transport. Since ChanTransport's links are unbuffered
// rendezvous channels, there is never a queued message to see without
// consuming it; Probe always reports false. A buffered backend could report
// true here, which is why the interface keeps Probe distinct from Recv.
func (t *ChanTransport) Probe(source, dest, channelID int) bool {
	return false
}

// SelectRecv implements Transport using reflect.Select so exactly one member
// link is drained even when several producers are ready at once; the naive
// alternative of racing one goroutine per member against a shared results
// channel lets multiple Recvs succeed while only the first is ever returned,
// silently losing the rest.
func (t *ChanTransport) SelectRecv(ctx context.Context, members []SelectMember) (Envelope, error) {
	cases := make([]reflect.SelectCase, 0, len(members)+1)
	for _, m := range members {
		ch := t.link(linkKey{m.Source, m.Dest, m.ChannelID})
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})

	chosen, recv, ok := reflect.Select(cases)
	if chosen == len(members) {
		return Envelope{}, fmt.Errorf("transport: select recv: %w", ctx.Err())
	}
	if !ok {
		return Envelope{}, fmt.Errorf("transport: select recv: link closed")
	}
	m := members[chosen]
	return Envelope{Source: m.Source, Dest: m.Dest, ChannelID: m.ChannelID, Payload: recv.Interface().([]byte)}, nil
}

package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vburojevic/pilot/internal/detector"
	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/logrouter"
	"github.com/vburojevic/pilot/internal/output"
	"github.com/vburojevic/pilot/internal/perr"
	"github.com/vburojevic/pilot/internal/registry"
	"github.com/vburojevic/pilot/internal/transport"
	"github.com/vburojevic/pilot/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func wireGraph(t *testing.T, reg *registry.Registry) (*Graph, *detector.Detector) {
	t.Helper()
	reg.Freeze()

	codec := wire.NewCodec()
	det := detector.New(detector.Options{Codec: codec})
	require.NoError(t, det.Start(reg))

	emit := output.NewEmitter(&bytes.Buffer{})
	router := logrouter.New(codec, det, emit, reg, nil)
	tr := transport.NewChanTransport()

	return NewGraph(reg, tr, router, codec, nil), det
}

func TestGraph_LaunchWriteReadRoundTrip(t *testing.T) {
	reg := registry.New()
	a, _ := reg.AddProcess("A", 0)
	b, _ := reg.AddProcess("B", 0)
	ch, _ := reg.AddChannel("AB", a, b)

	g, det := wireGraph(t, reg)

	var received []byte
	g.SetBody(a, func(ctx context.Context, p *Proc) error {
		return p.Write(ctx, ch, []byte("hello"))
	})
	g.SetBody(b, func(ctx context.Context, p *Proc) error {
		data, err := p.Read(ctx, ch)
		if err != nil {
			return err
		}
		received = data
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Launch(ctx))
	require.NoError(t, det.End())

	assert.Equal(t, []byte("hello"), received)
}

func TestGraph_BroadcastGatherRoundTrip(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	q, _ := reg.AddProcess("Q", 0)
	r, _ := reg.AddProcess("R", 0)
	cMQ, _ := reg.AddChannel("MQ", m, q)
	cMR, _ := reg.AddChannel("MR", m, r)
	cQM, _ := reg.AddChannel("QM", q, m)
	cRM, _ := reg.AddChannel("RM", r, m)

	bcastID, err := reg.AddBundle("bcast", domain.UsageBroadcast, m, []int{cMQ, cMR})
	require.NoError(t, err)
	gatherID, err := reg.AddBundle("gather", domain.UsageGather, m, []int{cQM, cRM})
	require.NoError(t, err)

	g, det := wireGraph(t, reg)

	g.SetBody(m, func(ctx context.Context, p *Proc) error {
		if err := p.Broadcast(ctx, bcastID, []byte("go")); err != nil {
			return err
		}
		results, err := p.Gather(ctx, gatherID)
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("q-ack"), results[cQM])
		assert.Equal(t, []byte("r-ack"), results[cRM])
		return nil
	})
	g.SetBody(q, func(ctx context.Context, p *Proc) error {
		if _, err := p.Read(ctx, cMQ); err != nil {
			return err
		}
		return p.Write(ctx, cQM, []byte("q-ack"))
	})
	g.SetBody(r, func(ctx context.Context, p *Proc) error {
		if _, err := p.Read(ctx, cMR); err != nil {
			return err
		}
		return p.Write(ctx, cRM, []byte("r-ack"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Launch(ctx))
	require.NoError(t, det.End())
}

func TestGraph_SelectReturnsFirstReadyMember(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	p, _ := reg.AddProcess("P", 0)
	q, _ := reg.AddProcess("Q", 0)
	cPM, _ := reg.AddChannel("PM", p, m)
	cQM, _ := reg.AddChannel("QM", q, m)

	selID, err := reg.AddBundle("sel", domain.UsageSelect, m, []int{cPM, cQM})
	require.NoError(t, err)

	g, det := wireGraph(t, reg)

	g.SetBody(m, func(ctx context.Context, p *Proc) error {
		cid, data, err := p.Select(ctx, selID)
		if err != nil {
			return err
		}
		assert.Equal(t, cQM, cid)
		assert.Equal(t, []byte("from-q"), data)
		return nil
	})
	g.SetBody(p, func(ctx context.Context, pr *Proc) error {
		return nil
	})
	g.SetBody(q, func(ctx context.Context, pr *Proc) error {
		return pr.Write(ctx, cQM, []byte("from-q"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Launch(ctx))
	require.NoError(t, det.End())
}

func TestGraph_LaunchSurfacesDeadlockError(t *testing.T) {
	reg := registry.New()
	a, _ := reg.AddProcess("A", 0)
	b, _ := reg.AddProcess("B", 0)
	cAB, _ := reg.AddChannel("AB", a, b)
	cBA, _ := reg.AddChannel("BA", b, a)

	g, det := wireGraph(t, reg)

	g.SetBody(a, func(ctx context.Context, p *Proc) error {
		_, err := p.Read(ctx, cBA)
		return err
	})
	g.SetBody(b, func(ctx context.Context, p *Proc) error {
		_, err := p.Read(ctx, cAB)
		return err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := g.Launch(ctx)
	require.Error(t, err)

	var dl *perr.DeadlockError
	require.ErrorAs(t, err, &dl)
	assert.Equal(t, "Conflicting channels create deadly embrace", dl.Reason)
}

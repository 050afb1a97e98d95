package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/perr"
	"github.com/vburojevic/pilot/internal/registry"
	"github.com/vburojevic/pilot/internal/wire"
)

func newStarted(t *testing.T, reg *registry.Registry) *Detector {
	t.Helper()
	reg.Freeze()
	d := New(Options{})
	require.NoError(t, d.Start(reg))
	return d
}

func deadlockReason(t *testing.T, err error) string {
	t.Helper()
	var dl *perr.DeadlockError
	require.ErrorAs(t, err, &dl)
	return dl.Reason
}

// Scenario 1: two-process deadly embrace.
func TestDetector_TwoProcessDeadlyEmbrace(t *testing.T) {
	reg := registry.New()
	a, _ := reg.AddProcess("A", 0)
	b, _ := reg.AddProcess("B", 0)
	cAB, _ := reg.AddChannel("AB", a, b)
	cBA, _ := reg.AddChannel("BA", b, a)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeCall(a, domain.OpRead, cBA)))
	err := d.Event(c.EncodeCall(b, domain.OpRead, cAB))
	require.Error(t, err)
	assert.Equal(t, "Conflicting channels create deadly embrace", deadlockReason(t, err))
}

// Scenario 2: three-process read cycle (M, Q, R).
func TestDetector_ThreeProcessReadCycle(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	q, _ := reg.AddProcess("Q", 0)
	r, _ := reg.AddProcess("R", 0)
	cMQ, _ := reg.AddChannel("MQ", m, q)
	cQR, _ := reg.AddChannel("QR", q, r)
	cRM, _ := reg.AddChannel("RM", r, m)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeCall(m, domain.OpRead, cRM)))
	require.NoError(t, d.Event(c.EncodeCall(q, domain.OpRead, cMQ)))
	err := d.Event(c.EncodeCall(r, domain.OpRead, cQR))
	require.Error(t, err)

	var dl *perr.DeadlockError
	require.ErrorAs(t, err, &dl)
	assert.Equal(t, "Operation creates circular wait with above processes", dl.Reason)
	assert.NotEmpty(t, dl.Trace)
}

// Scenario 3: four-process read cycle (M, Q, R, S).
func TestDetector_FourProcessReadCycle(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	q, _ := reg.AddProcess("Q", 0)
	r, _ := reg.AddProcess("R", 0)
	s, _ := reg.AddProcess("S", 0)
	cMQ, _ := reg.AddChannel("MQ", m, q)
	cQR, _ := reg.AddChannel("QR", q, r)
	cRS, _ := reg.AddChannel("RS", r, s)
	cSM, _ := reg.AddChannel("SM", s, m)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeCall(m, domain.OpRead, cSM)))
	require.NoError(t, d.Event(c.EncodeCall(q, domain.OpRead, cMQ)))
	require.NoError(t, d.Event(c.EncodeCall(r, domain.OpRead, cQR)))
	err := d.Event(c.EncodeCall(s, domain.OpRead, cRS))
	require.Error(t, err)
	assert.Equal(t, "Operation creates circular wait with above processes", deadlockReason(t, err))
}

// Scenario 4: dead-end read — either outcome is acceptable.
func TestDetector_DeadEndRead(t *testing.T) {
	reg := registry.New()
	a, _ := reg.AddProcess("A", 0)
	b, _ := reg.AddProcess("B", 0)
	cAB, _ := reg.AddChannel("AB", a, b)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeFinish(a)))
	err := d.Event(c.EncodeCall(b, domain.OpRead, cAB))
	require.Error(t, err)
	reason := deadlockReason(t, err)
	assert.Contains(t, []string{
		"Process at other end of channel has exited",
		"Process exiting leaves earlier operation hung",
	}, reason)
}

// Scenario 5: unsatisfiable select after every candidate producer exits.
func TestDetector_UnsatisfiableSelectAfterPeersExit(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	p, _ := reg.AddProcess("P", 0)
	q, _ := reg.AddProcess("Q", 0)
	r, _ := reg.AddProcess("R", 0)

	cMP, _ := reg.AddChannel("MP", m, p)
	cMQ, _ := reg.AddChannel("MQ", m, q)
	cMR, _ := reg.AddChannel("MR", m, r)
	cPM, _ := reg.AddChannel("PM", p, m)
	cQM, _ := reg.AddChannel("QM", q, m)
	cRM, _ := reg.AddChannel("RM", r, m)
	bundle, err := reg.AddBundle("sel", domain.UsageSelect, m, []int{cPM, cQM, cRM})
	require.NoError(t, err)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeCall(m, domain.OpWrite, cMP)))
	require.NoError(t, d.Event(c.EncodeCall(m, domain.OpWrite, cMQ)))
	require.NoError(t, d.Event(c.EncodeCall(m, domain.OpWrite, cMR)))
	require.NoError(t, d.Event(c.EncodeCall(p, domain.OpRead, cMP)))
	require.NoError(t, d.Event(c.EncodeCall(q, domain.OpRead, cMQ)))
	require.NoError(t, d.Event(c.EncodeCall(r, domain.OpRead, cMR)))
	require.NoError(t, d.Event(c.EncodeFinish(p)))
	require.NoError(t, d.Event(c.EncodeFinish(q)))
	require.NoError(t, d.Event(c.EncodeFinish(r)))

	err = d.Event(c.EncodeCall(m, domain.OpSelect, bundle))
	require.Error(t, err)
	reason := deadlockReason(t, err)
	assert.Contains(t, []string{"Select cannot be fulfilled", "Earlier select cannot be fulfilled"}, reason)
}

// Scenario 6: select participating in a cycle.
func TestDetector_SelectParticipatingInCycle(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	q, _ := reg.AddProcess("Q", 0)
	r, _ := reg.AddProcess("R", 0)
	s, _ := reg.AddProcess("S", 0)

	cQR, _ := reg.AddChannel("QR", q, r)
	cSQ, _ := reg.AddChannel("SQ", s, q)
	cMS, _ := reg.AddChannel("MS", m, s)
	cQM, _ := reg.AddChannel("QM", q, m)
	cRM, _ := reg.AddChannel("RM", r, m)
	bundle, err := reg.AddBundle("sel", domain.UsageSelect, m, []int{cQM, cRM})
	require.NoError(t, err)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeCall(q, domain.OpRead, cSQ)))
	require.NoError(t, d.Event(c.EncodeCall(r, domain.OpRead, cQR)))
	require.NoError(t, d.Event(c.EncodeCall(s, domain.OpRead, cMS)))

	err = d.Event(c.EncodeCall(m, domain.OpSelect, bundle))
	require.Error(t, err)
	reason := deadlockReason(t, err)
	assert.Contains(t, []string{"Operation creates circular wait with above processes", "Select cannot be fulfilled"}, reason)
}

func TestDetector_ComplementaryDependenciesAnnihilate(t *testing.T) {
	reg := registry.New()
	a, _ := reg.AddProcess("A", 0)
	b, _ := reg.AddProcess("B", 0)
	ch, _ := reg.AddChannel("AB", a, b)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeCall(a, domain.OpWrite, ch)))
	assert.Equal(t, domain.StateBlocked, d.state[a])
	require.NoError(t, d.Event(c.EncodeCall(b, domain.OpRead, ch)))

	assert.Equal(t, domain.StateRun, d.state[a])
	assert.Equal(t, domain.StateRun, d.state[b])
	for q := 0; q < d.n; q++ {
		assert.Equal(t, domain.DepNone, d.dep(a, q))
		assert.Equal(t, domain.DepNone, d.dep(b, q))
	}
	assert.Equal(t, -1, d.chanProc[ch])
}

func TestDetector_BundleOfSizeOneMatchesPointToPoint(t *testing.T) {
	reg := registry.New()
	m, _ := reg.AddProcess("M", 0)
	p, _ := reg.AddProcess("P", 0)
	ch, _ := reg.AddChannel("PM", p, m)
	bundle, err := reg.AddBundle("sel", domain.UsageSelect, m, []int{ch})
	require.NoError(t, err)

	d := newStarted(t, reg)
	c := wire.NewCodec()

	require.NoError(t, d.Event(c.EncodeFinish(p)))
	err = d.Event(c.EncodeCall(m, domain.OpSelect, bundle))
	require.Error(t, err)
	assert.Equal(t, "Select cannot be fulfilled", deadlockReason(t, err))
}

func TestDetector_EndRequiresEmptyQueue(t *testing.T) {
	reg := registry.New()
	reg.AddProcess("A", 0)
	reg.AddProcess("B", 0)
	d := newStarted(t, reg)

	require.NoError(t, d.End())
}

func TestDetector_EventBeforeStart(t *testing.T) {
	d := New(Options{})
	err := d.Event("C\t0\tFIN")
	assert.Error(t, err)
}

func TestDetector_MalformedEventIsParseError(t *testing.T) {
	reg := registry.New()
	reg.AddProcess("A", 0)
	d := newStarted(t, reg)

	err := d.Event("not-a-valid-event")
	var pe *perr.ParseError
	assert.ErrorAs(t, err, &pe)
}

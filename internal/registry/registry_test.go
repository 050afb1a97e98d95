package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/pilot/internal/domain"
)

func TestRegistry_AddProcessChannelBundle(t *testing.T) {
	r := New()

	a, err := r.AddProcess("A", 0)
	require.NoError(t, err)
	b, err := r.AddProcess("B", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	ch, err := r.AddChannel("AB", a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, ch)
	assert.Equal(t, domain.ChannelDescriptor{ID: 1, Name: "AB", Producer: a, Consumer: b}, r.Channel(ch))

	bundle, err := r.AddBundle("bcast", domain.UsageBroadcast, a, []int{ch})
	require.NoError(t, err)
	assert.Equal(t, 1, bundle)
	assert.Equal(t, 2, r.NumProcesses())
	assert.Equal(t, 1, r.NumChannels())
	assert.Equal(t, 1, r.NumBundles())
}

func TestRegistry_AddChannelRejectsUnknownRanks(t *testing.T) {
	r := New()
	a, _ := r.AddProcess("A", 0)
	_, err := r.AddChannel("bad", a, 99)
	assert.Error(t, err)
}

func TestRegistry_AddChannelRejectsSelfLoop(t *testing.T) {
	r := New()
	a, _ := r.AddProcess("A", 0)
	_, err := r.AddChannel("self", a, a)
	assert.Error(t, err)
}

func TestRegistry_AddBundleValidatesEndpoint(t *testing.T) {
	r := New()
	a, _ := r.AddProcess("A", 0)
	b, _ := r.AddProcess("B", 0)
	cAB, _ := r.AddChannel("AB", a, b)

	t.Run("select requires member to terminate at endpoint", func(t *testing.T) {
		_, err := r.AddBundle("sel", domain.UsageSelect, a, []int{cAB})
		assert.Error(t, err)
	})

	t.Run("broadcast requires member to originate at endpoint", func(t *testing.T) {
		_, err := r.AddBundle("bcast", domain.UsageBroadcast, b, []int{cAB})
		assert.Error(t, err)
	})

	t.Run("gather requires member to terminate at endpoint", func(t *testing.T) {
		_, err := r.AddBundle("gather", domain.UsageGather, b, []int{cAB})
		assert.NoError(t, err)
	})

	t.Run("empty bundle is rejected", func(t *testing.T) {
		_, err := r.AddBundle("empty", domain.UsageSelect, b, nil)
		assert.Error(t, err)
	})
}

func TestRegistry_FreezeRejectsFurtherMutation(t *testing.T) {
	r := New()
	a, _ := r.AddProcess("A", 0)
	b, _ := r.AddProcess("B", 0)
	r.Freeze()

	_, err := r.AddProcess("C", 0)
	assert.Error(t, err)

	_, err = r.AddChannel("AB", a, b)
	assert.Error(t, err)

	_, err = r.AddBundle("sel", domain.UsageSelect, a, []int{1})
	assert.Error(t, err)
}

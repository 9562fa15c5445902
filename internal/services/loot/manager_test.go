package loot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Merdeus/dndinventory/internal/dependencies/mocks"
	"github.com/Merdeus/dndinventory/internal/testutil"
)

func TestManagerGetOrCreateIsSingleton(t *testing.T) {
	m := NewManager(mocks.NewMockRandom(), AllEligible, nil, testutil.NopLogger())

	a := m.GetOrCreate(1)
	b := m.GetOrCreate(1)
	c := m.GetOrCreate(2)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestManagerGet(t *testing.T) {
	m := NewManager(mocks.NewMockRandom(), AllEligible, nil, testutil.NopLogger())

	_, ok := m.Get(1)
	assert.False(t, ok)

	created := m.GetOrCreate(1)
	found, ok := m.Get(1)
	require.True(t, ok)
	assert.Same(t, created, found)
}

func TestManagerClearStartsFreshRound(t *testing.T) {
	m := NewManager(mocks.NewMockRandom(), AllEligible, nil, testutil.NopLogger())

	old := m.GetOrCreate(1)
	_, err := old.AddLoot(5)
	require.NoError(t, err)

	m.Clear(1)
	m.Clear(1)

	_, ok := m.Get(1)
	assert.False(t, ok)

	fresh := m.GetOrCreate(1)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, PhasePrep, fresh.Phase())
	assert.Empty(t, fresh.Snapshot().Entries)
}

func TestManagerRetireOnlyCurrentPool(t *testing.T) {
	m := NewManager(mocks.NewMockRandom(), AllEligible, nil, testutil.NopLogger())

	pool := m.GetOrCreate(1)
	assert.True(t, m.Retire(1, pool))
	assert.False(t, m.Retire(1, pool))

	fresh := m.GetOrCreate(1)
	assert.False(t, m.Retire(1, pool))
	found, ok := m.Get(1)
	require.True(t, ok)
	assert.Same(t, fresh, found)
}

func TestManagerIfCurrentSkipsDiscardedPool(t *testing.T) {
	m := NewManager(mocks.NewMockRandom(), AllEligible, nil, testutil.NopLogger())

	old := m.GetOrCreate(1)
	ran := 0
	assert.True(t, m.IfCurrent(old, func() { ran++ }))

	m.Clear(1)
	assert.False(t, m.IfCurrent(old, func() { ran++ }))

	fresh := m.GetOrCreate(1)
	assert.False(t, m.IfCurrent(old, func() { ran++ }))
	assert.True(t, m.IfCurrent(fresh, func() { ran++ }))
	assert.Equal(t, 2, ran)
}

func TestManagerPoolsUsePolicy(t *testing.T) {
	m := NewManager(mocks.NewMockRandom(), ContestedClaimants, nil, testutil.NopLogger())
	assert.Equal(t, ContestedClaimants, m.Policy())
	assert.Equal(t, ContestedClaimants, m.GetOrCreate(3).policy)
}

func TestParseCompletionPolicy(t *testing.T) {
	p, err := ParseCompletionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AllEligible, p)

	p, err = ParseCompletionPolicy("contested-claimants")
	require.NoError(t, err)
	assert.Equal(t, ContestedClaimants, p)

	_, err = ParseCompletionPolicy("majority")
	assert.Error(t, err)
}

func TestPhaseText(t *testing.T) {
	text, err := PhaseVote.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "VOTE", string(text))
	assert.Equal(t, "Phase(9)", Phase(9).String())
}

func TestPhaseUnmarshalText(t *testing.T) {
	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("CONCLUDED")))
	assert.Equal(t, PhaseConcluded, p)
	assert.Error(t, p.UnmarshalText([]byte("LOOTING")))
}

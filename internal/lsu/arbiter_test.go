package lsu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoreForArbiter() *Core {
	return &Core{cfg: DefaultConfig()}
}

func TestArbitrate_HighestPriorityWins(t *testing.T) {
	c := newCoreForArbiter()
	candidates := [][]LaneCandidate{
		{
			{Category: FireStoreCommit, Ready: true, Idx: 1},
			{Category: FireLoadIncoming, Ready: true, Idx: 2},
		},
	}
	winners := c.Arbitrate(candidates, nil)
	require.Len(t, winners, 1)
	assert.True(t, winners[0].Fired)
	assert.Equal(t, FireLoadIncoming, winners[0].Category)
}

func TestArbitrate_StoreCommitOnlyLaneZero(t *testing.T) {
	c := newCoreForArbiter()
	candidates := [][]LaneCandidate{
		{},
		{{Category: FireStoreCommit, Ready: true, Idx: 0}},
	}
	winners := c.Arbitrate(candidates, nil)
	assert.False(t, winners[1].Fired, "store_commit must not fire outside lane 0")
}

func TestArbitrate_LastLaneOnlyRestriction(t *testing.T) {
	c := newCoreForArbiter()
	candidates := [][]LaneCandidate{
		{{Category: FireLoadRetry, Ready: true, Idx: 0}},
		{{Category: FireLoadRetry, Ready: true, Idx: 0}},
	}
	winners := c.Arbitrate(candidates, nil)
	assert.False(t, winners[0].Fired, "load_retry is restricted to the last lane")
	assert.True(t, winners[1].Fired)
}

func TestArbitrate_StaRetryDeferredOnStdCollision(t *testing.T) {
	c := newCoreForArbiter()
	candidates := [][]LaneCandidate{
		{{Category: FireStaRetry, Ready: true, Idx: 5}},
	}
	collides := func(lane int, idx uint32) bool { return idx == 5 }
	winners := c.Arbitrate(candidates, collides)
	assert.False(t, winners[0].Fired)
}

func TestLaneWinner_Resources(t *testing.T) {
	w := LaneWinner{Fired: true, Category: FireLoadIncoming}
	res := w.Resources()
	assert.True(t, res.tlb)
	assert.True(t, res.dc)
	assert.True(t, res.lcam)
	assert.False(t, res.rob)

	assert.Equal(t, fireResources{}, LaneWinner{}.Resources())
}

func TestLaneWinner_IsLoadFire(t *testing.T) {
	assert.True(t, LaneWinner{Fired: true, Category: FireLoadIncoming}.isLoadFire())
	assert.True(t, LaneWinner{Fired: true, Category: FireLoadRetry}.isLoadFire())
	assert.True(t, LaneWinner{Fired: true, Category: FireLoadWakeup}.isLoadFire())
	assert.False(t, LaneWinner{Fired: true, Category: FireStaIncoming}.isLoadFire())
	assert.False(t, LaneWinner{}.isLoadFire())
}

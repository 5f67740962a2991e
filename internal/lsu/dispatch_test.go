package lsu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchCore(t *testing.T) *Core {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumLdqEntries = 2
	cfg.NumStqEntries = 2
	cfg.NumMcqEntries = 2
	cfg.NumBdqEntries = 2
	return &Core{
		cfg: cfg,
		ldq: newLdq(cfg.NumLdqEntries),
		stq: newStq(cfg.NumStqEntries),
		mcq: newMcq(cfg.NumMcqEntries, cfg.HbtNumWay, nil),
		bdq: newBdq(cfg.NumBdqEntries, cfg.HbtNumWay, nil),
	}
}

func TestDispatch_LoadAllocatesLdqAndMcq(t *testing.T) {
	c := newDispatchCore(t)
	results := c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true}}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Allocated)
	assert.Equal(t, uint32(0), results[0].LdqIdx)
	assert.Equal(t, uint32(0), results[0].McqIdx)
}

func TestDispatch_BoundsStoreSkipsAutoMcq(t *testing.T) {
	// A bounds-store uop is not "mem touching" in the ordinary sense; it
	// only allocates MCQ space if it separately asks for it (it doesn't),
	// and instead allocates BDQ via UsesBdq.
	c := newDispatchCore(t)
	results := c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopBoundsStore, UsesBdq: true}}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Allocated)
	assert.Equal(t, uint32(0), results[0].BdqIdx)
	assert.False(t, c.mcq.At(0).Valid, "bounds-store must not also occupy an MCQ slot")
}

func TestDispatch_FenceSkipsMcq(t *testing.T) {
	c := newDispatchCore(t)
	results := c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true, IsFence: true}}})
	require.Len(t, results, 1)
	assert.False(t, c.mcq.At(0).Valid)
	_ = results
}

func TestDispatch_ExceptedLaneDropped(t *testing.T) {
	c := newDispatchCore(t)
	results := c.dispatch([]DispatchLane{{Valid: true, Excepted: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true}}})
	assert.False(t, results[0].Allocated)
	assert.False(t, c.ldq.At(0).Valid)
}

func TestDispatch_FullQueueRefusesAllocation(t *testing.T) {
	c := newDispatchCore(t)
	// Fill the 2-entry LDQ.
	c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true}}})
	c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true}}})
	require.True(t, c.ldq.Full())

	results := c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true}}})
	assert.True(t, results[0].LdqFull)
	assert.False(t, results[0].Allocated)
}

func TestDispatch_PanicsOnLdqAndStqTogether(t *testing.T) {
	c := newDispatchCore(t)
	assert.Panics(t, func() {
		c.dispatch([]DispatchLane{{Valid: true, Uop: MicroOp{UsesLdq: true, UsesStq: true}}})
	})
}

func TestDispatch_SequentialLiveStoreMaskWithinCycle(t *testing.T) {
	// Two lanes in the same cycle: a store in lane 0 followed by a load
	// in lane 1 must see that store in its snapshotted st_dep_mask, the
	// same intra-cycle sequencing the bitmap queues rely on elsewhere.
	c := newDispatchCore(t)
	results := c.dispatch([]DispatchLane{
		{Valid: true, Uop: MicroOp{Uopc: UopStoreData, UsesStq: true}},
		{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true}},
	})
	require.True(t, results[0].Allocated)
	require.True(t, results[1].Allocated)
	ldqEntry := c.ldq.At(results[1].LdqIdx)
	assert.Equal(t, uint64(1)<<results[0].StqIdx, ldqEntry.StDepMask)
}

package lsu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensilicon/suprax-lsu/internal/hbt"
)

func TestBdq_RegistersPointerEndToEnd(t *testing.T) {
	// A bounds-store walks b_init -> b_occChk -> b_bndStr -> b_done once
	// the first probed slot is free and the store to it succeeds.
	q := newBdq(4, 4, func(resp hbt.Descriptor, vaddr uint64, way int) bool { return !resp.Valid })
	idx := q.Allocate(MicroOp{Uopc: UopBoundsStore})
	q.OnAddrDelivered(idx, 0x5000, Data{Valid: true, Bits: hbt.PAC(0x5000)})
	assert.Equal(t, BdqOccChk, q.At(idx).State)

	occIdx, ok := q.OccChkIdx()
	require.True(t, ok)
	assert.Equal(t, idx, occIdx)

	q.OnOccChkResponse(idx, hbt.Descriptor{}) // empty row: occ_check passes
	assert.Equal(t, BdqBndStr, q.At(idx).State)
	assert.Equal(t, MemCmdWrite, q.At(idx).Uop.MemCmd)

	// bndStrCandidate additionally requires Committed.
	_, ok = q.BndStrIdx()
	assert.False(t, ok, "not yet committed")
	q.Commit(idx)
	strIdx, ok := q.BndStrIdx()
	require.True(t, ok)
	assert.Equal(t, idx, strIdx)

	q.OnBndStrResponse(idx)
	assert.Equal(t, BdqDone, q.At(idx).State)

	e, ok := q.TryDequeueHead()
	require.True(t, ok)
	assert.Equal(t, UopBoundsStore, e.Uop.Uopc)
}

func TestBdq_OccupancyExhaustionFails(t *testing.T) {
	// Scenario: every probed way is already occupied, so the entry
	// retries numWay-1 times before settling on b_fail.
	const numWay = 4
	q := newBdq(4, numWay, func(hbt.Descriptor, uint64, int) bool { return false })
	idx := q.Allocate(MicroOp{Uopc: UopBoundsStore})
	q.OnAddrDelivered(idx, 0x6000, Data{Valid: true, Bits: hbt.PAC(0x6000)})

	for way := 0; way < numWay-1; way++ {
		oi, ok := q.OccChkIdx()
		require.True(t, ok)
		q.At(oi).Executed = true
		q.OnOccChkResponse(oi, hbt.Descriptor{Valid: true})
		assert.Equal(t, BdqOccChk, q.At(idx).State)
	}
	oi, ok := q.OccChkIdx()
	require.True(t, ok)
	q.At(oi).Executed = true
	q.OnOccChkResponse(oi, hbt.Descriptor{Valid: true})
	assert.Equal(t, BdqFail, q.At(idx).State)

	_, failed := q.FailedHead()
	assert.True(t, failed)
}

func TestBdq_KillByBranchRewindsTail(t *testing.T) {
	q := newBdq(8, 4, nil)
	idx := q.Allocate(MicroOp{Uopc: UopBoundsStore, BrMask: 1 << 3})
	q.KillByBranch(BrInfo{Valid: true, Mispredict: true, Tag: 3, BdqTail: idx})
	assert.False(t, q.At(idx).Valid)
	assert.Equal(t, idx, q.Tail())
}

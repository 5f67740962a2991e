package lsu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensilicon/suprax-lsu/internal/hbt"
)

func TestMcq_AllocateForcesReadByte(t *testing.T) {
	q := newMcq(4, 4, nil)
	idx := q.Allocate(MicroOp{Uopc: UopLoad, MemCmd: MemCmdWrite, MemSize: MemSizeDouble}, true)
	e := q.At(idx)
	assert.Equal(t, MemCmdRead, e.Uop.MemCmd)
	assert.Equal(t, MemSizeByte, e.Uop.MemSize)
	assert.True(t, e.Uop.UsesMcq)
	assert.True(t, e.Signed)
}

func TestMcq_BoundsHitOnFirstProbe(t *testing.T) {
	// Scenario: MCQ bounds hit. A pointer whose PAC is already recorded
	// in the HBT is probed once and the entry reaches m_done.
	q := newMcq(4, 4, func(resp hbt.Descriptor, vaddr uint64, way int) bool {
		return resp.Valid && resp.Data == hbt.PAC(vaddr)
	})
	idx := q.Allocate(MicroOp{Uopc: UopLoad}, false)
	q.OnAddrDelivered(idx, 0x1000)

	loadIdx, ok := q.LoadIdx()
	require.True(t, ok)
	assert.Equal(t, idx, loadIdx)

	q.OnProbeResponse(idx, hbt.Descriptor{Valid: true, Data: hbt.PAC(0x1000)})
	assert.Equal(t, McqDone, q.At(idx).State)
}

func TestMcq_RetryThenExhaustToFail(t *testing.T) {
	// Scenario: MCQ exhaustion. Every way misses, so the entry retries
	// numWay-1 times before settling on m_fail.
	const numWay = 4
	q := newMcq(4, numWay, func(hbt.Descriptor, uint64, int) bool { return false })
	idx := q.Allocate(MicroOp{Uopc: UopLoad}, false)
	q.OnAddrDelivered(idx, 0x1000)

	for way := 0; way < numWay-1; way++ {
		li, ok := q.LoadIdx()
		require.True(t, ok, "way %d", way)
		assert.Equal(t, idx, li)
		q.At(idx).Executed = true
		q.OnProbeResponse(idx, hbt.Descriptor{})
		assert.Equal(t, McqBndChk, q.At(idx).State, "still retrying after way %d", way)
		assert.Equal(t, way+1, q.At(idx).Count)
	}

	li, ok := q.LoadIdx()
	require.True(t, ok)
	q.At(li).Executed = true
	q.OnProbeResponse(li, hbt.Descriptor{})
	assert.Equal(t, McqFail, q.At(idx).State)

	_, failed := q.FailedHead()
	assert.True(t, failed)
}

func TestMcq_TryDequeueHeadRequiresCommittedAndDone(t *testing.T) {
	q := newMcq(4, 4, hbt.AlwaysMatch)
	idx := q.Allocate(MicroOp{Uopc: UopLoad}, false)
	q.OnAddrDelivered(idx, 0x1000)

	_, ok := q.TryDequeueHead()
	assert.False(t, ok, "not yet committed or probed")

	q.OnProbeResponse(idx, hbt.Descriptor{})
	_, ok = q.TryDequeueHead()
	assert.False(t, ok, "done but not committed")

	q.Commit(idx)
	e, ok := q.TryDequeueHead()
	require.True(t, ok)
	assert.False(t, e.Signed)
}

func TestMcq_KillByBranchRewindsTail(t *testing.T) {
	q := newMcq(8, 4, nil)
	idx := q.Allocate(MicroOp{Uopc: UopLoad, BrMask: 1 << 2}, false)
	q.KillByBranch(BrInfo{Valid: true, Mispredict: true, Tag: 2, McqTail: idx})
	assert.False(t, q.At(idx).Valid)
	assert.Equal(t, idx, q.Tail())
}

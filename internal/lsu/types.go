// Package lsu implements an out-of-order Load/Store Unit: the
// LDQ/STQ/MCQ/BDQ queues, the per-cycle fire arbiter, the LCAM
// address-match engine, the hella scalar-request shim, and commit/kill
// recovery. The package models one hardware "tick" per call to Core.Tick:
// sample inputs, compute next state for every register, swap — there is no
// concurrency inside Core itself.
package lsu

import "math/bits"

// MemCmd mirrors the hardware's memory-command encoding driven to the DTLB
// and DCache ports.
type MemCmd uint8

const (
	MemCmdRead MemCmd = iota
	MemCmdWrite
	MemCmdReadWrite // AMO
)

// MemSize is log2(bytes): 0=byte, 1=half, 2=word, 3=double.
type MemSize uint8

const (
	MemSizeByte MemSize = iota
	MemSizeHalf
	MemSizeWord
	MemSizeDouble
)

// Bytes returns the number of bytes this size addresses.
func (s MemSize) Bytes() uint64 { return 1 << uint(s) }

// UopClass distinguishes the categories the fire arbiter prioritizes.
// Incoming categories are derived by the caller (decode/rename) and
// attached to the dispatched MicroOp; retry and wakeup categories are
// derived internally by the age-priority encoder.
type UopClass uint8

const (
	UopLoad UopClass = iota
	UopStoreAddr
	UopStoreData
	UopStoreAddrData // fused sta+std
	UopSfence
	UopFence
	UopAmo
	UopBoundsLoad // MCQ
	UopBoundsStore
)

// ExceptionCause enumerates the hardware error kinds the core can signal.
// This is architectural data reported to the ROB via Lxcpt, not a Go error.
type ExceptionCause uint8

const (
	CauseNone ExceptionCause = iota
	CauseMisalignedLoad
	CauseMisalignedStore
	CausePageFaultLoad
	CausePageFaultStore
	CauseAccessFaultLoad
	CauseAccessFaultStore
	CauseMemOrdering
	CauseBoundsFail
	CauseOccupancyFail
)

// MicroOp is the decoded instruction descriptor the front-end dispatches.
// Only the fields the LSU actually observes are modeled: opcode class,
// mem-cmd, mem-size, signedness, and the queue-allocation flags.
type MicroOp struct {
	RobIdx      uint32
	Uopc        UopClass
	MemCmd      MemCmd
	MemSize     MemSize
	Signed      bool
	IsFence     bool
	IsFencei    bool
	IsAmo       bool
	IsSfence    bool
	DstPhysReg  uint32
	DstRType    RegType
	UsesLdq     bool
	UsesStq     bool
	UsesMcq     bool
	UsesBdq     bool
	LdqIdx      uint32
	StqIdx      uint32
	McqIdx      uint32
	BdqIdx      uint32
	BrMask      uint64 // bitmask of in-flight branches this uop depends on
	IsHella     bool
}

// RegType selects which writeback channel (iresp/fresp) a load result uses.
type RegType uint8

const (
	RegInt RegType = iota
	RegFloat
	RegNone // x0 / no destination
)

// Addr is a translated or virtual address plus the flags the LSU tracks
// about it.
type Addr struct {
	Valid        bool
	Bits         uint64
	IsVirtual    bool
	IsUncacheable bool
}

// Data is an optional store-data payload.
type Data struct {
	Valid bool
	Bits  uint64
}

// BrInfo is the branch-resolution signal from the ROB.
type BrInfo struct {
	Valid       bool
	Mispredict  bool
	Tag         uint64 // bit index into BrMask this resolution clears
	LdqTail     uint32
	StqTail     uint32
	McqTail     uint32
	BdqTail     uint32
}

// IsKilledByBranch reports whether a uop whose BrMask is brMask must be
// squashed given the resolved branch info.
func IsKilledByBranch(info BrInfo, brMask uint64) bool {
	if !info.Valid || !info.Mispredict {
		return false
	}
	return brMask&(1<<info.Tag) != 0
}

// wrapIncMod returns (i+1) mod n, the circular-buffer successor used
// throughout the queues.
func wrapIncMod(i, n uint32) uint32 {
	i++
	if i >= n {
		i = 0
	}
	return i
}

// agePriorityOldest implements the age-priority encoder shared by every
// queue: starting from head, scan circularly across n slots and return the
// index of the oldest slot whose bit is set in candidates, plus whether any
// candidate existed. It rotates candidates into a frame where bit 0 is the
// head slot, so the lowest set bit after rotation is the oldest hit,
// avoiding a manual wraparound scan loop.
func agePriorityOldest(candidates uint64, head, n uint32) (uint32, bool) {
	if n == 0 || n > 64 {
		return 0, false
	}
	mask := uint64(1)<<n - 1
	candidates &= mask
	if candidates == 0 {
		return 0, false
	}
	// Rotate right by head so bit 0 of the rotated value is the head slot;
	// the lowest set bit after rotation is the oldest (first-scanned) hit.
	rotated := (candidates>>head | candidates<<(n-head)) & mask
	offset := uint32(bits.TrailingZeros64(rotated))
	return wrapAdd(head, offset, n), true
}

func wrapAdd(base, delta, n uint32) uint32 {
	return (base + delta) % n
}

// popcount helper; the bitmap code leans on math/bits directly rather
// than hand-rolled loops.
func countSetBits(x uint64) int { return bits.OnesCount64(x) }

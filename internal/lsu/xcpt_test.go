package lsu

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensilicon/suprax-lsu/internal/hbt"
)

func TestTick_TlbPageFaultSurfacesOnLxcpt(t *testing.T) {
	tlb := &fakeTlb{Resp: TlbResp{PageFaultLd: true}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{0: {Valid: true, Addr: 0x1000}}}
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: agu, DCache: &fakeDCache{}, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	lanes := []DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true, RobIdx: 7, MemSize: MemSizeDouble}}, {}}
	c.Tick(lanes)

	x, ok := c.Lxcpt()
	require.True(t, ok)
	assert.Equal(t, CausePageFaultLoad, x.Cause)
	assert.Equal(t, uint32(7), x.RobIdx)
	require.NoError(t, c.CheckInvariants())
}

func TestTick_MisalignedStoreOutranksYoungerFault(t *testing.T) {
	// Two faulting lanes in one cycle: the mux must pick the older
	// offender by ROB order relative to rob_head_idx.
	tlb := &fakeTlb{Resp: TlbResp{PageFaultLd: true}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{
		0: {Valid: true, Addr: 0x1000},
		1: {Valid: true, Addr: 0x2001, Mxcpt: true},
	}}
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: agu, DCache: &fakeDCache{}, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	lanes := []DispatchLane{
		{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true, RobIdx: 9, MemSize: MemSizeDouble}},
		{Valid: true, Uop: MicroOp{Uopc: UopStoreAddrData, UsesStq: true, RobIdx: 4, MemCmd: MemCmdWrite, MemSize: MemSizeByte}},
	}
	c.Tick(lanes)

	x, ok := c.Lxcpt()
	require.True(t, ok)
	assert.Equal(t, CauseMisalignedStore, x.Cause, "the older store's fault must win the mux")
	assert.Equal(t, uint32(4), x.RobIdx)
}

func TestTick_OrderFailRaisesMemOrderingException(t *testing.T) {
	// Cycle 1: a store's translation misses, parking it virtual. Cycle 2:
	// a younger dependent load issues and succeeds from the DCache; the
	// same cycle's sta_retry resolves the store's address onto the load's
	// bytes, so the LCAM store search must raise order_fail and the mux
	// must surface the memory-ordering mini-exception.
	tlb := &fakeTlb{Resp: TlbResp{PAddr: 0x3000, Cacheable: true}, Miss: map[int]bool{0: true}}
	dc := &fakeDCache{Mem: map[uint64]uint64{0x3000: 0xaa}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{0: {Valid: true, Addr: 0x3000, Data: 0x55}}}
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: agu, DCache: dc, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	storeLanes := []DispatchLane{{Valid: true, Uop: MicroOp{
		Uopc: UopStoreAddrData, UsesStq: true, RobIdx: 1, MemCmd: MemCmdWrite, MemSize: MemSizeDouble,
	}}, {}}
	c.Tick(storeLanes)
	require.True(t, c.stq.At(0).Addr.IsVirtual, "the missed store must park awaiting sta_retry")

	loadLanes := []DispatchLane{{Valid: true, Uop: MicroOp{
		Uopc: UopLoad, UsesLdq: true, RobIdx: 2, DstRType: RegInt, MemSize: MemSizeDouble,
	}}, {}}
	c.Tick(loadLanes)

	assert.True(t, c.ldq.At(0).OrderFail)
	x, ok := c.Lxcpt()
	require.True(t, ok)
	assert.Equal(t, CauseMemOrdering, x.Cause)
	assert.Equal(t, uint32(2), x.RobIdx)
	assert.Contains(t, c.ClrBsy(), uint32(1), "the retried store address must clear the ROB busy bit")
	require.NoError(t, c.CheckInvariants())
}

func TestTick_SpecLdWakeupThenHit(t *testing.T) {
	tlb := &fakeTlb{Resp: TlbResp{PAddr: 0x4000, Cacheable: true}}
	dc := &fakeDCache{Mem: map[uint64]uint64{0x4000: 0x42}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{0: {Valid: true, Addr: 0x4000}}}
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: agu, DCache: dc, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	lanes := []DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true, DstRType: RegInt, MemSize: MemSizeDouble}}, {}}
	c.Tick(lanes)

	idx, ok := c.SpecLdWakeup()
	require.True(t, ok)
	assert.Equal(t, uint32(0), idx)
	assert.False(t, c.LdMiss(), "the response materialised on lane 0, so no wakeup mispredict")
	assert.Contains(t, c.ClrUnsafe(), uint32(0))
}

func TestTick_SpecLdWakeupMissOnRefusedRequest(t *testing.T) {
	tlb := &fakeTlb{Resp: TlbResp{PAddr: 0x5000, Cacheable: true}}
	dc := &fakeDCache{Nacks: map[int]bool{0: true}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{0: {Valid: true, Addr: 0x5000}}}
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: agu, DCache: dc, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	lanes := []DispatchLane{{Valid: true, Uop: MicroOp{Uopc: UopLoad, UsesLdq: true, DstRType: RegInt, MemSize: MemSizeDouble}}, {}}
	c.Tick(lanes)

	_, ok := c.SpecLdWakeup()
	require.True(t, ok)
	assert.True(t, c.LdMiss(), "a refused DC request leaves the speculative wakeup unbacked")
}

func TestTick_LrscWindowHoldsOffBoundsProbes(t *testing.T) {
	table := hbt.NewMemTable()
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: &fakeAgu{}, DCache: &fakeDCache{}, Tlb: &fakeTlb{}, Hella: &fakeHellaClient{}, Hbt: table})

	idx := c.mcq.Allocate(MicroOp{Uopc: UopLoad}, false)
	c.mcq.OnAddrDelivered(idx, 0x2000_0000_1000)
	c.lrscCount = 2

	c.Tick(make([]DispatchLane, 2))
	assert.Equal(t, McqBndChk, c.mcq.At(idx).State, "bounds probe must not fire inside the reservation window")

	c.Tick(make([]DispatchLane, 2))
	assert.Equal(t, McqDone, c.mcq.At(idx).State, "the probe fires once the window expires")
}

func TestTick_AmoOpensLrscWindow(t *testing.T) {
	tlb := &fakeTlb{Resp: TlbResp{PAddr: 0x6000, Cacheable: true}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{0: {Valid: true, Addr: 0x6000, Data: 1}}}
	c := newTickTestCore(t, Ports{Rob: &fakeRob{}, Agu: agu, DCache: &fakeDCache{}, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	lanes := []DispatchLane{{Valid: true, Uop: MicroOp{
		Uopc: UopAmo, UsesStq: true, IsAmo: true, MemCmd: MemCmdReadWrite, MemSize: MemSizeDouble,
	}}, {}}
	c.Tick(lanes)

	assert.Equal(t, c.cfg.LrscCycles, c.lrscCount)
}

func TestFenceiRdy(t *testing.T) {
	cfg := DefaultConfig()
	c, err := NewCore(cfg, Ports{Rob: &fakeRob{}, Agu: &fakeAgu{}, DCache: &fakeDCache{}, Tlb: &fakeTlb{}, Hella: &fakeHellaClient{}}, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, c.FenceiRdy(), "an empty STQ is always fence.i ready")

	idx := c.stq.Allocate(MicroOp{Uopc: UopStoreData})
	assert.False(t, c.FenceiRdy())

	c.stq.At(idx).Succeeded = true
	assert.True(t, c.FenceiRdy())
}

func TestTick_BranchKilledFaultSuppressed(t *testing.T) {
	// The faulting load depends on a branch that resolves mispredicted
	// this same cycle: its exception must be suppressed, not latched.
	tlb := &fakeTlb{Resp: TlbResp{PageFaultLd: true}}
	agu := &fakeAgu{Lanes: map[int]AguRequest{0: {Valid: true, Addr: 0x1000}}}
	rob := &fakeBranchRob{}
	c := newTickTestCore(t, Ports{Rob: rob, Agu: agu, DCache: &fakeDCache{}, Tlb: tlb, Hella: &fakeHellaClient{}, Hbt: hbt.NewMemTable()})

	// Prime the branch resolution the cycle after dispatch so the uop is
	// in flight with BrMask bit 2 set when the kill arrives.
	lanes := []DispatchLane{{Valid: true, Uop: MicroOp{
		Uopc: UopLoad, UsesLdq: true, RobIdx: 3, BrMask: 1 << 2, MemSize: MemSizeDouble,
	}}, {}}
	rob.brinfo = BrInfo{Valid: true, Mispredict: true, Tag: 2, LdqTail: 0, StqTail: 0, McqTail: 0, BdqTail: 0}
	c.Tick(lanes)

	_, ok := c.Lxcpt()
	assert.False(t, ok, "a fault raised on a branch-killed uop must be suppressed")
}

// fakeBranchRob is a fakeRob whose BrInfo is scriptable.
type fakeBranchRob struct {
	fakeRob
	brinfo BrInfo
}

func (r *fakeBranchRob) BrInfo() BrInfo { return r.brinfo }

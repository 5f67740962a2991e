package lsu

import (
	"context"

	"github.com/opensilicon/suprax-lsu/internal/hbt"
	"github.com/rs/zerolog"
)

// Core is one LSU instance: the four queues, the hella shim, the shared
// global registers, and the external-collaborator ports. Core.Tick
// models one hardware cycle: sample inputs, compute next state, swap —
// there is no concurrency inside Core itself.
type Core struct {
	cfg   Config
	ports Ports
	log   zerolog.Logger

	ldq *Ldq
	stq *Stq
	mcq *Mcq
	bdq *Bdq
	hel *Hella

	csr Counters

	liveStoreMask uint64

	lrscCount int

	blockLoadMask   uint64
	p1BlockLoadMask uint64
	p2BlockLoadMask uint64

	specLdWakeupValid bool
	specLdWakeupIdx   uint32
	lane0RespValid    bool
	lane0RespIdx      uint32
	ldMiss            bool

	rXcpt     LatchedException
	xcptCands []LatchedException

	clrBsy    []uint32
	clrUnsafe []uint32

	wyfyLevel bool

	hellaLastTlbResp  TlbResp
	hellaLastTlbMiss  bool
	hellaLastNacked   bool
	hellaLastMemResp  MemResp
	hellaLastExcepted bool
	hellaLastCause    ExceptionCause
}

// NewCore constructs a Core from its config, external ports, and the
// bnd_check/occ_check predicates the MCQ/BDQ bounds-probe logic is wired
// through (nil selects the reference hardware's always-true behavior).
func NewCore(cfg Config, ports Ports, check hbt.CheckFunc, occ hbt.OccupancyFunc, log zerolog.Logger) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Core{
		cfg:   cfg,
		ports: ports,
		log:   log,
		ldq:   newLdq(cfg.NumLdqEntries),
		stq:   newStq(cfg.NumStqEntries),
		mcq:   newMcq(cfg.NumMcqEntries, cfg.HbtNumWay, check),
		bdq:   newBdq(cfg.NumBdqEntries, cfg.HbtNumWay, occ),
		hel:   newHella(),
	}, nil
}

// Counters exposes a read-only snapshot of the CSR counters.
func (c *Core) Counters() Counters { return c.csr }

// FullSignals reports the per-queue full flags the ROB consults before
// dispatching further.
type FullSignals struct {
	Ldq, Stq, Mcq, Bdq bool
}

func (c *Core) Full() FullSignals {
	return FullSignals{Ldq: c.ldq.Full(), Stq: c.stq.Full(), Mcq: c.mcq.Full(), Bdq: c.bdq.Full()}
}

// Tails reports every queue's current tail index, the snapshot a caller
// must save when a branch is fetched so that, if it later mispredicts,
// the BrInfo it reports carries the tail as it stood at fetch time
// rather than wherever the tail has drifted to since.
type Tails struct {
	Ldq, Stq, Mcq, Bdq uint32
}

func (c *Core) Tails() Tails {
	return Tails{Ldq: c.ldq.Tail(), Stq: c.stq.Tail(), Mcq: c.mcq.Tail(), Bdq: c.bdq.Tail()}
}

// BoundsProbeAddr exposes the HBT probe-address formula using this
// core's configured base address.
func (c *Core) BoundsProbeAddr(vaddr uint64, count int) uint64 {
	return hbt.Addr(c.cfg.HbtBaseAddr, vaddr, count)
}

// Tick advances the core by one cycle, in the order a synchronous
// sample/compute/swap model requires: exception/branch recovery first
// (so nothing below acts on doomed state), dispatch, arbitrated
// TLB/DCache issue with the LCAM ordering scan, sfence, the hella scalar
// shim, the lower-priority retry/wakeup/store-commit categories, the
// release search, the bounds co-engine's probe traffic, CSR
// reconfiguration, then commit.
//
// The per-lane address-generation/TLB/DCache bookkeeping in
// serviceIncomingLane only services uops dispatched this very cycle
// ("incoming" category, highest priority). load_retry, load_wakeup,
// sta_retry, and store_commit are arbitrated and driven afterward by
// stepRetryWakeupCommit (see retrywakeup.go), which yields a restricted
// lane already claimed by incoming this cycle. The MCQ/BDQ bounds-probe
// traffic, by contrast, is driven every cycle below regardless of
// dispatch: it is the one piece of this core with no "incoming-lane"
// fast path at all, since a bounds probe/store only ever fires from its
// own queue's age-priority encoder.
func (c *Core) Tick(lanes []DispatchLane) []DispatchResult {
	brinfo := c.ports.Rob.BrInfo()
	if c.ports.Rob.Exception() {
		c.HandleException()
	} else {
		c.HandleBranchMispredict(brinfo)
	}

	if c.lrscCount > 0 {
		c.lrscCount--
	}

	c.p2BlockLoadMask = c.p1BlockLoadMask
	c.p1BlockLoadMask = c.blockLoadMask
	c.blockLoadMask = 0

	c.specLdWakeupValid = false
	c.lane0RespValid = false
	c.ldMiss = false
	c.xcptCands = c.xcptCands[:0]
	c.clrBsy = c.clrBsy[:0]
	c.clrUnsafe = c.clrUnsafe[:0]

	results := c.dispatch(lanes)
	if len(results) < c.cfg.MemWidth {
		padded := make([]DispatchResult, c.cfg.MemWidth)
		copy(padded, results)
		results = padded
	}

	for lane, lw := range lanes {
		if lane >= c.cfg.MemWidth || !lw.Valid || lw.Excepted {
			continue
		}
		if lw.Uop.IsSfence {
			c.serviceSfenceLane(lane)
			continue
		}
		res := results[lane]
		if !res.Allocated {
			continue
		}
		c.serviceIncomingLane(lane, lw.Uop, res)
	}

	// hella_incoming/hella_wakeup strictly outrank load_retry/sta_retry/
	// store_commit/load_wakeup in the arbiter priority list and fire through
	// their own dedicated port, so they are driven ahead of, and
	// independently from, the Arbitrate-driven group below.
	c.stepHella(results)

	// Lower-priority categories: incoming already claimed whatever
	// lane it used this cycle, so each of these yields that lane and the
	// four compete for their shared restricted lane via Arbitrate.
	c.stepRetryWakeupCommit(lanes, results)

	if rel, ok := c.ports.DCache.Release(); ok && rel.Valid {
		c.doReleaseSearch(rel.Addr)
	}

	// An active LR/SC reservation window holds off bounds traffic: the
	// HBT shares the memory port with the reserved line and a probe
	// landing inside the window could break the reservation.
	if c.lrscCount == 0 {
		c.stepMcqProbe()
		c.stepBdqProbe()
	}

	c.stepWyfy()

	c.Commit(c.ports.Rob.Commit(), c.cfg.CoreWidth)
	c.CommitFenceDequeue(func(MicroOp) bool { return c.ports.Rob.FenceDmem() })
	c.drainBoundsQueues()

	c.latchCycleOutputs(brinfo)

	return results
}

// latchCycleOutputs computes the one-cycle-valid ROB-facing outputs from
// everything this Tick observed: the ld_miss verdict on last step's
// speculative wakeup, and the oldest surviving exception (r_xcpt).
// Exception candidates belonging to a uop the resolved branch just
// killed are suppressed before the age mux runs.
func (c *Core) latchCycleOutputs(brinfo BrInfo) {
	c.ldMiss = LdMiss(c.specLdWakeupIdx, c.specLdWakeupValid, c.lane0RespIdx, c.lane0RespValid)

	cands := c.xcptCands
	if x, ok := c.McqFailedException(); ok {
		cands = append(cands, x)
	}
	if x, ok := c.BdqFailedException(); ok {
		cands = append(cands, x)
	}
	kept := cands[:0]
	for _, x := range cands {
		if IsKilledByBranch(brinfo, x.BrMask) {
			continue
		}
		kept = append(kept, x)
	}
	c.rXcpt = latchException(c.ports.Rob.RobHeadIdx(), kept)
	if c.rXcpt.Valid {
		c.log.Warn().Uint32("rob_idx", c.rXcpt.RobIdx).Uint8("cause", uint8(c.rXcpt.Cause)).Msg("lxcpt raised")
	}
}

// Lxcpt reports the exception latch (r_xcpt): the oldest offender among
// this cycle's faults, valid for exactly one cycle.
func (c *Core) Lxcpt() (LatchedException, bool) {
	return c.rXcpt, c.rXcpt.Valid
}

// SpecLdWakeup reports the speculative integer-load wakeup asserted this
// cycle, one cycle ahead of the response reaching the ROB.
func (c *Core) SpecLdWakeup() (uint32, bool) {
	return c.specLdWakeupIdx, c.specLdWakeupValid
}

// LdMiss reports that the previously asserted speculative wakeup did not
// materialise into a lane-0 response for the same LDQ index.
func (c *Core) LdMiss() bool { return c.ldMiss }

// ClrBsy reports the ROB indices whose store address (and data) completed
// translation this cycle, clearing the ROB busy bit.
func (c *Core) ClrBsy() []uint32 { return c.clrBsy }

// ClrUnsafe reports the ROB indices of loads that issued cleanly this
// cycle and can no longer raise a translation fault.
func (c *Core) ClrUnsafe() []uint32 { return c.clrUnsafe }

// FenceiRdy reports whether every store the STQ still holds has reached
// memory, the condition for letting a fence.i proceed.
func (c *Core) FenceiRdy() bool {
	for i := uint32(0); i < uint32(c.stq.Len()); i++ {
		e := c.stq.At(i)
		if e.Valid && !e.Succeeded && !e.Uop.IsFence && !e.Uop.IsFencei {
			return false
		}
	}
	return true
}

// serviceSfenceLane drives an sfence.vma-class uop to the DTLB. Unlike
// ordinary loads/stores it allocates no queue slot (dispatch leaves
// Allocated false for it), so it is recognized and serviced directly out
// of the incoming-lane loop rather than through DispatchResult.
func (c *Core) serviceSfenceLane(lane int) {
	agu := c.ports.Agu.Req(lane)
	c.ports.Tlb.Sfence(SfenceReq{Valid: true, Addr: agu.Addr})
}

// serviceIncomingLane drives one freshly-dispatched memory uop through
// AGU address delivery, TLB translation, DCache issue, the LCAM scan,
// and writeback, all within the cycle it was dispatched — the common
// case for a single-issue incoming load or store with no TLB miss.
func (c *Core) serviceIncomingLane(lane int, uop MicroOp, res DispatchResult) {
	agu := c.ports.Agu.Req(lane)
	if !agu.Valid {
		return
	}

	if uop.UsesLdq {
		e := c.ldq.At(res.LdqIdx)
		e.Addr = Addr{Valid: true, Bits: agu.Addr}
	}
	if uop.UsesStq {
		e := c.stq.At(res.StqIdx)
		e.Addr = Addr{Valid: true, Bits: agu.Addr}
		if uop.MemCmd != MemCmdRead {
			e.Data = Data{Valid: true, Bits: agu.Data}
		}
	}
	if res.McqAllocated {
		c.mcq.OnAddrDelivered(res.McqIdx, agu.Addr)
	}
	if res.BdqAllocated {
		c.bdq.OnAddrDelivered(res.BdqIdx, agu.Addr, Data{Valid: true, Bits: agu.Data})
	}

	vaddr := vaddrFromIncoming(agu.Addr)
	tlbResp := c.ports.Tlb.Req(lane, vaddr, uop.MemSize, uop.MemCmd, false)
	if cause := tlbExceptionCause(tlbResp, agu.Mxcpt, uop.UsesStq); cause != CauseNone {
		c.xcptCands = append(c.xcptCands, LatchedException{
			Valid:  true,
			Cause:  cause,
			RobIdx: uop.RobIdx,
			BrMask: uop.BrMask,
		})
		return
	}
	if tlbResp.Miss {
		if uop.UsesLdq {
			c.ldq.At(res.LdqIdx).Addr.IsVirtual = true
		}
		if uop.UsesStq {
			c.stq.At(res.StqIdx).Addr.IsVirtual = true
		}
		return
	}
	if uop.UsesLdq {
		c.ldq.At(res.LdqIdx).Addr.IsVirtual = false
		c.ldq.At(res.LdqIdx).Addr.IsUncacheable = !tlbResp.Cacheable
	}
	if uop.UsesStq {
		c.stq.At(res.StqIdx).Addr.IsVirtual = false
		c.clrBsy = append(c.clrBsy, uop.RobIdx)
	}
	if uop.IsAmo {
		c.lrscCount = c.cfg.LrscCycles
	}

	if !uop.UsesLdq && !uop.UsesStq {
		return
	}

	mask := GenByteMask(tlbResp.PAddr, uop.MemSize)
	if uop.UsesLdq {
		c.blockLoadMask |= 1 << res.LdqIdx
		lcamRes := c.Lcam(LcamOp{
			IsStore:   false,
			LdqIdx:    res.LdqIdx,
			PAddr:     tlbResp.PAddr,
			Mask:      mask,
			StDepMask: c.ldq.At(res.LdqIdx).StDepMask,
			Fence:     uop.IsFence || uop.IsFencei,
			Amo:       uop.IsAmo,
		})
		c.applyLcamResult(lcamRes)

		if lcamRes.KillDC&(1<<res.LdqIdx) != 0 {
			c.ports.DCache.SKill(lane)
			c.ldq.At(res.LdqIdx).Executed = false
			return
		}
		c.clrUnsafe = append(c.clrUnsafe, uop.RobIdx)

		req := buildMemReq(LaneWinner{Fired: true, Category: FireLoadIncoming}, tlbResp, uop.MemSize, uop.MemCmd, 0, false, false)
		resp, nack, _ := c.issueDCache(lane, req)
		c.ldq.At(res.LdqIdx).Executed = req.Valid
		if lane == 0 && req.Valid && uop.DstRType == RegInt {
			c.specLdWakeupValid = true
			c.specLdWakeupIdx = res.LdqIdx
		}
		canForward := lcamRes.ForbidForward&(1<<res.LdqIdx) == 0
		if fwIdx, ok := ForwardingAgeLogic(lcamRes.AddrMatches, c.ldq.At(res.LdqIdx).YoungestStqIdx, c.stq.Head(), uint32(c.stq.Len())); ok && canForward && lcamRes.ForwardMatches&(1<<fwIdx) != 0 {
			if _, fwd := c.forwardFromStore(res.LdqIdx, fwIdx); fwd {
				c.noteLaneResp(lane, res.LdqIdx)
			}
			return
		}
		if _, ok := c.writebackLoad(res.LdqIdx, resp, nack.Valid); ok {
			c.noteLaneResp(lane, res.LdqIdx)
		}
	}

	if uop.UsesStq {
		lcamRes := c.Lcam(LcamOp{
			IsStore: true,
			StqIdx:  res.StqIdx,
			PAddr:   tlbResp.PAddr,
			Mask:    mask,
			Fence:   uop.IsFence || uop.IsFencei,
			Amo:     uop.IsAmo,
		})
		c.applyLcamResult(lcamRes)
	}
}

// applyLcamResult folds an Lcam scan's flags back into LDQ entry state.
// Every newly order-failed load also becomes an exception candidate for
// this cycle's mux (the memory-ordering mini-exception).
func (c *Core) applyLcamResult(res LcamResult) {
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		bit := uint64(1) << i
		e := c.ldq.At(i)
		if res.OrderFailLdq&bit != 0 {
			if !e.OrderFail {
				c.xcptCands = append(c.xcptCands, LatchedException{
					Valid:  true,
					Cause:  CauseMemOrdering,
					RobIdx: e.Uop.RobIdx,
					BrMask: e.Uop.BrMask,
				})
			}
			e.OrderFail = true
		}
		if res.ExecuteIgnore&bit != 0 {
			e.ExecuteIgnore = true
		}
	}
}

// noteLaneResp records that a load response materialised on a lane this
// cycle; lane 0's record is what next cycle's ld_miss verdict checks the
// speculative wakeup against.
func (c *Core) noteLaneResp(lane int, ldqIdx uint32) {
	if lane == 0 {
		c.lane0RespValid = true
		c.lane0RespIdx = ldqIdx
	}
}

// stepMcqProbe fires the oldest eligible MCQ entry's bounds probe this
// cycle: the HBT table has no modeled latency, so request and response
// are a single synchronous call, and OnProbeResponse immediately
// applies whatever bnd_check decided (match, retry, or exhaustion).
func (c *Core) stepMcqProbe() {
	idx, ok := c.mcq.LoadIdx()
	if !ok {
		return
	}
	e := c.mcq.At(idx)
	e.Executed = true
	addr := e.ProbeAddr(c.cfg.HbtBaseAddr)
	resp, err := c.ports.Hbt.Probe(context.Background(), addr)
	if err != nil {
		resp = hbt.Descriptor{}
	}
	c.mcq.OnProbeResponse(idx, resp)
}

// stepBdqProbe fires the oldest eligible BDQ entry's occupancy probe or
// (once b_bndStr has been reached and the entry has committed) its
// bounds store, exactly one of the two per cycle since an entry is
// never eligible for both states at once.
func (c *Core) stepBdqProbe() {
	if idx, ok := c.bdq.OccChkIdx(); ok {
		e := c.bdq.At(idx)
		e.Executed = true
		addr := e.ProbeAddr(c.cfg.HbtBaseAddr)
		resp, err := c.ports.Hbt.Probe(context.Background(), addr)
		if err != nil {
			resp = hbt.Descriptor{}
		}
		c.bdq.OnOccChkResponse(idx, resp)
		return
	}
	if idx, ok := c.bdq.BndStrIdx(); ok {
		e := c.bdq.At(idx)
		e.Executed = true
		addr := e.ProbeAddr(c.cfg.HbtBaseAddr)
		if err := c.ports.Hbt.Store(context.Background(), addr, hbt.Descriptor{Valid: true, Data: e.Data.Bits}); err != nil {
			return
		}
		c.bdq.OnBndStrResponse(idx)
	}
}

// drainBoundsQueues dequeues every MCQ/BDQ head that has both committed
// and reached its terminal m_done/b_done state, recording the
// signed/unsigned or bndstr/bndclr/bndsrch CSR counters exactly once
// per completed bounds operation — never speculatively, since
// TryDequeueHead refuses an uncommitted head.
func (c *Core) drainBoundsQueues() {
	for {
		e, ok := c.mcq.TryDequeueHead()
		if !ok {
			break
		}
		c.csr.recordMcqDequeue(e.Signed)
	}
	for {
		e, ok := c.bdq.TryDequeueHead()
		if !ok {
			break
		}
		c.csr.recordBdqDequeue(e.Uop.Uopc)
	}
}

// McqFailedException reports CauseBoundsFail for the ROB to latch when
// the MCQ head has exhausted every HBT way without a match.
func (c *Core) McqFailedException() (LatchedException, bool) {
	e, ok := c.mcq.FailedHead()
	if !ok {
		return LatchedException{}, false
	}
	return LatchedException{Valid: true, Cause: CauseBoundsFail, RobIdx: e.Uop.RobIdx, BrMask: e.Uop.BrMask}, true
}

// BdqFailedException reports CauseOccupancyFail for the ROB to latch
// when the BDQ head has exhausted every HBT way without a free slot.
func (c *Core) BdqFailedException() (LatchedException, bool) {
	e, ok := c.bdq.FailedHead()
	if !ok {
		return LatchedException{}, false
	}
	return LatchedException{Valid: true, Cause: CauseOccupancyFail, RobIdx: e.Uop.RobIdx, BrMask: e.Uop.BrMask}, true
}

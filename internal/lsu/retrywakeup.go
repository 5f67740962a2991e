package lsu

// This file drives the four fire categories that never originate from a
// freshly dispatched lane: load_retry, load_wakeup, sta_retry, and
// store_commit. load_retry/sta_retry/load_wakeup are restricted
// to the last memory lane and store_commit to lane 0; all four route
// through Core.Arbitrate so a lane already claimed by an incoming uop, or
// by a higher-priority member of this same group, is never double-fired
// in one cycle.

// lastLane is the single physical lane load_retry/load_wakeup/sta_retry
// are restricted to.
func (c *Core) lastLane() int { return c.cfg.MemWidth - 1 }

// laneClaimed reports whether lane was already used by an incoming
// dispatch this cycle, so the lower-priority retry/wakeup/commit
// categories correctly yield it under the fixed priority order.
func (c *Core) laneClaimed(lane int, results []DispatchResult) bool {
	if lane < 0 || lane >= len(results) {
		return false
	}
	return results[lane].Allocated
}

// markLaneClaimed records that lane fired this cycle so a later step in
// the same Tick (another category restricted to the same physical lane)
// correctly observes it as taken.
func markLaneClaimed(results []DispatchResult, lane int) {
	if lane < 0 || lane >= len(results) {
		return
	}
	results[lane].Allocated = true
}

// loadRetryCandidate reports the oldest LDQ entry awaiting TLB retry, if
// any. Pure query: no port or queue-state side effects.
func (c *Core) loadRetryCandidate() (uint32, bool) {
	blocked := func(idx uint32) bool {
		bit := uint64(1) << idx
		return c.p1BlockLoadMask&bit != 0 || c.p2BlockLoadMask&bit != 0
	}
	return c.ldq.RetryIdx(blocked)
}

// loadWakeupCandidate reports the oldest LDQ entry eligible for re-issue
// with an already-resolved physical address (ldq_wakeup_idx).
func (c *Core) loadWakeupCandidate() (uint32, bool) {
	robHeadNoDeps := func(idx uint32) bool {
		return idx == c.ldq.Head() && c.ports.Rob.CommitLoadAtRobHead() && c.ldq.At(idx).StDepMask == 0
	}
	blocked := func(idx uint32) bool {
		bit := uint64(1) << idx
		return c.p1BlockLoadMask&bit != 0 || c.p2BlockLoadMask&bit != 0
	}
	return c.ldq.WakeupIdx(robHeadNoDeps, blocked)
}

// staRetryCandidate reports the oldest STQ entry awaiting TLB retry for
// its address.
func (c *Core) staRetryCandidate() (uint32, bool) {
	return c.stq.RetryIdx()
}

// storeCommitCandidate reports stq_execute_head iff it is ready to fire:
// valid, committed, a resolved physical address, and store data present.
func (c *Core) storeCommitCandidate() (uint32, bool) {
	idx := c.stq.ExecuteHead()
	if idx == c.stq.Tail() {
		return 0, false
	}
	e := c.stq.At(idx)
	if !e.Valid || !e.Committed || !e.Addr.Valid || e.Addr.IsVirtual || !e.Data.Valid {
		return 0, false
	}
	return idx, true
}

// staRetryCollides builds the collidingStqIdx predicate Arbitrate uses to
// defer a sta_retry candidate whose STQ index is also being written by an
// incoming STD this same cycle.
func staRetryCollides(lanes []DispatchLane, results []DispatchResult) func(lane int, idx uint32) bool {
	return func(_ int, idx uint32) bool {
		for i, r := range results {
			if r.Allocated && lanes[i].Uop.UsesStq && r.StqIdx == idx {
				return true
			}
		}
		return false
	}
}

// stepRetryWakeupCommit arbitrates and fires load_retry, sta_retry,
// store_commit, and load_wakeup for this cycle, yielding to any lane an
// incoming uop already claimed and to a higher-priority category sharing
// the same restricted lane.
func (c *Core) stepRetryWakeupCommit(lanes []DispatchLane, results []DispatchResult) {
	memWidth := c.cfg.MemWidth
	candidates := make([][]LaneCandidate, memWidth)

	last := c.lastLane()
	if !c.laneClaimed(last, results) {
		if idx, ok := c.loadRetryCandidate(); ok {
			candidates[last] = append(candidates[last], LaneCandidate{Category: FireLoadRetry, Ready: true, Idx: idx})
		}
		if idx, ok := c.staRetryCandidate(); ok {
			candidates[last] = append(candidates[last], LaneCandidate{Category: FireStaRetry, Ready: true, Idx: idx})
		}
		if idx, ok := c.loadWakeupCandidate(); ok {
			candidates[last] = append(candidates[last], LaneCandidate{Category: FireLoadWakeup, Ready: true, Idx: idx})
		}
	}
	if !c.laneClaimed(0, results) {
		if idx, ok := c.storeCommitCandidate(); ok {
			candidates[0] = append(candidates[0], LaneCandidate{Category: FireStoreCommit, Ready: true, Idx: idx})
		}
	}

	winners := c.Arbitrate(candidates, staRetryCollides(lanes, results))
	for lane, w := range winners {
		if !w.Fired {
			continue
		}
		markLaneClaimed(results, lane)
		switch w.Category {
		case FireLoadRetry:
			c.execLoadRetry(lane, w.Idx)
		case FireStaRetry:
			c.execStaRetry(lane, w.Idx)
		case FireLoadWakeup:
			c.execLoadWakeup(lane, w.Idx)
		case FireStoreCommit:
			c.execStoreCommit(lane, w.Idx)
		}
	}
}

// execLoadRetry re-issues an LDQ entry awaiting TLB retry: a fresh
// translation on the last lane, and — on a hit — the same ordering/
// forwarding/DCache pass an incoming load goes through.
func (c *Core) execLoadRetry(lane int, idx uint32) {
	e := c.ldq.At(idx)
	tlbResp := c.ports.Tlb.Req(lane, e.Addr.Bits, e.Uop.MemSize, MemCmdRead, false)
	if cause := tlbExceptionCause(tlbResp, false, false); cause != CauseNone {
		c.xcptCands = append(c.xcptCands, LatchedException{
			Valid: true, Cause: cause, RobIdx: e.Uop.RobIdx, BrMask: e.Uop.BrMask,
		})
		return
	}
	if tlbResp.Miss {
		return
	}
	e.Addr.Bits = tlbResp.PAddr
	e.Addr.IsVirtual = false
	e.Addr.IsUncacheable = !tlbResp.Cacheable
	c.fireLoad(lane, idx, FireLoadRetry, tlbResp)
}

// execLoadWakeup re-issues an LDQ entry whose address already resolved to
// a physical line: no TLB translation is needed, only a fresh LCAM/
// DCache pass.
func (c *Core) execLoadWakeup(lane int, idx uint32) {
	e := c.ldq.At(idx)
	tlbResp := TlbResp{PAddr: e.Addr.Bits, Cacheable: !e.Addr.IsUncacheable}
	c.fireLoad(lane, idx, FireLoadWakeup, tlbResp)
}

// fireLoad runs the LCAM ordering/forwarding scan and DCache issue for a
// load whose physical address is already known, shared by the retry and
// wakeup paths, mirroring serviceIncomingLane's load half.
func (c *Core) fireLoad(lane int, ldqIdx uint32, category FireCategory, tlbResp TlbResp) {
	c.blockLoadMask |= 1 << ldqIdx

	e := c.ldq.At(ldqIdx)
	mask := GenByteMask(tlbResp.PAddr, e.Uop.MemSize)
	lcamRes := c.Lcam(LcamOp{
		IsStore:   false,
		LdqIdx:    ldqIdx,
		PAddr:     tlbResp.PAddr,
		Mask:      mask,
		StDepMask: e.StDepMask,
		Fence:     e.Uop.IsFence || e.Uop.IsFencei,
		Amo:       e.Uop.IsAmo,
	})
	c.applyLcamResult(lcamRes)

	if lcamRes.KillDC&(1<<ldqIdx) != 0 {
		c.ports.DCache.SKill(lane)
		e.Executed = false
		return
	}
	c.clrUnsafe = append(c.clrUnsafe, e.Uop.RobIdx)

	req := buildMemReq(LaneWinner{Fired: true, Category: category}, tlbResp, e.Uop.MemSize, MemCmdRead, 0, false, false)
	resp, nack, _ := c.issueDCache(lane, req)
	e.Executed = req.Valid
	if lane == 0 && req.Valid && e.Uop.DstRType == RegInt {
		c.specLdWakeupValid = true
		c.specLdWakeupIdx = ldqIdx
	}
	canForward := lcamRes.ForbidForward&(1<<ldqIdx) == 0
	if fwIdx, ok := ForwardingAgeLogic(lcamRes.AddrMatches, e.YoungestStqIdx, c.stq.Head(), uint32(c.stq.Len())); ok && canForward && lcamRes.ForwardMatches&(1<<fwIdx) != 0 {
		if _, fwd := c.forwardFromStore(ldqIdx, fwIdx); fwd {
			c.noteLaneResp(lane, ldqIdx)
		}
		return
	}
	if _, ok := c.writebackLoad(ldqIdx, resp, nack.Valid); ok {
		c.noteLaneResp(lane, ldqIdx)
	}
}

// execStaRetry re-issues an STQ entry awaiting TLB retry for its address,
// running the store-side LCAM scan once translation succeeds.
func (c *Core) execStaRetry(lane int, idx uint32) {
	e := c.stq.At(idx)
	tlbResp := c.ports.Tlb.Req(lane, e.Addr.Bits, e.Uop.MemSize, e.Uop.MemCmd, false)
	if cause := tlbExceptionCause(tlbResp, false, true); cause != CauseNone {
		c.xcptCands = append(c.xcptCands, LatchedException{
			Valid: true, Cause: cause, RobIdx: e.Uop.RobIdx, BrMask: e.Uop.BrMask,
		})
		return
	}
	if tlbResp.Miss {
		return
	}
	e.Addr.Bits = tlbResp.PAddr
	e.Addr.IsVirtual = false
	c.clrBsy = append(c.clrBsy, e.Uop.RobIdx)

	mask := GenByteMask(tlbResp.PAddr, e.Uop.MemSize)
	lcamRes := c.Lcam(LcamOp{
		IsStore: true,
		StqIdx:  idx,
		PAddr:   tlbResp.PAddr,
		Mask:    mask,
		Fence:   e.Uop.IsFence || e.Uop.IsFencei,
		Amo:     e.Uop.IsAmo,
	})
	c.applyLcamResult(lcamRes)
}

// execStoreCommit fires the store at stq_execute_head, lane-0 only,
// advancing execute_head iff the DCache accepted the request; a nack
// instead rewinds execute_head via writebackStore.
func (c *Core) execStoreCommit(lane int, idx uint32) {
	e := c.stq.At(idx)
	tlbResp := TlbResp{PAddr: e.Addr.Bits}
	req := buildMemReq(LaneWinner{Fired: true, Category: FireStoreCommit}, tlbResp, e.Uop.MemSize, e.Uop.MemCmd, e.Data.Bits, false, false)
	resp, nack, accepted := c.issueDCache(lane, req)
	if accepted {
		c.stq.AdvanceExecuteHead()
	}
	c.writebackStore(idx, resp, nack.Valid)
}

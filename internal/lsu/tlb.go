package lsu

// vaddrFromIncoming masks off the upper PAC bits the AGU leaves set on a
// freshly-computed address, recovering a plain 45-bit virtual address:
// vaddr = (addr << 19) >> 19.
func vaddrFromIncoming(addr uint64) uint64 {
	return (addr << 19) >> 19
}

// LatchedException is the one-cycle-later, OR-reduced, oldest-wins
// exception report produced from this cycle's TLB responses.
type LatchedException struct {
	Valid  bool
	Cause  ExceptionCause
	RobIdx uint32
	BrMask uint64 // for suppressing exceptions on branch-killed uops
}

// tlbExceptionCause maps a same-cycle TLB response (plus AGU mxcpt) to an
// exception cause, or CauseNone if the response is clean.
func tlbExceptionCause(resp TlbResp, mxcpt bool, isStore bool) ExceptionCause {
	switch {
	case mxcpt && isStore:
		return CauseMisalignedStore
	case mxcpt:
		return CauseMisalignedLoad
	case isStore && resp.PageFaultSt:
		return CausePageFaultStore
	case !isStore && resp.PageFaultLd:
		return CausePageFaultLoad
	case isStore && resp.AccessFaultSt:
		return CauseAccessFaultStore
	case !isStore && resp.AccessFaultLd:
		return CauseAccessFaultLoad
	default:
		return CauseNone
	}
}

// latchException OR-reduces this cycle's per-lane exceptions and selects
// the oldest offender by ROB ordering modulo rob_head_idx (the oldest
// "wins" and becomes r_xcpt, asserted one cycle later by the caller).
func latchException(robHeadIdx uint32, candidates []LatchedException) LatchedException {
	var best LatchedException
	var bestDist uint32 = ^uint32(0)
	for _, cand := range candidates {
		if !cand.Valid {
			continue
		}
		dist := cand.RobIdx - robHeadIdx
		if dist < bestDist {
			best = cand
			bestDist = dist
		}
	}
	return best
}

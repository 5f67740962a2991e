package lsu

// DispatchLane is what the front-end supplies for one dispatch-width lane
// this cycle: a decoded micro-op and whether it was dropped at dispatch.
// Addresses and store data arrive separately, through the AGU port.
type DispatchLane struct {
	Valid     bool
	Uop       MicroOp
	Excepted  bool // dropped at dispatch per the fence/exception rule
}

// DispatchResult reports per-lane full-signals and the slots allocated,
// so the caller (ROB/rename) can stall or record indices. McqAllocated/
// BdqAllocated distinguish a real co-engine allocation from the zero
// index; dispatch forces uses_mcq on the queued copy itself, so the
// front-end never sets it.
type DispatchResult struct {
	LdqFull, StqFull, McqFull, BdqFull bool
	LdqIdx, StqIdx, McqIdx, BdqIdx     uint32
	Allocated                          bool
	McqAllocated, BdqAllocated         bool
}

// dispatch processes coreWidth lanes left-to-right, mirroring the
// sequential st_dep_mask/next_live_store_mask accumulation a real
// multi-lane allocator performs within one cycle.
func (c *Core) dispatch(lanes []DispatchLane) []DispatchResult {
	results := make([]DispatchResult, len(lanes))
	nextLiveStoreMask := c.liveStoreMask
	for i, lane := range lanes {
		if !lane.Valid || lane.Excepted {
			continue
		}
		uop := lane.Uop
		if uop.UsesLdq && uop.UsesStq {
			panic("lsu: dispatch lane requests both uses_ldq and uses_stq")
		}

		res := DispatchResult{
			LdqFull: c.ldq.Full(),
			StqFull: c.stq.Full(),
			McqFull: c.mcq.Full(),
			BdqFull: c.bdq.Full(),
		}

		switch {
		case uop.UsesLdq:
			if res.LdqFull {
				results[i] = res
				continue
			}
			idx := c.ldq.Allocate(uop, nextLiveStoreMask, c.stq.Tail())
			res.LdqIdx = idx
			res.Allocated = true
		case uop.UsesStq:
			if res.StqFull {
				results[i] = res
				continue
			}
			idx := c.stq.Allocate(uop)
			res.StqIdx = idx
			res.Allocated = true
			nextLiveStoreMask |= 1 << idx
		}

		if isMemTouching(uop.Uopc) && !uop.IsFence && !uop.IsFencei && !lane.Excepted {
			if !res.McqFull {
				res.McqIdx = c.mcq.Allocate(uop, uop.Signed)
				res.McqAllocated = true
				res.Allocated = true
			}
		}
		if uop.UsesBdq && !res.BdqFull {
			res.BdqIdx = c.bdq.Allocate(uop)
			res.BdqAllocated = true
			res.Allocated = true
		}

		results[i] = res
	}
	c.liveStoreMask = nextLiveStoreMask
	return results
}

func isMemTouching(c UopClass) bool {
	switch c {
	case UopLoad, UopStoreAddr, UopStoreData, UopStoreAddrData, UopAmo:
		return true
	default:
		return false
	}
}

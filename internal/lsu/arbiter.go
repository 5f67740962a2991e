package lsu

// FireCategory names one of the fourteen fire-selection categories the
// per-cycle arbiter resolves, in fixed priority order (highest first).
type FireCategory uint8

const (
	FireLoadIncoming FireCategory = iota
	FireStadIncoming
	FireStaIncoming
	FireStdIncoming
	FireSfence
	FireRelease
	FireHellaIncoming
	FireHellaWakeup
	FireLoadRetry
	FireStaRetry
	FireStoreCommit
	FireLoadWakeup
	FireBndLoad
	FireBndStore
	fireCategoryCount
)

// fireResources names the four capacity-1-per-lane resources the
// arbiter grants.
type fireResources struct {
	tlb, dc, lcam, rob bool
}

var resourceTable = [fireCategoryCount]fireResources{
	FireLoadIncoming:  {tlb: true, dc: true, lcam: true},
	FireStadIncoming:  {tlb: true, lcam: true, rob: true},
	FireStaIncoming:   {tlb: true, lcam: true, rob: true},
	FireStdIncoming:   {rob: true},
	FireSfence:        {tlb: true, rob: true},
	FireRelease:       {lcam: true},
	FireHellaIncoming: {tlb: true, dc: true},
	FireHellaWakeup:   {dc: true},
	FireLoadRetry:     {tlb: true, dc: true, lcam: true},
	FireStaRetry:      {tlb: true, lcam: true, rob: true},
	FireStoreCommit:   {dc: true},
	FireLoadWakeup:    {dc: true, lcam: true},
	FireBndLoad:       {dc: true},
	FireBndStore:      {dc: true},
}

// lastLaneOnly lists categories restricted to the highest-numbered memory
// lane (memWidth-1); store_commit is the opposite restriction, lane-0
// only, handled separately in Arbitrate.
var lastLaneOnly = map[FireCategory]bool{
	FireRelease:    true,
	FireLoadRetry:  true,
	FireStaRetry:   true,
	FireLoadWakeup: true,
	FireBndLoad:    true,
	FireBndStore:   true,
}

// LaneCandidates is what each lane offers the arbiter this cycle: which
// categories have a ready candidate and (for categories consuming a
// queue index) the selected index.
type LaneCandidate struct {
	Category FireCategory
	Ready    bool
	Idx      uint32
}

// LaneWinner is the arbiter's decision for one lane: at most one category
// wins, carrying the resources it was granted.
type LaneWinner struct {
	Fired    bool
	Category FireCategory
	Idx      uint32
}

// Arbitrate resolves, for each of memWidth lanes, the highest-priority
// ready candidate subject to the tie/restriction rules: store_commit is
// lane-0 only; release/retry/wakeup/bnd_* categories are last-lane only;
// a store retry colliding with another lane's incoming STD is deferred
// (collidingStqIdx reports that collision per lane).
func (c *Core) Arbitrate(candidates [][]LaneCandidate, collidingStqIdx func(lane int, idx uint32) bool) []LaneWinner {
	memWidth := len(candidates)
	winners := make([]LaneWinner, memWidth)
	lastLane := memWidth - 1

	for w := 0; w < memWidth; w++ {
		var best *LaneCandidate
		for i := range candidates[w] {
			cand := &candidates[w][i]
			if !cand.Ready {
				continue
			}
			if cand.Category == FireStoreCommit && w != 0 {
				continue
			}
			if lastLaneOnly[cand.Category] && w != lastLane {
				continue
			}
			if cand.Category == FireStaRetry && collidingStqIdx != nil && collidingStqIdx(w, cand.Idx) {
				continue
			}
			if best == nil || cand.Category < best.Category {
				best = cand
			}
		}
		if best != nil {
			winners[w] = LaneWinner{Fired: true, Category: best.Category, Idx: best.Idx}
		}
	}
	return winners
}

// Resources reports the resource pool a winning category consumes.
func (w LaneWinner) Resources() fireResources {
	if !w.Fired {
		return fireResources{}
	}
	return resourceTable[w.Category]
}

// isLoadFire reports whether a winning category represents a load firing
// (incoming, retry, or wakeup), which must set block_load_mask on its
// ldq index for the following two cycles.
func (w LaneWinner) isLoadFire() bool {
	if !w.Fired {
		return false
	}
	switch w.Category {
	case FireLoadIncoming, FireLoadRetry, FireLoadWakeup:
		return true
	default:
		return false
	}
}

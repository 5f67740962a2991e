package lsu

import "github.com/opensilicon/suprax-lsu/internal/hbt"

// BdqState is the BDQ per-entry state machine:
// b_init -> b_occChk -> b_bndStr -> (b_done | b_fail).
type BdqState uint8

const (
	BdqInit BdqState = iota
	BdqOccChk
	BdqBndStr
	BdqFail
	BdqDone
)

// BdqEntry is one Bounds-Descriptor Queue slot, servicing bounds-store,
// bounds-clear, and bounds-search operations.
type BdqEntry struct {
	Valid     bool
	Uop       MicroOp
	Addr      Addr
	Data      Data
	Executed  bool
	Committed bool
	Way       int
	Count     int
	State     BdqState
}

// Bdq is the fixed-capacity circular Bounds-Descriptor Queue.
type Bdq struct {
	entries []BdqEntry
	head    uint32
	tail    uint32
	numWay  int
	occ     hbt.OccupancyFunc
}

func newBdq(n, numWay int, occ hbt.OccupancyFunc) *Bdq {
	if occ == nil {
		occ = hbt.AlwaysMatch
	}
	return &Bdq{entries: make([]BdqEntry, n), numWay: numWay, occ: occ}
}

func (q *Bdq) n() uint32 { return uint32(len(q.entries)) }

func (q *Bdq) Full() bool { return wrapIncMod(q.tail, q.n()) == q.head }

func (q *Bdq) Allocate(uop MicroOp) uint32 {
	uop.UsesBdq = true
	idx := q.tail
	if q.entries[idx].Valid {
		panic("lsu: bdq enqueue into a slot still valid")
	}
	q.entries[idx] = BdqEntry{Valid: true, Uop: uop, State: BdqInit}
	q.tail = wrapIncMod(q.tail, q.n())
	return idx
}

func (q *Bdq) At(i uint32) *BdqEntry { return &q.entries[i] }

// OnAddrDelivered transitions b_init -> b_occChk on AGU delivery, mirroring
// the MCQ's init transition.
func (q *Bdq) OnAddrDelivered(idx uint32, addr uint64, data Data) {
	e := &q.entries[idx]
	if e.State != BdqInit {
		return
	}
	e.Addr = Addr{Valid: true, Bits: addr}
	e.Data = data
	e.State = BdqOccChk
}

// occChkCandidate reports whether this entry is eligible to fire an
// occupancy probe: state is b_occChk and it has not already executed.
func (e *BdqEntry) occChkCandidate() bool {
	return e.Valid && e.State == BdqOccChk && !e.Executed
}

// OccChkIdx returns the oldest BDQ entry eligible to fire an occupancy
// probe.
func (q *Bdq) OccChkIdx() (uint32, bool) {
	var candidates uint64
	for i := range q.entries {
		if q.entries[i].occChkCandidate() {
			candidates |= 1 << uint(i)
		}
	}
	return agePriorityOldest(candidates, q.head, q.n())
}

// bndStrCandidate reports whether this entry is eligible to fire a bounds
// store: state is b_bndStr, committed, and not already executed.
func (e *BdqEntry) bndStrCandidate() bool {
	return e.Valid && e.State == BdqBndStr && e.Committed && !e.Executed
}

// BndStrIdx returns the oldest BDQ entry eligible to fire a bounds store.
func (q *Bdq) BndStrIdx() (uint32, bool) {
	var candidates uint64
	for i := range q.entries {
		if q.entries[i].bndStrCandidate() {
			candidates |= 1 << uint(i)
		}
	}
	return agePriorityOldest(candidates, q.head, q.n())
}

// ProbeAddr computes the physical HBT address for this entry's current
// way, identical to the MCQ formula.
func (e *BdqEntry) ProbeAddr(baseAddr uint64) uint64 {
	return hbt.Addr(baseAddr, e.Addr.Bits, e.Count)
}

// OnOccChkResponse advances b_occChk on an occupancy-probe response: if
// occ_check holds, switch mem_cmd to WRITE and move to b_bndStr; else
// retry up to hbt_num_way-1 times, then settle on b_fail.
func (q *Bdq) OnOccChkResponse(idx uint32, resp hbt.Descriptor) {
	e := &q.entries[idx]
	if q.occ(resp, e.Addr.Bits, e.Way) {
		e.Uop.MemCmd = MemCmdWrite
		e.State = BdqBndStr
		e.Executed = false
		return
	}
	if e.Count < q.numWay-1 {
		e.Count++
		e.Way = e.Count
		e.Executed = false
		return
	}
	e.State = BdqFail
}

// OnBndStrResponse advances b_bndStr -> b_done once the store to the HBT
// slot completes.
func (q *Bdq) OnBndStrResponse(idx uint32) {
	q.entries[idx].State = BdqDone
}

func (q *Bdq) Commit(idx uint32) { q.entries[idx].Committed = true }

// TryDequeueHead dequeues the head iff valid, committed, and in b_done.
func (q *Bdq) TryDequeueHead() (BdqEntry, bool) {
	e := &q.entries[q.head]
	if !e.Valid || !e.Committed || e.State != BdqDone {
		return BdqEntry{}, false
	}
	done := *e
	*e = BdqEntry{}
	q.head = wrapIncMod(q.head, q.n())
	return done, true
}

// FailedHead reports (without dequeuing) whether the head entry reached
// b_fail, so the exception mux can surface CauseOccupancyFail.
func (q *Bdq) FailedHead() (BdqEntry, bool) {
	e := &q.entries[q.head]
	if e.Valid && e.State == BdqFail {
		return *e, true
	}
	return BdqEntry{}, false
}

func (q *Bdq) KillByBranch(info BrInfo) {
	for i := range q.entries {
		e := &q.entries[i]
		if e.Valid && IsKilledByBranch(info, e.Uop.BrMask) {
			*e = BdqEntry{}
		}
	}
	q.tail = info.BdqTail
}

// Reset fully clears the queue.
func (q *Bdq) Reset() {
	for i := range q.entries {
		q.entries[i] = BdqEntry{}
	}
	q.head, q.tail = 0, 0
}

func (q *Bdq) Head() uint32 { return q.head }
func (q *Bdq) Tail() uint32 { return q.tail }
func (q *Bdq) Len() int     { return len(q.entries) }

package lsu

import "github.com/opensilicon/suprax-lsu/internal/hbt"

// McqState is the MCQ per-entry state machine:
// m_init -> m_bndChk -> (m_done | m_fail).
type McqState uint8

const (
	McqInit McqState = iota
	McqBndChk
	McqFail
	McqDone
)

// McqEntry is one Memory-Check Queue slot.
type McqEntry struct {
	Valid     bool
	Uop       MicroOp // mem_cmd forced READ, mem_size 0, uses_mcq set
	Addr      Addr    // pointer value, PAC in upper bits
	Executed  bool
	Committed bool
	Signed    bool
	Way       int // current probe position within the HBT row
	Count     int // failed probes so far
	State     McqState
}

// Mcq is the fixed-capacity circular Memory-Check Queue.
type Mcq struct {
	entries []McqEntry
	head    uint32
	tail    uint32
	numWay  int
	check   hbt.CheckFunc
}

func newMcq(n, numWay int, check hbt.CheckFunc) *Mcq {
	if check == nil {
		check = hbt.AlwaysMatch
	}
	return &Mcq{entries: make([]McqEntry, n), numWay: numWay, check: check}
}

func (q *Mcq) n() uint32 { return uint32(len(q.entries)) }

func (q *Mcq) Full() bool { return wrapIncMod(q.tail, q.n()) == q.head }

// Allocate forces mem_cmd=READ, mem_size=0, uses_mcq=true.
func (q *Mcq) Allocate(uop MicroOp, signed bool) uint32 {
	uop.MemCmd = MemCmdRead
	uop.MemSize = MemSizeByte
	uop.UsesMcq = true
	idx := q.tail
	if q.entries[idx].Valid {
		panic("lsu: mcq enqueue into a slot still valid")
	}
	q.entries[idx] = McqEntry{Valid: true, Uop: uop, Signed: signed, State: McqInit}
	q.tail = wrapIncMod(q.tail, q.n())
	return idx
}

func (q *Mcq) At(i uint32) *McqEntry { return &q.entries[i] }

// OnAddrDelivered transitions m_init -> m_bndChk on AGU delivery.
func (q *Mcq) OnAddrDelivered(idx uint32, addr uint64) {
	e := &q.entries[idx]
	if e.State != McqInit {
		return
	}
	e.Addr = Addr{Valid: true, Bits: addr}
	e.State = McqBndChk
}

// loadCandidate reports whether this entry is eligible to fire a bounds
// probe: state is m_bndChk and it has not already executed.
func (e *McqEntry) loadCandidate() bool {
	return e.Valid && e.State == McqBndChk && !e.Executed
}

// LoadIdx returns the oldest MCQ entry eligible to fire a bounds probe.
func (q *Mcq) LoadIdx() (uint32, bool) {
	var candidates uint64
	for i := range q.entries {
		if q.entries[i].loadCandidate() {
			candidates |= 1 << uint(i)
		}
	}
	return agePriorityOldest(candidates, q.head, q.n())
}

// ProbeAddr computes the physical HBT probe address for this entry's
// current way.
func (e *McqEntry) ProbeAddr(baseAddr uint64) uint64 {
	return hbt.Addr(baseAddr, e.Addr.Bits, e.Count)
}

// OnProbeResponse advances the state machine on a bounds-probe response:
// a match moves to m_done; otherwise retry up to hbt_num_way-1 times,
// then settle on m_fail.
func (q *Mcq) OnProbeResponse(idx uint32, resp hbt.Descriptor) {
	e := &q.entries[idx]
	if q.check(resp, e.Addr.Bits, e.Way) {
		e.State = McqDone
		return
	}
	if e.Count < q.numWay-1 {
		e.Count++
		e.Way = e.Count
		e.Executed = false
		return
	}
	e.State = McqFail
}

// Commit marks an entry committed.
func (q *Mcq) Commit(idx uint32) { q.entries[idx].Committed = true }

// TryDequeueHead dequeues the head iff valid, committed, and in m_done.
func (q *Mcq) TryDequeueHead() (McqEntry, bool) {
	e := &q.entries[q.head]
	if !e.Valid || !e.Committed || e.State != McqDone {
		return McqEntry{}, false
	}
	done := *e
	*e = McqEntry{}
	q.head = wrapIncMod(q.head, q.n())
	return done, true
}

// FailedHead reports (without dequeuing) whether the head entry reached
// m_fail, so the exception mux can surface CauseBoundsFail.
func (q *Mcq) FailedHead() (McqEntry, bool) {
	e := &q.entries[q.head]
	if e.Valid && e.State == McqFail {
		return *e, true
	}
	return McqEntry{}, false
}

func (q *Mcq) KillByBranch(info BrInfo) {
	for i := range q.entries {
		e := &q.entries[i]
		if e.Valid && IsKilledByBranch(info, e.Uop.BrMask) {
			*e = McqEntry{}
		}
	}
	q.tail = info.McqTail
}

// Reset fully clears the queue.
func (q *Mcq) Reset() {
	for i := range q.entries {
		q.entries[i] = McqEntry{}
	}
	q.head, q.tail = 0, 0
}

func (q *Mcq) Head() uint32 { return q.head }
func (q *Mcq) Tail() uint32 { return q.tail }
func (q *Mcq) Len() int     { return len(q.entries) }

package lsu

// StqEntry is one Store Queue slot.
type StqEntry struct {
	Valid     bool
	Uop       MicroOp
	Addr      Addr
	Data      Data
	Committed bool
	Succeeded bool
}

// Stq is the fixed-capacity circular Store Queue. In addition to head/tail
// it tracks commit_head and execute_head: "commit_head" walks
// through committed slots, "execute_head" is where store-to-memory issue
// has reached.
type Stq struct {
	entries     []StqEntry
	head        uint32
	tail        uint32
	commitHead  uint32
	executeHead uint32
}

func newStq(n int) *Stq {
	return &Stq{entries: make([]StqEntry, n)}
}

func (q *Stq) n() uint32 { return uint32(len(q.entries)) }

func (q *Stq) Full() bool { return wrapIncMod(q.tail, q.n()) == q.head }

// Allocate assigns the tail slot; addr/data start invalid.
func (q *Stq) Allocate(uop MicroOp) uint32 {
	idx := q.tail
	if q.entries[idx].Valid {
		panic("lsu: stq enqueue into a slot still valid")
	}
	q.entries[idx] = StqEntry{Valid: true, Uop: uop}
	q.tail = wrapIncMod(q.tail, q.n())
	return idx
}

func (q *Stq) At(i uint32) *StqEntry { return &q.entries[i] }

// retryCandidate mirrors the LDQ retry predicate: address present but
// still virtual (collision handling against in-flight retries lives in
// the arbiter, which consults this purely on addr state).
func (e *StqEntry) retryCandidate() bool {
	return e.Valid && e.Addr.Valid && e.Addr.IsVirtual
}

// RetryIdx scans from commit_head, matching the LDQ's age-priority
// encoder but anchored at the commit head.
func (q *Stq) RetryIdx() (uint32, bool) {
	var candidates uint64
	for i := range q.entries {
		if q.entries[i].retryCandidate() {
			candidates |= 1 << uint(i)
		}
	}
	return agePriorityOldest(candidates, q.commitHead, q.n())
}

// AdvanceCommitHead walks commit_head forward through slots marked
// committed.
func (q *Stq) AdvanceCommitHead() {
	for {
		e := &q.entries[q.commitHead]
		if q.commitHead == q.tail || !e.Valid || !e.Committed {
			return
		}
		next := wrapIncMod(q.commitHead, q.n())
		if next == q.commitHead {
			return
		}
		q.commitHead = next
	}
}

// TryDequeueHead dequeues the head once its committed store has
// succeeded, or a fence has been marked ordered. isOrdered is supplied by
// the caller for fence(-i) semantics; it is ignored for ordinary stores.
// Returns the dequeued slot index, whether a slot was dequeued, and
// whether the dequeued uop was a fence (so the caller also knows to
// expect execute_head realignment).
func (q *Stq) TryDequeueHead(isOrdered func(MicroOp) bool) (idx uint32, dequeued bool, wasFence bool) {
	idx = q.head
	e := &q.entries[idx]
	if !e.Valid || !e.Committed {
		return idx, false, false
	}
	ready := e.Succeeded
	fence := e.Uop.IsFence || e.Uop.IsFencei
	if fence && isOrdered != nil && isOrdered(e.Uop) {
		ready = true
	}
	if !ready {
		return idx, false, false
	}
	*e = StqEntry{}
	q.head = wrapIncMod(q.head, q.n())
	if fence {
		q.executeHead = q.head
	}
	return idx, true, fence
}

// AdvanceExecuteHead moves execute_head to idx+1 when the DCache accepted
// the request at idx.
func (q *Stq) AdvanceExecuteHead() {
	q.executeHead = wrapIncMod(q.executeHead, q.n())
}

// RewindExecuteHead rewinds execute_head on a nacked store if idx is older
// than the current execute_head.
func (q *Stq) RewindExecuteHead(idx uint32) {
	if q.olderThanExecuteHead(idx) {
		q.executeHead = idx
	}
}

func (q *Stq) olderThanExecuteHead(idx uint32) bool {
	// Distance from head: smaller distance = older.
	dist := func(i uint32) uint32 {
		if i >= q.head {
			return i - q.head
		}
		return q.n() - q.head + i
	}
	return dist(idx) < dist(q.executeHead)
}

func (q *Stq) Reset(newTail uint32, nonCommittedNonSucceededInvalidate bool) {
	if nonCommittedNonSucceededInvalidate {
		for i := range q.entries {
			e := &q.entries[i]
			if e.Valid && !e.Committed && !e.Succeeded {
				*e = StqEntry{}
			}
		}
	}
	q.tail = newTail
	q.commitHead = newTail
}

// KillByBranch invalidates entries killed by branch mispredict. A
// committed store must never be among them; that would mean the ROB
// let a store commit architecturally and then tried to unwind it.
func (q *Stq) KillByBranch(info BrInfo) {
	for i := range q.entries {
		e := &q.entries[i]
		if e.Valid && IsKilledByBranch(info, e.Uop.BrMask) {
			if e.Committed {
				panic("lsu: branch mispredict attempted to kill a committed store")
			}
			*e = StqEntry{}
		}
	}
	q.tail = info.StqTail
	if q.commitHead == q.tail {
		// no-op, already aligned
	}
}

func (q *Stq) Head() uint32        { return q.head }
func (q *Stq) Tail() uint32        { return q.tail }
func (q *Stq) CommitHead() uint32  { return q.commitHead }
func (q *Stq) ExecuteHead() uint32 { return q.executeHead }
func (q *Stq) Len() int            { return len(q.entries) }

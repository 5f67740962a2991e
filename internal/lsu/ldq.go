package lsu

// LdqEntry is one Load Queue slot.
type LdqEntry struct {
	Valid bool
	Uop   MicroOp
	Addr  Addr

	Executed      bool
	ExecuteIgnore bool
	Succeeded     bool
	OrderFail     bool
	Observed      bool

	StDepMask      uint64 // stores older than this load, snapshotted at dispatch
	YoungestStqIdx uint32 // store index immediately younger at dispatch

	ForwardStdVal bool
	ForwardStqIdx uint32

	DebugWbData uint64
}

// Ldq is the fixed-capacity circular Load Queue.
type Ldq struct {
	entries []LdqEntry
	head    uint32
	tail    uint32
}

func newLdq(n int) *Ldq {
	return &Ldq{entries: make([]LdqEntry, n)}
}

func (q *Ldq) n() uint32 { return uint32(len(q.entries)) }

// Full reports whether the next dispatch would collide with head.
func (q *Ldq) Full() bool { return wrapIncMod(q.tail, q.n()) == q.head }

// Allocate assigns the tail slot to uop and advances tail. The caller must
// have checked !Full(). Returns the allocated index.
func (q *Ldq) Allocate(uop MicroOp, stDepMask uint64, youngestStqIdx uint32) uint32 {
	idx := q.tail
	e := &q.entries[idx]
	if e.Valid {
		panic("lsu: ldq enqueue into a slot still valid")
	}
	*e = LdqEntry{
		Valid:          true,
		Uop:            uop,
		StDepMask:      stDepMask,
		YoungestStqIdx: youngestStqIdx,
	}
	q.tail = wrapIncMod(q.tail, q.n())
	return idx
}

func (q *Ldq) At(i uint32) *LdqEntry { return &q.entries[i] }

// Dequeue clears the head entry. Returns false (no-op) if the head is
// invalid; callers are expected to have already checked the ROB commit
// signal and completion state before calling.
func (q *Ldq) Dequeue() bool {
	e := &q.entries[q.head]
	if !e.Valid {
		return false
	}
	*e = LdqEntry{}
	q.head = wrapIncMod(q.head, q.n())
	return true
}

// Reset invalidates every entry and rewinds head/tail to zero.
func (q *Ldq) Reset() {
	for i := range q.entries {
		q.entries[i] = LdqEntry{}
	}
	q.head = 0
	q.tail = 0
}

// KillByBranch invalidates every entry whose BrMask intersects a
// mispredicted branch and rewinds tail.
func (q *Ldq) KillByBranch(info BrInfo) {
	for i := range q.entries {
		e := &q.entries[i]
		if e.Valid && IsKilledByBranch(info, e.Uop.BrMask) {
			*e = LdqEntry{}
		}
	}
	q.tail = info.LdqTail
}

// wakeupCandidate reports whether this entry is eligible for re-issue:
// address resolved, not yet executed or succeeded, address not virtual,
// not blocked, and (not uncacheable, or it is the ROB head with no
// outstanding store dependency).
func (e *LdqEntry) wakeupCandidate(robHeadAndNoDeps, blocked bool) bool {
	if !e.Valid || !e.Addr.Valid || e.Executed || e.Succeeded || e.Addr.IsVirtual || blocked {
		return false
	}
	if e.Addr.IsUncacheable && !robHeadAndNoDeps {
		return false
	}
	return true
}

// retryCandidate reports whether this entry is awaiting a TLB retry:
// address present but still virtual, and not blocked.
func (e *LdqEntry) retryCandidate(blocked bool) bool {
	return e.Valid && e.Addr.Valid && e.Addr.IsVirtual && !blocked
}

// WakeupIdx returns the oldest eligible load for re-issue via the
// age-priority encoder, given a per-entry function reporting whether the
// ROB-head/no-deps condition holds for uncacheable loads, and a second
// reporting whether block_load_mask (p1/p2, see Core.Tick) still covers
// the entry's index from a fire in either of the last two cycles.
func (q *Ldq) WakeupIdx(robHeadNoDeps, blocked func(idx uint32) bool) (uint32, bool) {
	var candidates uint64
	for i := range q.entries {
		if q.entries[i].wakeupCandidate(robHeadNoDeps(uint32(i)), blocked(uint32(i))) {
			candidates |= 1 << uint(i)
		}
	}
	return agePriorityOldest(candidates, q.head, q.n())
}

// RetryIdx returns the oldest load awaiting TLB retry.
func (q *Ldq) RetryIdx(blocked func(idx uint32) bool) (uint32, bool) {
	var candidates uint64
	for i := range q.entries {
		if q.entries[i].retryCandidate(blocked(uint32(i))) {
			candidates |= 1 << uint(i)
		}
	}
	return agePriorityOldest(candidates, q.head, q.n())
}

// Head/Tail expose the raw indices for invariant checks and branch saves.
func (q *Ldq) Head() uint32 { return q.head }
func (q *Ldq) Tail() uint32 { return q.tail }
func (q *Ldq) Len() int     { return len(q.entries) }

package lsu

// Counters accumulates the nine architectural CSR counters: signed/unsigned
// bounds-checked memory instructions (MCQ dequeues, loads and stores
// alike), bounds-store/bounds-clear/bounds-search counts, memory
// request count and total bytes, and cache hit/miss counts. They are
// updated strictly at dequeue time, never speculatively, so a
// branch-killed MCQ/BDQ entry never contributes.
type Counters struct {
	NumSignedInst   uint64
	NumUnsignedInst uint64
	NumBndStr       uint64
	NumBndClr       uint64
	NumBndSrch      uint64
	MemReq          uint64
	MemSize         uint64
	CacheHit        uint64
	CacheMiss       uint64
}

// LoadWYFY reloads the counters from a config payload on the initWYFY
// rising edge, the reconfiguration signal that lets a supervisor snapshot
// or restore counter state across a context switch.
func (c *Counters) LoadWYFY(payload Counters) {
	*c = payload
}

// stepWyfy samples ports.Csr.WyfyInit() and reloads the CSR counters on a
// rising edge of the level signal, the reconfiguration event tied to
// initWYFY: a supervisor raising the line snapshots/restores counter
// state across a context switch. A no-op when EnableWYFY is unset or no
// Csr port is wired, so existing callers that never populate Ports.Csr
// are unaffected.
func (c *Core) stepWyfy() {
	if !c.cfg.EnableWYFY || c.ports.Csr == nil {
		return
	}
	payload, level := c.ports.Csr.WyfyInit()
	if level && !c.wyfyLevel {
		c.csr.LoadWYFY(payload)
	}
	c.wyfyLevel = level
}

// recordMcqDequeue updates the signed/unsigned instruction counters when an
// MCQ entry dequeues having passed its bounds check.
func (c *Counters) recordMcqDequeue(signed bool) {
	if signed {
		c.NumSignedInst++
	} else {
		c.NumUnsignedInst++
	}
}

// recordBdqDequeue updates the bndstr/bndclr/bndsrch counters keyed on the
// dequeuing uop's class.
func (c *Counters) recordBdqDequeue(uopc UopClass) {
	switch uopc {
	case UopBoundsStore:
		c.NumBndStr++
	case UopBoundsLoad:
		c.NumBndSrch++
	default:
		c.NumBndClr++
	}
}

func (c *Counters) recordMemReq(size MemSize) {
	c.MemReq++
	c.MemSize += size.Bytes()
}

func (c *Counters) recordCacheResult(hit bool) {
	if hit {
		c.CacheHit++
	} else {
		c.CacheMiss++
	}
}

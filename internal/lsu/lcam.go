package lsu

// ByteMask is a per-byte validity mask for a memory access, up to 8 bytes
// (a double-word), generated from an address's low bits and the access
// size.
type ByteMask uint8

// GenByteMask returns the byte-enable mask for an access of size at addr,
// aligned within its containing double-word.
func GenByteMask(addr uint64, size MemSize) ByteMask {
	n := size.Bytes()
	lo := addr & 0x7
	var mask ByteMask
	for i := uint64(0); i < n; i++ {
		mask |= 1 << ((lo + i) & 0x7)
	}
	return mask
}

func overlaps(a, b ByteMask) bool { return a&b != 0 }
func subsetOf(a, b ByteMask) bool { return a&^b == 0 }

func sameDoubleWord(a, b uint64) bool { return a&^7 == b&^7 }
func sameCacheBlock(a, b uint64, blockBytes uint64) bool {
	mask := ^(blockBytes - 1)
	return a&mask == b&mask
}

// LcamOp describes the fired load or store LCAM scans against the
// in-flight LDQ/STQ state.
type LcamOp struct {
	IsStore   bool
	LdqIdx    uint32
	StqIdx    uint32
	PAddr     uint64
	Mask      ByteMask
	StDepMask uint64 // only meaningful when IsStore is false: stores older than this load
	Fence     bool
	Amo       bool
}

// LcamResult is everything the search produced for one fired op, to be
// consumed by writeback / commit.
type LcamResult struct {
	OrderFailLdq    uint64 // bitmask of LDQ indices whose order_fail must be set
	ExecuteIgnore   uint64 // bitmask of LDQ indices whose execute_ignore must be set
	KillDC          uint64 // bitmask of LDQ indices whose in-flight DC req must be s1-killed
	ForbidForward   uint64 // bitmask of LDQ indices forbidden from forwarding this cycle
	AddrMatches     uint64 // bitmask of STQ indices with an address match (bdcast for forward age logic)
	ForwardMatches  uint64 // bitmask of STQ indices fully subset-matching (eligible to forward)
}

const blockBytes = 64

// Lcam scans all LDQ entries (and, for loads, all STQ entries) against
// the fired op, implementing store<->load ordering, load<->load
// ordering, and load<->store forwarding candidate discovery. The release
// search is a distinct fire category ("release") driven separately
// by doReleaseSearch, not folded into every fired load/store.
func (c *Core) Lcam(op LcamOp) LcamResult {
	var res LcamResult
	if op.IsStore {
		c.lcamStoreSearch(op, &res)
	} else {
		c.lcamLoadSearch(op, &res)
	}
	return res
}

// doReleaseSearch implements the release fire category: any LDQ entry
// sharing addr's cache block becomes observed. Driven once per cycle
// from Core.Tick when ports.DCache.Release() reports a pending release,
// not as a side effect of an unrelated fired load or store.
func (c *Core) doReleaseSearch(addr uint64) {
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		e := c.ldq.At(i)
		if !e.Valid || !e.Addr.Valid || e.Addr.IsVirtual {
			continue
		}
		if sameCacheBlock(e.Addr.Bits, addr, blockBytes) {
			e.Observed = true
		}
	}
}

// lcamStoreSearch implements do_st_search: a fired store scans every LDQ
// entry younger than it (per the load's st_dep_mask bit for this store) for
// an overlapping, non-fence-violating access that was served without (or
// from the wrong) forwarding.
func (c *Core) lcamStoreSearch(op LcamOp, res *LcamResult) {
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		e := c.ldq.At(i)
		if !e.Valid || !e.Addr.Valid || e.Addr.IsVirtual {
			continue
		}
		if e.StDepMask&(1<<op.StqIdx) == 0 {
			continue
		}
		if !sameDoubleWord(e.Addr.Bits, op.PAddr) || !overlaps(GenByteMask(e.Addr.Bits, e.Uop.MemSize), op.Mask) {
			continue
		}
		forwardedFromThis := e.ForwardStdVal && e.ForwardStqIdx == op.StqIdx
		if forwardedFromThis {
			continue
		}
		if e.Succeeded {
			res.OrderFailLdq |= 1 << i
		} else {
			res.ExecuteIgnore |= 1 << i
		}
	}
}

// lcamLoadSearch implements do_ld_search: a fired load scans other LDQ
// entries for ordering hazards and every STQ entry it depends on for
// forwarding candidates.
func (c *Core) lcamLoadSearch(op LcamOp, res *LcamResult) {
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		if i == op.LdqIdx {
			continue
		}
		e := c.ldq.At(i)
		if !e.Valid || !e.Addr.Valid || e.Addr.IsVirtual {
			continue
		}
		if !sameDoubleWord(e.Addr.Bits, op.PAddr) || !overlaps(GenByteMask(e.Addr.Bits, e.Uop.MemSize), op.Mask) {
			continue
		}
		older := i != op.LdqIdx && isOlderLdq(i, op.LdqIdx, c.ldq.Head(), uint32(c.ldq.Len()))
		if older {
			if e.Observed && e.Executed {
				if e.Succeeded {
					res.OrderFailLdq |= 1 << op.LdqIdx
				} else {
					res.ExecuteIgnore |= 1 << op.LdqIdx
				}
			}
		} else {
			// A younger overlapping load that has not (or no longer)
			// executed forces the searcher to stand down: its own DC
			// request is s1-killed and it may not forward this cycle.
			if !e.Executed {
				res.KillDC |= 1 << op.LdqIdx
				res.ForbidForward |= 1 << op.LdqIdx
			}
		}
	}

	for i := uint32(0); i < uint32(c.stq.Len()); i++ {
		if op.StDepMask&(1<<i) == 0 {
			continue
		}
		e := c.stq.At(i)
		if !e.Valid || !e.Addr.Valid || e.Addr.IsVirtual {
			continue
		}
		if !sameDoubleWord(e.Addr.Bits, op.PAddr) {
			continue
		}
		stMask := GenByteMask(e.Addr.Bits, e.Uop.MemSize)
		switch {
		case op.Fence || op.Amo:
			res.AddrMatches |= 1 << i
			res.KillDC |= 1 << op.LdqIdx
		case subsetOf(op.Mask, stMask):
			res.ForwardMatches |= 1 << i
			res.AddrMatches |= 1 << i
		case overlaps(op.Mask, stMask):
			res.AddrMatches |= 1 << i
			res.KillDC |= 1 << op.LdqIdx
		}
	}
}

// isOlderLdq reports whether ldq index a is older than b given the
// queue's current head, by circular distance from head.
func isOlderLdq(a, b, head, n uint32) bool {
	dist := func(i uint32) uint32 {
		if i >= head {
			return i - head
		}
		return n - head + i
	}
	return dist(a) < dist(b)
}

// ForwardingAgeLogic selects the youngest store, among addrMatches, that
// is still older than the load (per youngestStqIdx at dispatch): an
// age-priority scan walking backward from youngestStqIdx toward stqHead,
// first (nearest) match wins.
func ForwardingAgeLogic(addrMatches uint64, youngestStqIdx, stqHead, n uint32) (uint32, bool) {
	if n == 0 || n > 64 {
		return 0, false
	}
	mask := uint64(1)<<n - 1
	addrMatches &= mask
	if addrMatches == 0 {
		return 0, false
	}
	// Walk backward from youngestStqIdx-1 toward stqHead; the first hit is
	// the nearest (youngest) store older than the load.
	i := youngestStqIdx
	for steps := uint32(0); steps < n; steps++ {
		if i == 0 {
			i = n - 1
		} else {
			i--
		}
		if addrMatches&(1<<i) != 0 {
			return i, true
		}
		if i == stqHead {
			break
		}
	}
	return 0, false
}

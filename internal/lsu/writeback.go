package lsu

// WritebackResult is what one lane's writeback step produces for the
// register-file/ROB-facing channels this cycle.
type WritebackResult struct {
	IrespValid bool
	IrespData  uint64
	FrespValid bool
	FrespData  uint64
	LdqIdx     uint32
}

// storeGen extracts the store-aligned bytes of data covered by mask,
// starting at the double-word shared by addr.
func storeGen(data uint64, mask ByteMask) uint64 {
	var out uint64
	for i := 0; i < 8; i++ {
		if mask&(1<<i) != 0 {
			shift := uint(i * 8)
			out |= data & (0xff << shift)
		}
	}
	return out
}

// loadGen extracts and sign/zero-extends a load's bytes from a
// double-word-aligned source word, given the load's own address low bits
// and size.
func loadGen(word uint64, addr uint64, size MemSize, signed bool) uint64 {
	shift := (addr & 0x7) * 8
	val := (word >> shift) & ((uint64(1) << (size.Bytes() * 8)) - 1)
	if !signed {
		return val
	}
	bits := size.Bytes() * 8
	signBit := uint64(1) << (bits - 1)
	if val&signBit != 0 {
		val |= ^uint64(0) << bits
	}
	return val
}

// writebackLoad applies one cycle's DCache response (or nack) to an LDQ
// entry, per 4.6: nacks clear executed and flag for re-wakeup; a clean
// response is suppressed (and re-armed) if execute_ignore was set by
// LCAM; otherwise it is presented on iresp/fresp and succeeded is set.
func (c *Core) writebackLoad(idx uint32, resp MemResp, nacked bool) (WritebackResult, bool) {
	e := c.ldq.At(idx)
	if nacked {
		e.Executed = false
		return WritebackResult{}, false
	}
	if !resp.Valid {
		return WritebackResult{}, false
	}
	if e.ExecuteIgnore {
		e.ExecuteIgnore = false
		e.Executed = false
		return WritebackResult{}, false
	}
	e.Succeeded = true
	e.DebugWbData = resp.Data
	wb := WritebackResult{LdqIdx: idx}
	if e.Uop.DstRType == RegFloat {
		wb.FrespValid = true
		wb.FrespData = resp.Data
	} else if e.Uop.DstRType == RegInt {
		wb.IrespValid = true
		wb.IrespData = resp.Data
	}
	return wb, true
}

// writebackStore applies a nack (rewinding stq_execute_head if the
// nacked index is older than the current head) or a successful AMO
// response (which also fires iresp).
func (c *Core) writebackStore(idx uint32, resp MemResp, nacked bool) (WritebackResult, bool) {
	if nacked {
		c.stq.RewindExecuteHead(idx)
		return WritebackResult{}, false
	}
	if !resp.Valid {
		return WritebackResult{}, false
	}
	e := c.stq.At(idx)
	e.Succeeded = true
	if e.Uop.IsAmo {
		return WritebackResult{IrespValid: true, IrespData: resp.Data}, true
	}
	return WritebackResult{}, true
}

// forwardFromStore implements the wb_forward_valid path: when LCAM chose
// forwarding and DC did not itself fire this cycle, synthesize the
// response via a store-generator feeding a load-generator, mark the load
// succeeded/forward_std_val/forward_stq_idx, and present iresp/fresp.
func (c *Core) forwardFromStore(ldqIdx, stqIdx uint32) (WritebackResult, bool) {
	l := c.ldq.At(ldqIdx)
	s := c.stq.At(stqIdx)
	if !s.Valid || !s.Data.Valid || !s.Addr.Valid {
		return WritebackResult{}, false
	}
	mask := GenByteMask(s.Addr.Bits, s.Uop.MemSize)
	word := storeGen(s.Data.Bits, mask)
	val := loadGen(word, l.Addr.Bits, l.Uop.MemSize, l.Uop.Signed)

	l.Succeeded = true
	l.ForwardStdVal = true
	l.ForwardStqIdx = stqIdx
	l.DebugWbData = val

	wb := WritebackResult{LdqIdx: ldqIdx}
	if l.Uop.DstRType == RegFloat {
		wb.FrespValid = true
		wb.FrespData = val
	} else if l.Uop.DstRType == RegInt {
		wb.IrespValid = true
		wb.IrespData = val
	}
	return wb, true
}

// SpecLdWakeup reports whether lane 0 should assert a speculative
// integer-load wakeup one cycle ahead of its response: a non-FP, non-x0
// destination load firing on lane 0.
func SpecLdWakeup(fire LaneWinner, uop MicroOp) bool {
	return fire.isLoadFire() && uop.DstRType == RegInt
}

// LdMiss reports the mispredicted-wakeup condition: a spec_ld_wakeup was
// asserted last cycle for ldqIdx but no response actually landed on lane
// 0 for that index this cycle.
func LdMiss(specLdWakeupLdqIdx uint32, specLdWakeupValid bool, actualLane0Idx uint32, actualLane0Valid bool) bool {
	return specLdWakeupValid && !(actualLane0Valid && actualLane0Idx == specLdWakeupLdqIdx)
}

package lsu

import "fmt"

// CheckInvariants verifies the structural invariants every quiescent
// cycle boundary must satisfy. Tick-level tests call it after their
// scenario; a non-nil
// error names the first violated invariant. It is a diagnostic walk over
// queue state, never part of the modeled hardware.
func (c *Core) CheckInvariants() error {
	if err := c.checkLdqRange(); err != nil {
		return err
	}
	if err := c.checkStqExecuteHead(); err != nil {
		return err
	}
	if err := c.checkLdqCompletion(); err != nil {
		return err
	}
	if err := c.checkStoreMasks(); err != nil {
		return err
	}
	return nil
}

// ringContains reports whether slot i lies in [head, tail) of an n-slot
// ring. head == tail is the empty queue.
func ringContains(head, tail, i uint32) bool {
	if head <= tail {
		return i >= head && i < tail
	}
	return i >= head || i < tail
}

// checkLdqRange: ldq[head..tail) are exactly the valid entries.
func (c *Core) checkLdqRange() error {
	head, tail := c.ldq.Head(), c.ldq.Tail()
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		in := ringContains(head, tail, i)
		valid := c.ldq.At(i).Valid
		if valid && !in {
			return fmt.Errorf("lsu: ldq[%d] valid outside [head=%d, tail=%d)", i, head, tail)
		}
		if !valid && in {
			return fmt.Errorf("lsu: ldq[%d] invalid inside [head=%d, tail=%d)", i, head, tail)
		}
	}
	return nil
}

// checkStqExecuteHead: stq_execute_head lies within [head, tail] and the
// slot at it is valid or equals head/tail.
func (c *Core) checkStqExecuteHead() error {
	head, tail, exec := c.stq.Head(), c.stq.Tail(), c.stq.ExecuteHead()
	n := uint32(c.stq.Len())
	dist := func(i uint32) uint32 {
		if i >= head {
			return i - head
		}
		return n - head + i
	}
	if dist(exec) > dist(tail) {
		return fmt.Errorf("lsu: stq_execute_head=%d outside [head=%d, tail=%d]", exec, head, tail)
	}
	if exec != head && exec != tail && !c.stq.At(exec).Valid {
		return fmt.Errorf("lsu: stq_execute_head=%d points at an invalid slot", exec)
	}
	return nil
}

// checkLdqCompletion: a succeeded load must have executed or forwarded.
func (c *Core) checkLdqCompletion() error {
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		e := c.ldq.At(i)
		if e.Valid && e.Succeeded && !e.Executed && !e.ForwardStdVal {
			return fmt.Errorf("lsu: ldq[%d] succeeded without executed or forward_std_val", i)
		}
	}
	return nil
}

// checkStoreMasks: live_store_mask and every load's st_dep_mask only
// name STQ slots currently holding a live store.
func (c *Core) checkStoreMasks() error {
	var validStores uint64
	for i := uint32(0); i < uint32(c.stq.Len()); i++ {
		if c.stq.At(i).Valid {
			validStores |= 1 << i
		}
	}
	if extra := c.liveStoreMask &^ validStores; extra != 0 {
		return fmt.Errorf("lsu: live_store_mask %#x names dead STQ slots %#x", c.liveStoreMask, extra)
	}
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		e := c.ldq.At(i)
		if !e.Valid {
			continue
		}
		if extra := e.StDepMask &^ validStores; extra != 0 {
			return fmt.Errorf("lsu: ldq[%d].st_dep_mask %#x names dead STQ slots %#x", i, e.StDepMask, extra)
		}
	}
	return nil
}

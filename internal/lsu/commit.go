package lsu

// Commit walks the ROB's commit stream left-to-right: STQ slots are
// marked committed, LDQ slots at the head are dequeued (asserting they
// finished via execution or forwarding), and the corresponding MCQ/BDQ
// slot for any non-fence memory uop is marked committed alongside it.
func (c *Core) Commit(signals CommitSignals, width int) {
	for w := 0; w < width; w++ {
		if !signals.Valids[w] {
			continue
		}
		uop := signals.Uops[w]

		switch {
		case uop.UsesStq:
			c.stq.At(uop.StqIdx).Committed = true
		case uop.UsesLdq:
			e := c.ldq.At(uop.LdqIdx)
			if !e.Executed && !e.ForwardStdVal {
				panic("lsu: commit of an LDQ entry that neither executed nor forwarded")
			}
			if !e.Succeeded {
				panic("lsu: commit of an LDQ entry that never succeeded")
			}
			c.ldq.Dequeue()
		}

		if (uop.UsesLdq || uop.UsesStq) && !uop.IsFence && !uop.IsFencei {
			c.mcq.Commit(uop.McqIdx)
		}
		if uop.UsesBdq {
			c.bdq.Commit(uop.BdqIdx)
		}
	}
	c.stq.AdvanceCommitHead()
}

// CommitFenceDequeue drains the STQ head once its committed store has
// succeeded or, for a fence, once the caller reports it ordered; on a
// fence dequeue it also advances stq_execute_head. Each drained slot's
// bit leaves live_store_mask and every load's st_dep_mask, so a later
// re-allocation of the slot never masquerades as the departed store.
func (c *Core) CommitFenceDequeue(isOrdered func(MicroOp) bool) {
	for {
		idx, dequeued, _ := c.stq.TryDequeueHead(isOrdered)
		if !dequeued {
			return
		}
		c.clearStoreMaskBit(idx)
	}
}

// clearStoreMaskBit removes a departed STQ slot from live_store_mask and
// from every in-flight load's st_dep_mask.
func (c *Core) clearStoreMaskBit(idx uint32) {
	bit := uint64(1) << idx
	c.liveStoreMask &^= bit
	for i := uint32(0); i < uint32(c.ldq.Len()); i++ {
		e := c.ldq.At(i)
		if e.Valid {
			e.StDepMask &^= bit
		}
	}
}

// syncLiveStoreMask rebuilds live_store_mask from the STQ's surviving
// valid slots after a squash rewound the queue.
func (c *Core) syncLiveStoreMask() {
	var mask uint64
	for i := uint32(0); i < uint32(c.stq.Len()); i++ {
		if c.stq.At(i).Valid {
			mask |= 1 << i
		}
	}
	c.liveStoreMask = mask
}

// HandleBranchMispredict squashes speculative state: on a valid,
// mispredicting, non-exception branch resolution, every queue's tail is
// rewound to the saved index and every slot whose br_mask intersects the
// resolved branch becomes invalid. A committed STQ entry among the
// killed set is a fatal invariant violation (asserted inside Stq).
func (c *Core) HandleBranchMispredict(info BrInfo) {
	if !info.Valid || !info.Mispredict {
		return
	}
	c.ldq.KillByBranch(info)
	c.stq.KillByBranch(info)
	c.mcq.KillByBranch(info)
	c.bdq.KillByBranch(info)
	c.syncLiveStoreMask()
}

// HandleException performs exception recovery: LDQ is fully
// reset, STQ's tail rewinds to its commit_head with non-committed,
// non-succeeded stores invalidated, and MCQ/BDQ are fully reset.
func (c *Core) HandleException() {
	c.ldq.Reset()
	c.stq.Reset(c.stq.CommitHead(), true)
	c.mcq.Reset()
	c.bdq.Reset()
	c.syncLiveStoreMask()
}

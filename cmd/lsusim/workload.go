package main

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/opensilicon/suprax-lsu/internal/branchpred"
	"github.com/opensilicon/suprax-lsu/internal/hbt"
	"github.com/opensilicon/suprax-lsu/internal/lsu"
	"github.com/opensilicon/suprax-lsu/internal/lsu/lsutest"
)

// pointer is one synthetic pointer the workload issues bounds-checked
// loads and bounds-store ops against; addrs are chosen with distinct
// PAC values (bits above 45) so each lands in a different HBT row.
type pointer struct {
	vaddr      uint64
	registered bool
}

// workload drives a Core through a small scripted program: it
// registers a handful of pointers with the bounds co-engine via BDQ
// bounds-store ops, then issues a round-robin stream of bounds-checked
// loads against them (plus one pointer that is deliberately never
// registered, so the MCQ eventually exhausts its probes and reports a
// bounds failure, which the workload turns into an exception cycle),
// while a branch predictor resolves an unrelated stream of branches
// every few cycles to exercise the mispredict path alongside the
// memory traffic.
type workload struct {
	core     *lsu.Core
	rob      *lsutest.Rob
	agu      *lsutest.Agu
	log      zerolog.Logger
	resolver *branchpred.Resolver
	rng      *rand.Rand

	pointers []pointer
	script   int // index into the round-robin load schedule
	memWidth int // lanes passed to Core.Tick each cycle (only lane 0 is ever driven)

	pending     lsu.CommitSignals // presented to Commit() next Tick
	excPending  bool              // an exception is latched for next Tick
	mispredicts int
}

func newWorkload(cfg lsu.Config, table hbt.Table, log zerolog.Logger) *workload {
	rob := &lsutest.Rob{}
	agu := &lsutest.Agu{}
	dcache := &lsutest.DCache{}
	tlb := &lsutest.Tlb{}
	hella := &lsutest.Hella{}

	// bnd_check only accepts a probe whose stored descriptor actually
	// carries this pointer's PAC; occ_check accepts the first empty row.
	check := func(resp hbt.Descriptor, vaddr uint64, way int) bool {
		return resp.Valid && resp.Data == hbt.PAC(vaddr)
	}
	occ := func(resp hbt.Descriptor, vaddr uint64, way int) bool {
		return !resp.Valid
	}

	core, err := lsu.NewCore(cfg, lsu.Ports{Rob: rob, Agu: agu, DCache: dcache, Tlb: tlb, Hella: hella, Hbt: table}, check, occ, log)
	if err != nil {
		panic(err) // cfg came from lsu.DefaultConfig or a validated file; a failure here is a programming error
	}

	return &workload{
		core:     core,
		rob:      rob,
		agu:      agu,
		log:      log,
		resolver: branchpred.NewResolver(),
		rng:      rand.New(rand.NewSource(1)),
		memWidth: cfg.MemWidth,
		pointers: []pointer{
			{vaddr: 0x1000},
			{vaddr: (uint64(1) << 45) | 0x2000},
			{vaddr: (uint64(2) << 45) | 0x3000},
			{vaddr: (uint64(3) << 45) | 0x4000}, // never registered: exercises bounds exhaustion
		},
	}
}

// step advances the simulated core by one cycle: it first applies any
// exception latched by the previous cycle's bounds failure, resolves
// an incidental branch, drives this cycle's scripted dispatch, ticks
// the core, and finally checks whether a bounds probe just exhausted
// so the next cycle's exception can be scheduled.
func (w *workload) step(cycle int) {
	w.rob.ExceptionVal = w.excPending
	w.excPending = false

	w.agu.Lanes[0] = lsu.AguRequest{}
	if w.rob.ExceptionVal {
		// Every LDQ/MCQ/BDQ entry is about to be wiped by HandleException;
		// presenting a commit for indices allocated before the reset would
		// race it, so this cycle neither commits nor dispatches.
		w.rob.CommitVal = lsu.CommitSignals{}
		w.pending = lsu.CommitSignals{}
		w.core.Tick(nil)
		return
	}

	w.rob.CommitVal = w.pending
	w.pending = lsu.CommitSignals{}

	w.resolveBranch(cycle)

	lane := w.buildLane(cycle)
	lanes := make([]lsu.DispatchLane, w.memWidth)
	lanes[0] = lane
	results := w.core.Tick(lanes)

	if lane.Valid && results[0].Allocated {
		w.schedule(lane.Uop, results[0])
	}

	if _, failed := w.core.McqFailedException(); failed {
		w.log.Warn().Msg("MCQ bounds probe exhausted, raising exception")
		w.excPending = true
	}
	if _, failed := w.core.BdqFailedException(); failed {
		w.log.Warn().Msg("BDQ occupancy probe exhausted, raising exception")
		w.excPending = true
	}
}

// resolveBranch predicts and "resolves" one scripted branch every 5th
// cycle. The outcome has no bearing on the memory stream (br_mask is
// always 0 for the workload's dispatched uops), so a misprediction
// exercises HandleBranchMispredict's full scan-and-kill pass as a
// no-op squash rather than corrupting in-flight queue state; precise
// kill-vs-survive behavior is covered by the package's own tests.
func (w *workload) resolveBranch(cycle int) {
	if cycle%5 != 0 {
		w.rob.BrInfoVal = lsu.BrInfo{}
		return
	}
	pc := uint64(cycle) * 4
	actual := w.rng.Intn(4) != 0
	info := w.resolver.Resolve(branchpred.Branch{PC: pc, Tag: 0, ActualTaken: actual}, 0, 0, 0, 0)
	tails := w.core.Tails()
	info.LdqTail, info.StqTail, info.McqTail, info.BdqTail = tails.Ldq, tails.Stq, tails.Mcq, tails.Bdq
	if info.Mispredict {
		w.mispredicts++
	}
	w.rob.BrInfoVal = info
}

// buildLane picks this cycle's dispatch: the first len(pointers)-1 cycles
// register every pointer but the last with the bounds table, afterward
// the schedule round-robins bounds-checked loads across all of them
// (odd-indexed pointers signed, even unsigned).
func (w *workload) buildLane(cycle int) lsu.DispatchLane {
	if cycle < len(w.pointers)-1 {
		p := &w.pointers[cycle]
		p.registered = true
		w.agu.Lanes[0] = lsu.AguRequest{Valid: true, Addr: p.vaddr, Data: hbt.PAC(p.vaddr)}
		return lsu.DispatchLane{Valid: true, Uop: lsu.MicroOp{
			Uopc:     lsu.UopBoundsStore,
			UsesBdq:  true,
			DstRType: lsu.RegNone,
		}}
	}

	idx := w.script % len(w.pointers)
	w.script++
	p := w.pointers[idx]
	w.agu.Lanes[0] = lsu.AguRequest{Valid: true, Addr: p.vaddr}
	return lsu.DispatchLane{Valid: true, Uop: lsu.MicroOp{
		Uopc:     lsu.UopLoad,
		UsesLdq:  true,
		MemSize:  lsu.MemSizeDouble,
		Signed:   idx%2 == 1,
		DstRType: lsu.RegInt,
	}}
}

// schedule records the uop (with its allocated queue indices) to be
// presented to Commit() on the next Tick: everything this workload
// dispatches finishes in the same cycle it was serviced (the TLB/DCache
// doubles never miss or nack), so a one-cycle commit latency always
// suffices.
func (w *workload) schedule(uop lsu.MicroOp, res lsu.DispatchResult) {
	uop.LdqIdx, uop.StqIdx, uop.McqIdx, uop.BdqIdx = res.LdqIdx, res.StqIdx, res.McqIdx, res.BdqIdx
	w.pending = lsu.CommitSignals{Valids: [8]bool{true}, Uops: [8]lsu.MicroOp{uop}}
}

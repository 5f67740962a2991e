// Package lsutest provides small scriptable test doubles for the LSU's
// external-collaborator ports (RobPort, AguPort, DCachePort, TlbPort,
// HellaClient), so cmd/lsusim can drive a Core without a real pipeline
// attached. internal/lsu's own tests cannot import this package (it
// imports internal/lsu) and carry their own in-package fakes. Every double is a plain
// struct a test configures field-by-field before each Core.Tick, in
// the same spirit as the corpus's other fake backends (a Memory is to
// a block device what these are to a superscalar pipeline).
package lsutest

import "github.com/opensilicon/suprax-lsu/internal/lsu"

// Rob is a scriptable lsu.RobPort: a caller sets the fields it wants
// this cycle, calls Core.Tick, then resets transient fields (BrInfoVal,
// ExceptionVal) before scripting the next cycle.
type Rob struct {
	BrInfoVal         lsu.BrInfo
	RobHeadIdxVal     uint32
	RobPnrIdxVal      uint32
	ExceptionVal      bool
	CommitVal         lsu.CommitSignals
	CommitLoadAtHead  bool
	FenceDmemVal      bool
}

func (r *Rob) BrInfo() lsu.BrInfo            { return r.BrInfoVal }
func (r *Rob) RobHeadIdx() uint32            { return r.RobHeadIdxVal }
func (r *Rob) RobPnrIdx() uint32             { return r.RobPnrIdxVal }
func (r *Rob) Exception() bool               { return r.ExceptionVal }
func (r *Rob) Commit() lsu.CommitSignals     { return r.CommitVal }
func (r *Rob) CommitLoadAtRobHead() bool     { return r.CommitLoadAtHead }
func (r *Rob) FenceDmem() bool               { return r.FenceDmemVal }

// Agu is a scriptable lsu.AguPort: Lanes[lane] is returned verbatim by
// Req, so a test can preload the address/data a real AGU would have
// computed for each dispatched lane this cycle.
type Agu struct {
	Lanes [8]lsu.AguRequest
}

func (a *Agu) Req(lane int) lsu.AguRequest { return a.Lanes[lane] }

// Tlb is a scriptable lsu.TlbPort. By default it is a pass-through
// identity map (PAddr == VAddr, always ready, always cacheable);
// Misses/Faults let a test inject a one-shot miss or fault keyed by
// lane for the next Req call on that lane.
type Tlb struct {
	Misses map[int]bool
	Faults map[int]lsu.TlbResp

	lastSfence lsu.SfenceReq
	killed     map[int]bool
}

func (t *Tlb) Req(lane int, vaddr uint64, size lsu.MemSize, cmd lsu.MemCmd, passthrough bool) lsu.TlbResp {
	if t.Faults != nil {
		if resp, ok := t.Faults[lane]; ok {
			delete(t.Faults, lane)
			return resp
		}
	}
	if t.Misses != nil && t.Misses[lane] {
		delete(t.Misses, lane)
		return lsu.TlbResp{Miss: true, Ready: true}
	}
	return lsu.TlbResp{PAddr: vaddr, Cacheable: true, Ready: true}
}

func (t *Tlb) Kill(lane int) {
	if t.killed == nil {
		t.killed = make(map[int]bool)
	}
	t.killed[lane] = true
}

func (t *Tlb) Sfence(req lsu.SfenceReq) { t.lastSfence = req }

// DCache is a scriptable lsu.DCachePort backed by a flat byte-addressed
// map, so a test can both observe what the core issued and preload the
// bytes a load should read back. Nacks[lane] forces exactly one refusal
// for that lane's next Req call.
type DCache struct {
	Mem       map[uint64]uint64 // PAddr (size-aligned) -> little-endian value
	Nacks     map[int]bool
	LastReq   [8]lsu.MemReq
	released  []lsu.ReleaseInfo
}

func (d *DCache) Req(lane int, req lsu.MemReq) (lsu.MemResp, bool) {
	d.LastReq[lane] = req
	if !req.Valid {
		return lsu.MemResp{}, false
	}
	if d.Nacks != nil && d.Nacks[lane] {
		delete(d.Nacks, lane)
		return lsu.MemResp{}, false
	}
	if d.Mem == nil {
		d.Mem = make(map[uint64]uint64)
	}
	if req.Cmd == lsu.MemCmdWrite || req.Cmd == lsu.MemCmdReadWrite {
		d.Mem[req.PAddr] = req.Data
	}
	return lsu.MemResp{Valid: true, Data: d.Mem[req.PAddr]}, true
}

func (d *DCache) SKill(lane int) {}

func (d *DCache) Nack(lane int) (lsu.MemNack, bool) { return lsu.MemNack{}, false }

func (d *DCache) Release() (lsu.ReleaseInfo, bool) {
	if len(d.released) == 0 {
		return lsu.ReleaseInfo{}, false
	}
	r := d.released[0]
	d.released = d.released[1:]
	return r, true
}

// QueueRelease lets a test schedule a future Release() response.
func (d *DCache) QueueRelease(r lsu.ReleaseInfo) { d.released = append(d.released, r) }

// Hella is a scriptable lsu.HellaClient: it issues only the requests
// queued with QueueRequest, in order, and records every response the
// shim calls back with in Resps.
type Hella struct {
	pending []lsu.HellaRequest
	Resps   []lsu.HellaResponse
}

func (h *Hella) Req() (lsu.HellaRequest, bool) {
	if len(h.pending) == 0 {
		return lsu.HellaRequest{}, false
	}
	r := h.pending[0]
	h.pending = h.pending[1:]
	return r, true
}

func (h *Hella) S2Nack()                        {}
func (h *Hella) S2Xcpt(cause lsu.ExceptionCause) {}
func (h *Hella) Resp(r lsu.HellaResponse)        { h.Resps = append(h.Resps, r) }

// QueueRequest schedules a future Req() return for the hella shim to pick up.
func (h *Hella) QueueRequest(r lsu.HellaRequest) { h.pending = append(h.pending, r) }

// Csr is a scriptable lsu.CsrPort: Level/Payload are returned verbatim,
// letting a test drive a reconfiguration rising edge across successive
// Core.Tick calls by flipping Level between them.
type Csr struct {
	Payload lsu.Counters
	Level   bool
}

func (c *Csr) WyfyInit() (lsu.Counters, bool) { return c.Payload, c.Level }

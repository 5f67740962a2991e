package lsu

import "github.com/opensilicon/suprax-lsu/internal/hbt"

// This file defines the external-collaborator boundary: the LSU core
// never reaches into the ROB, AGU, DCache, DTLB, hella client, or bounds
// table directly — it only ever calls through these interfaces, each
// implemented by a caller (a real pipeline, or a test double under
// internal/lsu/lsutest).

// CommitSignals is the per-lane commit stream from the ROB.
type CommitSignals struct {
	Valids [8]bool // indexed by core lane; only [:CoreWidth] is meaningful
	Uops   [8]MicroOp
}

// RobPort is the ROB-facing interface.
type RobPort interface {
	BrInfo() BrInfo
	RobHeadIdx() uint32
	RobPnrIdx() uint32
	Exception() bool
	Commit() CommitSignals
	CommitLoadAtRobHead() bool
	FenceDmem() bool
}

// AguRequest is what the AGU reports back for a fired lane: the computed
// effective address, any store data, and a same-cycle alignment fault.
type AguRequest struct {
	Valid    bool
	Addr     uint64
	Data     uint64
	Mxcpt    bool // misalignment fault, reported by the AGU
	IsSfence bool
}

// AguPort delivers per-lane address-generation results.
type AguPort interface {
	Req(lane int) AguRequest
}

// MemReq is one lane's request to the DTLB/DCache.
type MemReq struct {
	Valid    bool
	VAddr    uint64
	PAddr    uint64
	Size     MemSize
	Cmd      MemCmd
	Data     uint64
	IsHella  bool
	IsBounds bool // synthetic bounds micro-op
}

// MemResp is a same-or-later-cycle DCache response.
type MemResp struct {
	Valid   bool
	Data    uint64
	IsHella bool
}

// MemNack reports a DCache refusal that must be retried (Glossary "Nack").
type MemNack struct {
	Valid   bool
	IsHella bool
}

// ReleaseInfo is a cache line becoming externally observable (Glossary
// "Release").
type ReleaseInfo struct {
	Valid bool
	Addr  uint64
}

// DCachePort is the data-cache-facing interface.
type DCachePort interface {
	Req(lane int, req MemReq) (MemResp, bool)
	SKill(lane int)
	Nack(lane int) (MemNack, bool)
	Release() (ReleaseInfo, bool)
}

// TlbResp is the DTLB's same-cycle translation result.
type TlbResp struct {
	PAddr       uint64
	Miss        bool
	PageFaultLd bool
	PageFaultSt bool
	AccessFaultLd bool
	AccessFaultSt bool
	Cacheable   bool
	Ready       bool
}

// SfenceReq carries the operands of an sfence.vma-style request.
type SfenceReq struct {
	Valid bool
	Rs1   bool
	Rs2   bool
	Addr  uint64
}

// TlbPort is the DTLB-facing interface.
type TlbPort interface {
	Req(lane int, vaddr uint64, size MemSize, cmd MemCmd, passthrough bool) TlbResp
	Kill(lane int)
	Sfence(req SfenceReq)
}

// HellaRequest is a scalar (non-pipelined) request from the hella client.
type HellaRequest struct {
	Valid bool
	Addr  uint64
	Data  uint64
	Size  MemSize
	Cmd   MemCmd
	Tag   uint64
}

// HellaResponse is what the shim reports back to the client.
type HellaResponse struct {
	Data uint64
	Addr uint64
	Tag  uint64
	Cmd  MemCmd
	Size MemSize
}

// HellaClient is the client-facing interface; the shim calls Req to pull
// work and Resp/S2Nack/S2Xcpt to push results back.
type HellaClient interface {
	Req() (HellaRequest, bool)
	S2Nack()
	S2Xcpt(cause ExceptionCause)
	Resp(r HellaResponse)
}

// CsrPort is the CSR-file-facing interface: it reports the initWYFY
// reconfiguration level signal and the counter payload to load on its
// rising edge: on reconfiguration, the counters are loaded from the
// config payload.
type CsrPort interface {
	WyfyInit() (payload Counters, level bool)
}

// Ports bundles every external collaborator a Core needs.
type Ports struct {
	Rob    RobPort
	Agu    AguPort
	DCache DCachePort
	Tlb    TlbPort
	Hella  HellaClient
	Hbt    hbt.Table
	Csr    CsrPort // optional: only consulted when Config.EnableWYFY is set
}

package lsu

// buildMemReq constructs the per-lane request to the DCache, gated by
// the rule that load/retry only fire DC when neither a TLB miss nor an
// uncacheable translation occurred; store-commit uses the already-queued
// physical address rather than a fresh translation.
func buildMemReq(w LaneWinner, tlbResp TlbResp, size MemSize, cmd MemCmd, data uint64, isHella, isBounds bool) MemReq {
	if !w.Fired || !w.Resources().dc {
		return MemReq{}
	}
	switch w.Category {
	case FireLoadIncoming, FireLoadRetry, FireLoadWakeup:
		if tlbResp.Miss || !tlbResp.Cacheable {
			return MemReq{}
		}
	}
	return MemReq{
		Valid:    true,
		PAddr:    tlbResp.PAddr,
		Size:     size,
		Cmd:      cmd,
		Data:     data,
		IsHella:  isHella,
		IsBounds: isBounds,
	}
}

// issueDCache drives the per-lane DCache requests this cycle and records
// hit/miss and request-size CSR activity. The final bool reports, for a
// store-commit lane, whether DC accepted the request — the caller
// advances stq_execute_head only on that signal.
func (c *Core) issueDCache(lane int, req MemReq) (MemResp, MemNack, bool) {
	if !req.Valid {
		return MemResp{}, MemNack{}, false
	}
	c.csr.recordMemReq(req.Size)
	resp, fired := c.ports.DCache.Req(lane, req)
	if !fired {
		nack, isNack := c.ports.DCache.Nack(lane)
		if isNack {
			return MemResp{}, nack, false
		}
		return MemResp{}, MemNack{}, false
	}
	c.csr.recordCacheResult(resp.Valid)
	return resp, MemNack{}, true
}

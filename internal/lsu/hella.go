package lsu

// HellaState is the six-state sequencer servicing one scalar request at
// a time through the shared memory port, without starving pipelined
// traffic beyond one slot per cycle.
type HellaState uint8

const (
	HellaReady HellaState = iota
	HellaS1
	HellaS2
	HellaS2Nack
	HellaWait
	HellaReplay
	HellaDead
)

// Hella holds the shim's sequencer state and the one in-flight request
// it is servicing.
type Hella struct {
	state HellaState
	req   HellaRequest
}

func newHella() *Hella { return &Hella{state: HellaReady} }

// Step advances the hella sequencer by one cycle. client is consulted to
// pull a new request (h_ready) and to push exceptions/nacks/responses
// back once they are known; fired reports whether this step wants to
// issue a TLB+DC request this cycle (only from h_s1; h_replay re-issues by
// moving back to h_s1 for the next step), and req is that request.
func (h *Hella) Step(client HellaClient, tlbResp TlbResp, tlbMiss bool, memResp MemResp, nacked bool, excepted bool, cause ExceptionCause) (fired bool, req HellaRequest) {
	switch h.state {
	case HellaReady:
		r, ok := client.Req()
		if ok {
			h.req = r
			h.state = HellaS1
		}
		return false, HellaRequest{}

	case HellaS1:
		h.state = HellaS2
		return true, h.req

	case HellaS2:
		if excepted {
			client.S2Xcpt(cause)
			h.state = HellaDead
			return false, HellaRequest{}
		}
		if tlbMiss || nacked {
			h.state = HellaS2Nack
			return false, HellaRequest{}
		}
		h.state = HellaWait
		return false, HellaRequest{}

	case HellaS2Nack:
		client.S2Nack()
		h.state = HellaReplay
		return false, HellaRequest{}

	case HellaWait:
		if memResp.Valid && memResp.IsHella {
			client.Resp(HellaResponse{
				Data: memResp.Data,
				Addr: h.req.Addr,
				Tag:  h.req.Tag,
				Cmd:  h.req.Cmd,
				Size: h.req.Size,
			})
			h.state = HellaReady
		}
		return false, HellaRequest{}

	case HellaReplay:
		h.state = HellaS1
		return false, HellaRequest{}

	case HellaDead:
		if memResp.Valid && memResp.IsHella {
			h.state = HellaReady
		}
		return false, HellaRequest{}
	}
	return false, HellaRequest{}
}

func (h *Hella) State() HellaState { return h.state }

// hellaLane is the physical port the hella shim issues through: a
// dedicated slot past the ordinary memWidth lanes, since hella_incoming/
// hella_wakeup are scalar requests with no AGU-delivered address and no
// dispatch-width lane of their own to contend for.
func (c *Core) hellaLane() int { return c.cfg.MemWidth }

// stepHella advances the hella sequencer exactly once per cycle. Firing
// (the h_s1->h_s2 transition) issues the TLB+DCache request this same
// cycle and latches the outcome, mirroring tlb.go's latchException
// one-cycle-later pattern: Step's h_s2 branch examines what an issue
// produced, not what is happening on the call that fires it. The
// TLB-side latch (miss/nack/exception) is sampled exactly once, by that
// h_s2 call; the DCache-side latch (memResp) is sampled later still, by
// whichever cycle finds the sequencer in h_wait/h_dead, so it is held
// until that cycle actually consumes it.
func (c *Core) stepHella(results []DispatchResult) {
	lane := c.hellaLane()
	stateBefore := c.hel.State()
	waiting := stateBefore == HellaWait || stateBefore == HellaDead

	fired, req := c.hel.Step(c.ports.Hella, c.hellaLastTlbResp, c.hellaLastTlbMiss, c.hellaLastMemResp, c.hellaLastNacked, c.hellaLastExcepted, c.hellaLastCause)

	c.hellaLastTlbResp = TlbResp{}
	c.hellaLastTlbMiss = false
	c.hellaLastNacked = false
	c.hellaLastExcepted = false
	c.hellaLastCause = CauseNone
	if waiting {
		c.hellaLastMemResp = MemResp{}
	}

	if !fired {
		return
	}

	isStore := req.Cmd != MemCmdRead
	tlbResp := c.ports.Tlb.Req(lane, req.Addr, req.Size, req.Cmd, false)
	cause := tlbExceptionCause(tlbResp, false, isStore)
	if cause != CauseNone {
		c.hellaLastExcepted = true
		c.hellaLastCause = cause
		return
	}
	if tlbResp.Miss {
		c.hellaLastTlbResp = tlbResp
		c.hellaLastTlbMiss = true
		return
	}

	memReq := buildMemReq(LaneWinner{Fired: true, Category: FireHellaIncoming}, tlbResp, req.Size, req.Cmd, req.Data, true, false)
	resp, nack, _ := c.issueDCache(lane, memReq)
	resp.IsHella = true

	c.hellaLastTlbResp = tlbResp
	c.hellaLastNacked = nack.Valid
	c.hellaLastMemResp = resp
}

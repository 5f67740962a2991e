package branchpred

import "github.com/opensilicon/suprax-lsu/internal/lsu"

// Branch is one scripted branch event a driver feeds to Resolver: the
// PC and hardware context a real fetch would have carried, the brMask
// bit it occupies, and the ground-truth direction it actually resolves
// to (as if execution had just settled it).
type Branch struct {
	PC          uint64
	Ctx         uint8
	Tag         uint64
	ActualTaken bool
}

// Resolver turns a stream of Branch events into lsu.BrInfo signals,
// training Predictor along the way so mispredictions become rarer as a
// simulated program runs, the way a real branch unit's accuracy
// improves over a run. It does not itself decide which queue tails to
// report on misprediction; the driver supplies those because only it
// knows where the core's tails stood when the branch was fetched.
type Resolver struct {
	pred *Predictor
}

// NewResolver builds a Resolver around a freshly initialized Predictor.
func NewResolver() *Resolver {
	return &Resolver{pred: New()}
}

// Resolve predicts b's direction, compares it against b.ActualTaken to
// decide Mispredict, trains the predictor on the real outcome, and
// returns the lsu.BrInfo a driver can hand straight to Core.Tick via
// its RobPort.
func (r *Resolver) Resolve(b Branch, ldqTail, stqTail, mcqTail, bdqTail uint32) lsu.BrInfo {
	predicted := r.pred.Predict(b.PC, b.Ctx)
	mispredict := predicted.Taken != b.ActualTaken
	r.pred.OnMispredict(b.PC, b.Ctx, b.ActualTaken)
	return lsu.BrInfo{
		Valid:      true,
		Mispredict: mispredict,
		Tag:        b.Tag,
		LdqTail:    ldqTail,
		StqTail:    stqTail,
		McqTail:    mcqTail,
		BdqTail:    bdqTail,
	}
}

// Stats exposes the underlying Predictor's occupancy snapshot for
// diagnostics.
func (r *Resolver) Stats() Stats {
	return r.pred.Stats()
}

package lsu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVaddrFromIncoming_StripsPacBits(t *testing.T) {
	pac := uint64(0x1f) << 45
	vaddr := uint64(0x1234)
	assert.Equal(t, vaddr, vaddrFromIncoming(pac|vaddr))
}

func TestTlbExceptionCause(t *testing.T) {
	cases := []struct {
		name    string
		resp    TlbResp
		mxcpt   bool
		isStore bool
		want    ExceptionCause
	}{
		{"clean load", TlbResp{}, false, false, CauseNone},
		{"misaligned store", TlbResp{}, true, true, CauseMisalignedStore},
		{"misaligned load", TlbResp{}, true, false, CauseMisalignedLoad},
		{"page fault store", TlbResp{PageFaultSt: true}, false, true, CausePageFaultStore},
		{"page fault load", TlbResp{PageFaultLd: true}, false, false, CausePageFaultLoad},
		{"access fault store", TlbResp{AccessFaultSt: true}, false, true, CauseAccessFaultStore},
		{"access fault load", TlbResp{AccessFaultLd: true}, false, false, CauseAccessFaultLoad},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, tlbExceptionCause(c.resp, c.mxcpt, c.isStore))
		})
	}
}

func TestLatchException_OldestWins(t *testing.T) {
	robHead := uint32(10)
	candidates := []LatchedException{
		{Valid: true, Cause: CausePageFaultLoad, RobIdx: 14},
		{Valid: true, Cause: CauseMisalignedStore, RobIdx: 11}, // oldest relative to head
		{Valid: false, Cause: CauseAccessFaultLoad, RobIdx: 10},
	}
	best := latchException(robHead, candidates)
	assert.Equal(t, CauseMisalignedStore, best.Cause)
	assert.Equal(t, uint32(11), best.RobIdx)
}

func TestLatchException_NoneValid(t *testing.T) {
	best := latchException(0, []LatchedException{{Valid: false}})
	assert.False(t, best.Valid)
}

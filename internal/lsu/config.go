package lsu

import "fmt"

// Config parameterizes one Core instance, playing the role of the
// generate-time parameters of the source hardware.
type Config struct {
	CoreWidth int // dispatch/commit lanes
	MemWidth  int // memory issue width, typically 1-2

	NumLdqEntries int
	NumStqEntries int
	NumMcqEntries int
	NumBdqEntries int

	EnableWYFY  bool
	HbtBaseAddr uint64
	HbtNumWay   int

	// LrscCycles is the reservation window applied when an AMO/LR uop fires.
	LrscCycles int
}

// DefaultConfig returns sane defaults with queue depths sized like a small
// OoO core.
func DefaultConfig() Config {
	return Config{
		CoreWidth:     2,
		MemWidth:      2,
		NumLdqEntries: 16,
		NumStqEntries: 16,
		NumMcqEntries: 16,
		NumBdqEntries: 8,
		EnableWYFY:    false,
		HbtBaseAddr:   0x10000,
		HbtNumWay:     4,
		LrscCycles:    8,
	}
}

// Validate rejects configurations the bitmap-based queues cannot represent:
// every queue depth must fit in a 64-bit dependency bitmask, and widths must be positive.
func (c Config) Validate() error {
	if c.CoreWidth <= 0 || c.MemWidth <= 0 {
		return fmt.Errorf("lsu: CoreWidth and MemWidth must be positive, got %d/%d", c.CoreWidth, c.MemWidth)
	}
	for name, n := range map[string]int{
		"NumLdqEntries": c.NumLdqEntries,
		"NumStqEntries": c.NumStqEntries,
		"NumMcqEntries": c.NumMcqEntries,
		"NumBdqEntries": c.NumBdqEntries,
	} {
		if n <= 0 || n > 64 {
			return fmt.Errorf("lsu: %s must be in (0, 64], got %d", name, n)
		}
	}
	if c.HbtNumWay <= 0 {
		return fmt.Errorf("lsu: HbtNumWay must be positive, got %d", c.HbtNumWay)
	}
	return nil
}

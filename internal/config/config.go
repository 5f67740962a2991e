// Package config loads simulator bring-up configuration — CSR
// initialization values and queue depths — from a TOML file, the way
// the corpus's prompt/history tooling loads its own TOML settings files.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/opensilicon/suprax-lsu/internal/lsu"
)

// File is the on-disk TOML shape. Field names are lower_snake_case to
// match the CSR names they bring up (hbt_base_addr, hbt_num_way, ...).
type File struct {
	CoreWidth     int  `toml:"core_width"`
	MemWidth      int  `toml:"mem_width"`
	NumLdqEntries int  `toml:"num_ldq_entries"`
	NumStqEntries int  `toml:"num_stq_entries"`
	NumMcqEntries int  `toml:"num_mcq_entries"`
	NumBdqEntries int  `toml:"num_bdq_entries"`
	EnableWYFY    bool `toml:"enable_wyfy"`
	HbtBaseAddr   uint64 `toml:"hbt_base_addr"`
	HbtNumWay     int    `toml:"hbt_num_way"`
	LrscCycles    int    `toml:"lrsc_cycles"`
}

// Load reads and decodes a TOML config file into an lsu.Config, applying
// lsu.DefaultConfig as the baseline for any field the file omits.
func Load(path string) (lsu.Config, error) {
	cfg := lsu.DefaultConfig()
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return lsu.Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyField(meta, "core_width", f.CoreWidth, &cfg.CoreWidth)
	applyField(meta, "mem_width", f.MemWidth, &cfg.MemWidth)
	applyField(meta, "num_ldq_entries", f.NumLdqEntries, &cfg.NumLdqEntries)
	applyField(meta, "num_stq_entries", f.NumStqEntries, &cfg.NumStqEntries)
	applyField(meta, "num_mcq_entries", f.NumMcqEntries, &cfg.NumMcqEntries)
	applyField(meta, "num_bdq_entries", f.NumBdqEntries, &cfg.NumBdqEntries)
	applyField(meta, "hbt_num_way", f.HbtNumWay, &cfg.HbtNumWay)
	applyField(meta, "lrsc_cycles", f.LrscCycles, &cfg.LrscCycles)
	if meta.IsDefined("enable_wyfy") {
		cfg.EnableWYFY = f.EnableWYFY
	}
	if meta.IsDefined("hbt_base_addr") {
		cfg.HbtBaseAddr = f.HbtBaseAddr
	}
	if err := cfg.Validate(); err != nil {
		return lsu.Config{}, err
	}
	return cfg, nil
}

func applyField(meta toml.MetaData, key string, val int, dst *int) {
	if meta.IsDefined(key) {
		*dst = val
	}
}

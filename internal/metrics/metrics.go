// Package metrics mirrors the LSU's architectural CSR counters as
// Prometheus gauges, so a running simulator can be scraped the way
// aistore's data-movement counters are: the CSR values stay authoritative
// (read via lsu.Core.Counters), this is purely an observability mirror.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensilicon/suprax-lsu/internal/lsu"
)

// Registry holds the gauge set; the registerer it was attached to is
// not retained.
type Registry struct {
	signedInst   prometheus.Gauge
	unsignedInst prometheus.Gauge
	bndStr       prometheus.Gauge
	bndClr       prometheus.Gauge
	bndSrch      prometheus.Gauge
	memReq       prometheus.Gauge
	memSize      prometheus.Gauge
	cacheHit     prometheus.Gauge
	cacheMiss    prometheus.Gauge
}

// NewRegistry creates the gauge set under the "suprax_lsu" namespace and
// registers it with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	g := func(name, help string) prometheus.Gauge {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "suprax_lsu",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(gauge)
		return gauge
	}
	return &Registry{
		signedInst:   g("num_signed_inst", "Signed bounds-checked load instructions retired."),
		unsignedInst: g("num_unsigned_inst", "Unsigned bounds-checked load instructions retired."),
		bndStr:       g("num_bndstr", "Bounds-store operations retired."),
		bndClr:       g("num_bndclr", "Bounds-clear operations retired."),
		bndSrch:      g("num_bndsrch", "Bounds-search operations retired."),
		memReq:       g("mem_req_total", "Memory requests issued to the data cache."),
		memSize:      g("mem_size_bytes_total", "Total bytes requested from the data cache."),
		cacheHit:     g("cache_hit_total", "Data-cache hits observed by the LSU."),
		cacheMiss:    g("cache_miss_total", "Data-cache misses observed by the LSU."),
	}
}

// Observe copies the current CSR counter snapshot into the gauge set.
func (r *Registry) Observe(c lsu.Counters) {
	r.signedInst.Set(float64(c.NumSignedInst))
	r.unsignedInst.Set(float64(c.NumUnsignedInst))
	r.bndStr.Set(float64(c.NumBndStr))
	r.bndClr.Set(float64(c.NumBndClr))
	r.bndSrch.Set(float64(c.NumBndSrch))
	r.memReq.Set(float64(c.MemReq))
	r.memSize.Set(float64(c.MemSize))
	r.cacheHit.Set(float64(c.CacheHit))
	r.cacheMiss.Set(float64(c.CacheMiss))
}

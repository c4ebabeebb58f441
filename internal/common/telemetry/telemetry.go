// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	assembleTotal     *expvar.Int
	assembleNoContext *expvar.Int
	assembleLatencyMS *expvar.Int

	tableCacheHits   *expvar.Int
	tableCacheMisses *expvar.Int

	embedRequests  *expvar.Int
	embedFailures  *expvar.Int
	embedLatencyMS *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		assembleTotal = expvar.NewInt("nexa_assemble_total")
		assembleNoContext = expvar.NewInt("nexa_assemble_no_context_total")
		assembleLatencyMS = expvar.NewInt("nexa_assemble_latency_ms")

		tableCacheHits = expvar.NewInt("nexa_table_cache_hits")
		tableCacheMisses = expvar.NewInt("nexa_table_cache_misses")

		embedRequests = expvar.NewInt("nexa_embed_requests_total")
		embedFailures = expvar.NewInt("nexa_embed_failures_total")
		embedLatencyMS = expvar.NewInt("nexa_embed_latency_ms")
	})
}

// RecordAssembly counts one context assembly and its latency. Latency is a
// cumulative counter; rates come from scraping deltas.
func RecordAssembly(duration time.Duration, relevant bool) {
	ensureInit()
	assembleTotal.Add(1)
	assembleLatencyMS.Add(duration.Milliseconds())
	if !relevant {
		assembleNoContext.Add(1)
	}
}

// RecordTableCache counts one reconstructed-table cache lookup.
func RecordTableCache(hit bool) {
	ensureInit()
	if hit {
		tableCacheHits.Add(1)
	} else {
		tableCacheMisses.Add(1)
	}
}

// RecordEmbedding counts one embedding backend call.
func RecordEmbedding(duration time.Duration, err error) {
	ensureInit()
	embedRequests.Add(1)
	embedLatencyMS.Add(duration.Milliseconds())
	if err != nil {
		embedFailures.Add(1)
	}
}

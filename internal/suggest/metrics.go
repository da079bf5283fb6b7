package suggest

import "github.com/prometheus/client_golang/prometheus"

// Pipeline run outcomes used as metric label values.
const (
	outcomeCacheHit  = "cache_hit"
	outcomeGenerated = "generated"
	outcomeFailed    = "failed"
)

// runsTotal counts completed pipeline runs by outcome. Failures are counted
// here too; they are otherwise silent by design.
var runsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "suggestion_runs_total",
		Help: "Total number of suggestion pipeline runs by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(runsTotal)
}

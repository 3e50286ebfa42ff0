package metrics

import "time"

var (
	probeAlive = metricSet.NewHistogram(label("liveness_probe_duration_seconds", "result", "alive"))
	probeDead  = metricSet.NewHistogram(label("liveness_probe_duration_seconds", "result", "dead"))
	probeHits  = metricSet.NewCounter("liveness_cache_hits_total")
)

func ObserveProbe(alive bool, start time.Time) {
	if alive {
		probeAlive.UpdateDuration(start)
	} else {
		probeDead.UpdateDuration(start)
	}
}

func ObserveCacheHit() {
	probeHits.Inc()
}

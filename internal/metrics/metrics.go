// Package metrics 暴露少量运维计数器（Prometheus），不承担业务正确性。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "picksync"

var (
	// cacheResults 缓存查询结果：outcome = hit / miss / stale_serve
	cacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "results_total",
		Help:      "按数据族与结果统计的缓存查询次数",
	}, []string{"kind", "outcome"})

	// upstreamRequests 上游调用：outcome = ok / error
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "按数据源与结果统计的上游调用次数",
	}, []string{"source", "outcome"})

	// pickSaves 决策写入：status = created / updated / skipped_locked / error
	pickSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "picks",
		Name:      "saves_total",
		Help:      "按结果统计的决策写入次数",
	}, []string{"status"})

	picksLocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "picks",
		Name:      "locked_total",
		Help:      "累计锁定的决策行数",
	})

	// resultsGraded 结果判定：result = won / lost / push
	resultsGraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "results",
		Name:      "graded_total",
		Help:      "按结果统计的判定次数",
	}, []string{"result"})
)

func RecordCacheResult(kind, outcome string) {
	cacheResults.WithLabelValues(kind, outcome).Inc()
}

func RecordUpstreamRequest(source, outcome string) {
	upstreamRequests.WithLabelValues(source, outcome).Inc()
}

func RecordPickSave(status string) {
	pickSaves.WithLabelValues(status).Inc()
}

func RecordPicksLocked(n int64) {
	if n > 0 {
		picksLocked.Add(float64(n))
	}
}

func RecordResultGraded(result string) {
	resultsGraded.WithLabelValues(result).Inc()
}

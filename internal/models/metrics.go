package models

import "time"

// SystemMetrics is the JSON snapshot of runtime instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	Transitions              map[string]uint64 `json:"transitions"`
	NotificationsSent        uint64            `json:"notifications_sent"`
	NotificationsFailed      uint64            `json:"notifications_failed"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}

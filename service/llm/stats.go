package llm

import (
	"sort"
	"sync"
	"time"
)

// Stats 按服务累计的成功/失败次数与平均耗时，仅在内存中
type Stats struct {
	mu        sync.Mutex
	providers map[string]*providerStats
}

type providerStats struct {
	success      int64
	failure      int64
	totalLatency time.Duration
	lastError    time.Time
}

// ProviderSnapshot 某个服务的统计快照
type ProviderSnapshot struct {
	Provider      string     `json:"provider"`
	Success       int64      `json:"success"`
	Failure       int64      `json:"failure"`
	AvgLatencyMS  float64    `json:"avg_latency_ms"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

func NewStats() *Stats {
	return &Stats{providers: make(map[string]*providerStats)}
}

// Record 记录一次调用；nil 接收者直接忽略
func (s *Stats) Record(provider string, success bool, latency time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.providers[provider]
	if !ok {
		ps = &providerStats{}
		s.providers[provider] = ps
	}
	if success {
		ps.success++
	} else {
		ps.failure++
		ps.lastError = time.Now()
	}
	ps.totalLatency += latency
}

// Snapshot 按服务名排序返回
func (s *Stats) Snapshot() []ProviderSnapshot {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProviderSnapshot, 0, len(s.providers))
	for name, ps := range s.providers {
		snap := ProviderSnapshot{Provider: name, Success: ps.success, Failure: ps.failure}
		if calls := ps.success + ps.failure; calls > 0 {
			snap.AvgLatencyMS = float64(ps.totalLatency.Milliseconds()) / float64(calls)
		}
		if !ps.lastError.IsZero() {
			t := ps.lastError
			snap.LastFailureAt = &t
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

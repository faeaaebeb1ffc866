package analytics

import (
	"vistrail/internal/sessions"
)

// EngagementMetrics are the top-line numbers computed from the filtered
// session set.
//
// UniqueVisitors counts distinct composite fingerprints (browser, os, screen
// size, country). This is a coarse proxy, not a true visitor identity: it
// undercounts visitors sharing a fingerprint and overcounts when a field
// rotates within a session.
type EngagementMetrics struct {
	UniqueVisitors int     `json:"unique_visitors"`
	TotalVisits    int     `json:"total_visits"`
	TotalPageviews int     `json:"total_pageviews"`
	ViewsPerVisit  float64 `json:"views_per_visit"`
	BounceRate     float64 `json:"bounce_rate"`
	AvgDuration    float64 `json:"avg_duration"`
}

func computeMetrics(filtered []sessions.Session) EngagementMetrics {
	m := EngagementMetrics{TotalVisits: len(filtered)}

	fingerprints := make(map[string]struct{}, len(filtered))
	bounces := 0
	var durationSum float64
	durationCount := 0

	for i := range filtered {
		s := &filtered[i]
		fingerprints[s.Fingerprint()] = struct{}{}
		m.TotalPageviews += s.ViewCount()
		if s.IsBounce() {
			bounces++
		}
		if d, ok := s.Duration(); ok {
			durationSum += d.Seconds()
			durationCount++
		}
	}

	m.UniqueVisitors = len(fingerprints)
	if m.TotalVisits > 0 {
		m.BounceRate = float64(bounces) / float64(m.TotalVisits) * 100
		m.ViewsPerVisit = float64(m.TotalPageviews) / float64(m.TotalVisits)
	}
	if durationCount > 0 {
		m.AvgDuration = durationSum / float64(durationCount)
	}
	return m
}

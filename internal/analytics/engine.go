// Package analytics filters a session collection and aggregates it into
// ranked breakdowns and engagement metrics.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"vistrail/internal/pkg/async"
	"vistrail/internal/sessions"
	"vistrail/internal/timeframe"
)

// SessionSource supplies the session collection for a site.
type SessionSource interface {
	ListBySite(siteID string) ([]sessions.Session, error)
}

// Result is the full analytics answer for one (site, filter set) pair.
type Result struct {
	Countries        []MetricCountResult `json:"countries"`
	Regions          []MetricCountResult `json:"regions"`
	Cities           []MetricCountResult `json:"cities"`
	Browsers         []MetricCountResult `json:"browsers"`
	OperatingSystems []MetricCountResult `json:"operating_systems"`
	ScreenSizes      []MetricCountResult `json:"screen_sizes"`
	Languages        []MetricCountResult `json:"languages"`
	Pages            []MetricCountResult `json:"pages"`
	EntryPages       []MetricCountResult `json:"entry_pages"`
	ExitPages        []MetricCountResult `json:"exit_pages"`
	Referrers        []MetricCountResult `json:"referrers"`
	Channels         []MetricCountResult `json:"channels"`
	Sources          []MetricCountResult `json:"sources"`
	UTMSources       []MetricCountResult `json:"utm_sources"`
	UTMMediums       []MetricCountResult `json:"utm_mediums"`
	UTMCampaigns     []MetricCountResult `json:"utm_campaigns"`
	UTMTerms         []MetricCountResult `json:"utm_terms"`
	UTMContents      []MetricCountResult `json:"utm_contents"`

	Metrics EngagementMetrics `json:"metrics"`
}

const breakdownWorkers = 4

// Engine computes analytics results with a one-slot cache keyed by the
// serialized filter set. The data-source boundary invalidates the cache on
// writes; Compute itself is synchronous and atomic to callers.
type Engine struct {
	source SessionSource
	logger *slog.Logger
	pool   *async.Pool

	mu       sync.Mutex
	cacheKey string
	cached   *Result
}

// NewEngine creates an aggregation engine over the given session source.
func NewEngine(source SessionSource, logger *slog.Logger) *Engine {
	return &Engine{
		source: source,
		logger: logger,
		pool:   async.NewPool(breakdownWorkers),
	}
}

// Invalidate drops the cached result. The session store calls this after
// every write.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheKey = ""
	e.cached = nil
}

// Compute returns the analytics result for the site under the given time
// range and filters. An unchanged (range, filter set) pair since the last
// call returns the cached result without recomputation; the cache is
// replaced atomically so readers never observe a partial result.
func (e *Engine) Compute(siteID string, rng *timeframe.Range, filters *FilterSet) (*Result, error) {
	key := siteID + "|" + rng.Key() + "|" + filters.Hash()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cached != nil && e.cacheKey == key {
		return e.cached, nil
	}

	all, err := e.source.ListBySite(siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	result := e.aggregate(siteID, filterSessions(all, rng, filters))

	e.cacheKey = key
	e.cached = result
	return result, nil
}

// filterSessions applies the time range and filter set; an all-time range
// with an empty set is the identity.
func filterSessions(all []sessions.Session, rng *timeframe.Range, filters *FilterSet) []sessions.Session {
	active := filters.Filters()
	if len(active) == 0 && rng.Unbounded() {
		return all
	}
	var filtered []sessions.Session
	for i := range all {
		if !rng.Contains(all[i].CreatedAt) {
			continue
		}
		if MatchesAll(&all[i], active) {
			filtered = append(filtered, all[i])
		}
	}
	return filtered
}

func (e *Engine) aggregate(siteID string, filtered []sessions.Session) *Result {
	tasks := []async.Task{
		{Name: "countries", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.Country }), nil
		}},
		{Name: "regions", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return geoKey(s.Region, s.Country) }), nil
		}},
		{Name: "cities", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return geoKey(s.City, s.Country) }), nil
		}},
		{Name: "browsers", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.Browser }), nil
		}},
		{Name: "operating_systems", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.OS }), nil
		}},
		{Name: "screen_sizes", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.ScreenSize }), nil
		}},
		{Name: "languages", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.Language }), nil
		}},
		{Name: "pages", Execute: func() (interface{}, error) {
			return countPages(filtered), nil
		}},
		{Name: "entry_pages", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.EntryPage() }), nil
		}},
		{Name: "exit_pages", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.ExitPage() }), nil
		}},
		{Name: "referrers", Execute: func() (interface{}, error) {
			return countReferrers(filtered, siteID), nil
		}},
		{Name: "channels", Execute: func() (interface{}, error) {
			return countChannels(filtered), nil
		}},
		{Name: "sources", Execute: func() (interface{}, error) {
			return countSources(filtered, siteID), nil
		}},
		{Name: "utm_sources", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.UTMSource }), nil
		}},
		{Name: "utm_mediums", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.UTMMedium }), nil
		}},
		{Name: "utm_campaigns", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.UTMCampaign }), nil
		}},
		{Name: "utm_terms", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.UTMTerm }), nil
		}},
		{Name: "utm_contents", Execute: func() (interface{}, error) {
			return countValues(filtered, func(s *sessions.Session) string { return s.UTMContent }), nil
		}},
	}

	computed := e.pool.Execute(context.Background(), tasks)

	result := &Result{Metrics: computeMetrics(filtered)}
	result.Countries = breakdown(computed, "countries")
	result.Regions = breakdown(computed, "regions")
	result.Cities = breakdown(computed, "cities")
	result.Browsers = breakdown(computed, "browsers")
	result.OperatingSystems = breakdown(computed, "operating_systems")
	result.ScreenSizes = breakdown(computed, "screen_sizes")
	result.Languages = breakdown(computed, "languages")
	result.Pages = breakdown(computed, "pages")
	result.EntryPages = breakdown(computed, "entry_pages")
	result.ExitPages = breakdown(computed, "exit_pages")
	result.Referrers = breakdown(computed, "referrers")
	result.Channels = breakdown(computed, "channels")
	result.Sources = breakdown(computed, "sources")
	result.UTMSources = breakdown(computed, "utm_sources")
	result.UTMMediums = breakdown(computed, "utm_mediums")
	result.UTMCampaigns = breakdown(computed, "utm_campaigns")
	result.UTMTerms = breakdown(computed, "utm_terms")
	result.UTMContents = breakdown(computed, "utm_contents")
	return result
}

func breakdown(results map[string]async.Result, name string) []MetricCountResult {
	r, ok := results[name]
	if !ok || r.Err != nil {
		return []MetricCountResult{}
	}
	list, ok := r.Data.([]MetricCountResult)
	if !ok || list == nil {
		return []MetricCountResult{}
	}
	return list
}

package analytics

import (
	"fmt"
	"strings"

	"vistrail/internal/sessions"
)

// FilterType enumerates the dimensions a dashboard filter can target.
type FilterType string

const (
	FilterCountry        FilterType = "country"
	FilterRegion         FilterType = "region"
	FilterCity           FilterType = "city"
	FilterBrowser        FilterType = "browser"
	FilterOS             FilterType = "os"
	FilterScreenSize     FilterType = "screen_size"
	FilterReferrerDomain FilterType = "referrer_domain"
	FilterUTMSource      FilterType = "utm_source"
	FilterUTMMedium      FilterType = "utm_medium"
	FilterUTMCampaign    FilterType = "utm_campaign"
	FilterUTMTerm        FilterType = "utm_term"
	FilterUTMContent     FilterType = "utm_content"
	FilterVisitedPage    FilterType = "visited_page"
	FilterEntryPage      FilterType = "entry_page"
	FilterExitPage       FilterType = "exit_page"
)

// Valid reports whether t is a known filter dimension.
func (t FilterType) Valid() bool {
	switch t {
	case FilterCountry, FilterRegion, FilterCity, FilterBrowser, FilterOS,
		FilterScreenSize, FilterReferrerDomain, FilterUTMSource, FilterUTMMedium,
		FilterUTMCampaign, FilterUTMTerm, FilterUTMContent, FilterVisitedPage,
		FilterEntryPage, FilterExitPage:
		return true
	}
	return false
}

// Filter narrows the session collection along one dimension. Filters of
// different types combine with logical AND.
type Filter struct {
	Type  FilterType `json:"type"`
	Value string     `json:"value"`
	Label string     `json:"label,omitempty"`
}

// Matches evaluates one filter against one session. Pure: the result depends
// only on the arguments, which the result cache relies on.
func Matches(s *sessions.Session, f Filter) bool {
	switch f.Type {
	case FilterCountry:
		return s.Country == f.Value
	case FilterRegion:
		return s.Region == f.Value
	case FilterCity:
		return s.City == f.Value
	case FilterBrowser:
		return s.Browser == f.Value
	case FilterOS:
		return s.OS == f.Value
	case FilterScreenSize:
		return s.ScreenSize == f.Value
	case FilterReferrerDomain:
		return s.ReferrerHostname == f.Value
	case FilterUTMSource:
		return s.UTMSource == f.Value
	case FilterUTMMedium:
		return s.UTMMedium == f.Value
	case FilterUTMCampaign:
		return s.UTMCampaign == f.Value
	case FilterUTMTerm:
		return s.UTMTerm == f.Value
	case FilterUTMContent:
		return s.UTMContent == f.Value
	case FilterVisitedPage:
		for _, page := range s.VisitedPages {
			if page == f.Value {
				return true
			}
		}
		return false
	case FilterEntryPage:
		return len(s.VisitedPages) > 0 && s.EntryPage() == f.Value
	case FilterExitPage:
		return len(s.VisitedPages) > 0 && s.ExitPage() == f.Value
	default:
		return false
	}
}

// MatchesAll reports whether the session satisfies every filter in the list.
func MatchesAll(s *sessions.Session, filters []Filter) bool {
	for _, f := range filters {
		if !Matches(s, f) {
			return false
		}
	}
	return true
}

// FilterSet is an ordered set of filters: insertion order is preserved for
// display, uniqueness is by (type, value).
type FilterSet struct {
	filters []Filter
}

// NewFilterSet builds a set from the given filters, dropping duplicates.
func NewFilterSet(filters ...Filter) *FilterSet {
	fs := &FilterSet{}
	for _, f := range filters {
		fs.Add(f)
	}
	return fs
}

// Add appends a filter unless an equal (type, value) pair is already present.
// Returns true when the filter was added.
func (fs *FilterSet) Add(f Filter) bool {
	for _, existing := range fs.filters {
		if existing.Type == f.Type && existing.Value == f.Value {
			return false
		}
	}
	fs.filters = append(fs.filters, f)
	return true
}

// Remove deletes the filter with the given type and value, if present.
func (fs *FilterSet) Remove(t FilterType, value string) bool {
	for i, existing := range fs.filters {
		if existing.Type == t && existing.Value == value {
			fs.filters = append(fs.filters[:i], fs.filters[i+1:]...)
			return true
		}
	}
	return false
}

// Filters returns a copy of the active filters in insertion order.
func (fs *FilterSet) Filters() []Filter {
	if fs == nil {
		return nil
	}
	out := make([]Filter, len(fs.filters))
	copy(out, fs.filters)
	return out
}

// Len returns the number of active filters.
func (fs *FilterSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.filters)
}

// Hash returns a stable serialization of the ordered filter list, used as the
// result-cache key. Length prefixes keep values containing separators from
// colliding, and the construction cannot fail on any input.
func (fs *FilterSet) Hash() string {
	if fs == nil || len(fs.filters) == 0 {
		return "∅"
	}
	var b strings.Builder
	for _, f := range fs.filters {
		fmt.Fprintf(&b, "%d:%s=%d:%s;", len(f.Type), f.Type, len(f.Value), f.Value)
	}
	return b.String()
}

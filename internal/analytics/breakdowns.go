package analytics

import (
	"sort"
	"strings"

	"vistrail/internal/pkg/referrers"
	"vistrail/internal/sessions"
)

// MetricCountResult is one ranked entry of a dimension breakdown. Percentage
// is relative to the dimension's own total, not the grand total.
type MetricCountResult struct {
	Name       string  `json:"name"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// counter accumulates counts per key while remembering first-seen order, so
// ties rank in the order keys first appeared.
type counter struct {
	counts map[string]int64
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int64)}
}

func (c *counter) add(key string) {
	if key == "" {
		return
	}
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// results converts the counter to a ranked list with percentages. An empty
// counter yields an empty list, never a division by zero.
func (c *counter) results() []MetricCountResult {
	out := make([]MetricCountResult, 0, len(c.order))
	var total int64
	for _, key := range c.order {
		total += c.counts[key]
	}
	for _, key := range c.order {
		out = append(out, MetricCountResult{Name: key, Count: c.counts[key]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})

	if total > 0 {
		for i := range out {
			out[i].Percentage = float64(out[i].Count) / float64(total) * 100
		}
	}
	return out
}

func countValues(filtered []sessions.Session, extract func(*sessions.Session) string) []MetricCountResult {
	c := newCounter()
	for i := range filtered {
		c.add(extract(&filtered[i]))
	}
	return c.results()
}

// geoKey builds the composite key for region/city breakdowns, retaining the
// associated country so same-named places in different countries stay apart.
func geoKey(place, country string) string {
	if place == "" {
		return ""
	}
	if country == "" {
		return place
	}
	return place + ", " + country
}

func countPages(filtered []sessions.Session) []MetricCountResult {
	c := newCounter()
	for i := range filtered {
		for _, page := range filtered[i].VisitedPages {
			c.add(page)
		}
	}
	return c.results()
}

// countChannels classifies every session's traffic channel.
func countChannels(filtered []sessions.Session) []MetricCountResult {
	c := newCounter()
	for i := range filtered {
		s := &filtered[i]
		channel := referrers.Classify(s.UTMMedium, s.UTMSource, s.ReferrerHostname)
		c.add(string(channel))
	}
	return c.results()
}

// countSources resolves every session's traffic source display name,
// skipping self-referral noise.
func countSources(filtered []sessions.Session, siteDomain string) []MetricCountResult {
	c := newCounter()
	for i := range filtered {
		s := &filtered[i]
		if isSelfReferral(s.ReferrerHostname, siteDomain) {
			continue
		}
		var source referrers.Source
		if s.UTMSource != "" {
			source = referrers.Normalize(s.UTMSource, true)
		} else {
			source = referrers.Normalize(s.ReferrerHostname, false)
		}
		c.add(source.DisplayName)
	}
	return c.results()
}

// countReferrers ranks referring sites by friendly name. Direct sessions do
// not appear here; the channel breakdown carries them.
func countReferrers(filtered []sessions.Session, siteDomain string) []MetricCountResult {
	c := newCounter()
	for i := range filtered {
		s := &filtered[i]
		if s.ReferrerHostname == "" || isSelfReferral(s.ReferrerHostname, siteDomain) {
			continue
		}
		c.add(referrers.FriendlyName(s.ReferrerHostname))
	}
	return c.results()
}

// isSelfReferral reports whether the referrer hostname belongs to the site
// being analyzed.
func isSelfReferral(hostname, siteDomain string) bool {
	if hostname == "" || siteDomain == "" {
		return false
	}
	return strings.Contains(strings.ToLower(hostname), strings.ToLower(siteDomain))
}

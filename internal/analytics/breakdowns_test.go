package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistrail/internal/sessions"
)

func TestCountValuesRanksAndPercentages(t *testing.T) {
	filtered := []sessions.Session{
		{Browser: "Chrome"},
		{Browser: "Firefox"},
		{Browser: "Chrome"},
		{Browser: "Chrome"},
		{Browser: ""},
	}

	got := countValues(filtered, func(s *sessions.Session) string { return s.Browser })

	require.Len(t, got, 2)
	assert.Equal(t, "Chrome", got[0].Name)
	assert.Equal(t, int64(3), got[0].Count)
	assert.InDelta(t, 75.0, got[0].Percentage, 0.0001)
	assert.Equal(t, "Firefox", got[1].Name)
	assert.InDelta(t, 25.0, got[1].Percentage, 0.0001)
}

func TestCountValuesTiesKeepFirstSeenOrder(t *testing.T) {
	filtered := []sessions.Session{
		{Country: "de"},
		{Country: "fr"},
		{Country: "de"},
		{Country: "fr"},
	}

	got := countValues(filtered, func(s *sessions.Session) string { return s.Country })

	require.Len(t, got, 2)
	assert.Equal(t, "de", got[0].Name)
	assert.Equal(t, "fr", got[1].Name)
}

func TestCountPagesCountsEveryView(t *testing.T) {
	filtered := []sessions.Session{
		{VisitedPages: sessions.PageList{"/", "/pricing"}},
		{VisitedPages: sessions.PageList{"/pricing"}},
	}

	got := countPages(filtered)

	require.Len(t, got, 2)
	assert.Equal(t, "/pricing", got[0].Name)
	assert.Equal(t, int64(2), got[0].Count)
}

func TestGeoKeyKeepsCountryContext(t *testing.T) {
	assert.Equal(t, "Springfield, us", geoKey("Springfield", "us"))
	assert.Equal(t, "Springfield", geoKey("Springfield", ""))
	assert.Equal(t, "", geoKey("", "us"))
}

func TestCountReferrersSkipsDirectAndSelf(t *testing.T) {
	filtered := []sessions.Session{
		{ReferrerHostname: "news.ycombinator.com"},
		{ReferrerHostname: "news.ycombinator.com"},
		{ReferrerHostname: "www.example.com"},
		{ReferrerHostname: ""},
	}

	got := countReferrers(filtered, "example.com")

	require.Len(t, got, 1)
	assert.Equal(t, "Hacker News", got[0].Name)
	assert.Equal(t, int64(2), got[0].Count)
}

func TestCountChannels(t *testing.T) {
	filtered := []sessions.Session{
		{UTMMedium: "cpc", UTMSource: "google"},
		{ReferrerHostname: "t.co"},
		{},
		{},
	}

	got := countChannels(filtered)

	require.Len(t, got, 3)
	assert.Equal(t, "Direct", got[0].Name)
	assert.Equal(t, int64(2), got[0].Count)
}

func TestCountSourcesPrefersUTMSource(t *testing.T) {
	filtered := []sessions.Session{
		{UTMSource: "producthunt", ReferrerHostname: "producthunt.com"},
		{ReferrerHostname: "www.google.com"},
		{},
	}

	got := countSources(filtered, "example.com")

	require.Len(t, got, 3)
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	assert.Contains(t, names, "Product Hunt")
	assert.Contains(t, names, "Google")
	assert.Contains(t, names, "Direct")
}

package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTimeProvider struct {
	now time.Time
}

func (p *fixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.now.In(loc)
}

func testParser() (*Parser, time.Time) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	return NewParser(&fixedTimeProvider{now: now}), now
}

func TestParseToday(t *testing.T) {
	parser, now := testParser()

	rng, err := parser.Parse(ParserParams{Range: "today"})

	require.NoError(t, err)
	assert.Equal(t, RangeToday, rng.Label)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), rng.From)
	assert.Equal(t, now.Add(TimeWindowBuffer), rng.To)
}

func TestParseYesterdayEndsBeforeMidnight(t *testing.T) {
	parser, _ := testParser()

	rng, err := parser.Parse(ParserParams{Range: "yesterday"})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), rng.From)
	assert.True(t, rng.To.Before(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, rng.Contains(time.Date(2025, 6, 14, 23, 59, 59, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
}

func TestParseLast7Days(t *testing.T) {
	parser, _ := testParser()

	rng, err := parser.Parse(ParserParams{Range: "last_7_days"})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), rng.From)
}

func TestParseNoParamsMeansAllTime(t *testing.T) {
	parser, _ := testParser()

	rng, err := parser.Parse(ParserParams{})

	require.NoError(t, err)
	assert.True(t, rng.Unbounded())
	assert.True(t, rng.Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseCustomRangeInclusiveEnd(t *testing.T) {
	parser, _ := testParser()

	rng, err := parser.Parse(ParserParams{FromDate: "2025-06-01", ToDate: "2025-06-10"})

	require.NoError(t, err)
	assert.Equal(t, RangeCustom, rng.Label)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), rng.From)
	assert.True(t, rng.Contains(time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)))
}

func TestParseCustomEndDateClampedToNow(t *testing.T) {
	parser, now := testParser()

	rng, err := parser.Parse(ParserParams{FromDate: "2025-06-01", ToDate: "2025-06-15"})

	require.NoError(t, err)
	assert.Equal(t, now.Add(TimeWindowBuffer), rng.To)
}

func TestParseCustomFromOnly(t *testing.T) {
	parser, now := testParser()

	rng, err := parser.Parse(ParserParams{FromDate: "2025-06-01"})

	require.NoError(t, err)
	assert.Equal(t, now.Add(TimeWindowBuffer), rng.To)
}

func TestParseTimezoneDayBoundaries(t *testing.T) {
	parser, _ := testParser()

	rng, err := parser.Parse(ParserParams{Range: "today", Tz: "America/New_York"})

	require.NoError(t, err)
	// Midnight in New York is 04:00 UTC during DST.
	assert.Equal(t, time.Date(2025, 6, 15, 4, 0, 0, 0, time.UTC), rng.From)
}

func TestParseErrors(t *testing.T) {
	parser, _ := testParser()

	_, err := parser.Parse(ParserParams{Range: "fortnight"})
	assert.Error(t, err)

	_, err = parser.Parse(ParserParams{FromDate: "June 1st"})
	assert.Error(t, err)

	_, err = parser.Parse(ParserParams{FromDate: "2025-06-10", ToDate: "2025-06-01"})
	assert.Error(t, err)

	_, err = parser.Parse(ParserParams{Range: "today", Tz: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestRangeKeyStability(t *testing.T) {
	parser, _ := testParser()

	a, err := parser.Parse(ParserParams{Range: "last_7_days"})
	require.NoError(t, err)
	b, err := parser.Parse(ParserParams{Range: "last_7_days"})
	require.NoError(t, err)

	// Named ranges key by label and start day so repeated queries hit the cache.
	assert.Equal(t, a.Key(), b.Key())

	all, err := parser.Parse(ParserParams{})
	require.NoError(t, err)
	assert.Equal(t, "all_time", all.Key())
	assert.NotEqual(t, a.Key(), all.Key())

	custom, err := parser.Parse(ParserParams{FromDate: "2025-06-01", ToDate: "2025-06-10"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Key(), custom.Key())

	var nilRange *Range
	assert.Equal(t, "all_time", nilRange.Key())
	assert.True(t, nilRange.Unbounded())
}

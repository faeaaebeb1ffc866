// Package timeframe parses dashboard time ranges into concrete UTC windows.
package timeframe

import (
	"fmt"
	"time"
)

// RangeLabel names the predefined time ranges.
type RangeLabel string

const (
	RangeToday      RangeLabel = "today"
	RangeYesterday  RangeLabel = "yesterday"
	RangeLast7Days  RangeLabel = "last_7_days"
	RangeLast30Days RangeLabel = "last_30_days"
	RangeAllTime    RangeLabel = "all_time"
	RangeCustom     RangeLabel = "custom"
)

// TimeWindowBuffer pads the open end of a range so events that are slightly
// delayed in transit still land inside it.
const TimeWindowBuffer = 5 * time.Minute

// TimeProvider supplies the current time, injectable for tests.
type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time in the given location.
func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// Range is a half-open window [From, To] in UTC.
type Range struct {
	From  time.Time
	To    time.Time
	Label RangeLabel
}

// Unbounded reports whether the range spans all time.
func (r *Range) Unbounded() bool {
	return r == nil || r.Label == RangeAllTime
}

// Contains reports whether t falls inside the range. The all_time range
// contains everything.
func (r *Range) Contains(t time.Time) bool {
	if r.Unbounded() {
		return true
	}
	return !t.Before(r.From) && !t.After(r.To)
}

// Key returns a stable cache-key fragment for the range. Predefined labels
// key by name so a repeated dashboard query hits the cache even though "now"
// moved between calls.
func (r *Range) Key() string {
	if r == nil || r.Label == RangeAllTime {
		return string(RangeAllTime)
	}
	if r.Label != RangeCustom && r.Label != "" {
		return string(r.Label) + ":" + r.From.Format("2006-01-02")
	}
	return r.From.UTC().Format(time.RFC3339) + ".." + r.To.UTC().Format(time.RFC3339)
}

// ParserParams carries the raw query inputs.
type ParserParams struct {
	Range    string
	FromDate string
	ToDate   string
	Tz       string
}

// Parser turns query parameters into ranges.
type Parser struct {
	timeProvider TimeProvider
}

// NewParser creates a parser, defaulting to the system clock.
func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// Parse resolves the params into a concrete range. A named range wins over
// explicit dates; no params at all means all time. Day boundaries are
// computed in the caller's timezone, then converted to UTC.
func (p *Parser) Parse(params ParserParams) (*Range, error) {
	tz := params.Tz
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone: %w", err)
	}
	now := p.timeProvider.Now(loc)

	if params.Range != "" {
		return p.parseNamed(RangeLabel(params.Range), now, loc)
	}
	if params.FromDate == "" && params.ToDate == "" {
		return &Range{Label: RangeAllTime}, nil
	}
	return p.parseCustom(params, now, loc)
}

func (p *Parser) parseNamed(label RangeLabel, now time.Time, loc *time.Location) (*Range, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch label {
	case RangeToday:
		return &Range{From: startOfDay.UTC(), To: now.Add(TimeWindowBuffer).UTC(), Label: label}, nil
	case RangeYesterday:
		from := startOfDay.AddDate(0, 0, -1)
		return &Range{From: from.UTC(), To: startOfDay.Add(-time.Nanosecond).UTC(), Label: label}, nil
	case RangeLast7Days:
		return &Range{From: startOfDay.AddDate(0, 0, -7).UTC(), To: now.Add(TimeWindowBuffer).UTC(), Label: label}, nil
	case RangeLast30Days:
		return &Range{From: startOfDay.AddDate(0, 0, -30).UTC(), To: now.Add(TimeWindowBuffer).UTC(), Label: label}, nil
	case RangeAllTime:
		return &Range{Label: RangeAllTime}, nil
	default:
		return nil, fmt.Errorf("unknown range %q", label)
	}
}

func (p *Parser) parseCustom(params ParserParams, now time.Time, loc *time.Location) (*Range, error) {
	from, err := parseDay(params.FromDate, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid 'from' date: %w", err)
	}

	var to time.Time
	if params.ToDate == "" {
		to = now.Add(TimeWindowBuffer)
	} else {
		day, err := parseDay(params.ToDate, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid 'to' date: %w", err)
		}
		// End dates are inclusive; an end date of today is clamped so a
		// range never spills into tomorrow.
		to = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		if buffered := now.Add(TimeWindowBuffer); to.After(buffered) {
			to = buffered
		}
	}

	if from.After(to) {
		return nil, fmt.Errorf("'from' date is after 'to' date")
	}
	return &Range{From: from.UTC(), To: to.UTC(), Label: RangeCustom}, nil
}

func parseDay(dateStr string, loc *time.Location) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc), nil
}

package tracker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistrail/internal/rules"
)

func TestMatchClickWalksAncestors(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{ID: 1, Name: "cta_click", EventType: rules.EventClick, EventSelector: "#signup"}

	button := &fakeElement{tag: "button", text: "Sign up now", selectors: map[string]bool{"#signup": true}}
	span := &fakeElement{tag: "span", text: "Sign up now", parent: button}

	firing, ok := m.MatchClick(rule, span)

	require.True(t, ok)
	assert.Equal(t, "cta_click", firing.RuleName)
	assert.Equal(t, "button", firing.Metadata["tag"])
	assert.Equal(t, "Sign up now", firing.Metadata["text"])
}

func TestMatchClickNoMatch(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "cta_click", EventType: rules.EventClick, EventSelector: "#signup"}

	div := &fakeElement{tag: "div"}

	_, ok := m.MatchClick(rule, div)
	assert.False(t, ok)
}

func TestMatchClickSuppressesSelectorErrors(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "cta_click", EventType: rules.EventClick, EventSelector: "#signup"}

	broken := &fakeElement{tag: "div", err: errors.New("invalid selector")}

	_, ok := m.MatchClick(rule, broken)
	assert.False(t, ok)
}

func TestMatchClickRequiresSelector(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "cta_click", EventType: rules.EventClick}

	_, ok := m.MatchClick(rule, &fakeElement{tag: "button"})
	assert.False(t, ok)
}

func TestMatchClickTruncatesLongText(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "cta_click", EventType: rules.EventClick, EventSelector: "button"}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	el := &fakeElement{tag: "button", text: string(long), selectors: map[string]bool{"button": true}}

	firing, ok := m.MatchClick(rule, el)

	require.True(t, ok)
	assert.Len(t, firing.Metadata["text"], clickTextLimit)
}

func TestMatchClickTruncationKeepsRunesIntact(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "cta_click", EventType: rules.EventClick, EventSelector: "button"}

	long := strings.Repeat("ü", 150)
	el := &fakeElement{tag: "button", text: long, selectors: map[string]bool{"button": true}}

	firing, ok := m.MatchClick(rule, el)

	require.True(t, ok)
	text, isString := firing.Metadata["text"].(string)
	require.True(t, isString)
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, clickTextLimit, utf8.RuneCountInString(text))
}

func TestMatchSubmitAnyFormWithoutSelector(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "signup_form", EventType: rules.EventFormSubmit}

	firing, ok := m.MatchSubmit(rule, &fakeElement{tag: "form"})

	require.True(t, ok)
	assert.Equal(t, "form", firing.Metadata["form"])
}

func TestMatchSubmitWithSelector(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{Name: "signup_form", EventType: rules.EventFormSubmit, EventSelector: "#newsletter"}

	matching := &fakeElement{tag: "form", selectors: map[string]bool{"#newsletter": true}}
	other := &fakeElement{tag: "form"}

	_, ok := m.MatchSubmit(rule, matching)
	assert.True(t, ok)

	_, ok = m.MatchSubmit(rule, other)
	assert.False(t, ok)
}

func TestMatchScrollThresholdFiresOnce(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	threshold := 50
	rule := rules.Rule{ID: 7, Name: "halfway", EventType: rules.EventScroll,
		Trigger: rules.TriggerConfig{ScrollPercentage: &threshold}}

	page := newFakePage("/article")
	page.docH = 2000
	page.viewportH = 1000

	page.scrollTop = 100
	_, ok := m.MatchScroll(rule, page)
	assert.False(t, ok, "below threshold")

	page.scrollTop = 600
	firing, ok := m.MatchScroll(rule, page)
	require.True(t, ok, "threshold reached")
	assert.InDelta(t, 60.0, firing.Metadata["scroll_percentage"], 0.0001)

	page.scrollTop = 900
	_, ok = m.MatchScroll(rule, page)
	assert.False(t, ok, "already fired this page view")
}

func TestMatchScrollResetOnNavigation(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	threshold := 50
	rule := rules.Rule{ID: 7, Name: "halfway", EventType: rules.EventScroll,
		Trigger: rules.TriggerConfig{ScrollPercentage: &threshold}}

	page := newFakePage("/article")
	page.docH = 2000
	page.viewportH = 1000
	page.scrollTop = 800

	_, ok := m.MatchScroll(rule, page)
	require.True(t, ok)

	m.Reset()

	_, ok = m.MatchScroll(rule, page)
	assert.True(t, ok, "new page view fires again")
}

func TestMatchScrollWithoutThresholdFiresOnAnyScroll(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{ID: 3, Name: "any_scroll", EventType: rules.EventScroll}

	page := newFakePage("/article")
	page.docH = 2000
	page.viewportH = 1000
	page.scrollTop = 10

	_, ok := m.MatchScroll(rule, page)
	assert.True(t, ok)

	_, ok = m.MatchScroll(rule, page)
	assert.False(t, ok)
}

func TestMatchScrollPagePatternGate(t *testing.T) {
	m := NewEventMatcher(discardLogger())
	rule := rules.Rule{ID: 4, Name: "blog_scroll", EventType: rules.EventScroll,
		Trigger: rules.TriggerConfig{PagePattern: "/blog"}}

	page := newFakePage("/pricing")
	_, ok := m.MatchScroll(rule, page)
	assert.False(t, ok)

	page.path = "/blog/launch"
	_, ok = m.MatchScroll(rule, page)
	assert.True(t, ok)
}

func TestMatchPageView(t *testing.T) {
	m := NewEventMatcher(discardLogger())

	any := rules.Rule{Name: "any_page", EventType: rules.EventPageView}
	_, ok := m.MatchPageView(any, "/whatever")
	assert.True(t, ok)

	gated := rules.Rule{Name: "pricing_view", EventType: rules.EventPageView,
		Trigger: rules.TriggerConfig{PagePattern: "/pricing"}}
	_, ok = m.MatchPageView(gated, "/pricing/annual")
	assert.True(t, ok)
	_, ok = m.MatchPageView(gated, "/docs")
	assert.False(t, ok)

	wrongType := rules.Rule{Name: "click_rule", EventType: rules.EventClick}
	_, ok = m.MatchPageView(wrongType, "/pricing")
	assert.False(t, ok)
}

func TestScrollPercentage(t *testing.T) {
	page := newFakePage("/")

	// Document fits in the viewport.
	page.docH = 600
	page.viewportH = 800
	assert.Equal(t, 100.0, scrollPercentage(page))

	page.docH = 2000
	page.viewportH = 1000
	page.scrollTop = 500
	assert.InDelta(t, 50.0, scrollPercentage(page), 0.0001)

	page.scrollTop = 5000
	assert.Equal(t, 100.0, scrollPercentage(page))
}

package tracker

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"vistrail/internal/funnels"
	"vistrail/internal/rules"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeElement is a minimal document node. Closest walks the parent chain and
// matches against the selectors set.
type fakeElement struct {
	tag       string
	text      string
	linkPath  string
	selectors map[string]bool
	parent    *fakeElement
	err       error
}

func (e *fakeElement) TagName() string { return e.tag }
func (e *fakeElement) Text() string    { return e.text }

func (e *fakeElement) Matches(selector string) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	return e.selectors[selector], nil
}

func (e *fakeElement) Closest(selector string) (Element, error) {
	if e.err != nil {
		return nil, e.err
	}
	for cur := e; cur != nil; cur = cur.parent {
		if cur.selectors[selector] {
			return cur, nil
		}
	}
	return nil, nil
}

func (e *fakeElement) LinkPath() string { return e.linkPath }

// fakePage is a scriptable document: tests mutate its fields and invoke the
// registered listeners directly.
type fakePage struct {
	path      string
	hostname  string
	pageURL   string
	referrer  string
	query     string
	scrollTop float64
	viewportH float64
	docH      float64

	clickFns  []func(Element)
	submitFns []func(Element)
	scrollFns []func()
	removed   int
}

func newFakePage(path string) *fakePage {
	return &fakePage{
		path:      path,
		hostname:  "example.com",
		pageURL:   "https://example.com" + path,
		viewportH: 800,
		docH:      800,
	}
}

func (p *fakePage) Path() string            { return p.path }
func (p *fakePage) Hostname() string        { return p.hostname }
func (p *fakePage) URL() string             { return p.pageURL }
func (p *fakePage) Referrer() string        { return p.referrer }
func (p *fakePage) QueryString() string     { return p.query }
func (p *fakePage) ScrollTop() float64      { return p.scrollTop }
func (p *fakePage) ViewportHeight() float64 { return p.viewportH }
func (p *fakePage) DocumentHeight() float64 { return p.docH }

func (p *fakePage) OnClick(fn func(Element)) func() {
	p.clickFns = append(p.clickFns, fn)
	return func() { p.removed++ }
}

func (p *fakePage) OnSubmit(fn func(Element)) func() {
	p.submitFns = append(p.submitFns, fn)
	return func() { p.removed++ }
}

func (p *fakePage) OnScroll(fn func()) func() {
	p.scrollFns = append(p.scrollFns, fn)
	return func() { p.removed++ }
}

func (p *fakePage) click(target Element) {
	for _, fn := range p.clickFns {
		fn(target)
	}
}

func (p *fakePage) submit(form Element) {
	for _, fn := range p.submitFns {
		fn(form)
	}
}

func (p *fakePage) scroll(top float64) {
	p.scrollTop = top
	for _, fn := range p.scrollFns {
		fn()
	}
}

// fakeClient records everything the agent sends.
type fakeClient struct {
	mu sync.Mutex

	heartbeats  []Heartbeat
	triggers    []TriggerReport
	completions []CompletionReport

	steps       []funnels.Step
	stepsErr    error
	stepFetches int

	siteRules   []rules.Rule
	rulesErr    error
	ruleFetches int

	completionResp CompletionResponse
}

func (c *fakeClient) SendHeartbeat(hb Heartbeat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeats = append(c.heartbeats, hb)
}

func (c *fakeClient) FetchFunnelSteps(siteID string) ([]funnels.Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepFetches++
	if c.stepsErr != nil {
		return nil, c.stepsErr
	}
	return c.steps, nil
}

func (c *fakeClient) FetchEventRules(siteID string) ([]rules.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ruleFetches++
	if c.rulesErr != nil {
		return nil, c.rulesErr
	}
	return c.siteRules, nil
}

func (c *fakeClient) setRules(siteRules []rules.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.siteRules = siteRules
}

func (c *fakeClient) ruleFetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ruleFetches
}

func (c *fakeClient) ReportTrigger(report TriggerReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers = append(c.triggers, report)
}

func (c *fakeClient) ReportCompletion(report CompletionReport) CompletionResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completions = append(c.completions, report)
	return c.completionResp
}

func (c *fakeClient) heartbeatCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.heartbeats)
}

func (c *fakeClient) triggerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.triggers))
	for i, tr := range c.triggers {
		names[i] = tr.EventName
	}
	return names
}

func (c *fakeClient) completedSteps() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint, len(c.completions))
	for i, cp := range c.completions {
		ids[i] = cp.StepID
	}
	return ids
}

// fakeClock is a settable clock whose single ticker the test fires by hand.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ticker: &fakeTicker{ch: make(chan time.Time)},
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker { return c.ticker }

func (c *fakeClock) tick() { c.ticker.ch <- c.Now() }

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// manualObserver hands navigation control to the test.
type manualObserver struct {
	started bool
	stopped bool
	onChange func(string)
}

func (o *manualObserver) Start(onChange func(newPath string)) {
	o.started = true
	o.onChange = onChange
}

func (o *manualObserver) Stop() { o.stopped = true }

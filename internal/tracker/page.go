// Package tracker implements the in-page tracking agent: session identity,
// heartbeat lifecycle, SPA navigation watching, and funnel/custom-event rule
// matching. The agent is written against small host interfaces so it can run
// inside any page environment and be exercised headless in tests.
package tracker

import (
	"sync"
	"time"
)

// Element is one node of the host document.
type Element interface {
	// TagName returns the lowercase tag name, e.g. "a" or "button".
	TagName() string
	// Text returns the element's visible text content.
	Text() string
	// Matches reports whether the element matches a CSS selector. A malformed
	// selector returns an error; callers suppress it per rule.
	Matches(selector string) (bool, error)
	// Closest returns the element itself or its nearest ancestor matching the
	// selector, or nil when none matches.
	Closest(selector string) (Element, error)
	// LinkPath returns the resolved path for anchor elements, "" otherwise.
	LinkPath() string
}

// Page is the agent's view of the current document and its events. Listener
// registrations return a remove function so the agent can tear them down
// without leaking duplicates across SPA navigations.
type Page interface {
	Path() string
	Hostname() string
	URL() string
	Referrer() string
	// QueryString returns the raw query string without the leading "?".
	QueryString() string

	// Scroll geometry, in CSS pixels.
	ScrollTop() float64
	ViewportHeight() float64
	DocumentHeight() float64

	OnClick(fn func(target Element)) (remove func())
	OnSubmit(fn func(form Element)) (remove func())
	OnScroll(fn func()) (remove func())
}

// NavigationObserver detects client-side route changes without relying on a
// specific routing framework. Implementations report the new path once per
// change.
type NavigationObserver interface {
	Start(onChange func(newPath string))
	Stop()
}

// Storage is the client-side key-value store holding the session identifier.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryStorage is a Storage backed by a map, used in tests and headless
// hosts.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Set implements Storage.
func (m *MemoryStorage) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Ticker abstracts time.Ticker for tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies current time and tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// PollingObserver is the default NavigationObserver: it compares the page
// path at a fixed interval and reports changes. Event-driven observers (e.g.
// history API hooks) can replace it behind the same interface.
type PollingObserver struct {
	page     Page
	interval time.Duration

	mu   sync.Mutex
	quit chan struct{}
}

// NewPollingObserver creates a polling observer over the page.
func NewPollingObserver(page Page, interval time.Duration) *PollingObserver {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollingObserver{page: page, interval: interval}
}

// Start begins polling. Starting an already started observer is a no-op.
func (p *PollingObserver) Start(onChange func(newPath string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quit != nil {
		return
	}
	quit := make(chan struct{})
	p.quit = quit

	lastPath := p.page.Path()
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if current := p.page.Path(); current != lastPath {
					lastPath = current
					onChange(current)
				}
			}
		}
	}()
}

// Stop halts polling. Safe to call repeatedly.
func (p *PollingObserver) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quit != nil {
		close(p.quit)
		p.quit = nil
	}
}

package tracker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vistrail/internal/rules"
)

// SessionStorageKey is where the agent persists its session identifier in
// the host's storage.
const SessionStorageKey = "vistrail_session_id"

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultIdleThreshold     = 30 * time.Minute
	defaultNavigationPoll    = time.Second
)

// Config tunes the agent. Zero values fall back to defaults.
type Config struct {
	// SiteDomain identifies the site server-side. Empty falls back to the
	// page hostname.
	SiteDomain string

	HeartbeatInterval  time.Duration
	IdleThreshold      time.Duration
	NavigationInterval time.Duration
}

// Options wires the agent into its host. Page and Client are required;
// everything else defaults to an in-process implementation.
type Options struct {
	Page       Page
	Client     Client
	Storage    Storage
	Clock      Clock
	Navigation NavigationObserver
	Logger     *slog.Logger
}

// Agent is the in-page tracking agent. It maintains a stable session
// identifier, emits liveness heartbeats while the visitor is active and the
// page visible, follows SPA navigations, and evaluates funnel steps and
// custom event rules against page interactions.
//
// All sends are best-effort: a failing collection server never disturbs the
// host page.
type Agent struct {
	cfg     Config
	page    Page
	client  Client
	storage Storage
	clock   Clock
	nav     NavigationObserver
	logger  *slog.Logger

	matcher *EventMatcher
	funnels *FunnelTracker

	mu           sync.Mutex
	started      bool
	sessionID    string
	visible      bool
	idle         bool
	lastActivity time.Time
	siteRules    []rules.Rule
	rulesLoaded  bool
	removers     []func()
	quit         chan struct{}
}

// NewAgent creates an agent. It does nothing until Start is called.
func NewAgent(cfg Config, opts Options) *Agent {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = defaultIdleThreshold
	}
	if cfg.NavigationInterval <= 0 {
		cfg.NavigationInterval = defaultNavigationPoll
	}
	if cfg.SiteDomain == "" {
		cfg.SiteDomain = opts.Page.Hostname()
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Navigation == nil {
		opts.Navigation = NewPollingObserver(opts.Page, cfg.NavigationInterval)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Agent{
		cfg:     cfg,
		page:    opts.Page,
		client:  opts.Client,
		storage: opts.Storage,
		clock:   opts.Clock,
		nav:     opts.Navigation,
		logger:  opts.Logger,
		matcher: NewEventMatcher(opts.Logger),
		funnels: NewFunnelTracker(opts.Client, opts.Logger),
		visible: true,
	}
}

// SessionID returns the agent's session identifier, "" before Start.
func (a *Agent) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Start boots the agent: session identity, an immediate heartbeat, rule and
// funnel evaluation for the landing page, event listeners, the navigation
// watcher, and the heartbeat loop. Starting twice is a no-op.
func (a *Agent) Start() {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.sessionID = a.loadSessionID()
	a.lastActivity = a.clock.Now()
	a.quit = make(chan struct{})
	quit := a.quit
	a.mu.Unlock()

	a.sendHeartbeat()
	a.evaluatePage()
	a.bindListeners()
	a.nav.Start(a.OnNavigate)
	go a.heartbeatLoop(quit)

	a.logger.Debug("Agent started",
		slog.String("site", a.cfg.SiteDomain),
		slog.String("page", a.page.Path()))
}

// Stop halts heartbeats and navigation watching and removes the agent's page
// listeners. Safe to call repeatedly.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	close(a.quit)
	removers := a.removers
	a.removers = nil
	a.mu.Unlock()

	a.nav.Stop()
	for _, remove := range removers {
		remove()
	}
}

// OnNavigate handles one SPA route change: per-page state resets, an
// immediate heartbeat, and fresh evaluation of the new page. Hosts with
// their own routing can call it directly instead of using an observer.
func (a *Agent) OnNavigate(newPath string) {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return
	}

	a.mu.Lock()
	a.siteRules = nil
	a.rulesLoaded = false
	a.mu.Unlock()

	a.matcher.Reset()
	a.funnels.Reset()
	a.RecordActivity()
	a.sendHeartbeat()
	a.evaluatePage()

	a.logger.Debug("Navigation", slog.String("page", newPath))
}

// SetVisible tells the agent whether the page is visible. Heartbeats pause
// while hidden; becoming visible counts as activity and heartbeats an
// immediate liveness signal.
func (a *Agent) SetVisible(visible bool) {
	a.mu.Lock()
	wasVisible := a.visible
	a.visible = visible
	started := a.started
	a.mu.Unlock()

	if started && visible && !wasVisible {
		a.RecordActivity()
		a.sendHeartbeat()
	}
}

// RecordActivity marks the visitor as active now. An idle session resumes
// with an immediate heartbeat.
func (a *Agent) RecordActivity() {
	a.mu.Lock()
	a.lastActivity = a.clock.Now()
	wasIdle := a.idle
	a.idle = false
	started := a.started
	a.mu.Unlock()

	if started && wasIdle {
		a.logger.Debug("Visitor active again")
		a.sendHeartbeat()
	}
}

// Track reports a named custom event with caller metadata. Only events
// matching an active custom-type rule are reported. A no-op before Start.
func (a *Agent) Track(eventName string, data map[string]interface{}) {
	a.mu.Lock()
	sessionID := a.sessionID
	started := a.started
	a.mu.Unlock()
	if !started || sessionID == "" || eventName == "" {
		return
	}

	path := a.page.Path()
	for _, rule := range a.ensureRules() {
		if rule.EventType != rules.EventCustom {
			continue
		}
		name := rule.Trigger.CustomEventName
		if name == "" {
			name = rule.Name
		}
		if name != eventName {
			continue
		}
		if rule.Trigger.PagePattern != "" && !strings.Contains(path, rule.Trigger.PagePattern) {
			continue
		}
		a.report(rule.Name, data)
		return
	}
}

func (a *Agent) loadSessionID() string {
	if id, ok := a.storage.Get(SessionStorageKey); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	a.storage.Set(SessionStorageKey, id)
	return id
}

// ensureRules fetches the site's active rules on first use and caches them
// until the next navigation drops the cache. A failed fetch means
// heartbeat-only tracking on this page, never an error.
func (a *Agent) ensureRules() []rules.Rule {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rulesLoaded {
		return a.siteRules
	}
	a.rulesLoaded = true

	siteRules, err := a.client.FetchEventRules(a.cfg.SiteDomain)
	if err != nil {
		a.logger.Debug("Event rules unavailable",
			slog.String("site", a.cfg.SiteDomain), slog.Any("error", err))
		return nil
	}
	active := siteRules[:0]
	for _, r := range siteRules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	a.siteRules = active
	return a.siteRules
}

func (a *Agent) sendHeartbeat() {
	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()
	if sessionID == "" {
		return
	}
	a.client.SendHeartbeat(Heartbeat{
		SessionID: sessionID,
		Page:      a.page.Path(),
		Domain:    a.cfg.SiteDomain,
		Referrer:  a.page.Referrer(),
		URLParams: a.page.QueryString(),
	})
}

// evaluatePage runs page_view rules and funnel steps for the current page.
// Runs once per page, after its heartbeat.
func (a *Agent) evaluatePage() {
	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()
	siteRules := a.ensureRules()

	path := a.page.Path()
	for _, rule := range siteRules {
		if firing, ok := a.matcher.MatchPageView(rule, path); ok {
			if a.matcher.fireOnce("pageview:" + rule.Name) {
				a.report(firing.RuleName, firing.Metadata)
			}
		}
	}
	a.funnels.EvaluatePageView(a.page, sessionID, a.cfg.SiteDomain)
}

// bindListeners attaches the agent's page listeners exactly once. Per-page
// dedupe lives in the matcher and funnel tracker, not in re-registration, so
// SPA navigations never stack duplicate handlers.
func (a *Agent) bindListeners() {
	removeClick := a.page.OnClick(func(target Element) {
		a.RecordActivity()
		a.handleClick(target)
	})
	removeSubmit := a.page.OnSubmit(func(form Element) {
		a.RecordActivity()
		a.handleSubmit(form)
	})
	removeScroll := a.page.OnScroll(func() {
		a.RecordActivity()
		a.handleScroll()
	})

	a.mu.Lock()
	a.removers = append(a.removers, removeClick, removeSubmit, removeScroll)
	a.mu.Unlock()
}

func (a *Agent) handleClick(target Element) {
	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()

	for _, rule := range a.ensureRules() {
		if firing, ok := a.matcher.MatchClick(rule, target); ok {
			a.report(firing.RuleName, firing.Metadata)
		}
	}
	a.funnels.HandleClick(a.page, target, sessionID, a.cfg.SiteDomain)
}

func (a *Agent) handleSubmit(form Element) {
	for _, rule := range a.ensureRules() {
		if firing, ok := a.matcher.MatchSubmit(rule, form); ok {
			a.report(firing.RuleName, firing.Metadata)
		}
	}
}

func (a *Agent) handleScroll() {
	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()

	for _, rule := range a.ensureRules() {
		if firing, ok := a.matcher.MatchScroll(rule, a.page); ok {
			a.report(firing.RuleName, firing.Metadata)
		}
	}
	a.funnels.HandleScroll(a.page, sessionID, a.cfg.SiteDomain)
}

func (a *Agent) report(eventName string, metadata map[string]interface{}) {
	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()
	if sessionID == "" {
		return
	}
	a.client.ReportTrigger(TriggerReport{
		SiteDomain: a.cfg.SiteDomain,
		EventName:  eventName,
		SessionID:  sessionID,
		PageURL:    a.page.URL(),
		Metadata:   metadata,
	})
}

// heartbeatLoop emits heartbeats on the configured interval while the page
// is visible and the visitor is not idle. Crossing the idle threshold stops
// heartbeats until the next activity.
func (a *Agent) heartbeatLoop(quit chan struct{}) {
	ticker := a.clock.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C():
			if a.shouldHeartbeat() {
				a.sendHeartbeat()
			}
		}
	}
}

func (a *Agent) shouldHeartbeat() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.visible {
		return false
	}
	if a.clock.Now().Sub(a.lastActivity) >= a.cfg.IdleThreshold {
		if !a.idle {
			a.idle = true
			a.logger.Debug("Visitor idle, pausing heartbeats")
		}
		return false
	}
	return true
}

package tracker

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vistrail/internal/funnels"
	"vistrail/internal/pkg/urlmatch"
)

// FunnelTracker evaluates a site's funnel steps against the current page.
// Every step is evaluated independently; step ordering is enforced by the
// completion store on the server, not here. Definitions are fetched once per
// page and cached until the navigation watcher resets them.
type FunnelTracker struct {
	client Client
	logger *slog.Logger

	mu     sync.Mutex
	steps  []funnels.Step
	loaded bool
	fired  map[string]bool
}

// NewFunnelTracker creates a tracker with an empty definition cache.
func NewFunnelTracker(client Client, logger *slog.Logger) *FunnelTracker {
	return &FunnelTracker{client: client, logger: logger, fired: make(map[string]bool)}
}

// Reset drops cached definitions and per-page firing state. Called by the
// navigation watcher before re-evaluation.
func (t *FunnelTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = nil
	t.loaded = false
	t.fired = make(map[string]bool)
}

// ensureSteps fetches definitions on first use. A failed or malformed fetch
// means no funnel tracking on this page, never an error.
func (t *FunnelTracker) ensureSteps(siteID string) []funnels.Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return t.steps
	}
	t.loaded = true

	steps, err := t.client.FetchFunnelSteps(siteID)
	if err != nil {
		t.logger.Debug("Funnel definitions unavailable",
			slog.String("site", siteID), slog.Any("error", err))
		return nil
	}
	t.steps = steps
	return t.steps
}

func (t *FunnelTracker) fireOnce(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired[key] {
		return false
	}
	t.fired[key] = true
	return true
}

// EvaluatePageView matches all page_view steps against the current path and
// reports completions.
func (t *FunnelTracker) EvaluatePageView(page Page, sessionID, siteID string) {
	path := page.Path()
	for _, step := range t.ensureSteps(siteID) {
		if step.StepType != funnels.StepPageView || step.PageView == nil {
			continue
		}
		if !urlmatch.Match(path, step.PageView.URLPattern, step.PageView.MatchType) {
			continue
		}
		t.complete(step, sessionID, siteID)
	}
}

// HandleClick matches click and click_link steps against the click target.
func (t *FunnelTracker) HandleClick(page Page, target Element, sessionID, siteID string) {
	if target == nil {
		return
	}
	path := page.Path()
	for _, step := range t.ensureSteps(siteID) {
		if step.StepType != funnels.StepCustomEvent || step.Event == nil {
			continue
		}
		cfg := step.Event
		if cfg.PagePattern != "" && !strings.Contains(path, cfg.PagePattern) {
			continue
		}

		switch cfg.EventType {
		case funnels.EventClick:
			if t.matchesClick(step, cfg, target) {
				t.complete(step, sessionID, siteID)
			}
		case funnels.EventClickLink:
			if matchesClickLink(cfg, target) {
				t.complete(step, sessionID, siteID)
			}
		}
	}
}

// HandleScroll matches scroll steps against the page's scroll position.
// Threshold steps complete once when first reached.
func (t *FunnelTracker) HandleScroll(page Page, sessionID, siteID string) {
	path := page.Path()
	percent := scrollPercentage(page)

	for _, step := range t.ensureSteps(siteID) {
		if step.StepType != funnels.StepCustomEvent || step.Event == nil {
			continue
		}
		cfg := step.Event
		if cfg.EventType != funnels.EventScroll {
			continue
		}
		if cfg.PagePattern != "" && !strings.Contains(path, cfg.PagePattern) {
			continue
		}
		if cfg.ScrollPercentage != nil && percent < float64(*cfg.ScrollPercentage) {
			continue
		}
		if !t.fireOnce(fmt.Sprintf("scroll:%d", step.ID)) {
			continue
		}
		t.complete(step, sessionID, siteID)
	}
}

func (t *FunnelTracker) matchesClick(step funnels.Step, cfg *funnels.EventConfig, target Element) bool {
	if cfg.Selector == "" {
		return false
	}
	matched, err := target.Closest(cfg.Selector)
	if err != nil {
		t.logger.Debug("Funnel click selector failed",
			slog.String("step", step.Name), slog.Any("error", err))
		return false
	}
	return matched != nil
}

// matchesClickLink tests anchors: the resolved path must satisfy the URL
// pattern (exact or substring), optionally narrowed by link text.
func matchesClickLink(cfg *funnels.EventConfig, target Element) bool {
	anchor, err := target.Closest("a")
	if err != nil || anchor == nil {
		return false
	}

	linkPath := anchor.LinkPath()
	if linkPath == "" {
		return false
	}
	if cfg.ExactMatch {
		if linkPath != cfg.URLPattern {
			return false
		}
	} else if !strings.Contains(linkPath, cfg.URLPattern) {
		return false
	}

	if cfg.LinkText != "" && !strings.Contains(anchor.Text(), cfg.LinkText) {
		return false
	}
	return true
}

// complete reports a step completion. The server is idempotent per
// (step, session); success and already_completed are equally fine and the
// response never drives re-fire logic.
func (t *FunnelTracker) complete(step funnels.Step, sessionID, siteID string) {
	resp := t.client.ReportCompletion(CompletionReport{
		StepID:     step.ID,
		SessionID:  sessionID,
		SiteDomain: siteID,
	})
	t.logger.Debug("Reported funnel step",
		slog.String("step", step.Name),
		slog.Bool("already_completed", resp.AlreadyCompleted))
}

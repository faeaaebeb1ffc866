// Package seeder loads demo funnel and rule definitions from a YAML file
// and fills the store with randomized sessions, so a fresh install has a
// dashboard worth looking at.
package seeder

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"vistrail/internal/funnels"
	"vistrail/internal/pkg/urlmatch"
	"vistrail/internal/rules"
	"vistrail/internal/sessions"
)

// Definitions is the seed file schema.
type Definitions struct {
	SiteID       string           `yaml:"site_id"`
	SessionCount int              `yaml:"session_count"`
	Funnels      []FunnelSeed     `yaml:"funnels"`
	CustomEvents []CustomEventSeed `yaml:"custom_events"`
}

// FunnelSeed is one funnel definition in the seed file.
type FunnelSeed struct {
	Name  string     `yaml:"name"`
	Steps []StepSeed `yaml:"steps"`
}

// StepSeed is one funnel step in the seed file.
type StepSeed struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"`
	URLPattern       string `yaml:"url_pattern"`
	MatchType        string `yaml:"match_type"`
	EventType        string `yaml:"event_type"`
	Selector         string `yaml:"selector"`
	ScrollPercentage *int   `yaml:"scroll_percentage"`
	PagePattern      string `yaml:"page_pattern"`
	LinkText         string `yaml:"link_text"`
	ExactMatch       bool   `yaml:"exact_match"`
}

// CustomEventSeed is one rule definition in the seed file.
type CustomEventSeed struct {
	Name             string `yaml:"name"`
	EventType        string `yaml:"event_type"`
	Selector         string `yaml:"selector"`
	PagePattern      string `yaml:"page_pattern"`
	ScrollPercentage *int   `yaml:"scroll_percentage"`
	CustomEventName  string `yaml:"custom_event_name"`
}

// Run seeds the database from the YAML file at path. Seeding an already
// seeded site is skipped, so restarts stay idempotent.
func Run(db *gorm.DB, logger *slog.Logger, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("No seed file, skipping", slog.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	if defs.SiteID == "" {
		return fmt.Errorf("seed file is missing site_id")
	}

	var existing int64
	if err := db.Model(&sessions.Session{}).Where("site_id = ?", defs.SiteID).Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to check existing seed data: %w", err)
	}
	if existing > 0 {
		logger.Info("Seed data already present, skipping",
			slog.String("site", defs.SiteID), slog.Int64("sessions", existing))
		return nil
	}

	start := time.Now()
	funnelStore := funnels.NewStore(db, logger)
	ruleStore := rules.NewStore(db, logger)

	if err := seedFunnels(funnelStore, defs); err != nil {
		return err
	}
	if err := seedRules(ruleStore, defs); err != nil {
		return err
	}
	created, err := seedSessions(db, defs)
	if err != nil {
		return err
	}

	logger.Info("Seeding completed",
		slog.String("site", defs.SiteID),
		slog.Int("sessions", created),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func seedFunnels(store *funnels.Store, defs Definitions) error {
	for _, funnel := range defs.Funnels {
		for i, seed := range funnel.Steps {
			step, err := buildStep(defs.SiteID, i+1, seed)
			if err != nil {
				return fmt.Errorf("funnel %q: %w", funnel.Name, err)
			}
			if err := store.SaveStep(&step); err != nil {
				return fmt.Errorf("funnel %q: %w", funnel.Name, err)
			}
		}
	}
	return nil
}

func buildStep(siteID string, number int, seed StepSeed) (funnels.Step, error) {
	if seed.Type == string(funnels.StepPageView) {
		return funnels.NewPageViewStep(siteID, number, seed.Name, seed.URLPattern, urlMatchType(seed.MatchType))
	}
	return funnels.NewEventStep(siteID, number, seed.Name, funnels.EventConfig{
		EventType:        funnels.EventType(seed.EventType),
		Selector:         seed.Selector,
		ScrollPercentage: seed.ScrollPercentage,
		PagePattern:      seed.PagePattern,
		URLPattern:       seed.URLPattern,
		LinkText:         seed.LinkText,
		ExactMatch:       seed.ExactMatch,
	})
}

func seedRules(store *rules.Store, defs Definitions) error {
	for _, seed := range defs.CustomEvents {
		rule, err := rules.NewRule(defs.SiteID, seed.Name, rules.EventType(seed.EventType), seed.Selector, rules.TriggerConfig{
			PagePattern:      seed.PagePattern,
			ScrollPercentage: seed.ScrollPercentage,
			CustomEventName:  seed.CustomEventName,
		})
		if err != nil {
			return fmt.Errorf("custom event %q: %w", seed.Name, err)
		}
		if err := store.SaveRule(&rule); err != nil {
			return fmt.Errorf("custom event %q: %w", seed.Name, err)
		}
	}
	return nil
}

// Journey templates and attribute pools for randomized demo sessions.
var (
	journeyTemplates = [][]string{
		{"/", "/about", "/contact"},
		{"/", "/features", "/pricing", "/signup"},
		{"/", "/blog", "/blog/article-1", "/signup"},
		{"/pricing", "/features", "/signup"},
		{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
		{"/", "/signup"},
		{"/"},
		{"/blog/article-1"},
		{"/login", "/dashboard", "/settings"},
	}
	browsers    = []string{"Chrome", "Firefox", "Safari", "Edge"}
	systems     = []string{"Windows", "macOS", "Linux", "iOS", "Android"}
	screenSizes = []string{"1920x1080", "1440x900", "390x844", "768x1024"}
	countries   = []string{"us", "de", "gb", "fr", "es", "nl", "br", "jp"}
	languages   = []string{"en-US", "de-DE", "en-GB", "fr-FR", "es-ES", "nl-NL", "pt-BR", "ja-JP"}

	referrerPool = []struct {
		hostname string
		source   string
		medium   string
	}{
		{"", "", ""},
		{"", "", ""},
		{"www.google.com", "", ""},
		{"duckduckgo.com", "", ""},
		{"t.co", "", ""},
		{"www.reddit.com", "", ""},
		{"news.ycombinator.com", "", ""},
		{"", "google", "cpc"},
		{"", "newsletter", "email"},
		{"", "facebook", "paid_social"},
	}
)

func seedSessions(db *gorm.DB, defs Definitions) (int, error) {
	count := defs.SessionCount
	if count <= 0 {
		count = 500
	}

	now := time.Now()
	for i := 0; i < count; i++ {
		journey := journeyTemplates[rand.Intn(len(journeyTemplates))]
		attribution := referrerPool[rand.Intn(len(referrerPool))]
		createdAt := now.Add(-time.Duration(rand.Intn(30*24)) * time.Hour)

		session := sessions.Session{
			PublicID:         uuid.NewString(),
			SiteID:           defs.SiteID,
			CreatedAt:        createdAt,
			LastSeen:         createdAt.Add(time.Duration(rand.Intn(600)) * time.Second),
			Country:          countries[rand.Intn(len(countries))],
			Browser:          browsers[rand.Intn(len(browsers))],
			OS:               systems[rand.Intn(len(systems))],
			ScreenSize:       screenSizes[rand.Intn(len(screenSizes))],
			Language:         languages[rand.Intn(len(languages))],
			ReferrerHostname: attribution.hostname,
			UTMSource:        attribution.source,
			UTMMedium:        attribution.medium,
			VisitedPages:     append(sessions.PageList{}, journey...),
			PageViews:        len(journey),
		}
		if attribution.hostname != "" {
			session.Referrer = "https://" + attribution.hostname + "/"
		}

		if err := db.Create(&session).Error; err != nil {
			return i, fmt.Errorf("failed to create demo session: %w", err)
		}
	}
	return count, nil
}

func urlMatchType(raw string) urlmatch.MatchType {
	if raw == "" {
		return urlmatch.MatchExact
	}
	return urlmatch.MatchType(raw)
}

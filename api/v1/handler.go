// Package v1 exposes the collection and query API consumed by the tracking
// agent and the dashboard.
package v1

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"vistrail/internal/analytics"
	"vistrail/internal/funnels"
	"vistrail/internal/pkg/useragent"
	"vistrail/internal/rules"
	"vistrail/internal/sessions"
)

const (
	errInvalidRequest = "Invalid request"
	errMissingSite    = "Missing siteId"
)

// Handler carries the API's dependencies.
type Handler struct {
	sessions *sessions.Store
	funnels  *funnels.Store
	rules    *rules.Store
	engine   *analytics.Engine
	logger   *slog.Logger
}

// NewHandler wires the API over its stores and the aggregation engine.
func NewHandler(
	sessionStore *sessions.Store,
	funnelStore *funnels.Store,
	ruleStore *rules.Store,
	engine *analytics.Engine,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions: sessionStore,
		funnels:  funnelStore,
		rules:    ruleStore,
		engine:   engine,
		logger:   logger,
	}
}

// HeartbeatParams is the wire form of one heartbeat.
type HeartbeatParams struct {
	SessionID string `json:"sessionId"`
	Page      string `json:"page"`
	Domain    string `json:"domain"`
	Referrer  string `json:"referrer"`
	URLParams string `json:"urlParams"`
}

// CreateHeartbeat ingests one heartbeat. The response is 202 for everything
// the agent should not retry, including bot traffic, which is accepted and
// dropped.
func (h *Handler) CreateHeartbeat(c *fiber.Ctx) error {
	var params HeartbeatParams
	if err := c.BodyParser(&params); err != nil {
		h.logger.Debug("Failed to parse heartbeat", slog.Any("error", err))
		return badRequest(c, errInvalidRequest, "INVALID_BODY")
	}
	if params.SessionID == "" || params.Domain == "" || params.Page == "" {
		return badRequest(c, "sessionId, domain and page are required", "MISSING_FIELDS")
	}

	userAgentHeader := c.Get("User-Agent")
	if forwardedUA := c.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgentHeader = forwardedUA
	}

	ua := useragent.Parse(userAgentHeader)
	if ua.Bot {
		h.logger.Debug("Dropping bot heartbeat",
			slog.String("bot", ua.BotName),
			slog.String("domain", params.Domain))
		return c.SendStatus(http.StatusAccepted)
	}

	input := sessions.HeartbeatInput{
		SessionID:  params.SessionID,
		Page:       params.Page,
		Domain:     params.Domain,
		Referrer:   params.Referrer,
		URLParams:  params.URLParams,
		IPAddress:  getClientIP(c),
		Language:   primaryLanguage(c.Get("Accept-Language")),
		Browser:    knownOrEmpty(ua.Browser),
		OS:         knownOrEmpty(ua.OS),
		ScreenSize: c.Get("X-Screen-Size"),
		Timestamp:  time.Now(),
	}

	if err := h.sessions.RecordHeartbeat(input); err != nil {
		h.logger.Error("Failed to record heartbeat", slog.Any("error", err))
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
			return c.Status(599).JSON(fiber.Map{}) // custom status code
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record heartbeat",
			"code":  "COLLECTION_ERROR",
		})
	}

	return c.SendStatus(http.StatusAccepted)
}

// GetFunnels returns the site's funnel step definitions ordered by step
// number.
func (h *Handler) GetFunnels(c *fiber.Ctx) error {
	siteID := c.Query("siteId")
	if siteID == "" {
		return badRequest(c, errMissingSite, "MISSING_SITE")
	}

	steps, err := h.funnels.DefinitionsBySite(siteID)
	if err != nil {
		h.logger.Error("Failed to load funnel definitions", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load funnels",
			"code":  "QUERY_ERROR",
		})
	}
	return c.JSON(steps)
}

// GetCustomEvents returns the site's active custom event rules.
func (h *Handler) GetCustomEvents(c *fiber.Ctx) error {
	siteID := c.Query("siteId")
	if siteID == "" {
		return badRequest(c, errMissingSite, "MISSING_SITE")
	}

	active, err := h.rules.ActiveBySite(siteID)
	if err != nil {
		h.logger.Error("Failed to load event rules", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load custom events",
			"code":  "QUERY_ERROR",
		})
	}
	return c.JSON(active)
}

// TriggerParams is the wire form of one custom event firing.
type TriggerParams struct {
	SiteDomain string                 `json:"site_domain"`
	EventName  string                 `json:"event_name"`
	SessionID  string                 `json:"session_id"`
	PageURL    string                 `json:"page_url"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CreateTrigger records one custom event firing.
func (h *Handler) CreateTrigger(c *fiber.Ctx) error {
	var params TriggerParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, errInvalidRequest, "INVALID_BODY")
	}
	if params.SiteDomain == "" || params.EventName == "" {
		return badRequest(c, "site_domain and event_name are required", "MISSING_FIELDS")
	}

	err := h.rules.RecordTrigger(params.SiteDomain, params.EventName, params.SessionID, params.PageURL, params.Metadata)
	if err != nil {
		h.logger.Error("Failed to record trigger",
			slog.String("event", params.EventName), slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record event",
			"code":  "COLLECTION_ERROR",
		})
	}
	return c.SendStatus(http.StatusAccepted)
}

// CompletionParams is the wire form of one funnel step completion.
type CompletionParams struct {
	StepID     uint   `json:"step_id"`
	SessionID  string `json:"session_id"`
	SiteDomain string `json:"site_domain"`
}

// CreateCompletion records one funnel step completion. Completions are
// idempotent per (step, session): a repeat answers already_completed and
// never double-counts.
func (h *Handler) CreateCompletion(c *fiber.Ctx) error {
	var params CompletionParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, errInvalidRequest, "INVALID_BODY")
	}
	if params.StepID == 0 || params.SessionID == "" {
		return badRequest(c, "step_id and session_id are required", "MISSING_FIELDS")
	}

	result, err := h.funnels.RecordCompletion(params.StepID, params.SessionID, params.SiteDomain)
	if err != nil {
		h.logger.Error("Failed to record completion",
			slog.Uint64("step", uint64(params.StepID)), slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record completion",
			"code":  "COLLECTION_ERROR",
		})
	}

	return c.JSON(fiber.Map{
		"success":           result.Success,
		"already_completed": result.AlreadyCompleted,
	})
}

func badRequest(c *fiber.Ctx, message, code string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// knownOrEmpty maps the parser's Unknown sentinel to "" so the session layer
// applies its own unknown handling.
func knownOrEmpty(value string) string {
	if value == useragent.Unknown {
		return ""
	}
	return value
}

// primaryLanguage extracts the first tag of an Accept-Language header.
func primaryLanguage(header string) string {
	if header == "" {
		return ""
	}
	first := strings.Split(header, ",")[0]
	first = strings.Split(first, ";")[0]
	return strings.TrimSpace(first)
}

package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"vistrail/internal/funnels"
	"vistrail/internal/rules"
)

// Heartbeat is the periodic liveness payload.
type Heartbeat struct {
	SessionID string `json:"sessionId"`
	Page      string `json:"page"`
	Domain    string `json:"domain"`
	Referrer  string `json:"referrer"`
	URLParams string `json:"urlParams"`
}

// TriggerReport reports one custom event firing.
type TriggerReport struct {
	SiteDomain string                 `json:"site_domain"`
	EventName  string                 `json:"event_name"`
	SessionID  string                 `json:"session_id"`
	PageURL    string                 `json:"page_url"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CompletionReport reports one funnel step completion.
type CompletionReport struct {
	StepID     uint   `json:"step_id"`
	SessionID  string `json:"session_id"`
	SiteDomain string `json:"site_domain"`
}

// CompletionResponse is the server's answer to a completion report. Both
// success and already_completed are non-error outcomes.
type CompletionResponse struct {
	Success          bool `json:"success"`
	AlreadyCompleted bool `json:"already_completed"`
}

// Client is the agent's wire API. Sends are best-effort: implementations
// never return transport errors to the agent, they swallow and move on.
// Definition fetches do return errors, which callers treat as "no rules".
type Client interface {
	SendHeartbeat(hb Heartbeat)
	FetchFunnelSteps(siteID string) ([]funnels.Step, error)
	FetchEventRules(siteID string) ([]rules.Rule, error)
	ReportTrigger(report TriggerReport)
	ReportCompletion(report CompletionReport) CompletionResponse
}

// HTTPClient talks to the collection server over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client against the given base URL.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// SendHeartbeat posts the heartbeat, fire-and-forget.
func (c *HTTPClient) SendHeartbeat(hb Heartbeat) {
	c.post("/api/v1/heartbeat", hb, nil)
}

// FetchFunnelSteps retrieves the site's funnel step definitions.
func (c *HTTPClient) FetchFunnelSteps(siteID string) ([]funnels.Step, error) {
	var steps []funnels.Step
	if err := c.get("/api/v1/funnels", siteID, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// FetchEventRules retrieves the site's active custom event rules.
func (c *HTTPClient) FetchEventRules(siteID string) ([]rules.Rule, error) {
	var result []rules.Rule
	if err := c.get("/api/v1/custom-events", siteID, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ReportTrigger posts a custom event firing, fire-and-forget.
func (c *HTTPClient) ReportTrigger(report TriggerReport) {
	c.post("/api/v1/custom-events/trigger", report, nil)
}

// ReportCompletion posts a funnel step completion. Transport failures return
// a zero response; the agent does not re-fire logic based on it either way.
func (c *HTTPClient) ReportCompletion(report CompletionReport) CompletionResponse {
	var resp CompletionResponse
	c.post("/api/v1/funnels/complete", report, &resp)
	return resp
}

// post sends a JSON body. Errors are swallowed: delivery is best-effort and
// a tracking failure must never surface to the page.
func (c *HTTPClient) post(path string, body interface{}, out interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		c.logger.Debug("Failed to encode payload", slog.String("path", path), slog.Any("error", err))
		return
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		c.logger.Debug("Request failed", slog.String("path", path), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.logger.Debug("Failed to decode response", slog.String("path", path), slog.Any("error", err))
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
}

func (c *HTTPClient) get(path, siteID string, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s?siteId=%s", c.baseURL, path, url.QueryEscape(siteID))
	resp, err := c.http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("fetch %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch %s returned malformed body: %w", path, err)
	}
	return nil
}

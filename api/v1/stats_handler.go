package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vistrail/internal/analytics"
	"vistrail/internal/pkg/geoip"
	"vistrail/internal/sessions"
	"vistrail/internal/timeframe"
)

// GetStats returns analytics for a site, optionally narrowed by filters. The
// "filters" query parameter is a comma list of "type:value" pairs; unknown
// types are a 400.
func (h *Handler) GetStats(c *fiber.Ctx) error {
	siteID := c.Query("siteId")
	if siteID == "" {
		return badRequest(c, errMissingSite, "MISSING_SITE")
	}

	filterSet, err := parseFilters(c.Query("filters"))
	if err != nil {
		h.logger.Debug("Rejected stats filters", slog.Any("error", err))
		return badRequest(c, err.Error(), "INVALID_FILTER")
	}

	rng, err := timeframe.NewParser().Parse(timeframe.ParserParams{
		Range:    c.Query("range"),
		FromDate: c.Query("from"),
		ToDate:   c.Query("to"),
		Tz:       c.Query("tz"),
	})
	if err != nil {
		h.logger.Debug("Rejected stats time range", slog.Any("error", err))
		return badRequest(c, err.Error(), "INVALID_RANGE")
	}

	result, err := h.engine.Compute(siteID, rng, filterSet)
	if err != nil {
		h.logger.Error("Failed to compute stats",
			slog.String("site", siteID), slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
			"code":  "QUERY_ERROR",
		})
	}

	// Display conversion happens on a copy so the cached result keeps its
	// raw values.
	display := *result
	display.Countries = convertCountryStats(result.Countries)
	display.Browsers = convertLabelStats(result.Browsers)
	display.OperatingSystems = convertOSStats(result.OperatingSystems)
	display.ScreenSizes = convertLabelStats(result.ScreenSizes)

	return c.JSON(display)
}

// parseFilters parses the comma list of "type:value" pairs into a set.
// Values may contain ":"; only the first colon splits.
func parseFilters(raw string) (*analytics.FilterSet, error) {
	set := analytics.NewFilterSet()
	if raw == "" {
		return set, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fiber.NewError(http.StatusBadRequest, "malformed filter "+pair)
		}
		filterType := analytics.FilterType(parts[0])
		if !filterType.Valid() {
			return nil, fiber.NewError(http.StatusBadRequest, "unknown filter type "+parts[0])
		}
		set.Add(analytics.Filter{Type: filterType, Value: parts[1]})
	}
	return set, nil
}

// convertCountryStats maps ISO codes to country names for display. Codes
// the country database does not know fall back to their uppercase form.
func convertCountryStats(items []analytics.MetricCountResult) []analytics.MetricCountResult {
	caser := cases.Upper(language.AmericanEnglish)
	countries := gountries.New()

	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		converted := item
		if item.Name == geoip.UnknownCountry || item.Name == sessions.UnknownField {
			converted.Name = "Unknown"
		} else if country, err := countries.FindCountryByAlpha(item.Name); err == nil {
			converted.Name = country.Name.Common
		} else {
			converted.Name = caser.String(item.Name)
		}
		result[i] = converted
	}
	return result
}

// convertLabelStats title-cases breakdown labels and renames the unknown
// sentinel.
func convertLabelStats(items []analytics.MetricCountResult) []analytics.MetricCountResult {
	caser := cases.Title(language.AmericanEnglish)

	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		converted := item
		if item.Name == sessions.UnknownField {
			converted.Name = "Unknown"
		} else {
			converted.Name = caser.String(item.Name)
		}
		result[i] = converted
	}
	return result
}

func convertOSStats(items []analytics.MetricCountResult) []analytics.MetricCountResult {
	caser := cases.Title(language.AmericanEnglish)

	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		converted := item
		if item.Name == sessions.UnknownField {
			converted.Name = "Unknown"
			result[i] = converted
			continue
		}

		// Keep vendor capitalization Title would mangle.
		switch strings.ToLower(strings.TrimSpace(item.Name)) {
		case "ios", "iphone os":
			converted.Name = "iOS"
		case "ipados":
			converted.Name = "iPadOS"
		case "macos", "mac os", "mac os x", "darwin":
			converted.Name = "macOS"
		default:
			converted.Name = caser.String(item.Name)
		}
		result[i] = converted
	}
	return result
}

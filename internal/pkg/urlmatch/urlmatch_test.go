package urlmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		pattern   string
		matchType MatchType
		want      bool
	}{
		{"exact hit", "/pricing", "/pricing", MatchExact, true},
		{"exact miss on suffix", "/pricing/annual", "/pricing", MatchExact, false},
		{"contains hit", "/blog/2025/launch", "/blog/", MatchContains, true},
		{"contains miss", "/docs", "/blog/", MatchContains, false},
		{"starts_with hit", "/docs/getting-started", "/docs", MatchStartsWith, true},
		{"starts_with miss mid-path", "/help/docs", "/docs", MatchStartsWith, false},
		{"regex hit", "/users/42/profile", `^/users/\d+/profile$`, MatchRegex, true},
		{"regex miss", "/users/abc/profile", `^/users/\d+/profile$`, MatchRegex, false},
		{"empty pattern matches anything", "/whatever", "", MatchRegex, true},
		{"broken regex never matches", "/pricing", "([", MatchRegex, false},
		{"unknown match type never matches", "/pricing", "/pricing", MatchType("glob"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.value, tt.pattern, tt.matchType))
		})
	}
}

func TestMatchRegexCacheReuse(t *testing.T) {
	pattern := `^/checkout/(cart|payment)$`
	assert.True(t, Match("/checkout/cart", pattern, MatchRegex))
	assert.True(t, Match("/checkout/payment", pattern, MatchRegex))
	assert.False(t, Match("/checkout/done", pattern, MatchRegex))
}

func TestMatchTypeValid(t *testing.T) {
	assert.True(t, MatchExact.Valid())
	assert.True(t, MatchContains.Valid())
	assert.True(t, MatchStartsWith.Valid())
	assert.True(t, MatchRegex.Valid())
	assert.False(t, MatchType("").Valid())
	assert.False(t, MatchType("fuzzy").Valid())
}

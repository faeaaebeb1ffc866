package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBrowsers(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		browser   string
		os        string
	}{
		{
			"chrome on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Chrome", "Windows",
		},
		{
			"firefox on linux",
			"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
			"Firefox", "Linux",
		},
		{
			"safari on macos",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
			"Safari", "macOS",
		},
		{
			"edge wins over chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
			"Edge", "Windows",
		},
		{
			"chrome on ios uses crios token",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/126.0.0.0 Mobile/15E148 Safari/604.1",
			"Chrome", "iOS",
		},
		{
			"samsung internet on android",
			"Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/25.0 Chrome/121.0.0.0 Mobile Safari/537.36",
			"Samsung Internet", "Android",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ua := Parse(tt.userAgent)
			assert.False(t, ua.Bot)
			assert.Equal(t, tt.browser, ua.Browser)
			assert.Equal(t, tt.os, ua.OS)
		})
	}
}

func TestParseBots(t *testing.T) {
	tests := []struct {
		userAgent string
		botName   string
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "Googlebot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", "Bingbot"},
		{"Twitterbot/1.0", "Twitterbot"},
	}

	for _, tt := range tests {
		ua := Parse(tt.userAgent)
		assert.True(t, ua.Bot, tt.userAgent)
		assert.Equal(t, tt.botName, ua.BotName)
		assert.Equal(t, Unknown, ua.Browser)
		assert.Equal(t, Unknown, ua.OS)
	}
}

func TestParseUnrecognized(t *testing.T) {
	ua := Parse("SomethingEntirelyMadeUp/1.0")
	assert.False(t, ua.Bot)
	assert.Equal(t, Unknown, ua.Browser)
	assert.Equal(t, Unknown, ua.OS)
}

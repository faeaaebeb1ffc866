// Package useragent classifies User-Agent strings into browser, operating
// system, and bot verdicts using an embedded pattern database.
package useragent

import (
	"embed"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Unknown is returned when no pattern matches a component.
const Unknown = "Unknown"

// UserAgent is the classification of one User-Agent string.
type UserAgent struct {
	Browser string
	OS      string
	BotName string
	Bot     bool
}

//go:embed database/definitions.yml
var databaseFiles embed.FS

type patternEntry struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

type definitions struct {
	Browsers []patternEntry `yaml:"browsers"`
	OSs      []patternEntry `yaml:"oss"`
	Bots     []patternEntry `yaml:"bots"`
}

type regexCache struct {
	mu       sync.RWMutex
	compiled map[string]*pcre.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{compiled: make(map[string]*pcre.Regexp)}
}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mu.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mu.RUnlock()
		return regex, nil
	}
	rc.mu.RUnlock()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Double-check pattern
	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

type detector struct {
	defs  definitions
	cache *regexCache
}

var (
	parser     *detector
	parserOnce sync.Once
)

func getParser() *detector {
	parserOnce.Do(func() {
		parser = &detector{cache: newRegexCache()}
		if data, err := databaseFiles.ReadFile("database/definitions.yml"); err == nil {
			// A malformed database degrades to Unknown for everything.
			_ = yaml.Unmarshal(data, &parser.defs)
		}
	})
	return parser
}

// matchFirst returns the name of the first entry whose pattern matches, in
// database order.
func (d *detector) matchFirst(entries []patternEntry, userAgent string) (string, bool) {
	for _, entry := range entries {
		regex, err := d.cache.get(entry.Regex)
		if err != nil {
			continue
		}
		if regex.MatchString(userAgent) {
			return entry.Name, true
		}
	}
	return "", false
}

// Parse classifies a User-Agent string. Bots are checked first; for bot
// traffic the browser and OS stay Unknown.
func Parse(userAgent string) UserAgent {
	p := getParser()

	if name, ok := p.matchFirst(p.defs.Bots, userAgent); ok {
		return UserAgent{Browser: Unknown, OS: Unknown, BotName: name, Bot: true}
	}

	result := UserAgent{Browser: Unknown, OS: Unknown}
	if name, ok := p.matchFirst(p.defs.Browsers, userAgent); ok {
		result.Browser = name
	}
	if name, ok := p.matchFirst(p.defs.OSs, userAgent); ok {
		result.OS = name
	}
	return result
}

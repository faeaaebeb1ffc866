// Package urlmatch matches page paths against user-defined URL patterns.
package urlmatch

import (
	"strings"
	"sync"

	"go.elara.ws/pcre"
)

// MatchType selects how a pattern is compared against a path.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchRegex      MatchType = "regex"
)

// Valid reports whether mt is one of the supported match types.
func (mt MatchType) Valid() bool {
	switch mt {
	case MatchExact, MatchContains, MatchStartsWith, MatchRegex:
		return true
	}
	return false
}

// Compiled regex cache. Patterns come from user-defined funnel steps and are
// reused on every page view, so compile once and keep them.
type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

var cache = &regexCache{compiled: make(map[string]*pcre.Regexp)}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

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

// Match compares value against pattern using the given match type.
// An empty pattern matches unconditionally. A pattern that fails to compile
// as a regex never matches; a user's broken pattern must not break tracking.
func Match(value, pattern string, matchType MatchType) bool {
	if pattern == "" {
		return true
	}

	switch matchType {
	case MatchExact:
		return value == pattern
	case MatchContains:
		return strings.Contains(value, pattern)
	case MatchStartsWith:
		return strings.HasPrefix(value, pattern)
	case MatchRegex:
		regex, err := cache.get(pattern)
		if err != nil {
			return false
		}
		return regex.MatchString(value)
	default:
		return false
	}
}

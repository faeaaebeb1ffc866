// Package referrers normalizes raw referrer hostnames and UTM values into
// display names and coarse traffic channels.
package referrers

import "strings"

// Category groups referrer sources by the kind of site they are.
type Category string

const (
	CategorySearch    Category = "search"
	CategorySocial    Category = "social"
	CategoryEmail     Category = "email"
	CategoryCommunity Category = "community"
	CategoryNews      Category = "news"
	CategoryShortener Category = "shortener"
	CategoryOther     Category = "other"
	CategoryDirect    Category = "direct"
)

// Channel is the coarse traffic-source classification shown on the dashboard.
type Channel string

const (
	ChannelDirect        Channel = "Direct"
	ChannelOrganicSearch Channel = "Organic Search"
	ChannelPaidSearch    Channel = "Paid Search"
	ChannelOrganicSocial Channel = "Organic Social"
	ChannelPaidSocial    Channel = "Paid Social"
	ChannelEmail         Channel = "Email"
	ChannelReferral      Channel = "Referral"
)

// Source is a normalized referrer source.
type Source struct {
	DisplayName string
	Name        string
	Category    Category
}

type sourceInfo struct {
	display  string
	category Category
}

// Common referrer hostnames mapped to friendly display names and categories.
// Link shorteners owned by a platform resolve to the platform itself.
var knownSources = map[string]sourceInfo{
	// Search engines
	"google.com":     {"Google", CategorySearch},
	"google.co.uk":   {"Google", CategorySearch},
	"google.de":      {"Google", CategorySearch},
	"google.fr":      {"Google", CategorySearch},
	"google.es":      {"Google", CategorySearch},
	"google.it":      {"Google", CategorySearch},
	"google.ca":      {"Google", CategorySearch},
	"google.com.au":  {"Google", CategorySearch},
	"google.co.jp":   {"Google", CategorySearch},
	"google.com.br":  {"Google", CategorySearch},
	"bing.com":       {"Bing", CategorySearch},
	"duckduckgo.com": {"DuckDuckGo", CategorySearch},
	"yahoo.com":      {"Yahoo", CategorySearch},
	"baidu.com":      {"Baidu", CategorySearch},
	"yandex.ru":      {"Yandex", CategorySearch},
	"ecosia.org":     {"Ecosia", CategorySearch},
	"kagi.com":       {"Kagi", CategorySearch},

	// Social media
	"x.com":           {"X/Twitter", CategorySocial},
	"twitter.com":     {"X/Twitter", CategorySocial},
	"t.co":            {"X/Twitter", CategorySocial},
	"facebook.com":    {"Facebook", CategorySocial},
	"fb.com":          {"Facebook", CategorySocial},
	"l.facebook.com":  {"Facebook", CategorySocial},
	"lm.facebook.com": {"Facebook", CategorySocial},
	"instagram.com":   {"Instagram", CategorySocial},
	"l.instagram.com": {"Instagram", CategorySocial},
	"linkedin.com":    {"LinkedIn", CategorySocial},
	"lnkd.in":         {"LinkedIn", CategorySocial},
	"tiktok.com":      {"TikTok", CategorySocial},
	"pinterest.com":   {"Pinterest", CategorySocial},
	"reddit.com":      {"Reddit", CategorySocial},
	"old.reddit.com":  {"Reddit", CategorySocial},
	"threads.net":     {"Threads", CategorySocial},
	"bsky.app":        {"Bluesky", CategorySocial},
	"mastodon.social": {"Mastodon", CategorySocial},
	"youtube.com":     {"YouTube", CategorySocial},
	"youtu.be":        {"YouTube", CategorySocial},
	"snapchat.com":    {"Snapchat", CategorySocial},
	"discord.com":     {"Discord", CategorySocial},
	"discordapp.com":  {"Discord", CategorySocial},
	"whatsapp.com":    {"WhatsApp", CategorySocial},
	"telegram.org":    {"Telegram", CategorySocial},
	"t.me":            {"Telegram", CategorySocial},
	"slack.com":       {"Slack", CategorySocial},

	// Tech communities
	"news.ycombinator.com": {"Hacker News", CategoryCommunity},
	"hn.algolia.com":       {"Hacker News", CategoryCommunity},
	"lobste.rs":            {"Lobsters", CategoryCommunity},
	"producthunt.com":      {"Product Hunt", CategoryCommunity},
	"indiehackers.com":     {"Indie Hackers", CategoryCommunity},
	"dev.to":               {"DEV Community", CategoryCommunity},
	"hashnode.com":         {"Hashnode", CategoryCommunity},
	"medium.com":           {"Medium", CategoryCommunity},
	"substack.com":         {"Substack", CategoryCommunity},
	"hackernoon.com":       {"HackerNoon", CategoryCommunity},
	"github.com":           {"GitHub", CategoryCommunity},
	"gitlab.com":           {"GitLab", CategoryCommunity},
	"stackoverflow.com":    {"Stack Overflow", CategoryCommunity},
	"quora.com":            {"Quora", CategoryCommunity},

	// News
	"nytimes.com":        {"NY Times", CategoryNews},
	"washingtonpost.com": {"Washington Post", CategoryNews},
	"theguardian.com":    {"The Guardian", CategoryNews},
	"bbc.com":            {"BBC", CategoryNews},
	"bbc.co.uk":          {"BBC", CategoryNews},
	"cnn.com":            {"CNN", CategoryNews},
	"techcrunch.com":     {"TechCrunch", CategoryNews},
	"theverge.com":       {"The Verge", CategoryNews},
	"arstechnica.com":    {"Ars Technica", CategoryNews},
	"wired.com":          {"Wired", CategoryNews},

	// Email providers (for newsletter clicks)
	"mail.google.com":    {"Gmail", CategoryEmail},
	"outlook.live.com":   {"Outlook", CategoryEmail},
	"outlook.office.com": {"Outlook", CategoryEmail},
	"mail.yahoo.com":     {"Yahoo Mail", CategoryEmail},
	"protonmail.com":     {"Proton Mail", CategoryEmail},
	"mail.proton.me":     {"Proton Mail", CategoryEmail},

	// Link shorteners
	"bit.ly":      {"Bitly", CategoryShortener},
	"tinyurl.com": {"TinyURL", CategoryShortener},
	"goo.gl":      {"Google Links", CategoryShortener},
	"ow.ly":       {"Hootsuite", CategoryShortener},
}

// Well-known values passed in an explicit ?ref= parameter or utm_source.
var knownRefParams = map[string]sourceInfo{
	"producthunt":  {"Product Hunt", CategoryCommunity},
	"hackernews":   {"Hacker News", CategoryCommunity},
	"hn":           {"Hacker News", CategoryCommunity},
	"indiehackers": {"Indie Hackers", CategoryCommunity},
	"reddit":       {"Reddit", CategorySocial},
	"twitter":      {"X/Twitter", CategorySocial},
	"x":            {"X/Twitter", CategorySocial},
	"facebook":     {"Facebook", CategorySocial},
	"instagram":    {"Instagram", CategorySocial},
	"linkedin":     {"LinkedIn", CategorySocial},
	"tiktok":       {"TikTok", CategorySocial},
	"youtube":      {"YouTube", CategorySocial},
	"google":       {"Google", CategorySearch},
	"bing":         {"Bing", CategorySearch},
	"duckduckgo":   {"DuckDuckGo", CategorySearch},
	"newsletter":   {"Newsletter", CategoryEmail},
	"email":        {"Email", CategoryEmail},
	"github":       {"GitHub", CategoryCommunity},
}

// Normalize resolves a raw referrer hostname or ref-parameter value to a
// normalized source. Empty input is Direct.
func Normalize(raw string, isRefParam bool) Source {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return Source{DisplayName: "Direct", Name: "direct", Category: CategoryDirect}
	}

	if isRefParam {
		if info, ok := knownRefParams[value]; ok {
			return Source{DisplayName: info.display, Name: value, Category: info.category}
		}
	}

	if info, ok := lookupHostname(value); ok {
		return Source{DisplayName: info.display, Name: value, Category: info.category}
	}

	return Source{DisplayName: capitalizeFirst(value), Name: value, Category: CategoryOther}
}

// Classify maps UTM values and the referrer hostname to a traffic channel.
// First match wins: paid intent, declared social/email medium, search intent,
// known search/social referrer, any other referrer, else direct.
func Classify(utmMedium, utmSourceOrRef, referrerHostname string) Channel {
	medium := strings.ToLower(strings.TrimSpace(utmMedium))
	source := strings.ToLower(strings.TrimSpace(utmSourceOrRef))
	host := strings.ToLower(strings.TrimSpace(referrerHostname))

	if isPaidMedium(medium) {
		if isSocialSource(source) || hostnameCategory(host) == CategorySocial {
			return ChannelPaidSocial
		}
		return ChannelPaidSearch
	}

	if medium == "social" {
		return ChannelOrganicSocial
	}

	if medium == "email" || medium == "newsletter" {
		return ChannelEmail
	}

	if medium == "organic" || medium == "search" {
		return ChannelOrganicSearch
	}

	hasAttribution := medium != "" || source != ""
	if !hasAttribution {
		switch hostnameCategory(host) {
		case CategorySearch:
			return ChannelOrganicSearch
		case CategorySocial:
			return ChannelOrganicSocial
		}
	}

	if host != "" || hasAttribution {
		return ChannelReferral
	}

	return ChannelDirect
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// If the hostname is not in the known list, it returns the hostname
// with common prefixes like "www." removed and first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.ToLower(hostname)

	if info, ok := lookupHostname(hostname); ok {
		return info.display
	}

	hostname = strings.TrimPrefix(hostname, "www.")
	return capitalizeFirst(hostname)
}

// lookupHostname resolves a hostname against the known-source table, trying
// the exact host, the host without "www.", then known-domain suffixes.
func lookupHostname(hostname string) (sourceInfo, bool) {
	if hostname == "" {
		return sourceInfo{}, false
	}

	if info, ok := knownSources[hostname]; ok {
		return info, true
	}

	if strings.HasPrefix(hostname, "www.") {
		withoutWWW := hostname[4:]
		if info, ok := knownSources[withoutWWW]; ok {
			return info, true
		}
		hostname = withoutWWW
	}

	for domain, info := range knownSources {
		if strings.HasSuffix(hostname, "."+domain) {
			return info, true
		}
	}

	return sourceInfo{}, false
}

func hostnameCategory(hostname string) Category {
	if info, ok := lookupHostname(hostname); ok {
		return info.category
	}
	return CategoryOther
}

func isPaidMedium(medium string) bool {
	switch medium {
	case "cpc", "ppc", "cpm", "cpv", "paid":
		return true
	}
	return strings.HasPrefix(medium, "paid")
}

func isSocialSource(source string) bool {
	if source == "" {
		return false
	}
	if info, ok := knownRefParams[source]; ok {
		return info.category == CategorySocial
	}
	return hostnameCategory(source) == CategorySocial
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

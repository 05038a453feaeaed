// Package identity turns the many ways a streaming channel gets written down
// (full URL, bare domain, bare username, scraper out-link) into one canonical
// form with a case-insensitive comparison key.
package identity

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	Domain  = "twitch.tv"
	baseURL = "https://" + Domain + "/"
)

var (
	fullURLPattern    = regexp.MustCompile(`(?i)^https?://(www\.)?twitch\.tv(/|$)`)
	bareDomainPattern = regexp.MustCompile(`(?i)^(www\.)?twitch\.tv(/|$)`)
	outLinkPattern    = regexp.MustCompile(`(?i)^(https?://)?(www\.)?apexlegendsstatus\.com/core/out\?`)
	usernamePattern   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Identity is the canonical form of a channel reference. URL is the display
// form; Key is what comparisons use.
type Identity struct {
	URL      string
	Username string
}

func (i Identity) IsZero() bool {
	return i.URL == ""
}

// Key is the lower-cased username. Two identities denote the same channel iff
// their keys are equal.
func (i Identity) Key() string {
	return strings.ToLower(i.Username)
}

// Parse never fails; unusable input yields the zero Identity.
func Parse(raw string) Identity {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Identity{}
	}

	switch {
	case fullURLPattern.MatchString(value):
		username := usernameFromPath(value[strings.Index(strings.ToLower(value), Domain)+len(Domain):])
		if username == "" {
			return Identity{}
		}
		return Identity{URL: value, Username: username}
	case bareDomainPattern.MatchString(value):
		username := usernameFromPath(value[strings.Index(strings.ToLower(value), Domain)+len(Domain):])
		if username == "" {
			return Identity{}
		}
		return Identity{URL: "https://" + value, Username: username}
	case outLinkPattern.MatchString(value):
		username := usernameFromOutLink(value)
		if username == "" {
			return Identity{}
		}
		return Identity{URL: baseURL + username, Username: username}
	}

	path := strings.TrimLeft(value, "/")
	username := usernameFromPath(path)
	if username == "" {
		return Identity{}
	}
	return Identity{URL: baseURL + path, Username: username}
}

// Normalize returns the canonical URL form, or "" when no identity can be
// derived. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	return Parse(raw).URL
}

// NormalizeValue is Normalize for values decoded from untyped payloads.
// Anything that is not a string normalizes to "".
func NormalizeValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Normalize(s)
}

func Key(raw string) string {
	return Parse(raw).Key()
}

// Username returns the channel name with its original casing.
func Username(raw string) string {
	return Parse(raw).Username
}

func Equal(a, b string) bool {
	ka := Key(a)
	return ka != "" && ka == Key(b)
}

// usernameFromPath takes the first path segment after the domain. A segment
// that cannot be a channel login yields "".
func usernameFromPath(path string) string {
	path = strings.TrimLeft(path, "/")
	if idx := strings.IndexAny(path, "/?#"); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimSpace(path)
	if !usernamePattern.MatchString(path) {
		return ""
	}
	return path
}

func usernameFromOutLink(raw string) string {
	idx := strings.Index(raw, "?")
	if idx < 0 {
		return ""
	}
	query, err := url.ParseQuery(raw[idx+1:])
	if err != nil {
		return ""
	}
	if kind := query.Get("type"); kind != "" && !strings.EqualFold(kind, "twitch") {
		return ""
	}
	return usernameFromPath(query.Get("id"))
}

package domain

import (
	"net/url"
	"strings"
)

// ResourceID is the canonical identifier of a remote media resource
type ResourceID string

const canonicalWatchURL = "https://www.youtube.com/watch?v="

// shortLinkHosts serve the resource id as the first path segment
var shortLinkHosts = map[string]bool{
	"youtu.be":     true,
	"www.youtu.be": true,
}

// canonicalHosts serve the resource id in the "v" query parameter
var canonicalHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// NormalizeURL canonicalizes a source URL into a stable ResourceID.
//
// Shortened links (youtu.be/<id>) and canonical links (youtube.com/watch?v=<id>)
// both map to the canonical watch URL, with or without a scheme. Anything
// else, including a canonical link without the "v" parameter, is returned
// unchanged so callers can treat it as an opaque identifier and validate it
// separately.
func NormalizeURL(raw string) ResourceID {
	trimmed := strings.TrimSpace(raw)

	parsed, err := url.Parse(trimmed)
	if err == nil && parsed.Host == "" && knownHostPrefix(trimmed) {
		parsed, err = url.Parse("https://" + trimmed)
	}
	if err != nil || parsed.Host == "" {
		return ResourceID(trimmed)
	}

	host := strings.ToLower(parsed.Hostname())

	if shortLinkHosts[host] {
		id := strings.Trim(parsed.Path, "/")
		if idx := strings.Index(id, "/"); idx >= 0 {
			id = id[:idx]
		}
		if id == "" {
			return ResourceID(trimmed)
		}
		return canonicalID(id)
	}

	if canonicalHosts[host] {
		if id := parsed.Query().Get("v"); id != "" {
			return canonicalID(id)
		}
	}

	return ResourceID(trimmed)
}

// knownHostPrefix reports whether s starts with a recognised host and no
// scheme, as in "youtu.be/<id>" pasted from a share sheet
func knownHostPrefix(s string) bool {
	host := s
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	host = strings.ToLower(host)
	return shortLinkHosts[host] || canonicalHosts[host]
}

// canonicalID escapes id so that normalizing the result again is a no-op
func canonicalID(id string) ResourceID {
	return ResourceID(canonicalWatchURL + url.QueryEscape(id))
}

// VideoID returns the platform identifier carried by a canonical ResourceID.
// Pass-through identifiers return an empty string.
func (id ResourceID) VideoID() string {
	s := string(id)
	if !strings.HasPrefix(s, canonicalWatchURL) {
		return ""
	}
	videoID, err := url.QueryUnescape(strings.TrimPrefix(s, canonicalWatchURL))
	if err != nil {
		return ""
	}
	return videoID
}

// IsCanonical reports whether the identifier was recognised by NormalizeURL
func (id ResourceID) IsCanonical() bool {
	return id.VideoID() != ""
}

func (id ResourceID) String() string {
	return string(id)
}

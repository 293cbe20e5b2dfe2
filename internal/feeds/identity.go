package feeds

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Query parameters that only carry tracking state and never change the
// article a link points to.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
}

// CanonicalLink normalizes an absolute http(s) link so that trivially
// different spellings of the same URL compare equal. It reports false when
// raw is not an absolute http(s) URL.
func CanonicalLink(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	u.Scheme = scheme
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), true
}

// Identity derives the stable fingerprint of an article. It hashes the
// canonical link when there is one and falls back to title, link and feed.
func Identity(title, link, sourceFeed string) string {
	if canonical, ok := CanonicalLink(link); ok {
		return hashString(canonical)
	}
	return hashString(strings.TrimSpace(title) + "\n" + strings.TrimSpace(link) + "\n" + sourceFeed)
}

// hashString returns the SHA-256 hex digest of s.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

package resolve

import (
	"net/http"
	"regexp"
	"strings"
)

// Classification is the archived verdict for one short link.
type Classification string

// Classifications persisted in the checkpoint.
const (
	RedirectPermanent Classification = "REDIRECT_PERMANENT"
	RedirectTemporary Classification = "REDIRECT_TEMPORARY"
	NotFound          Classification = "NOT_FOUND"
	Forbidden         Classification = "FORBIDDEN"
	// DeletedStillLive means the shortcode was deleted upstream but the
	// landing page still answers 200.
	DeletedStillLive Classification = "DELETED_STILL_LIVE"
	Blocked          Classification = "BLOCKED"
	Unknown          Classification = "UNKNOWN"
)

// blockedMarker appears in the 400 response body for links the service has
// administratively blocked.
const blockedMarker = "blocked"

// rateLimitPattern matches the Location of the interstitial Google serves
// instead of the redirect once it decides the client is probing too fast.
var rateLimitPattern = regexp.MustCompile(
	`^https?://(?:www\.)?google\.com/sorry/index\?continue=https://goo\.gl/[^&]+&q=`)

// RateLimited reports whether the response is the rate-limit interstitial
// rather than a real outcome.
func RateLimited(resp *http.Response) bool {
	location := resp.Header.Get("Location")
	if location == "" {
		return false
	}
	return rateLimitPattern.MatchString(location)
}

// Classify maps a probe response to its classification and, for redirects,
// the target URL.
func Classify(statusCode int, location, body string) (Classification, string) {
	switch statusCode {
	case http.StatusMovedPermanently:
		return RedirectPermanent, location
	case http.StatusFound:
		return RedirectTemporary, location
	case http.StatusNotFound:
		return NotFound, ""
	case http.StatusForbidden:
		return Forbidden, ""
	case http.StatusOK:
		return DeletedStillLive, ""
	case http.StatusBadRequest:
		if strings.Contains(body, blockedMarker) {
			return Blocked, ""
		}
		return Unknown, ""
	default:
		return Unknown, ""
	}
}

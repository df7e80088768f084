package shortlink

import (
	"errors"
	"strings"
)

// Host is the canonical domain of the shortener.
const Host = "goo.gl"

// Marker is the literal substring used to locate a shortcode reference
// inside arbitrary surrounding text.
const Marker = Host + "/"

// Prefix is the canonical form every valid short link starts with.
const Prefix = "https://" + Marker

// subdomainMarker matches historical *.goo.gl domains (maps.app.goo.gl,
// photos.app.goo.gl, ...) which are a different service and must never be
// canonicalized into plain goo.gl links.
const subdomainMarker = "." + Marker

const (
	minPathLen = 3
	maxPathLen = 255
)

// Normalization failure modes. All of them mean "route to the rejected
// sink", none of them is fatal to a pipeline.
var (
	ErrSubdomain   = errors.New("subdomain variant of " + Host)
	ErrNoMarker    = errors.New(Marker + " not found")
	ErrMultiMarker = errors.New(Marker + " found multiple times")
	ErrPathLength  = errors.New("path length out of bounds")
	ErrPathChars   = errors.New("path contains disallowed characters")
	ErrNotCanon    = errors.New("reassembled url is not canonical")
)

// ShortURL is a goo.gl link that has passed Normalize. The zero value is
// invalid; the only way to obtain a non-zero ShortURL is through Normalize,
// so holding one certifies validity.
type ShortURL struct {
	value string
}

// String returns the canonical link text.
func (u ShortURL) String() string { return u.value }

// IsZero reports whether u is the invalid zero value.
func (u ShortURL) IsZero() bool { return u.value == "" }

func pathOK(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c == '/':
		return true
	}
	return false
}

// truncate cuts path at the first character outside the shortcode alphabet.
// Trailing garbage (query strings, fragments, appended prose) is dropped
// rather than rejected: shortcodes are immutable codes embedded inline in
// noisy text, so everything after the first bad byte is never part of one.
func truncate(path string) string {
	for i := 0; i < len(path); i++ {
		if !pathOK(path[i]) {
			return path[:i]
		}
	}
	return path
}

// Normalize canonicalizes a raw candidate substring into a ShortURL or
// rejects it.
//
// The length window is checked on the path as extracted, before truncation.
// That ordering is inherited from the historical archive and deliberately
// kept: the accepted/rejected split of the existing corpus depends on it.
func Normalize(raw string) (ShortURL, error) {
	if strings.Contains(raw, subdomainMarker) {
		return ShortURL{}, ErrSubdomain
	}
	switch strings.Count(raw, Marker) {
	case 0:
		return ShortURL{}, ErrNoMarker
	case 1:
	default:
		return ShortURL{}, ErrMultiMarker
	}

	// Discard everything up to and including the marker; the remainder is
	// re-anchored on the canonical scheme and host below.
	rest := raw[strings.Index(raw, Marker)+len(Marker):]

	// The path ends at the query or fragment delimiter, whichever comes
	// first. The split works on raw bytes: a full URL parser would reject
	// malformed percent escapes in the trailing garbage, but garbage is
	// exactly what the truncation step exists to shed.
	path := "/" + rest
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	if len(path) < minPathLen || len(path) > maxPathLen {
		return ShortURL{}, ErrPathLength
	}

	truncated := truncate(path)
	for i := 0; i < len(truncated); i++ {
		if !pathOK(truncated[i]) {
			return ShortURL{}, ErrPathChars
		}
	}

	canonical := "https://" + Host + truncated
	if !strings.HasPrefix(canonical, Prefix) {
		return ShortURL{}, ErrNotCanon
	}
	return ShortURL{value: canonical}, nil
}

// Package extract pulls candidate URL substrings out of free text.
package extract

import (
	"strings"

	"mvdan.cc/xurls/v2"

	"github.com/saveweb/googlrot/internal/shortlink"
)

// Extractor finds URL-shaped substrings in noisy text. The matcher is
// heuristic; downstream normalization is the actual gatekeeper.
type Extractor struct {
	rx interface {
		FindAllString(s string, n int) []string
	}
}

// New builds an Extractor using the relaxed matcher, which also catches
// scheme-less references like "goo.gl/abc" embedded in prose.
func New() *Extractor {
	return &Extractor{rx: xurls.Relaxed()}
}

// Candidates returns the substrings of text worth normalizing: every URL
// match that contains the canonical marker. Everything else is discarded
// here, before the normalizer or the queues ever see it.
func (e *Extractor) Candidates(text string) []string {
	matches := e.rx.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	candidates := matches[:0]
	for _, m := range matches {
		if strings.Contains(m, shortlink.Marker) {
			candidates = append(candidates, m)
		}
	}
	return candidates
}

// Package shortlink defines the canonical goo.gl short-link type and the
// normalizer that produces it from raw text candidates.
package shortlink

// Package textkit provides the text normalization and hashing helpers
// shared by the cache and the deduplication engine.
package textkit

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// KeyPhraseWords is the number of leading normalized summary words that
// participate in the dedupe key.
const KeyPhraseWords = 12

// MaxQuoteWords caps evidence quote length.
const MaxQuoteWords = 25

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text, strips everything outside [a-z0-9\s], and
// collapses runs of whitespace.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = nonAlnum.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// KeyPhrase returns the first maxWords normalized words of text.
func KeyPhrase(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = KeyPhraseWords
	}
	tokens := strings.Fields(Normalize(text))
	if len(tokens) > maxWords {
		tokens = tokens[:maxWords]
	}
	return strings.Join(tokens, " ")
}

// ClampQuotes truncates each quote to at most maxWords words, preserving
// order. A non-positive maxWords falls back to MaxQuoteWords.
func ClampQuotes(quotes []string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = MaxQuoteWords
	}
	clamped := make([]string, 0, len(quotes))
	for _, q := range quotes {
		words := strings.Fields(q)
		if len(words) > maxWords {
			words = words[:maxWords]
		}
		clamped = append(clamped, strings.Join(words, " "))
	}
	return clamped
}

// StableHash returns the first 16 hex characters of the SHA-256 digest
// of text. Identical input always yields the identical digest.
func StableHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// DedupeKey derives the stable exact-match key for an item from its
// title and summary.
func DedupeKey(title, summary string) string {
	return StableHash(Normalize(title) + "|" + KeyPhrase(summary, KeyPhraseWords))
}

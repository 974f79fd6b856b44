package pipeline

import (
	"math"

	"tradewatch/internal/textkit"
)

// DefaultDedupeThreshold is the cosine similarity above which two items
// are considered near-duplicates.
const DefaultDedupeThreshold = 0.86

// DedupeResult holds the kept items and a count of rejected duplicates.
type DedupeResult struct {
	Items             []Item
	DuplicatesRemoved int
}

// Dedupe removes exact and near-duplicate items. Items and embeddings
// are parallel slices; processing is strictly sequential over input
// order, so the first occurrence of a duplicate group always wins.
// Exact key matches short-circuit before any embedding comparison. The
// function performs no I/O and mutates nothing but the DedupeKey field
// of its inputs.
func Dedupe(items []Item, embeddings [][]float64, threshold float64) DedupeResult {
	if threshold <= 0 {
		threshold = DefaultDedupeThreshold
	}

	kept := make([]Item, 0, len(items))
	keptEmbeddings := make([][]float64, 0, len(items))
	seenTitles := make(map[string]struct{})
	seenKeys := make(map[string]struct{})
	duplicates := 0

	n := len(items)
	if len(embeddings) < n {
		n = len(embeddings)
	}

	for i := 0; i < n; i++ {
		item := items[i]
		titleKey := textkit.Normalize(item.Title)
		key := textkit.DedupeKey(item.Title, item.Summary)
		item.DedupeKey = key

		if _, dup := seenTitles[titleKey]; dup {
			duplicates++
			continue
		}
		if _, dup := seenKeys[key]; dup {
			duplicates++
			continue
		}

		isDup := false
		for _, keptVec := range keptEmbeddings {
			if CosineSimilarity(embeddings[i], keptVec) >= threshold {
				isDup = true
				break
			}
		}
		if isDup {
			duplicates++
			continue
		}

		kept = append(kept, item)
		keptEmbeddings = append(keptEmbeddings, embeddings[i])
		seenTitles[titleKey] = struct{}{}
		seenKeys[key] = struct{}{}
	}

	return DedupeResult{Items: kept, DuplicatesRemoved: duplicates}
}

// CosineSimilarity computes the cosine of the angle between a and b.
// A zero vector on either side yields 0.0 rather than a division error.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0.0
	}
	return dot / denom
}

// Package vector provides the similarity primitives shared by the content store
// drivers and the retrieval adapters.
package vector

import (
	"fmt"
	"math"
	"strings"
)

// Dimensions is the embedding width every stored and queried vector must have.
const Dimensions = 1536

const (
	// ExactKeywordScore is the keyword tier for a whole-keyword substring match.
	ExactKeywordScore = 1.0
	// PartialKeywordScore is the keyword tier when every keyword word appears somewhere in the text.
	PartialKeywordScore = 0.8
)

// ValidateDimensions returns an error unless the vector has exactly Dimensions entries.
func ValidateDimensions(v []float32) error {
	if len(v) != Dimensions {
		return fmt.Errorf("embedding must have %d dimensions, got %d", Dimensions, len(v))
	}
	return nil
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// KeywordTier scores how well text matches keyword.
//
//	1.0 the whole keyword occurs in text (case-insensitive)
//	0.8 every whitespace-separated word of keyword occurs in text
//	0.0 otherwise, or when keyword is blank
func KeywordTier(text, keyword string) float64 {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return 0
	}
	lowered := strings.ToLower(text)
	if strings.Contains(lowered, keyword) {
		return ExactKeywordScore
	}

	words := strings.Fields(keyword)
	if len(words) < 2 {
		return 0
	}
	for _, w := range words {
		if !strings.Contains(lowered, w) {
			return 0
		}
	}
	return PartialKeywordScore
}

// HybridScore combines a keyword tier and a cosine similarity with the given weights.
func HybridScore(keywordTier, similarity, keywordWeight, vectorWeight float64) float64 {
	return keywordTier*keywordWeight + similarity*vectorWeight
}

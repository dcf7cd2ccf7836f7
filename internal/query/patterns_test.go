package query

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesTermRejectsSubstringOfLargerIdentifier(t *testing.T) {
	re := regexp.MustCompile(`(?i)cat`)

	assert.True(t, MatchesTerm(re, "a cat sat", false), "standalone word must match")
	assert.False(t, MatchesTerm(re, "category", false), "strict prefix of a longer identifier must not match")
	assert.False(t, MatchesTerm(re, "concatenate", false), "strict substring of a longer identifier must not match")
}

func TestMatchesTermAcceptsIdentifierBoundaryVariants(t *testing.T) {
	re := regexp.MustCompile(`(?i)cat`)

	assert.True(t, MatchesTerm(re, "cat", false), "exact whole string")
	assert.True(t, MatchesTerm(re, "cat_food", false), "underscore on the right")
	assert.True(t, MatchesTerm(re, "food_cat", false), "underscore on the left")
	assert.True(t, MatchesTerm(re, "myCatHandler", false), "camelCase segment break on both sides")
	assert.True(t, MatchesTerm(re, "cat!", false), "non-word character on the right")
}

func TestMatchesTermExactHonorsCompiledWordBoundary(t *testing.T) {
	re := regexp.MustCompile(`(?i)\bcat\b`)

	assert.True(t, MatchesTerm(re, "a cat sat", true))
	assert.False(t, MatchesTerm(re, "category", true))
}

func TestCountMatchesOnlyCountsBoundaryRespectingOccurrences(t *testing.T) {
	re := regexp.MustCompile(`(?i)cat`)

	assert.Equal(t, 2, CountMatches(re, "cat sat near category, another cat", false))
}

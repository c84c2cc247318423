package util

import (
	"strings"
	"unicode"
)

// Sentence length guards. Anything shorter is usually navigation debris or a
// heading fragment; anything longer is run-on extraction noise.
const (
	minSentenceLen = 8
	maxSentenceLen = 600
)

// stopwords excluded from token overlap so that function words do not
// manufacture relevance.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "were": true, "with": true,
}

// negationMarkers flip the polarity of a sentence for consistency checks.
var negationMarkers = []string{
	"not ", "no ", "never ", "n't ", "n't.", "without ", "false", "untrue",
	"incorrect", "contrary to", "disproven", "myth",
}

// SplitSentences splits plain text into sentences using a lookahead on
// terminators so abbreviations do not split mid-sentence.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= minSentenceLen && len(sentence) <= maxSentenceLen {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\t' {
				flush()
			}
		}
	}
	if current.Len() > 0 {
		flush()
	}

	return sentences
}

// Tokenize lowercases text and returns its content words, stopwords removed.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		set[tok] = true
	}
	return set
}

// Containment measures how much of the claim's vocabulary appears in the
// excerpt: |claim ∩ excerpt| / |claim|. Returns 0 for an empty claim.
func Containment(claim, excerpt string) float64 {
	claimSet := TokenSet(claim)
	if len(claimSet) == 0 {
		return 0
	}
	excerptSet := TokenSet(excerpt)

	matched := 0
	for tok := range claimSet {
		if excerptSet[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(claimSet))
}

// Jaccard measures token-set similarity between two texts. Used for
// near-duplicate excerpt detection.
func Jaccard(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Negated reports whether the sentence carries a negation marker. Two
// sentences sharing vocabulary but disagreeing on polarity are treated as
// contradicting each other.
func Negated(sentence string) bool {
	lower := " " + strings.ToLower(sentence) + " "
	for _, marker := range negationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SamePolarity reports whether two sentences agree on negation polarity.
func SamePolarity(a, b string) bool {
	return Negated(a) == Negated(b)
}

package detect

import (
	"strings"

	"github.com/veracitylabs/veracity/internal/util"
)

// conjunctions that join independently checkable assertions. Splitting on
// them bounds false negatives for compound claims.
var conjunctions = []string{
	"; ", ", and ", " and ", ", but ", " but ", " while ", " whereas ",
}

// minStatementTokens guards against splitting into fragments that carry no
// checkable content.
const minStatementTokens = 3

// Decompose splits content into atomic statements: sentences first, then
// conjunction-joined clauses when both halves still read as assertions.
func Decompose(content string) []string {
	var statements []string
	for _, sentence := range util.SplitSentences(content) {
		statements = append(statements, splitClauses(sentence)...)
	}
	if len(statements) == 0 {
		trimmed := strings.TrimSpace(content)
		if trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

func splitClauses(sentence string) []string {
	parts := []string{sentence}
	for _, conj := range conjunctions {
		var next []string
		for _, part := range parts {
			next = append(next, splitOn(part, conj)...)
		}
		parts = next
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitOn splits s on conj only when every resulting clause has enough
// content tokens to stand alone.
func splitOn(s, conj string) []string {
	pieces := strings.Split(s, conj)
	if len(pieces) == 1 {
		return []string{s}
	}
	for _, piece := range pieces {
		if len(util.Tokenize(piece)) < minStatementTokens {
			return []string{s}
		}
	}
	return pieces
}

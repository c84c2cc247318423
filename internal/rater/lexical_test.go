package rater

import (
	"context"
	"math"
	"testing"

	"github.com/veracitylabs/veracity/internal/model"
)

func TestLexicalRater_AcceptsSupportedContent(t *testing.T) {
	r := NewLexicalRater("lex-0", 0.5)
	content := "The Eiffel Tower stands in Paris."
	evidence := []model.Evidence{
		{SourceID: "a", Excerpt: "The Eiffel Tower stands in Paris beside the Seine."},
	}

	opinion, err := r.Rate(context.Background(), content, evidence)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if opinion.Verdict != model.VerdictAccept {
		t.Errorf("Expected accept, got %s", opinion.Verdict)
	}
	if opinion.Confidence != 1.0 {
		t.Errorf("Expected full confidence for full support, got %v", opinion.Confidence)
	}
}

func TestLexicalRater_RejectsUnsupportedContent(t *testing.T) {
	r := NewLexicalRater("lex-0", 0.5)
	content := "The Eiffel Tower stands in Paris."
	evidence := []model.Evidence{
		{SourceID: "a", Excerpt: "Tokyo Skytree dominates the Sumida skyline."},
	}

	opinion, err := r.Rate(context.Background(), content, evidence)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if opinion.Verdict != model.VerdictReject {
		t.Errorf("Expected reject, got %s", opinion.Verdict)
	}
	if opinion.Confidence != 1.0 {
		t.Errorf("Expected full confidence for zero support, got %v", opinion.Confidence)
	}
}

func TestLexicalRater_ConfidenceScalesWithMargin(t *testing.T) {
	r := NewLexicalRater("lex-0", 0.5)
	// One supported statement, one unsupported: fraction 0.5, right on the
	// decision boundary.
	content := "The Eiffel Tower stands in Paris. The tower secretly relocates every decade."
	evidence := []model.Evidence{
		{SourceID: "a", Excerpt: "The Eiffel Tower stands in Paris beside the Seine."},
	}

	opinion, err := r.Rate(context.Background(), content, evidence)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if opinion.Verdict != model.VerdictAccept {
		t.Errorf("Expected accept at the boundary, got %s", opinion.Verdict)
	}
	if math.Abs(opinion.Confidence) > 1e-9 {
		t.Errorf("Expected near-zero confidence at the boundary, got %v", opinion.Confidence)
	}
}

func TestLexicalRater_CancelledContext(t *testing.T) {
	r := NewLexicalRater("lex-0", 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Rate(ctx, "The Eiffel Tower stands in Paris.", nil); err == nil {
		t.Fatal("Expected error from cancelled context")
	}
}

package rater

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/veracitylabs/veracity/internal/model"
)

// OpenAIRater asks an OpenAI-compatible chat model for a verdict. A BaseURL
// override points it at local endpoints exposing the same API.
type OpenAIRater struct {
	id        string
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIRater creates a model-backed rater.
func NewOpenAIRater(id string, cfg model.RatersConfig) (*OpenAIRater, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai rater requires an API key or a base URL")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	return &OpenAIRater{
		id:        id,
		client:    openai.NewClientWithConfig(clientConfig),
		model:     modelName,
		maxTokens: maxTokens,
	}, nil
}

// ID implements Rater.
func (r *OpenAIRater) ID() string { return r.id }

// Rate implements Rater.
func (r *OpenAIRater) Rate(ctx context.Context, content string, evidence []model.Evidence) (model.RaterOpinion, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You verify whether a claim is supported by the evidence excerpts " +
					"provided. You must only use the given excerpts. Answer with exactly " +
					"one line: VERDICT=<ACCEPT|REJECT> CONFIDENCE=<0.00-1.00>",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildRaterPrompt(content, evidence),
			},
		},
	})
	if err != nil {
		return model.RaterOpinion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.RaterOpinion{}, fmt.Errorf("empty completion")
	}

	verdict, confidence, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return model.RaterOpinion{}, err
	}

	return model.RaterOpinion{
		RaterID:    r.id,
		Verdict:    verdict,
		Confidence: confidence,
	}, nil
}

func buildRaterPrompt(content string, evidence []model.Evidence) string {
	var b strings.Builder
	b.WriteString("Claim:\n")
	b.WriteString(content)
	b.WriteString("\n\nEvidence excerpts:\n")
	for i, ev := range evidence {
		if i >= 20 { // Bound prompt size
			fmt.Fprintf(&b, "... and %d more excerpts\n", len(evidence)-20)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s\n", ev.SourceID, ev.Excerpt)
	}
	b.WriteString("\nIs the claim supported by these excerpts?")
	return b.String()
}

// parseVerdict extracts the VERDICT/CONFIDENCE line from a completion.
func parseVerdict(reply string) (model.Verdict, float64, error) {
	upper := strings.ToUpper(reply)

	var verdict model.Verdict
	switch {
	case strings.Contains(upper, "VERDICT=ACCEPT"):
		verdict = model.VerdictAccept
	case strings.Contains(upper, "VERDICT=REJECT"):
		verdict = model.VerdictReject
	default:
		return "", 0, fmt.Errorf("unparseable verdict: %q", reply)
	}

	confidence := 0.5
	if idx := strings.Index(upper, "CONFIDENCE="); idx >= 0 {
		raw := strings.TrimSpace(upper[idx+len("CONFIDENCE="):])
		if end := strings.IndexFunc(raw, func(r rune) bool {
			return (r < '0' || r > '9') && r != '.'
		}); end > 0 {
			raw = raw[:end]
		}
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			confidence = parsed
		}
	}

	return verdict, confidence, nil
}

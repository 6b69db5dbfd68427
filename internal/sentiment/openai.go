package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIScorer asks a chat model for a compound score. Any failure falls
// back to VADER so a run never stalls on the LLM.
type OpenAIScorer struct {
	client   openAIChatClient
	model    string
	fallback PolarityScorer
}

// NewOpenAIScorer returns nil when no API key is configured.
func NewOpenAIScorer(apiKey, model string, fallback PolarityScorer) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	if fallback == nil {
		fallback = NewVaderScorer()
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIScorer{
		client:   &openAIClient{client: client},
		model:    model,
		fallback: fallback,
	}
}

const openAISystemPrompt = "You score the sentiment of crypto forum posts and news headlines. " +
	"Return ONLY a JSON object {\"compound\": number} where compound is between -1 (most negative) and 1 (most positive). No markdown."

func (s *OpenAIScorer) Compound(ctx context.Context, text string) (float64, error) {
	score, err := s.ask(ctx, text)
	if err != nil {
		if s.fallback == nil {
			return 0, err
		}
		return s.fallback.Compound(ctx, text)
	}
	return score, nil
}

func (s *OpenAIScorer) ask(ctx context.Context, text string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return 0, err
	}
	if len(completion.Choices) == 0 {
		return 0, fmt.Errorf("empty scorer completion")
	}

	raw := trimCodeFence(completion.Choices[0].Message.Content)
	var parsed struct {
		Compound *float64 `json:"compound"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return 0, fmt.Errorf("parse scorer json: %w", err)
	}
	if parsed.Compound == nil {
		return 0, fmt.Errorf("scorer response missing compound")
	}
	return clamp(*parsed.Compound, -1, 1), nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

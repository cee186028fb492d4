package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You route citizen complaints to government departments.
Answer with a single JSON object and nothing else, using exactly these keys:
  "category": one of the listed categories,
  "agency": one of the listed agencies,
  "confidence": number from 0 to 100, how sure you are of the agency,
  "sentimentScore": number from -1 (very negative) to 1 (very positive),
  "language": ISO 639-1 code of the complaint text.`

// OpenAI classifies through any OpenAI-compatible chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a client for apiKey. baseURL overrides the API root
// (for compatible gateways); empty keeps the default.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Classify asks the model for a JSON answer and parses it with
// ParseSuggestion.
func (o *OpenAI) Classify(ctx context.Context, in Input) (*Suggestion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(in)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("classifier: empty response")
	}
	return ParseSuggestion(resp.Choices[0].Message.Content)
}

func userPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Categories: %s\n", strings.Join(in.Categories, "; "))
	fmt.Fprintf(&b, "Agencies: %s\n\n", strings.Join(in.Agencies, "; "))
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	if in.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", in.Location)
	}
	fmt.Fprintf(&b, "Description:\n%s\n", in.Description)
	return b.String()
}

// number accepts a JSON number or a numeric string.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*n = number(f)
	return nil
}

type rawSuggestion struct {
	Category       string `json:"category"`
	Agency         string `json:"agency"`
	Confidence     number `json:"confidence"`
	SentimentScore number `json:"sentimentScore"`
	Language       string `json:"language"`
}

// ParseSuggestion extracts a Suggestion from model output. Markdown code
// fences and text around the JSON object are ignored. Confidence is
// clamped to 0..100 and sentiment to -1..1.
func ParseSuggestion(content string) (*Suggestion, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, errors.New("classifier: no JSON object in response")
	}

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("classifier: decoding response: %w", err)
	}

	return &Suggestion{
		Category:       strings.TrimSpace(raw.Category),
		Agency:         strings.TrimSpace(raw.Agency),
		Confidence:     clamp(float64(raw.Confidence), 0, 100),
		SentimentScore: clamp(float64(raw.SentimentScore), -1, 1),
		Language:       strings.ToLower(strings.TrimSpace(raw.Language)),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

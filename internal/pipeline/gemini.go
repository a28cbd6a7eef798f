package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// extraction output cap, sized for a few dozen transaction records.
const maxOutputTokens = 2000

// extractionTemperature keeps sampling low so the model sticks to the
// statement instead of inventing records.
const extractionTemperature = float32(0.1)

// credentialPlaceholder is what ships in .env.example; a key equal to it
// means "not configured".
const credentialPlaceholder = "your_gemini_api_key_here"

// Configured reports whether apiKey is a real credential rather than
// absent or the .env.example placeholder. Callers construct the parser
// with a nil client when this returns false, putting the whole pipeline
// in demo mode.
func Configured(apiKey string) bool {
	key := strings.TrimSpace(apiKey)
	return key != "" && key != credentialPlaceholder
}

// GeminiClient implements ExtractionClient against the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed extraction client. The key is
// passed explicitly; nothing here reads the environment.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// ExtractTransactions sends one chat-style request to Gemini and returns
// the raw response text. Quota, rate-limit and billing failures come back
// wrapped in ErrRateLimited so the parser can degrade instead of failing.
func (c *GeminiClient) ExtractTransactions(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(extractionTemperature),
		MaxOutputTokens:  maxOutputTokens,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("gemini: %w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model")
	}
	return text, nil
}

// isQuotaError classifies the failures the pipeline is allowed to absorb:
// HTTP 429 and anything the service attributes to quota or billing.
func isQuotaError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "billing") ||
		strings.Contains(msg, "resource_exhausted")
}

var _ ExtractionClient = (*GeminiClient)(nil)

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	Endpoint  string
	MaxTokens int
	Timeout   time.Duration
}

// Anthropic classifies through the Anthropic Messages API.
type Anthropic struct {
	apiKey    string
	model     string
	endpoint  string
	maxTokens int
	client    *http.Client
}

// NewAnthropic creates an Anthropic classifier.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.anthropic.com/v1/messages"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Anthropic{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		endpoint:  cfg.Endpoint,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type friendsResult struct {
	Friends []string `json:"friends"`
}

// ExtractFriends asks the model for the names of other dogs in a comment.
func (c *Anthropic) ExtractFriends(ctx context.Context, text string) ([]string, error) {
	resp, err := c.callAPI(ctx, buildFriendsPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	var result friendsResult
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return result.Friends, nil
}

// Categorize asks the model to place every unmapped label in the vocabularies.
func (c *Anthropic) Categorize(ctx context.Context, req CategorizeRequest) (*Categorization, error) {
	if req.Empty() {
		return &Categorization{}, nil
	}

	resp, err := c.callAPI(ctx, buildCategorizePrompt(req))
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	var result Categorization
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func buildFriendsPrompt(text string) string {
	var sb strings.Builder

	sb.WriteString("This is a comment from a dog daycare report card. ")
	sb.WriteString("List the names of the other dogs it mentions. Return JSON only.\n\n")
	sb.WriteString("Comment:\n")
	sb.WriteString(text)
	sb.WriteString("\n\n")
	sb.WriteString(`Return a JSON object with this structure:
{"friends": ["Name", "Name"]}

Rules:
- Only proper names of dogs, as written in the comment
- Do not include staff members, breeds or generic words like "friends"
- Return {"friends": []} when no names are mentioned

Return ONLY the JSON, no other text.`)

	return sb.String()
}

func buildCategorizePrompt(req CategorizeRequest) string {
	var sb strings.Builder

	sb.WriteString("Categorize these dog daycare report card items. Return JSON only.\n\n")

	if len(req.Activities) > 0 {
		sb.WriteString("Activities (each may have one or more categories):\n")
		writeList(&sb, req.Activities)
		sb.WriteString("Activity categories: ")
		sb.WriteString(strings.Join(req.ActivityVocabulary, ", "))
		sb.WriteString("\n\n")
	}
	if len(req.Training) > 0 {
		sb.WriteString("Training skills (each has exactly one category):\n")
		writeList(&sb, req.Training)
		sb.WriteString("Training categories: ")
		sb.WriteString(strings.Join(req.TrainingVocabulary, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString(`Return a JSON object with this structure:
{
  "activities": [{"label": "exact item text", "categories": ["category"]}],
  "training": [{"label": "exact item text", "category": "category"}]
}

Rules:
- Copy each label exactly as given
- Use only the listed categories, spelled exactly
- Every listed item must appear once

Return ONLY the JSON, no other text.`)

	return sb.String()
}

func writeList(sb *strings.Builder, items []string) {
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Anthropic) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}

	for _, block := range apiResp.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response")
}

// parseResponse decodes the JSON object in a model reply, tolerating
// markdown code fences and stray text around the object.
func parseResponse(resp string, v any) error {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if start, end := strings.Index(resp, "{"), strings.LastIndex(resp, "}"); start >= 0 && end > start {
		resp = resp[start : end+1]
	}

	if err := json.Unmarshal([]byte(resp), v); err != nil {
		return fmt.Errorf("parse json: %w (response: %s)", err, resp)
	}
	return nil
}

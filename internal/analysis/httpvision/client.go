// Package httpvision implements the analysis.Provider interface against
// an OpenAI-compatible chat-completions vision endpoint.
package httpvision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/homewatch/internal/analysis"
	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

const describePrompt = `You are a home security assistant. Describe what is happening ` +
	`in the footage in one or two sentences. Respond with JSON: ` +
	`{"description": "...", "objects": ["person", ...], "confidence": 0.0-1.0}`

type Client struct {
	name            string
	baseURL         string
	apiKey          string
	model           string
	capabilities    map[models.AnalysisMode]bool
	maxImages       int
	tokensPerImage  int
	inputRatePer1K  float64
	outputRatePer1K float64
	httpClient      *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	caps := make(map[models.AnalysisMode]bool, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		caps[models.AnalysisMode(c)] = true
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:            cfg.Name,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		capabilities:    caps,
		maxImages:       cfg.MaxImages,
		tokensPerImage:  cfg.TokensPerImage,
		inputRatePer1K:  cfg.InputRatePer1K,
		outputRatePer1K: cfg.OutputRatePer1K,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Supports(mode models.AnalysisMode) bool { return c.capabilities[mode] }

func (c *Client) MaxImages() int { return c.maxImages }

func (c *Client) TokensPerImage() int { return c.tokensPerImage }

func (c *Client) Rates() (float64, float64) { return c.inputRatePer1K, c.outputRatePer1K }

func (c *Client) DescribeImage(ctx context.Context, image []byte) (analysis.Description, error) {
	return c.DescribeImages(ctx, [][]byte{image})
}

func (c *Client) DescribeImages(ctx context.Context, images [][]byte) (analysis.Description, error) {
	parts := []contentPart{{Type: "text", Text: describePrompt}}
	for _, img := range images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &mediaURL{URL: dataURL("image/jpeg", img)},
		})
	}
	return c.complete(ctx, parts)
}

func (c *Client) DescribeVideo(ctx context.Context, video []byte, mimeType string) (analysis.Description, error) {
	parts := []contentPart{
		{Type: "text", Text: describePrompt},
		{Type: "video_url", VideoURL: &mediaURL{URL: dataURL(mimeType, video)}},
	}
	return c.complete(ctx, parts)
}

type mediaURL struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *mediaURL `json:"image_url,omitempty"`
	VideoURL *mediaURL `json:"video_url,omitempty"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) complete(ctx context.Context, parts []contentPart) (analysis.Description, error) {
	if c.baseURL == "" {
		return analysis.Description{}, fmt.Errorf("provider %s: base URL not configured", c.name)
	}

	payload, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: 300,
	})
	if err != nil {
		return analysis.Description{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return analysis.Description{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analysis.Description{}, fmt.Errorf("provider %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return analysis.Description{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return analysis.Description{}, fmt.Errorf("provider %s: status %d: %s", c.name, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return analysis.Description{}, fmt.Errorf("provider %s: decode response: %w", c.name, err)
	}
	if len(parsed.Choices) == 0 {
		return analysis.Description{}, fmt.Errorf("provider %s: empty choices", c.name)
	}

	desc := parseContent(parsed.Choices[0].Message.Content)
	if parsed.Usage != nil {
		desc.Usage = analysis.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			Reported:         true,
		}
	}
	return desc, nil
}

// parseContent extracts the structured answer; when the model ignored
// the JSON instruction the raw text becomes the description.
func parseContent(content string) analysis.Description {
	var structured struct {
		Description string   `json:"description"`
		Objects     []string `json:"objects"`
		Confidence  float32  `json:"confidence"`
	}

	// Some models wrap JSON in markdown fences.
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &structured); err == nil && structured.Description != "" {
		return analysis.Description{
			Text:       structured.Description,
			Objects:    structured.Objects,
			Confidence: structured.Confidence,
		}
	}

	return analysis.Description{Text: strings.TrimSpace(content), Confidence: 0.5}
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

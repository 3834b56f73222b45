package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sgannotator/sg-annotator/internal/config"
	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

const (
	defaultDeepseekURL   = "https://api.deepseek.com/chat/completions"
	defaultDeepseekModel = "deepseek-chat"
	deepseekMaxTokens    = 2048
	deepseekTopP         = 0.95
)

// Deepseek generates scene graphs through the DeepSeek chat completions API.
type Deepseek struct {
	apiURL      string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	log         *logger.Logger
}

// NewDeepseek creates a DeepSeek-backed generator. The caller must have
// validated that an API key is present.
func NewDeepseek(cfg config.ProviderConfig, log *logger.Logger) *Deepseek {
	apiURL := cfg.DeepseekURL
	if apiURL == "" {
		apiURL = defaultDeepseekURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultDeepseekModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Deepseek{
		apiURL:      apiURL,
		apiKey:      cfg.DeepseekAPIKey,
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

// Name identifies the provider.
func (d *Deepseek) Name() string { return "deepseek" }

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	TopP        float64           `json:"top_p"`
	Stream      bool              `json:"stream"`
}

type deepseekResponse struct {
	Choices []struct {
		Message deepseekMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt as a single chat message and parses the
// frame array out of the assistant reply.
func (d *Deepseek) Generate(ctx context.Context, text string) ([]scenegraph.Frame, error) {
	payload := deepseekRequest{
		Model: d.model,
		Messages: []deepseekMessage{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, text)},
		},
		Temperature: d.temperature,
		MaxTokens:   deepseekMaxTokens,
		TopP:        deepseekTopP,
		Stream:      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.InternalError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.InternalError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	d.log.Debug("requesting generation", "provider", d.Name(), "model", d.model)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.ProviderError("deepseek request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.ProviderError("deepseek rate limit exceeded", nil)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.ProviderError(
			fmt.Sprintf("deepseek returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var out deepseekResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.ProviderError("failed to decode deepseek response", err)
	}
	if len(out.Choices) == 0 {
		return nil, apperrors.ProviderError("no choices returned from deepseek", nil)
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return nil, apperrors.ProviderError("empty response from deepseek", nil)
	}

	frames, ok := parseFrames(content)
	if !ok {
		return nil, apperrors.ProviderError("no valid scene graph JSON in model output", nil)
	}
	return frames, nil
}

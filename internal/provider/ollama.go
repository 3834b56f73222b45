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

	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"

	"github.com/sgannotator/sg-annotator/internal/config"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "qwen3:0.6b"
	defaultNumPredict  = 1024
)

// Ollama generates scene graphs through a local Ollama server.
type Ollama struct {
	baseURL     string
	model       string
	temperature float64
	numPredict  int
	client      *http.Client
	log         *logger.Logger
}

// NewOllama creates an Ollama-backed generator.
func NewOllama(cfg config.ProviderConfig, log *logger.Logger) *Ollama {
	baseURL := strings.TrimRight(cfg.OllamaURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Ollama{
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		numPredict:  defaultNumPredict,
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

// Name identifies the provider.
func (o *Ollama) Name() string { return "ollama" }

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Generate asks the model for a frame array and parses it out of the
// raw completion text.
func (o *Ollama) Generate(ctx context.Context, text string) ([]scenegraph.Frame, error) {
	payload := ollamaRequest{
		Model:  o.model,
		Prompt: fmt.Sprintf(promptTemplate, text),
		Stream: false,
		Options: ollamaOptions{
			Temperature: o.temperature,
			NumPredict:  o.numPredict,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.InternalError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.InternalError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	o.log.Debug("requesting generation", "provider", o.Name(), "model", o.model)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, apperrors.ProviderError("ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.ProviderError(
			fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.ProviderError("failed to decode ollama response", err)
	}

	frames, ok := parseFrames(out.Response)
	if !ok {
		return nil, apperrors.ProviderError("no valid scene graph JSON in model output", nil)
	}
	return frames, nil
}

// ListModels returns the model names available on the server.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to build request", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, apperrors.ProviderError("ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ProviderError(fmt.Sprintf("ollama returned status %d", resp.StatusCode), nil)
	}

	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.ProviderError("failed to decode model list", err)
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

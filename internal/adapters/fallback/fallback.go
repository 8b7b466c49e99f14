// Package fallback contains the answer sources the agent tries before
// escalating to a supervisor.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/frontdesk/internal/ports/secondary"
)

// None never has an answer, so every knowledge miss escalates.
type None struct{}

// Generate returns an empty reply.
func (None) Generate(ctx context.Context, question string) (string, error) {
	return "", nil
}

// DefaultOllamaURL is used when the configured URL is empty.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama generates short candidate answers with a local Ollama model.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates an Ollama client for baseURL and model.
func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = "llama3.2"
	}
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate asks the model for a one-line answer to a customer question.
func (o *Ollama) Generate(ctx context.Context, question string) (string, error) {
	reqBody := generateRequest{
		Model:  o.model,
		Prompt: fmt.Sprintf("Customer question: %s\nHelpful answer:", question),
		Stream: false,
		Options: generateOptions{
			NumPredict:  25,
			Temperature: 0.7,
			TopP:        0.9,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request (took %s): %w", time.Since(start), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama error (status %d, took %s): %s", resp.StatusCode, time.Since(start), string(body))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response (took %s): %w", time.Since(start), err)
	}

	return result.Response, nil
}

var (
	_ secondary.FallbackSource = None{}
	_ secondary.FallbackSource = (*Ollama)(nil)
)

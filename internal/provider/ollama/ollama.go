// Package ollama implements the embedding and completion capabilities
// against a local or remote Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docassist/docassist/models"
)

// Client talks to the Ollama /api/chat and /api/embed endpoints.
type Client struct {
	host            string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// NewClient creates a client for the given Ollama host.
func NewClient(host, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if host == "" {
		host = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		host:            strings.TrimRight(host, "/"),
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Generate produces a completion for the conversation.
func (c *Client) Generate(ctx context.Context, messages []models.ConversationMessage) (string, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	req := chatRequest{
		Model:    c.completionModel,
		Messages: msgs,
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}
	var resp chatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrLLMProvider, err)
	}
	return resp.Message.Content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for the given texts in one batched call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := embedRequest{Model: c.embeddingModel, Input: texts}
	var resp embedResponse
	if err := c.post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingProvider, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", models.ErrEmbeddingProvider, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

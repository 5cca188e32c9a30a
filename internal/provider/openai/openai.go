// Package openai implements the embedding and completion capabilities over
// the OpenAI HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docassist/docassist/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI chat completions and embeddings endpoints.
type Client struct {
	apiKey          string
	baseURL         string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// NewClient creates a client. Either model may be empty when the client is
// used for only one capability.
func NewClient(apiKey, baseURL, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:          apiKey,
		baseURL:         baseURL,
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// embeddingBatchSize limits how many inputs go into one embeddings call.
const embeddingBatchSize = 64

// Embed generates embeddings for the given texts, batching the API calls.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}
	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingProvider, err)
	}
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Generate produces a chat completion for the conversation.
func (c *Client) Generate(ctx context.Context, messages []models.ConversationMessage) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	msgs := make([]message, len(messages))
	for i, m := range messages {
		msgs[i] = message{Role: string(m.Role), Content: m.Content}
	}
	body := map[string]interface{}{
		"model":       c.completionModel,
		"messages":    msgs,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		body["max_tokens"] = c.maxTokens
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrLLMProvider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrLLMProvider)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

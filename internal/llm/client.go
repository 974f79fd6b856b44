// Package llm implements the extraction, synthesis, and embedding
// collaborators against an OpenAI-compatible HTTP API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradewatch/internal/config"
	"tradewatch/internal/pipeline"
	"tradewatch/internal/retry"
)

// Client talks to an OpenAI-compatible chat/embeddings API. It
// satisfies pipeline.Extractor, pipeline.Synthesizer, and
// pipeline.Embedder.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	httpClient     *http.Client
	retry          retry.Policy
	logger         *zap.Logger
}

var (
	_ pipeline.Extractor   = (*Client)(nil)
	_ pipeline.Synthesizer = (*Client)(nil)
	_ pipeline.Embedder    = (*Client)(nil)
)

// New builds a Client from configuration. The API key requirement is
// enforced by config validation before this point.
func New(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		httpClient:     &http.Client{Timeout: timeout},
		retry:          retry.Default().WithAttempts(cfg.MaxRetries),
		logger:         logger,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

// ExtractCandidates implements pipeline.Extractor.
func (c *Client) ExtractCandidates(ctx context.Context, text, url, title, publishedAt string) ([]pipeline.Candidate, error) {
	if publishedAt == "" {
		publishedAt = "null"
	}
	prompt := strings.NewReplacer(
		"{{URL}}", url,
		"{{TITLE}}", title,
		"{{PUBLISHED_AT_OR_NULL}}", publishedAt,
		"{{ARTICLE_TEXT}}", text,
	).Replace(extractionPrompt)

	var envelope itemsEnvelope[pipeline.Candidate]
	if err := c.completeJSON(ctx, prompt, &envelope); err != nil {
		return nil, fmt.Errorf("extract candidates from %s: %w", url, err)
	}
	return envelope.Items, nil
}

// Synthesize implements pipeline.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, candidates pipeline.CandidateSet) ([]pipeline.Item, error) {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}
	prompt := strings.Replace(synthesisPrompt, "{{CANDIDATES_JSON}}", string(payload), 1)

	var envelope itemsEnvelope[pipeline.Item]
	if err := c.completeJSON(ctx, prompt, &envelope); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return envelope.Items, nil
}

// Embed implements pipeline.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var parsed embeddingsResponse
	err := c.retry.Do(ctx, func() error {
		return c.post(ctx, "/embeddings", embeddingsRequest{
			Model: c.embeddingModel,
			Input: texts,
		}, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(parsed.Data), len(texts))
	}
	vectors := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// completeJSON runs one chat completion and decodes its output as JSON.
// Malformed output earns exactly one repair attempt: the model is asked
// to fix its own response, and a second decode failure is fatal.
func (c *Client) completeJSON(ctx context.Context, prompt string, out any) error {
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), out); err == nil {
		return nil
	}
	c.logger.Warn("model returned malformed JSON; attempting repair", zap.Int("len", len(raw)))
	repaired, err := c.complete(ctx, repairPrompt+raw)
	if err != nil {
		return fmt.Errorf("repair completion: %w", err)
	}
	if err := json.Unmarshal([]byte(stripFences(repaired)), out); err != nil {
		return fmt.Errorf("model output unparsable after repair: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var parsed chatResponse
	err := c.retry.Do(ctx, func() error {
		return c.post(ctx, "/chat/completions", chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0,
		}, &parsed)
	})
	if err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response %s: %w", path, err))
	}
	return nil
}

// stripFences removes a wrapping markdown code fence if present.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

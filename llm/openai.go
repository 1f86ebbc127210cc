package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Compile-time check that OpenAI satisfies the client contract.
var _ Client = (*OpenAI)(nil)

// OpenAIOptions contains configuration options for the OpenAI client.
type OpenAIOptions struct {
	// BaseURL is the API root, without a trailing slash. Defaults to the
	// public OpenAI endpoint; point it at any compatible server.
	BaseURL string

	// ChatModel is used for Invoke.
	ChatModel string

	// EmbedModel is used for Embed.
	EmbedModel string

	// HTTPClient issues the requests. Defaults to http.DefaultClient.
	// Per-call deadlines belong on the context, not here.
	HTTPClient *http.Client
}

// DefaultOpenAIOptions contains the default configuration options.
var DefaultOpenAIOptions = OpenAIOptions{
	BaseURL:    "https://api.openai.com/v1",
	ChatModel:  "gpt-4o-mini",
	EmbedModel: "text-embedding-3-small",
}

// OpenAI is a Client for the OpenAI API and compatible servers.
type OpenAI struct {
	apiKey     string
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// NewOpenAI creates a client authenticated with apiKey.
func NewOpenAI(apiKey string, optFns ...func(o *OpenAIOptions)) *OpenAI {
	opts := DefaultOpenAIOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		httpClient: httpClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Invoke sends prompt as a single user message and returns the completion.
func (c *OpenAI) Invoke(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:    c.chatModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", &ModelError{Cause: fmt.Errorf("chat response contains no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (c *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embedRequest{
		Model: c.embedModel,
		Input: []string{text},
	}

	var resp embedResponse
	if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &ModelError{Cause: fmt.Errorf("embedding response contains no vector")}
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAI) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &ModelError{Cause: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ModelError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Context cancellation is the caller's decision, not a model fault.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ModelError{Cause: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return &ModelError{Cause: fmt.Errorf("%s returned status %d: %s", path, httpResp.StatusCode, snippet)}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return &ModelError{Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/clarencelabs/kingfisher/config"
)

// Provider is the generative planner backend. It may return text that does
// not conform to the requested schema; callers own validation and repair.
type Provider interface {
	// Complete sends a system+user prompt pair and returns the raw response
	// text. When schema is non-nil the request asks for schema-constrained
	// JSON output.
	Complete(ctx context.Context, system, user string, schema json.RawMessage) (string, error)
	// Ping verifies the upstream is reachable with a short-deadline call.
	Ping(ctx context.Context) error
	// Model reports the configured chat model identity.
	Model() string
}

// OpenAIProvider talks to the OpenAI chat completions API (or any compatible
// endpoint via BaseURL).
type OpenAIProvider struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewOpenAIProvider builds a provider from config. The API key may also come
// from OPENAI_API_KEY at call time.
func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 40 * time.Second
	}
	return &OpenAIProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *OpenAIProvider) Model() string { return p.cfg.ChatModel }

func (p *OpenAIProvider) apiKey() string {
	if p.cfg.APIKey != "" {
		return p.cfg.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (p *OpenAIProvider) baseURL() string {
	if p.cfg.BaseURL != "" {
		return p.cfg.BaseURL
	}
	return "https://api.openai.com/v1"
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type chatReq struct {
	Model          string          `json:"model"`
	Messages       []chatMsg       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, system, user string, schema json.RawMessage) (string, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	reqBody := chatReq{
		Model: p.cfg.ChatModel,
		Messages: []chatMsg{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.4,
		MaxTokens:   p.cfg.MaxOutputTokens,
	}
	if schema != nil {
		reqBody.ResponseFormat = &responseFormat{Type: "json_schema", JSONSchema: schema}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL()+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Ping lists models with a tight deadline, enough to prove auth and
// reachability for the readiness probe.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	apiKey := p.apiKey()
	if apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL()+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAI status %d", resp.StatusCode)
	}
	return nil
}

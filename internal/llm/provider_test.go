package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clarencelabs/kingfisher/config"
)

func chatServer(t *testing.T, content string, got *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			if got != nil {
				if err := json.NewDecoder(r.Body).Decode(got); err != nil {
					t.Errorf("decode request: %v", err)
				}
			}
			if r.Header.Get("Authorization") != "Bearer test-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": content}},
				},
			})
		case "/models":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestCompleteSendsMessagesAndReturnsContent(t *testing.T) {
	var got map[string]interface{}
	srv := chatServer(t, `{"text":"hi"}`, &got)
	defer srv.Close()

	p := NewOpenAIProvider(config.LLMConfig{
		APIKey: "test-key", BaseURL: srv.URL, ChatModel: "gpt-test", MaxOutputTokens: 100,
	})
	out, err := p.Complete(context.Background(), "you are a guide", "tie a knot", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"text":"hi"}` {
		t.Errorf("content = %q", out)
	}
	if got["model"] != "gpt-test" {
		t.Errorf("model = %v", got["model"])
	}
	msgs, _ := got["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", got["messages"])
	}
	first, _ := msgs[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != "you are a guide" {
		t.Errorf("system message = %v", first)
	}
	if _, present := got["response_format"]; present {
		t.Error("response_format sent without a schema")
	}
}

func TestCompleteIncludesResponseFormatSchema(t *testing.T) {
	var got map[string]interface{}
	srv := chatServer(t, "{}", &got)
	defer srv.Close()

	p := NewOpenAIProvider(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, ChatModel: "gpt-test"})
	schema := json.RawMessage(`{"name":"plan","strict":true,"schema":{"type":"object"}}`)
	if _, err := p.Complete(context.Background(), "s", "u", schema); err != nil {
		t.Fatal(err)
	}
	rf, ok := got["response_format"].(map[string]interface{})
	if !ok || rf["type"] != "json_schema" {
		t.Fatalf("response_format = %v", got["response_format"])
	}
}

func TestCompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, ChatModel: "gpt-test"})
	if _, err := p.Complete(context.Background(), "s", "u", nil); err == nil {
		t.Fatal("expected error on 429")
	}

	noKey := NewOpenAIProvider(config.LLMConfig{BaseURL: srv.URL, ChatModel: "gpt-test"})
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := noKey.Complete(context.Background(), "s", "u", nil); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestPing(t *testing.T) {
	srv := chatServer(t, "", nil)
	defer srv.Close()

	p := NewOpenAIProvider(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, ChatModel: "gpt-test"})
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	down := NewOpenAIProvider(config.LLMConfig{
		APIKey: "test-key", BaseURL: "http://127.0.0.1:1", ChatModel: "gpt-test",
		Timeout: time.Second,
	})
	if err := down.Ping(context.Background()); err == nil {
		t.Fatal("expected error when upstream is unreachable")
	}
}

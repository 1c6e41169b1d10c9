package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestRetrievalPrompt(t *testing.T) {
	p := RetrievalPrompt("Paris is the capital of France.", "What is the capital of France?")
	for _, want := range []string{
		"strictly after reading the given Context",
		"'I Don't Know.'",
		"Context:\nParis is the capital of France.",
		"Question:\nWhat is the capital of France?",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestGenerator_Generate(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3.1" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Messages) == 1 {
			gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "c1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "  Paris.\n"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 2, "total_tokens": 14},
		})
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{BaseURL: srv.URL, APIKey: "k", Model: "llama3.1"})
	answer, err := g.Generate(context.Background(), "Paris is the capital.", "Capital?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Paris." {
		t.Errorf("expected trimmed answer, got %q", answer)
	}
	if !strings.Contains(gotPrompt, "Paris is the capital.") {
		t.Errorf("context not sent in prompt: %q", gotPrompt)
	}
}

func TestGenerator_ErrorMapsToGeneration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{BaseURL: srv.URL, Model: "m"})
	_, err := g.Generate(context.Background(), "ctx", "q")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerator_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llama3.1","object":"model"}]}`))
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{BaseURL: srv.URL, Model: "llama3.1"})
	if err := g.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerator_HealthCheckError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"loading"}}`))
	}))
	defer srv.Close()

	g := NewGenerator(&GeneratorConfig{BaseURL: srv.URL, Model: "m"})
	if err := g.HealthCheck(context.Background()); !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

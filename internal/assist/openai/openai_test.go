package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/core"
)

type captured struct {
	path string
	auth string
	body map[string]any
}

func chatServer(t *testing.T, status int, content string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`)
			return
		}
		reply, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
		w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newProvider(srv *httptest.Server) *Provider {
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, core.DefaultCategories())
}

func TestSuggestCategory(t *testing.T) {
	srv, got := chatServer(t, http.StatusOK, "Transport.\n")
	p := newProvider(srv)

	label, err := p.SuggestCategory(context.Background(), "Uber to airport")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if label != "Transport" {
		t.Fatalf("label = %q", label)
	}
	if got.path != "/v1/chat/completions" || got.auth != "Bearer sk-test" {
		t.Fatalf("unexpected request %s auth=%q", got.path, got.auth)
	}
	if got.body["model"] != DefaultModel {
		t.Fatalf("model = %v", got.body["model"])
	}
	msgs := got.body["messages"].([]any)
	prompt := msgs[0].(map[string]any)["content"].(string)
	if !strings.Contains(prompt, "Uber to airport") {
		t.Fatalf("prompt missing description: %s", prompt)
	}
}

func TestSuggestCategoryAPIError(t *testing.T) {
	srv, _ := chatServer(t, http.StatusUnauthorized, "")
	_, err := newProvider(srv).SuggestCategory(context.Background(), "coffee")
	if !errors.Is(err, assist.ErrSuggestionFailed) {
		t.Fatalf("expected ErrSuggestionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in detail, got %v", err)
	}
}

func TestExtractReceipt(t *testing.T) {
	srv, got := chatServer(t, http.StatusOK, `{"description":"Groceries","amount":42.5,"category":"Food"}`)
	img := assist.DataURI{MIMEType: "image/jpeg", Data: []byte("jpeg")}

	draft, err := newProvider(srv).ExtractReceipt(context.Background(), img)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if draft != (assist.ReceiptDraft{Description: "Groceries", Amount: 42.5, Category: "Food"}) {
		t.Fatalf("unexpected draft %+v", draft)
	}

	format := got.body["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v", format)
	}
	schema := format["json_schema"].(map[string]any)["schema"].(map[string]any)
	enum := schema["properties"].(map[string]any)["category"].(map[string]any)["enum"].([]any)
	if len(enum) != 7 {
		t.Fatalf("enum = %v", enum)
	}

	parts := got.body["messages"].([]any)[0].(map[string]any)["content"].([]any)
	image := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if image != img.String() {
		t.Fatalf("image url = %s", image)
	}
}

func TestExtractReceiptSchemaViolation(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"description":"Groceries"}`)
	_, err := newProvider(srv).ExtractReceipt(context.Background(), assist.DataURI{MIMEType: "image/png", Data: []byte("x")})
	if !errors.Is(err, assist.ErrScanFailed) {
		t.Fatalf("expected ErrScanFailed, got %v", err)
	}
}

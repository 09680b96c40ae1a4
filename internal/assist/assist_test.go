package assist

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pocketbalance/internal/cache"
	"pocketbalance/internal/core"
	"pocketbalance/internal/log"
)

type fakeSuggester struct {
	label string
	err   error
	calls atomic.Int32
}

func (f *fakeSuggester) SuggestCategory(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.label, f.err
}

type fakeExtractor struct {
	draft ReceiptDraft
	err   error
	got   DataURI

	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
}

func (f *fakeExtractor) ExtractReceipt(_ context.Context, img DataURI) (ReceiptDraft, error) {
	f.mu.Lock()
	f.got = img
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.draft, f.err
}

var pngURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		mime    string
		wantErr error
	}{
		{"png", pngURI, "image/png", nil},
		{"jpeg with params", "data:image/jpeg;name=r.jpg;base64," + base64.StdEncoding.EncodeToString([]byte("x")), "image/jpeg", nil},
		{"no prefix", "image/png;base64,AAAA", "", ErrInvalidDataURI},
		{"no comma", "data:image/png;base64", "", ErrInvalidDataURI},
		{"not base64", "data:image/png,hello", "", ErrInvalidDataURI},
		{"bad payload", "data:image/png;base64,!!!", "", ErrInvalidDataURI},
		{"pdf", "data:application/pdf;base64,AAAA", "", ErrNotAnImage},
		{"empty payload", "data:image/png;base64,", "", ErrEmptyImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDataURI(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.MIMEType != tt.mime {
				t.Fatalf("mime = %q, want %q", got.MIMEType, tt.mime)
			}
		})
	}
}

func TestDataURIString(t *testing.T) {
	d, err := ParseDataURI(pngURI)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != pngURI {
		t.Fatalf("round trip mismatch: %s", d.String())
	}
}

func TestPromptsEmbedCategories(t *testing.T) {
	cats := core.DefaultCategories()
	p := SuggestPrompt("Uber to airport", cats)
	for _, want := range []string{"Uber to airport", "Food, Transport, Bills, Entertainment, Shopping, Travel, Other", "Respond with ONLY the name of the category."} {
		if !strings.Contains(p, want) {
			t.Fatalf("suggest prompt missing %q:\n%s", want, p)
		}
	}
	if !strings.Contains(ReceiptPrompt(cats), "Travel") {
		t.Fatalf("receipt prompt missing categories")
	}
	schema := ReceiptSchema(cats)
	props := schema["properties"].(map[string]any)
	enum := props["category"].(map[string]any)["enum"].([]string)
	if len(enum) != len(cats) {
		t.Fatalf("schema enum = %v", enum)
	}
}

func TestDecodeReceipt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ReceiptDraft
		ok   bool
	}{
		{"valid", `{"description":"Groceries","amount":42.5,"category":"Food"}`, ReceiptDraft{"Groceries", 42.5, "Food"}, true},
		{"fenced", "```json\n{\"description\":\"Taxi\",\"amount\":12,\"category\":\"Transport\"}\n```", ReceiptDraft{"Taxi", 12, "Transport"}, true},
		{"unknown category passes through", `{"description":"x","amount":1,"category":"Pets"}`, ReceiptDraft{"x", 1, "Pets"}, true},
		{"missing amount", `{"description":"x","category":"Food"}`, ReceiptDraft{}, false},
		{"malformed", `{"description":`, ReceiptDraft{}, false},
		{"wrong type", `{"description":"x","amount":"12","category":"Food"}`, ReceiptDraft{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReceipt(tt.raw)
			if !tt.ok {
				if !errors.Is(err, ErrScanFailed) {
					t.Fatalf("expected ErrScanFailed, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %+v, %v; want %+v", got, err, tt.want)
			}
		})
	}
}

func TestCleanSuggestion(t *testing.T) {
	cases := map[string]string{
		"Food":              "Food",
		"  Transport.\n":    "Transport",
		"**Bills**":         "Bills",
		"Travel\nBecause x": "Travel",
	}
	for in, want := range cases {
		if got := CleanSuggestion(in); got != want {
			t.Errorf("CleanSuggestion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceSuggest(t *testing.T) {
	ctx := context.Background()

	t.Run("returns raw label", func(t *testing.T) {
		s := NewService(&fakeSuggester{label: "Pets"}, nil)
		resp, err := s.Suggest(ctx, SuggestRequest{Description: "dog food"})
		if err != nil || resp.Category != "Pets" {
			t.Fatalf("got %+v, %v", resp, err)
		}
	})

	t.Run("empty description", func(t *testing.T) {
		f := &fakeSuggester{label: "Food"}
		s := NewService(f, nil)
		if _, err := s.Suggest(ctx, SuggestRequest{Description: "  "}); !errors.Is(err, ErrEmptyDescription) {
			t.Fatalf("expected ErrEmptyDescription, got %v", err)
		}
		if f.calls.Load() != 0 {
			t.Fatalf("provider should not be called")
		}
	})

	t.Run("provider failure is generic and logged", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewService(&fakeSuggester{err: errors.New("401 invalid api key")}, nil,
			WithServiceLogger(log.New(log.Config{Output: &buf})))
		_, err := s.Suggest(ctx, SuggestRequest{Description: "coffee"})
		if !errors.Is(err, ErrSuggestionFailed) || strings.Contains(err.Error(), "api key") {
			t.Fatalf("expected generic failure, got %v", err)
		}
		if !strings.Contains(buf.String(), "invalid api key") {
			t.Fatalf("provider error not logged: %s", buf.String())
		}
	})

	t.Run("no provider", func(t *testing.T) {
		s := NewService(nil, nil)
		if s.Enabled() {
			t.Fatalf("service should report disabled")
		}
		if _, err := s.Suggest(ctx, SuggestRequest{Description: "coffee"}); !errors.Is(err, ErrSuggestionFailed) {
			t.Fatalf("expected ErrSuggestionFailed, got %v", err)
		}
	})
}

func TestServiceScan(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ext := &fakeExtractor{draft: ReceiptDraft{"Groceries", 42.5, "Food"}}
		s := NewService(nil, ext)
		resp, err := s.Scan(ctx, ScanRequest{ReceiptImage: pngURI})
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if resp != (ScanResponse{"Groceries", 42.5, "Food"}) {
			t.Fatalf("unexpected response %+v", resp)
		}
		if ext.got.MIMEType != "image/png" {
			t.Fatalf("extractor got %+v", ext.got)
		}
	})

	t.Run("empty image", func(t *testing.T) {
		s := NewService(nil, &fakeExtractor{})
		if _, err := s.Scan(ctx, ScanRequest{}); !errors.Is(err, ErrEmptyImage) {
			t.Fatalf("expected ErrEmptyImage, got %v", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		s := NewService(nil, &fakeExtractor{})
		_, err := s.Scan(ctx, ScanRequest{ReceiptImage: "data:text/plain;base64,aGk="})
		if !errors.Is(err, ErrScanFailed) || !errors.Is(err, ErrNotAnImage) {
			t.Fatalf("expected scan failure wrapping ErrNotAnImage, got %v", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		s := NewService(nil, &fakeExtractor{err: errors.New("timeout")})
		if _, err := s.Scan(ctx, ScanRequest{ReceiptImage: pngURI}); !errors.Is(err, ErrScanFailed) {
			t.Fatalf("expected ErrScanFailed, got %v", err)
		}
	})

	t.Run("bounded concurrency", func(t *testing.T) {
		ext := &fakeExtractor{delay: 20 * time.Millisecond}
		s := NewService(nil, ext, WithMaxConcurrentScans(2))
		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Scan(ctx, ScanRequest{ReceiptImage: pngURI})
			}()
		}
		wg.Wait()
		if ext.peak > 2 {
			t.Fatalf("expected at most 2 scans in flight, saw %d", ext.peak)
		}
	})
}

func TestServiceTimeout(t *testing.T) {
	slow := suggesterFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := NewService(slow, nil, WithTimeout(10*time.Millisecond))
	if _, err := s.Suggest(context.Background(), SuggestRequest{Description: "x"}); !errors.Is(err, ErrSuggestionFailed) {
		t.Fatalf("expected ErrSuggestionFailed, got %v", err)
	}
}

type suggesterFunc func(ctx context.Context, description string) (string, error)

func (f suggesterFunc) SuggestCategory(ctx context.Context, d string) (string, error) {
	return f(ctx, d)
}

func TestCachedSuggester(t *testing.T) {
	ctx := context.Background()
	inner := &fakeSuggester{label: "Food"}
	s := NewCachedSuggester(inner, cache.NewLRU[string](10, time.Minute))

	for _, d := range []string{"Coffee  beans", "coffee beans", " COFFEE beans "} {
		if got, err := s.SuggestCategory(ctx, d); err != nil || got != "Food" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("expected 1 provider call, got %d", inner.calls.Load())
	}

	failing := &fakeSuggester{err: errors.New("down")}
	fs := NewCachedSuggester(failing, cache.NewLRU[string](10, time.Minute))
	for i := 0; i < 2; i++ {
		if _, err := fs.SuggestCategory(ctx, "x"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if failing.calls.Load() != 2 {
		t.Fatalf("failures must not be cached")
	}
}

package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/triagify/triagify-backend/internal/config"
)

func newTestGemini(t *testing.T, h http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGemini(config.GeminiConfig{APIKey: "k", Model: "gemini-test", BaseURL: srv.URL + "/"}, srv.Client())
}

func TestGemini_Summarize(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Error("missing api key header")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[0].Text == "" || parts[1].InlineData == nil {
			t.Fatalf("unexpected parts %+v", parts)
		}
		if parts[1].InlineData.MimeType != "image/png" || parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("PNG")) {
			t.Errorf("unexpected inline data %+v", parts[1].InlineData)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Hemoglobin slightly low. "}]}}]}`))
	})

	got, err := g.Summarize(context.Background(), []byte("PNG"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hemoglobin slightly low." {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestGemini_EmptyTextIsNoSummary(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`))
	})
	if _, err := g.Summarize(context.Background(), []byte("x"), "application/pdf"); !errors.Is(err, ErrNoSummary) {
		t.Fatalf("expected ErrNoSummary, got %v", err)
	}
}

func TestGemini_UpstreamError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := g.Summarize(context.Background(), []byte("x"), "image/jpeg")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestGemini_HonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.Summarize(ctx, []byte("x"), "image/png"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNew_WithoutKeyIsDisabled(t *testing.T) {
	a := New(config.GeminiConfig{})
	if _, err := a.Summarize(context.Background(), nil, ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

// Package analysis turns an uploaded exam document into a short clinical
// summary paragraph.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/triagify/triagify-backend/internal/config"
)

// Analyzer summarizes a document. Implementations must honour ctx.
type Analyzer interface {
	Summarize(ctx context.Context, data []byte, mimeType string) (string, error)
}

var (
	// ErrNoSummary means the model answered but produced no usable text.
	ErrNoSummary = errors.New("analysis: empty summary")
	// ErrNotConfigured is returned by Disabled.
	ErrNotConfigured = errors.New("analysis: no analyzer configured")
)

const prompt = "You are an assistant supporting healthcare professionals. " +
	"Read this medical exam document and write one concise, objective paragraph summarizing the main results, " +
	"pointing out values that look notable, abnormal or outside the reference range when one is shown. " +
	"Answer with the paragraph only."

type geminiRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Gemini calls the generateContent endpoint of the Gemini REST API.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGemini builds a client. A nil httpClient selects one with a 60s timeout;
// per-call deadlines come from ctx.
func NewGemini(cfg config.GeminiConfig, httpClient *http.Client) *Gemini {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Gemini{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

func (g *Gemini) Summarize(ctx context.Context, data []byte, mimeType string) (string, error) {
	reqBody := geminiRequest{Contents: []content{{Parts: []part{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
	}}}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("gemini API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini decode: %w", err)
	}
	var sb strings.Builder
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoSummary
	}
	return text, nil
}

// Disabled rejects every document. It is wired when GEMINI_API_KEY is unset.
type Disabled struct{}

func (Disabled) Summarize(context.Context, []byte, string) (string, error) {
	return "", ErrNotConfigured
}

// New picks Gemini when an API key is configured.
func New(cfg config.GeminiConfig) Analyzer {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	return NewGemini(cfg, nil)
}

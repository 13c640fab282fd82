// Package summary turns meeting chat transcripts into clinical summaries
// through the Gemini generateContent REST endpoint.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-1.5-flash"

	// EmptyTranscript is the summary of a meeting where nobody wrote anything.
	EmptyTranscript = "No chat messages were exchanged during this meeting."

	promptPreamble = "You are a medical assistant. The following is the chat transcript from a telehealth " +
		"video consultation between a doctor and a patient. Write a concise, professional clinical summary " +
		"(under 200 words) covering: who said what, main topics discussed, symptoms or concerns raised, " +
		"any advice or next steps mentioned. Format it clearly with the patient and doctor's contributions distinguished."
)

var ErrDisabled = errors.New("summarizer disabled: no api key")

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Gemini calls the Gemini API. A zero APIKey disables it.
type Gemini struct {
	APIKey   string
	Model    string
	Endpoint string
	HTTP     *http.Client
}

func NewGemini(apiKey, model, endpoint string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Gemini{
		APIKey:   apiKey,
		Model:    model,
		Endpoint: strings.TrimRight(endpoint, "/"),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *Gemini) Enabled() bool { return g.APIKey != "" }

func Prompt(lines []string) string {
	return promptPreamble + "\n\nTranscript:\n" + strings.Join(lines, "\n")
}

func (g *Gemini) Summarize(ctx context.Context, lines []string) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}
	if len(lines) == 0 {
		return EmptyTranscript, nil
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: Prompt(lines)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.Endpoint, g.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("API error (code=%d): %s", gr.Error.Code, gr.Error.Message)
	}

	var sb strings.Builder
	for _, c := range gr.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("empty summary in response")
	}
	log.Info().Str("module", "adapters.summary").Int("lines", len(lines)).Msg("summary generated")
	return text, nil
}

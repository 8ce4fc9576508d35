// Package transcriber sends audio to the Deepgram pre-recorded
// transcription API.
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds Deepgram API settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// Deepgram is a client for Deepgram's /v1/listen endpoint.
type Deepgram struct {
	client HTTPClient
	cfg    Config
}

// New creates a Deepgram transcriber.
func New(cfg Config, client HTTPClient) *Deepgram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Deepgram{client: client, cfg: cfg}
}

// listenResponse mirrors the slice of Deepgram's response we consume.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// TranscribeFile reads a local audio file and returns the transcript text.
func (d *Deepgram) TranscribeFile(ctx context.Context, audioPath, mimeType string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	return d.Transcribe(ctx, f, mimeType)
}

// Transcribe streams audio to Deepgram and returns the transcript of the
// first channel's best alternative. A 429 from the API is surfaced with
// "too many requests" in the error text so the failure classifier picks it
// up as a rate limit.
func (d *Deepgram) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (string, error) {
	if d.cfg.APIKey == "" {
		return "", fmt.Errorf("deepgram API key is not configured")
	}

	params := url.Values{}
	params.Set("model", d.cfg.Model)
	params.Set("language", d.cfg.Language)
	params.Set("smart_format", "true")

	endpoint := fmt.Sprintf("%s/v1/listen?%s", strings.TrimRight(d.cfg.BaseURL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, audio)
	if err != nil {
		return "", fmt.Errorf("create transcribe request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.cfg.APIKey)
	req.Header.Set("Content-Type", mimeType)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read transcribe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("transcribe request rejected: 429 too many requests: %s", truncate(string(body), 200))
		}
		return "", fmt.Errorf("transcribe request failed: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed listenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode transcribe response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("transcribe response contains no alternatives")
	}

	transcript := parsed.Results.Channels[0].Alternatives[0].Transcript

	logger.Log.Debug("transcription completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("transcript_chars", len(transcript)),
	)

	return transcript, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

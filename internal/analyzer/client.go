// Package analyzer calls the hosted extraction function that turns a
// transcript into structured note fields.
package analyzer

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

	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/reconcile"
)

const maxResponseBytes = 1 << 20

// Config controls the analyzer endpoint.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client implements ports.Analyzer over HTTP. Calls are not retried.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
}

type analyzeResponse struct {
	Success bool                     `json:"success"`
	Data    *domain.ExtractionResult `json:"data"`
	Error   string                   `json:"error"`
}

// Analyze sends transcript to the extraction function.
func (c *Client) Analyze(ctx context.Context, transcript string) (domain.ExtractionResult, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return domain.ExtractionResult{}, domain.ErrAnalyzerUnavailable
	}

	body, err := json.Marshal(analyzeRequest{Transcript: transcript})
	if err != nil {
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("apikey", c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("transcript_chars", len(transcript)).
		Dur("elapsed", time.Since(start)).
		Msg("analyze")

	var decoded analyzeResponse
	decodeErr := json.Unmarshal(payload, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := strings.TrimSpace(decoded.Error)
		if decodeErr != nil || message == "" {
			message = strings.TrimSpace(string(payload))
		}
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, message)}
	}
	if decodeErr != nil {
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if !decoded.Success {
		message := strings.TrimSpace(decoded.Error)
		if message == "" {
			message = "analyzer reported failure"
		}
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: errors.New(message)}
	}
	if decoded.Data == nil {
		return domain.ExtractionResult{}, &domain.AnalysisError{Err: errors.New("analyzer returned no data")}
	}
	// "N/A" never leaves the client; downstream treats "" as no information.
	return reconcile.NormalizeResult(*decoded.Data), nil
}

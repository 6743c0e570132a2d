// Package google sends FLAC audio to the Google speech v2 recogniser and
// picks the most confident transcript from its answer.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bz888/cognix/internal/logger"
)

const DefaultEndpoint = "http://www.google.com/speech-api/v2/recognize"

var (
	ErrNoResult     = errors.New("no valid results found")
	ErrMissingKey   = errors.New("speech API key is not configured")
	errNoAlternates = errors.New("no alternatives found")
)

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Alternative []Alternative `json:"alternative"`
	Final       bool          `json:"final"`
}

type Response struct {
	Result []Result `json:"result"`
}

type Config struct {
	APIKey   string
	Language string
	Endpoint string
	Timeout  time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

type Client struct {
	endpoint string
	key      string
	language string
	http     *http.Client
	log      *logger.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("speech endpoint: %w", err)
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: cfg.Endpoint,
		key:      cfg.APIKey,
		language: cfg.Language,
		http:     httpClient,
		log:      logger.NewLogger("google speech"),
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, audio []byte, sampleRate int) (*http.Request, error) {
	params := url.Values{}
	params.Set("client", "chromium")
	params.Set("lang", c.language)
	params.Set("key", c.key)
	params.Set("pFilter", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+params.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/x-flac; rate=%d", sampleRate))
	return req, nil
}

// Recognize returns the best transcript for the FLAC encoded audio and its
// confidence. A hypothesis without a confidence score counts as 0.5.
func (c *Client) Recognize(ctx context.Context, audio []byte, sampleRate int) (string, float64, error) {
	req, err := c.buildRequest(ctx, audio, sampleRate)
	if err != nil {
		return "", 0, fmt.Errorf("build recognise request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("send recognise request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read recognise response: %w", err)
	}
	c.log.Debug("recogniser answered ", resp.Status, " in ", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("recogniser returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return parse(string(body))
}

// convertToResult finds the first non-empty result. The recogniser answers
// with one JSON document per line and usually opens with an empty one.
func convertToResult(responseText string) (Result, error) {
	for _, line := range strings.Split(responseText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var response Response
		if err := json.Unmarshal([]byte(line), &response); err != nil {
			return Result{}, fmt.Errorf("decode recogniser line: %w", err)
		}
		if len(response.Result) != 0 {
			if len(response.Result[0].Alternative) == 0 {
				return Result{}, errNoAlternates
			}
			return response.Result[0], nil
		}
	}
	return Result{}, ErrNoResult
}

func findBestHypothesis(alternatives []Alternative) (Alternative, error) {
	if len(alternatives) == 0 {
		return Alternative{}, errNoAlternates
	}

	best := alternatives[0]
	for _, alternative := range alternatives[1:] {
		if alternative.Confidence > best.Confidence {
			best = alternative
		}
	}

	if strings.TrimSpace(best.Transcript) == "" {
		return Alternative{}, errors.New("best hypothesis does not have a transcript")
	}
	return best, nil
}

func parse(responseText string) (string, float64, error) {
	result, err := convertToResult(responseText)
	if err != nil {
		return "", 0, err
	}
	best, err := findBestHypothesis(result.Alternative)
	if err != nil {
		return "", 0, err
	}
	confidence := best.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	return best.Transcript, confidence, nil
}

package completion

import (
	"bufio"
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

const defaultTimeout = 60 * time.Second

// errStreamDone stops a scan once the backend signals the end of a stream.
var errStreamDone = errors.New("stream done")

// Client holds what every HTTP backend shares: endpoints, credential and transport.
type Client struct {
	base      *url.URL
	http      *http.Client
	modelsUrl *url.URL
	chatUrl   *url.URL
	apiKey    string
	log       *logger.Logger
}

// ClientConfig holds the configuration for the client
type ClientConfig struct {
	BaseURL    string
	ModelsPath string
	ChatPath   string
	APIKey     string
	Timeout    time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a new API client with configurable base URL and endpoints
func NewClient(config ClientConfig, tag string) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", config.BaseURL, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:      baseURL,
		http:      httpClient,
		modelsUrl: baseURL.JoinPath(config.ModelsPath),
		chatUrl:   baseURL.JoinPath(config.ChatPath),
		apiKey:    config.APIKey,
		log:       logger.NewLogger(tag),
	}, nil
}

func (c *Client) GetModelsURL() string {
	return c.modelsUrl.String()
}

func (c *Client) GetChatURL() string {
	return c.chatUrl.String()
}

// post sends data as JSON and returns the response for a 2xx status. Any
// other outcome is returned as a classified *Error.
func (c *Client) post(ctx context.Context, endpoint string, data any, header http.Header) (*http.Response, error) {
	bts, err := json.Marshal(data)
	if err != nil {
		return nil, &Error{Kind: BadRequest, Detail: "encode request", Err: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bts))
	if err != nil {
		return nil, &Error{Kind: BadRequest, Detail: "build request", Err: err}
	}
	request.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			request.Header.Add(key, v)
		}
	}

	return c.do(request)
}

func (c *Client) get(ctx context.Context, endpoint string, header http.Header) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Kind: BadRequest, Detail: "build request", Err: err}
	}
	for key, values := range header {
		for _, v := range values {
			request.Header.Add(key, v)
		}
	}
	return c.do(request)
}

func (c *Client) do(request *http.Request) (*http.Response, error) {
	response, err := c.http.Do(request)
	if err != nil {
		c.log.Warn("request to ", request.URL.Host, " failed: ", err)
		return nil, transportError(err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))
		failure := statusError(response.StatusCode, body)
		c.log.Warn("upstream ", request.URL.Host, " returned ", response.StatusCode, ": ", failure.Detail)
		return nil, failure
	}

	return response, nil
}

// decode reads a JSON body into v. A body that does not decode is treated
// as a broken transport, the same as a dropped connection.
func decode(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return &Error{Kind: Transport, Detail: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// scan feeds every line of body to fn.
func scan(body io.Reader, fn func([]byte) error) error {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 512*1024)

	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return transportError(fmt.Errorf("scanner error: %w", err))
	}
	return nil
}

// sseData extracts the payload of a server-sent "data:" line. Comments,
// blank lines and other fields report ok=false.
func sseData(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func missingKey(provider string) *Error {
	return &Error{Kind: AuthInvalid, Detail: provider + " API key is not configured"}
}

// Package api talks to a running "cognix serve".
package api

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

	"github.com/bz888/cognix/internal/api/server"
	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
)

const defaultPollInterval = 250 * time.Millisecond

var ErrNoReply = errors.New("no reply in transcript")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status  int
	Message string
	body    []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cognix api: %d %s", e.Status, e.Message)
}

type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	log   *logger.Logger

	// PollInterval is how often Chat checks for the reply.
	PollInterval time.Duration
}

// NewClient connects to address, either host:port or a full URL.
func NewClient(address, token string) (*Client, error) {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	return &Client{
		base:         base,
		http:         &http.Client{},
		token:        token,
		log:          logger.NewLogger("api client"),
		PollInterval: defaultPollInterval,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		bts, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(bts)
	}

	requestURL := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, requestURL.String(), body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("request ", method, " ", path, " failed: ", err)
		return 0, err
	}
	defer resp.Body.Close()

	bts, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e server.ErrorResponse
		if json.Unmarshal(bts, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, &StatusError{Status: resp.StatusCode, Message: e.Error, body: bts}
	}
	if out != nil && len(bts) > 0 {
		if err := json.Unmarshal(bts, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) ListModels(ctx context.Context) ([]models.Descriptor, error) {
	var resp server.ModelsResponse
	if _, err := c.do(ctx, http.MethodGet, "/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

func (c *Client) State(ctx context.Context) (server.StateResponse, error) {
	var resp server.StateResponse
	_, err := c.do(ctx, http.MethodGet, "/state", nil, &resp)
	return resp, err
}

func (c *Client) Transcript(ctx context.Context) ([]chat.Message, error) {
	var resp server.TranscriptResponse
	if _, err := c.do(ctx, http.MethodGet, "/transcript", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Chat submits text and waits for the session to settle. It returns the
// last assistant message, which may be an error report.
func (c *Client) Chat(ctx context.Context, text string) (chat.Message, error) {
	_, err := c.do(ctx, http.MethodPost, "/chat", server.ChatRequest{Text: text}, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusForbidden {
		// premium model: the notice is the reply
		var resp server.ChatResponse
		if json.Unmarshal(se.body, &resp) == nil && resp.Reply != nil {
			return *resp.Reply, nil
		}
	}
	if err != nil {
		return chat.Message{}, err
	}

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		st, err := c.State(ctx)
		if err != nil {
			return chat.Message{}, err
		}
		if st.Phase == "idle" {
			break
		}
		select {
		case <-ctx.Done():
			return chat.Message{}, ctx.Err()
		case <-ticker.C:
		}
	}

	msgs, err := c.Transcript(ctx)
	if err != nil {
		return chat.Message{}, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant && !msgs[i].Greeting {
			return msgs[i], nil
		}
	}
	return chat.Message{}, ErrNoReply
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/clear", nil, nil)
	return err
}

// SetPreferences applies the non-nil fields of update.
func (c *Client) SetPreferences(ctx context.Context, update server.PreferencesUpdate) (server.PreferencesResponse, error) {
	var resp server.PreferencesResponse
	_, err := c.do(ctx, http.MethodPut, "/preferences", update, &resp)
	return resp, err
}

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bz888/cognix/internal/chat"
)

// GeminiClient calls the Google generative language API, which backs the
// free assistant.
type GeminiClient struct {
	Client
}

func NewGeminiClient(config ClientConfig) (*GeminiClient, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if config.ModelsPath == "" {
		config.ModelsPath = "/v1beta/models"
	}
	c, err := NewClient(config, "gemini")
	if err != nil {
		return nil, err
	}
	return &GeminiClient{Client: *c}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *geminiFeedback   `json:"promptFeedback,omitempty"`
}

func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// geminiBody maps the wire conversation onto Gemini's shape: the system
// prompt moves to systemInstruction and the assistant role becomes "model".
func geminiBody(messages []Message) geminiRequest {
	var body geminiRequest
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case chat.RoleAssistant:
			body.Contents = append(body.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return body
}

func (c *GeminiClient) endpoint(model, method string) string {
	u := c.base.JoinPath("v1beta", "models", model+":"+method)
	if method == "streamGenerateContent" {
		q := u.Query()
		q.Set("alt", "sse")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", missingKey("Gemini")
	}

	body := geminiBody(BuildMessages(req.SystemPrompt, req.History))
	header := http.Header{}
	header.Set("x-goog-api-key", c.apiKey)

	method := "generateContent"
	if req.OnDelta != nil {
		method = "streamGenerateContent"
	}

	response, err := c.post(ctx, c.endpoint(req.Model.UpstreamModel(), method), body, header)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if req.OnDelta != nil {
		return c.stream(response, req.OnDelta)
	}

	var gr geminiResponse
	if err := decode(response.Body, &gr); err != nil {
		return "", err
	}
	return finish(gr.text(), gr.PromptFeedback, response.StatusCode)
}

func (c *GeminiClient) stream(response *http.Response, onDelta func(string)) (string, error) {
	var text strings.Builder
	var feedback *geminiFeedback

	err := scan(response.Body, func(line []byte) error {
		data, ok := sseData(line)
		if !ok {
			return nil
		}
		var chunk geminiResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			c.log.Error("Failed to unmarshal stream chunk: ", err)
			return &Error{Kind: Transport, Detail: "decode stream chunk: " + err.Error(), Err: err}
		}
		if chunk.PromptFeedback != nil {
			feedback = chunk.PromptFeedback
		}
		if delta := chunk.text(); delta != "" {
			text.WriteString(delta)
			onDelta(delta)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStreamDone) {
		return "", err
	}
	return finish(text.String(), feedback, response.StatusCode)
}

func finish(text string, feedback *geminiFeedback, status int) (string, error) {
	text = strings.TrimSpace(text)
	if text != "" {
		return text, nil
	}
	if feedback != nil && feedback.BlockReason != "" {
		return "", &Error{Kind: BadRequest, Status: status, Detail: "prompt blocked: " + feedback.BlockReason}
	}
	return "", &Error{Kind: Unknown, Status: status, Detail: "empty candidates"}
}

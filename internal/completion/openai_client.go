package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bz888/cognix/internal/logger"
)

// OpenAIClient talks to any OpenAI-compatible chat completions API
// (OpenAI itself, OpenRouter).
type OpenAIClient struct {
	Client
	name   string
	header http.Header
}

func NewOpenAIClient(config ClientConfig) (*OpenAIClient, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	if config.ChatPath == "" {
		config.ChatPath = "/v1/chat/completions"
	}
	if config.ModelsPath == "" {
		config.ModelsPath = "/v1/models"
	}
	c, err := NewClient(config, "openai")
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{Client: *c, name: "OpenAI", header: http.Header{}}, nil
}

// NewOpenRouterClient targets OpenRouter, which serves the premium catalog.
func NewOpenRouterClient(config ClientConfig) (*OpenAIClient, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://openrouter.ai/api"
	}
	c, err := NewOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	c.name = "OpenRouter"
	c.log = logger.NewLogger("openrouter")
	c.header.Set("HTTP-Referer", "https://github.com/bz888/cognix")
	c.header.Set("X-Title", "COGNIX")
	return c, nil
}

type openAIChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Error   *openAIError       `json:"error,omitempty"`
}

type openAIChatChoice struct {
	Index        int             `json:"index"`
	FinishReason *string         `json:"finish_reason,omitempty"`
	Message      Message         `json:"message"`
	Delta        openAIChatDelta `json:"delta"`
}

type openAIChatDelta struct {
	Content *string `json:"content,omitempty"`
	Role    *string `json:"role,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

type OpenAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type openAIModelsResponse struct {
	Object string        `json:"object"`
	Data   []OpenAIModel `json:"data"`
}

func (c *OpenAIClient) authHeader() http.Header {
	h := c.header.Clone()
	h.Set("Authorization", "Bearer "+c.apiKey)
	return h
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", missingKey(c.name)
	}

	apiReq := openAIChatRequest{
		Model:    req.Model.UpstreamModel(),
		Messages: BuildMessages(req.SystemPrompt, req.History),
		Stream:   req.OnDelta != nil,
	}

	response, err := c.post(ctx, c.GetChatURL(), apiReq, c.authHeader())
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if apiReq.Stream {
		return c.stream(response, req.OnDelta)
	}

	var cr openAIChatResponse
	if err := decode(response.Body, &cr); err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", &Error{Kind: Unknown, Status: response.StatusCode, Detail: cr.Error.Message}
	}
	if len(cr.Choices) == 0 {
		return "", &Error{Kind: Unknown, Status: response.StatusCode, Detail: "empty choices"}
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) stream(response *http.Response, onDelta func(string)) (string, error) {
	var text strings.Builder

	err := scan(response.Body, func(line []byte) error {
		data, ok := sseData(line)
		if !ok {
			return nil
		}
		if string(data) == "[DONE]" {
			return errStreamDone
		}

		var chunk openAIChatResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			c.log.Error("Failed to unmarshal stream chunk: ", err)
			return &Error{Kind: Transport, Detail: "decode stream chunk: " + err.Error(), Err: err}
		}
		if chunk.Error != nil {
			return &Error{Kind: Unknown, Status: response.StatusCode, Detail: chunk.Error.Message}
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != nil {
			content := *chunk.Choices[0].Delta.Content
			if content != "" {
				text.WriteString(content)
				onDelta(content)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStreamDone) {
		return "", err
	}

	if text.Len() == 0 {
		return "", &Error{Kind: Unknown, Status: response.StatusCode, Detail: "empty response"}
	}
	return strings.TrimSpace(text.String()), nil
}

// Models lists the models the key can access.
func (c *OpenAIClient) Models(ctx context.Context) ([]OpenAIModel, error) {
	if c.apiKey == "" {
		return nil, missingKey(c.name)
	}
	response, err := c.get(ctx, c.GetModelsURL(), c.authHeader())
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var mr openAIModelsResponse
	if err := decode(response.Body, &mr); err != nil {
		return nil, err
	}
	return mr.Data, nil
}

package completion

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// OllamaClient represents a client for a local Ollama daemon
type OllamaClient struct {
	Client
}

func NewOllamaClient(host string, timeout time.Duration) (*OllamaClient, error) {
	if host == "" {
		host = "localhost:11434"
	}
	base := host
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c, err := NewClient(ClientConfig{
		BaseURL:    base,
		ModelsPath: "/api/tags",
		ChatPath:   "/api/chat",
		Timeout:    timeout,
	}, "ollama")
	if err != nil {
		return nil, err
	}
	return &OllamaClient{Client: *c}, nil
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`
	Error     string  `json:"error,omitempty"`
}

type OllamaModel struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

type Families []string

// ModelDetails Details represents the details of a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          Families `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

type ollamaModelsResponse struct {
	Models []OllamaModel `json:"models"`
}

func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	apiReq := ollamaChatRequest{
		Model:    req.Model.UpstreamModel(),
		Messages: BuildMessages(req.SystemPrompt, req.History),
		Stream:   req.OnDelta != nil,
	}

	response, err := c.post(ctx, c.GetChatURL(), apiReq, nil)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if !apiReq.Stream {
		var r ollamaChatResponse
		if err := decode(response.Body, &r); err != nil {
			return "", err
		}
		if r.Error != "" {
			return "", &Error{Kind: Unknown, Status: response.StatusCode, Detail: r.Error}
		}
		if strings.TrimSpace(r.Message.Content) == "" {
			return "", &Error{Kind: Unknown, Status: response.StatusCode, Detail: "empty response"}
		}
		return strings.TrimSpace(r.Message.Content), nil
	}

	var text strings.Builder
	err = scan(response.Body, func(bts []byte) error {
		if len(strings.TrimSpace(string(bts))) == 0 {
			return nil
		}
		var r ollamaChatResponse
		if err := json.Unmarshal(bts, &r); err != nil {
			c.log.Error("Failed to unmarshal response: ", err)
			c.log.Debug("Raw response data: ", string(bts))
			return &Error{Kind: Transport, Detail: "decode stream chunk: " + err.Error(), Err: err}
		}
		if r.Error != "" {
			return &Error{Kind: Unknown, Status: response.StatusCode, Detail: r.Error}
		}
		if r.Message.Content != "" {
			text.WriteString(r.Message.Content)
			req.OnDelta(r.Message.Content)
		}
		if r.Done {
			return errStreamDone
		}
		return nil
	})
	if err != nil && err != errStreamDone {
		return "", err
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", &Error{Kind: Unknown, Status: response.StatusCode, Detail: "empty response"}
	}
	return strings.TrimSpace(text.String()), nil
}

// Models lists the models pulled into the local daemon.
func (c *OllamaClient) Models(ctx context.Context) ([]OllamaModel, error) {
	response, err := c.get(ctx, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var mr ollamaModelsResponse
	if err := decode(response.Body, &mr); err != nil {
		return nil, err
	}
	return mr.Models, nil
}

// ModelNames is Models reduced to the names Ollama accepts in a chat request.
func (c *OllamaClient) ModelNames(ctx context.Context) ([]string, error) {
	list, err := c.Models(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
	}
	return names, nil
}

// UnmarshalJSON handles the custom unmarshalling for Families.
func (f *Families) UnmarshalJSON(data []byte) error {
	// "null" decodes to an empty slice
	if string(data) == "null" {
		*f = Families{}
		return nil
	}

	var families []string
	if err := json.Unmarshal(data, &families); err != nil {
		return err
	}
	*f = Families(families)
	return nil
}

package models

const DefaultID = "cognix-ai"

func premium(id, name, description string) Descriptor {
	return Descriptor{
		ID:          id,
		DisplayName: name,
		Description: description,
		Provider:    ProviderOpenRouter,
		IsPremium:   true,
	}
}

// Builtin is the shipped catalog: the free assistant followed by the
// subscription-only OpenRouter models.
func Builtin() *Registry {
	r, err := NewRegistry(
		Descriptor{
			ID:          DefaultID,
			DisplayName: "COGNIX AI",
			Description: "Your intelligent AI assistant",
			Provider:    ProviderGemini,
			Upstream:    "gemini-2.5-flash-lite",
			IsDefault:   true,
		},
		premium("openai/gpt-3.5-turbo", "GPT-3.5 Turbo", "Fast and efficient"),
		premium("openai/gpt-4", "GPT-4", "Most capable OpenAI model"),
		premium("openai/gpt-4-turbo", "GPT-4 Turbo", "Faster GPT-4"),
		premium("anthropic/claude-3-opus", "Claude 3 Opus", "Most powerful Claude"),
		premium("anthropic/claude-3-sonnet", "Claude 3 Sonnet", "Balanced performance"),
		premium("anthropic/claude-3-haiku", "Claude 3 Haiku", "Fast and affordable"),
		premium("google/gemini-pro", "Gemini Pro", "Google's advanced AI"),
		premium("meta-llama/llama-3-70b-instruct", "Llama 3 70B", "Open source powerhouse"),
		premium("mistralai/mixtral-8x7b-instruct", "Mixtral 8x7B", "Efficient mixture of experts"),
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Local builds free descriptors for models served by a local Ollama daemon.
func Local(names ...string) []Descriptor {
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, Descriptor{
			ID:          "ollama/" + name,
			DisplayName: name,
			Description: "Local model",
			Provider:    ProviderOllama,
			Upstream:    name,
		})
	}
	return out
}

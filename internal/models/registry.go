package models

import (
	"errors"
	"fmt"
)

type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
	ProviderOllama     Provider = "ollama"
)

var ErrNotFound = errors.New("model not found")

// Descriptor is one selectable assistant backend.
type Descriptor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"name"`
	Description string   `json:"description"`
	Provider    Provider `json:"provider"`
	// Upstream is the model name the provider expects; empty means ID.
	Upstream  string `json:"-"`
	IsPremium bool   `json:"is_premium"`
	IsDefault bool   `json:"is_default"`
}

func (d Descriptor) UpstreamModel() string {
	if d.Upstream != "" {
		return d.Upstream
	}
	return d.ID
}

// Registry is an immutable, ordered catalog of descriptors.
type Registry struct {
	descriptors []Descriptor
	index       map[string]int
	defaultIdx  int
}

func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
		defaultIdx:  -1,
	}

	firstFree := -1
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, errors.New("model descriptor without id")
		}
		if _, ok := r.index[d.ID]; ok {
			return nil, fmt.Errorf("duplicate model id %q", d.ID)
		}
		if d.IsDefault {
			if r.defaultIdx >= 0 {
				return nil, fmt.Errorf("more than one default model: %q and %q", r.descriptors[r.defaultIdx].ID, d.ID)
			}
			if d.IsPremium {
				return nil, fmt.Errorf("default model %q must not be premium", d.ID)
			}
			r.defaultIdx = len(r.descriptors)
		}
		if !d.IsPremium && firstFree < 0 {
			firstFree = len(r.descriptors)
		}

		r.index[d.ID] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}

	if firstFree < 0 {
		return nil, errors.New("registry needs at least one free model")
	}
	if r.defaultIdx < 0 {
		r.defaultIdx = firstFree
	}

	return r, nil
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

func (r *Registry) Find(id string) (Descriptor, error) {
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return r.descriptors[i], nil
}

func (r *Registry) Default() Descriptor {
	return r.descriptors[r.defaultIdx]
}

// Usable reports whether id names a registered, non-premium model.
func (r *Registry) Usable(id string) bool {
	d, err := r.Find(id)
	return err == nil && !d.IsPremium
}

// With returns a new registry holding r's descriptors followed by extra.
func (r *Registry) With(extra ...Descriptor) (*Registry, error) {
	all := append(r.List(), extra...)
	return NewRegistry(all...)
}

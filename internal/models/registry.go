package models

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ModelID string

const (
	Claude     ModelID = "claude"
	Gemini     ModelID = "gemini"
	Perplexity ModelID = "perplexity"
	Krea       ModelID = "krea"
	Runway     ModelID = "runway"
	ElevenLabs ModelID = "elevenlabs"
	HeyGen     ModelID = "heygen"

	// DefaultModel is the reasoning model. It is the only backend that is
	// always available and is the target of every routing fallback.
	DefaultModel = Claude
)

type Category string

const (
	CategoryText   Category = "text"
	CategoryImage  Category = "image"
	CategoryVideo  Category = "video"
	CategoryAudio  Category = "audio"
	CategoryAvatar Category = "avatar"
)

type Descriptor struct {
	ID           ModelID      `json:"id"`
	Name         string       `json:"name"`
	Provider     string       `json:"provider"`
	Category     Category     `json:"category"`
	Color        string       `json:"color"`
	Description  string       `json:"description"`
	Capabilities []IntentType `json:"capabilities"`
	IsAvailable  bool         `json:"isAvailable"`
}

// order is the display order used by All.
var order = []ModelID{Claude, Gemini, Perplexity, Krea, Runway, ElevenLabs, HeyGen}

func defaultDescriptors() map[ModelID]Descriptor {
	return map[ModelID]Descriptor{
		Claude: {
			ID: Claude, Name: "Claude", Provider: "Anthropic", Category: CategoryText, Color: "#d97706",
			Description:  "Primary orchestrator and reasoning engine",
			Capabilities: []IntentType{IntentConversation, IntentCoding, IntentAnalysis, IntentCreativeWriting, IntentResearch},
			IsAvailable:  true,
		},
		Gemini: {
			ID: Gemini, Name: "Gemini", Provider: "Google", Category: CategoryText, Color: "#3b82f6",
			Description:  "Multimodal reasoning and long context",
			Capabilities: []IntentType{IntentConversation, IntentAnalysis, IntentResearch, IntentCoding},
			IsAvailable:  true,
		},
		Perplexity: {
			ID: Perplexity, Name: "Perplexity", Provider: "Perplexity AI", Category: CategoryText, Color: "#8b5cf6",
			Description:  "Real-time web search and citations",
			Capabilities: []IntentType{IntentResearch, IntentConversation},
			IsAvailable:  true,
		},
		Krea: {
			ID: Krea, Name: "Krea", Provider: "Krea AI", Category: CategoryImage, Color: "#ec4899",
			Description:  "Image generation and enhancement",
			Capabilities: []IntentType{IntentImageGeneration},
		},
		Runway: {
			ID: Runway, Name: "Runway", Provider: "Runway ML", Category: CategoryVideo, Color: "#10b981",
			Description:  "Video generation and editing",
			Capabilities: []IntentType{IntentVideoGeneration},
		},
		ElevenLabs: {
			ID: ElevenLabs, Name: "ElevenLabs", Provider: "ElevenLabs", Category: CategoryAudio, Color: "#06b6d4",
			Description:  "Voice synthesis and cloning",
			Capabilities: []IntentType{IntentVoiceGeneration},
		},
		HeyGen: {
			ID: HeyGen, Name: "HeyGen", Provider: "HeyGen", Category: CategoryAvatar, Color: "#f43f5e",
			Description:  "AI avatar video generation",
			Capabilities: []IntentType{IntentAvatarGeneration},
		},
	}
}

// intentRoutes maps every intent to the backend that serves it best.
var intentRoutes = map[IntentType]ModelID{
	IntentConversation:     Claude,
	IntentResearch:         Perplexity,
	IntentCoding:           Claude,
	IntentImageGeneration:  Krea,
	IntentVideoGeneration:  Runway,
	IntentVoiceGeneration:  ElevenLabs,
	IntentAvatarGeneration: HeyGen,
	IntentAnalysis:         Claude,
	IntentCreativeWriting:  Claude,
}

// Registry holds the model descriptors. It is built once at startup and
// only read afterwards, so it is safe for concurrent use.
type Registry struct {
	models map[ModelID]Descriptor
}

// NewRegistry returns the default registry.
func NewRegistry() *Registry {
	return &Registry{models: defaultDescriptors()}
}

// Override is one entry of a registry overrides file.
type Override struct {
	Available *bool  `yaml:"available"`
	Color     string `yaml:"color,omitempty"`
}

type overridesFile struct {
	Models map[ModelID]Override `yaml:"models"`
}

// LoadRegistry builds the default registry and applies the YAML overrides
// found at path. An empty path returns the defaults.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file %s: %w", path, err)
	}

	var file overridesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse models file %s: %w", path, err)
	}

	for id, o := range file.Models {
		d, ok := r.models[id]
		if !ok {
			log.Printf("Ignoring override for unknown model %q", id)
			continue
		}
		if o.Available != nil {
			if id == DefaultModel && !*o.Available {
				log.Printf("Model %q cannot be disabled, keeping it available", id)
			} else {
				d.IsAvailable = *o.Available
			}
		}
		if o.Color != "" {
			d.Color = o.Color
		}
		r.models[id] = d
	}
	return r, nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id ModelID) (Descriptor, bool) {
	d, ok := r.models[id]
	return d, ok
}

// Known reports whether id names a registered model.
func (r *Registry) Known(id ModelID) bool {
	_, ok := r.models[id]
	return ok
}

// All returns every descriptor in display order.
func (r *Registry) All() []Descriptor {
	result := make([]Descriptor, 0, len(order))
	for _, id := range order {
		result = append(result, r.models[id])
	}
	return result
}

// Available returns the descriptors whose backend can currently be used.
func (r *Registry) Available() []Descriptor {
	var result []Descriptor
	for _, d := range r.All() {
		if d.IsAvailable {
			result = append(result, d)
		}
	}
	return result
}

// Color returns the display colour of id, or the default model's colour.
func (r *Registry) Color(id ModelID) string {
	if d, ok := r.models[id]; ok {
		return d.Color
	}
	return r.models[DefaultModel].Color
}

// Resolve returns id if its backend is available, otherwise DefaultModel.
func (r *Registry) Resolve(id ModelID) ModelID {
	d, ok := r.models[id]
	if !ok || !d.IsAvailable {
		return DefaultModel
	}
	return id
}

// Route maps an intent to the model that should serve it, applying the
// availability fallback.
func (r *Registry) Route(intent IntentType) ModelID {
	target, ok := intentRoutes[intent]
	if !ok {
		return DefaultModel
	}
	return r.Resolve(target)
}

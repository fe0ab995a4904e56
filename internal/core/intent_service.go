package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"solus.com/command-relay/internal/models"
)

const classifierMaxTokens = 500

// Completer runs a single non-streaming prompt against the reasoning model.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int64) (string, error)
}

// Classifier guesses which backend should answer a message.
type Classifier interface {
	Classify(ctx context.Context, text string) models.IntentClassification
}

var intentClassificationPrompt = `You are an intent classifier for a multi-model AI system. Analyze the user's message and classify their intent.

Available intents:
- conversation: General chat, questions, discussions
- research: Queries requiring web search, current events, citations
- coding: Programming, debugging, code review, technical implementation
- image_generation: Requests to create, generate, or edit images
- video_generation: Requests to create or edit videos
- voice_generation: Text-to-speech, voice cloning requests
- avatar_generation: AI avatar or talking head video requests
- analysis: Data analysis, document analysis, complex reasoning
- creative_writing: Stories, poetry, scripts, creative content

Respond with JSON only:
{
  "primaryIntent": "<intent_type>",
  "confidence": <0.0-1.0>,
  "reasoning": "<brief explanation>",
  "keywords": ["<relevant>", "<keywords>"]
}`

type IntentService struct {
	completer Completer
	registry  *models.Registry
}

func NewIntentService(completer Completer, registry *models.Registry) *IntentService {
	return &IntentService{completer: completer, registry: registry}
}

// Classify never fails: any problem with the completion or its reply
// yields models.FallbackClassification.
func (s *IntentService) Classify(ctx context.Context, text string) models.IntentClassification {
	prompt := fmt.Sprintf("%s\n\nUser message: %q", intentClassificationPrompt, text)

	reply, err := s.completer.Complete(ctx, prompt, classifierMaxTokens)
	if err != nil {
		log.Printf("Intent classification error: %v", err)
		return s.fallback()
	}

	parsed, err := parseClassification(reply)
	if err != nil {
		log.Printf("Intent classification reply rejected: %v", err)
		return s.fallback()
	}

	// The model's own suggestion, if any, is ignored; routing is ours.
	parsed.SuggestedModel = s.registry.Route(parsed.PrimaryIntent)
	return parsed
}

func (s *IntentService) fallback() models.IntentClassification {
	f := models.FallbackClassification()
	f.SuggestedModel = s.registry.Route(f.PrimaryIntent)
	return f
}

type classifierReply struct {
	PrimaryIntent *models.IntentType `json:"primaryIntent"`
	Confidence    *float64           `json:"confidence"`
	Reasoning     *string            `json:"reasoning"`
	Keywords      *[]string          `json:"keywords"`
}

// parseClassification decodes the classifier's JSON reply, repairing it
// first if it is not valid JSON (code fences, trailing commas and the like).
func parseClassification(reply string) (models.IntentClassification, error) {
	var r classifierReply
	if err := json.Unmarshal([]byte(reply), &r); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(stripCodeFence(reply))
		if repairErr != nil {
			return models.IntentClassification{}, fmt.Errorf("invalid JSON: %w (repair failed: %v)", err, repairErr)
		}
		r = classifierReply{}
		if err := json.Unmarshal([]byte(repaired), &r); err != nil {
			return models.IntentClassification{}, fmt.Errorf("invalid JSON after repair: %w", err)
		}
	}

	switch {
	case r.PrimaryIntent == nil:
		return models.IntentClassification{}, errors.New("missing primaryIntent")
	case !r.PrimaryIntent.Valid():
		return models.IntentClassification{}, fmt.Errorf("unknown intent %q", *r.PrimaryIntent)
	case r.Confidence == nil:
		return models.IntentClassification{}, errors.New("missing confidence")
	case *r.Confidence < 0 || *r.Confidence > 1:
		return models.IntentClassification{}, fmt.Errorf("confidence %v out of range", *r.Confidence)
	case r.Reasoning == nil:
		return models.IntentClassification{}, errors.New("missing reasoning")
	case r.Keywords == nil:
		return models.IntentClassification{}, errors.New("missing keywords")
	}

	keywords := *r.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return models.IntentClassification{
		PrimaryIntent: *r.PrimaryIntent,
		Confidence:    *r.Confidence,
		Reasoning:     *r.Reasoning,
		Keywords:      keywords,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solus.com/command-relay/internal/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestClassifyParsesReply(t *testing.T) {
	c := &fakeCompleter{reply: `{"primaryIntent":"research","confidence":0.87,"suggestedModel":"krea","reasoning":"needs web","keywords":["news"]}`}
	svc := NewIntentService(c, models.NewRegistry())

	got := svc.Classify(context.Background(), "what happened today?")
	assert.Equal(t, models.IntentResearch, got.PrimaryIntent)
	assert.Equal(t, 0.87, got.Confidence)
	assert.Equal(t, models.Perplexity, got.SuggestedModel, "suggestion comes from routing, not the reply")
	assert.Equal(t, "needs web", got.Reasoning)
	assert.Equal(t, []string{"news"}, got.Keywords)

	assert.True(t, strings.HasPrefix(c.prompt, "You are an intent classifier"))
	assert.Contains(t, c.prompt, `User message: "what happened today?"`)
	for _, intent := range models.Intents {
		assert.Contains(t, c.prompt, "- "+string(intent)+":")
	}
}

func TestClassifyImageRequestFallsBackToAvailableModel(t *testing.T) {
	c := &fakeCompleter{reply: `{"primaryIntent":"image_generation","confidence":0.95,"reasoning":"draw","keywords":["sunset","mountains"]}`}
	svc := NewIntentService(c, models.NewRegistry())

	got := svc.Classify(context.Background(), "draw a sunset over mountains")
	assert.Equal(t, models.IntentImageGeneration, got.PrimaryIntent)
	assert.Equal(t, models.Claude, got.SuggestedModel)
}

func TestClassifyNetworkErrorReturnsFallback(t *testing.T) {
	svc := NewIntentService(&fakeCompleter{err: errors.New("dial tcp: connection refused")}, models.NewRegistry())

	got := svc.Classify(context.Background(), "hello")
	assert.Equal(t, models.IntentClassification{
		PrimaryIntent:  models.IntentConversation,
		Confidence:     0.5,
		SuggestedModel: models.Claude,
		Reasoning:      "Fallback to default",
		Keywords:       []string{},
	}, got)
}

func TestClassifyRejectsBadReplies(t *testing.T) {
	replies := map[string]string{
		"not json":            "I think this is about coding.",
		"missing intent":      `{"confidence":0.9,"reasoning":"x","keywords":[]}`,
		"unknown intent":      `{"primaryIntent":"painting","confidence":0.9,"reasoning":"x","keywords":[]}`,
		"missing confidence":  `{"primaryIntent":"coding","reasoning":"x","keywords":[]}`,
		"confidence too high": `{"primaryIntent":"coding","confidence":3,"reasoning":"x","keywords":[]}`,
		"missing reasoning":   `{"primaryIntent":"coding","confidence":0.9,"keywords":[]}`,
		"missing keywords":    `{"primaryIntent":"coding","confidence":0.9,"reasoning":"x"}`,
		"null keywords":       `{"primaryIntent":"coding","confidence":0.9,"reasoning":"x","keywords":null}`,
		"empty":               ``,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			svc := NewIntentService(&fakeCompleter{reply: reply}, models.NewRegistry())
			got := svc.Classify(context.Background(), "hello")
			assert.Equal(t, models.FallbackClassification(), got)
		})
	}
}

func TestParseClassificationRepairsFencedJSON(t *testing.T) {
	reply := "```json\n{\"primaryIntent\": \"coding\", \"confidence\": 0.8, \"reasoning\": \"code\", \"keywords\": [\"go\",],}\n```"
	got, err := parseClassification(reply)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCoding, got.PrimaryIntent)
	assert.Equal(t, []string{"go"}, got.Keywords)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1} `))
}

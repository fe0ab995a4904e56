package models

type IntentType string

const (
	IntentConversation     IntentType = "conversation"
	IntentResearch         IntentType = "research"
	IntentCoding           IntentType = "coding"
	IntentImageGeneration  IntentType = "image_generation"
	IntentVideoGeneration  IntentType = "video_generation"
	IntentVoiceGeneration  IntentType = "voice_generation"
	IntentAvatarGeneration IntentType = "avatar_generation"
	IntentAnalysis         IntentType = "analysis"
	IntentCreativeWriting  IntentType = "creative_writing"
)

// Intents lists every intent category in classifier prompt order.
var Intents = []IntentType{
	IntentConversation,
	IntentResearch,
	IntentCoding,
	IntentImageGeneration,
	IntentVideoGeneration,
	IntentVoiceGeneration,
	IntentAvatarGeneration,
	IntentAnalysis,
	IntentCreativeWriting,
}

func (t IntentType) Valid() bool {
	_, ok := intentRoutes[t]
	return ok
}

// IntentClassification is the classifier's guess about a message. It is
// produced at most once per request and never modified afterwards.
type IntentClassification struct {
	PrimaryIntent  IntentType `json:"primaryIntent"`
	Confidence     float64    `json:"confidence"`
	SuggestedModel ModelID    `json:"suggestedModel"`
	Reasoning      string     `json:"reasoning"`
	Keywords       []string   `json:"keywords"`
}

// FallbackClassification is used whenever the classifier cannot produce
// a usable answer.
func FallbackClassification() IntentClassification {
	return IntentClassification{
		PrimaryIntent:  IntentConversation,
		Confidence:     0.5,
		SuggestedModel: DefaultModel,
		Reasoning:      "Fallback to default",
		Keywords:       []string{},
	}
}

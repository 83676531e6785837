package models

// IntentKind is the discriminator of an Intent.
type IntentKind string

const (
	IntentCasual         IntentKind = "casual"
	IntentDiscovery      IntentKind = "discovery"
	IntentQuery          IntentKind = "query"
	IntentTopicInterest  IntentKind = "topic_interest"
	IntentContinuation   IntentKind = "continuation"
	IntentConfirmation   IntentKind = "confirmation"
	IntentKnowledgeLevel IntentKind = "knowledge_level"
	IntentMaterialChoice IntentKind = "material_choice"
)

// Intent is the classified purpose of one utterance. Only the fields of its Kind are set:
// Term for TopicInterest, ContextTopic for Continuation, PendingFragments for Confirmation,
// Topic and Level for KnowledgeLevel, ChoiceIndex (0-based) for MaterialChoice.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Confidence float64    `json:"confidence"`

	Term             string     `json:"term,omitempty"`
	ContextTopic     string     `json:"context_topic,omitempty"`
	PendingFragments []Fragment `json:"pending_fragments,omitempty"`
	Topic            string     `json:"topic,omitempty"`
	Level            string     `json:"level,omitempty"`
	ChoiceIndex      int        `json:"choice_index,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchTerm returns the text retrieval should be scoped by, or "" when the intent carries none.
func (i Intent) SearchTerm() string {
	switch i.Kind {
	case IntentTopicInterest:
		return i.Term
	case IntentContinuation:
		return i.ContextTopic
	case IntentKnowledgeLevel:
		return i.Topic
	}
	return ""
}

// Depth levels recognised in knowledge-level utterances and preferences.
const (
	DepthBasic        = "basico"
	DepthIntermediate = "intermediario"
	DepthAdvanced     = "avancado"
)

// Response modes. ResponseModeDocument answers with contiguous fragments of a
// document joined into one passage.
const (
	ResponseModeSummary  = "resumido"
	ResponseModeDetailed = "detalhado"
	ResponseModeDocument = "documento"
)

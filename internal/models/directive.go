package models

// DirectiveKind is the response strategy the core decided on for a turn.
type DirectiveKind string

const (
	DirectiveAnswer        DirectiveKind = "answer_directly"
	DirectiveOfferChoice   DirectiveKind = "offer_choice"
	DirectiveSuggestTopics DirectiveKind = "suggest_topics"
	DirectiveCasual        DirectiveKind = "casual"
	DirectiveDiscovery     DirectiveKind = "discovery"
	DirectiveDegraded      DirectiveKind = "degraded"
)

// GateStats summarises the relevance gate for a turn.
type GateStats struct {
	Threshold         float64 `json:"threshold"`
	MaxScore          float64 `json:"max_score"`
	MeanScore         float64 `json:"mean_score"`
	DocumentDiversity float64 `json:"document_diversity"`
	Candidates        int     `json:"candidates"`
	Relevant          int     `json:"relevant"`
}

// Directive is the core's output for one turn. Text is filled by the generation collaborator.
type Directive struct {
	Kind          DirectiveKind   `json:"kind"`
	Intent        Intent          `json:"intent"`
	ResponseType  ResponseType    `json:"response_type"`
	SearchTerm    string          `json:"search_term,omitempty"`
	Fragments     []Fragment      `json:"fragments,omitempty"`
	Groups        []DocumentGroup `json:"groups,omitempty"`
	Topics        []string        `json:"topics,omitempty"`
	Gate          *GateStats      `json:"gate,omitempty"`
	InvalidChoice bool            `json:"invalid_choice,omitempty"`
	// AskDepth marks an answer that also asks how deep the learner wants to go.
	// Its fragments stay pending until the learner replies.
	AskDepth bool   `json:"ask_depth,omitempty"`
	Text     string `json:"text"`
}

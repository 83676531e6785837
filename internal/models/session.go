package models

import (
	"encoding/json"
	"sort"
	"time"
)

// FlowState is the conversation-level state tracking what input is expected next.
type FlowState string

const (
	FlowNew                      FlowState = "new"
	FlowAwaitingFirstInteraction FlowState = "awaiting_first_interaction"
	FlowActive                   FlowState = "active"
	FlowAwaitingChoice           FlowState = "awaiting_choice"
	FlowAwaitingSpecification    FlowState = "awaiting_specification"
)

// IsWait reports whether the state is waiting on a specific kind of answer.
func (s FlowState) IsWait() bool {
	return s == FlowAwaitingChoice || s == FlowAwaitingSpecification
}

// ResponseType labels what kind of answer an assistant turn gave.
type ResponseType string

const (
	ResponseConsulta        ResponseType = "consulta"
	ResponseTopicEngagement ResponseType = "engajamento_topico"
	ResponseDiscovery       ResponseType = "descoberta"
	ResponseCasual          ResponseType = "casual"
	ResponseConfirmation    ResponseType = "confirmacao"
	ResponseKnowledgeLevel  ResponseType = "nivel_conhecimento"
	ResponseMaterialChoice  ResponseType = "escolha_material"
	ResponseMaterialList    ResponseType = "lista_materiais"
	ResponseNoContent       ResponseType = "sem_conteudo"
	ResponseGreeting        ResponseType = "saudacao"
	ResponseError           ResponseType = "erro"
)

// CarriesContext reports whether turns of this type can seed a continuation or confirmation.
func (r ResponseType) CarriesContext() bool {
	switch r {
	case ResponseConsulta, ResponseTopicEngagement, ResponseDiscovery:
		return true
	}
	return false
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation as seen by generation.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Fragments []Fragment     `json:"fragments,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Turn is the record appended to the session log for every processed utterance.
type Turn struct {
	ID           string         `json:"id"`
	Intent       IntentKind     `json:"intent,omitempty"`
	UserText     string         `json:"user_text,omitempty"`
	ResponseText string         `json:"response_text"`
	ResponseType ResponseType   `json:"response_type"`
	Fragments    []Fragment     `json:"fragments,omitempty"`
	SearchTerm   string         `json:"search_term,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Preferences are the per-session answer preferences.
type Preferences struct {
	ResponseMode        string   `json:"response_mode,omitempty"`
	Depth               string   `json:"depth,omitempty"`
	PreferredMediaTypes []string `json:"preferred_media_types,omitempty"`
	MaxFragments        int      `json:"max_fragments,omitempty"`
}

// PreferencesUpdate is a partial update; nil fields are left untouched.
type PreferencesUpdate struct {
	ResponseMode        *string  `json:"response_mode,omitempty"`
	Depth               *string  `json:"depth,omitempty"`
	PreferredMediaTypes []string `json:"preferred_media_types,omitempty"`
	MaxFragments        *int     `json:"max_fragments,omitempty"`
}

// IsEmpty reports whether the update sets no field.
func (u PreferencesUpdate) IsEmpty() bool {
	return u.ResponseMode == nil && u.Depth == nil && len(u.PreferredMediaTypes) == 0 && u.MaxFragments == nil
}

// PendingChoice is an unresolved offer of several source documents.
type PendingChoice struct {
	Options   []DocumentGroup `json:"options"`
	Query     string          `json:"query"`
	OfferedAt time.Time       `json:"offered_at"`
}

// ConversationSession is the unit of conversational memory.
type ConversationSession struct {
	ID               string              `json:"id"`
	History          []Turn              `json:"history"`
	Preferences      Preferences         `json:"preferences"`
	FlowState        FlowState           `json:"flow_state"`
	PendingChoice    *PendingChoice      `json:"pending_choice,omitempty"`
	PendingFragments []Fragment          `json:"pending_fragments,omitempty"`
	DocumentsShown   map[string]struct{} `json:"-"`
	CreatedAt        time.Time           `json:"created_at"`
	LastActivity     time.Time           `json:"last_activity"`
}

// NewConversationSession returns an empty session in the New state.
func NewConversationSession(id string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:             id,
		FlowState:      FlowNew,
		DocumentsShown: make(map[string]struct{}),
		CreatedAt:      now,
		LastActivity:   now,
	}
}

// RecentTurns returns at most n of the latest turns, oldest first.
func (s *ConversationSession) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Messages flattens the latest n turns into role-tagged messages for generation.
func (s *ConversationSession) Messages(n int) []Message {
	turns := s.RecentTurns(n)
	out := make([]Message, 0, len(turns)*2)
	for _, t := range turns {
		if t.UserText != "" {
			out = append(out, Message{Role: RoleUser, Content: t.UserText, Timestamp: t.Timestamp})
		}
		out = append(out, Message{
			Role:      RoleAssistant,
			Content:   t.ResponseText,
			Timestamp: t.Timestamp,
			Fragments: t.Fragments,
			Metadata:  map[string]any{"response_type": string(t.ResponseType)},
		})
	}
	return out
}

// ShownDocuments returns the documentsShown set as a slice, in no particular order.
func (s *ConversationSession) ShownDocuments() []string {
	out := make([]string, 0, len(s.DocumentsShown))
	for k := range s.DocumentsShown {
		out = append(out, k)
	}
	return out
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	c := *s
	c.History = make([]Turn, len(s.History))
	for i, t := range s.History {
		t.Fragments = CloneFragments(t.Fragments)
		t.Metadata = cloneMap(t.Metadata)
		c.History[i] = t
	}
	c.Preferences.PreferredMediaTypes = append([]string(nil), s.Preferences.PreferredMediaTypes...)
	if s.PendingChoice != nil {
		pc := *s.PendingChoice
		pc.Options = make([]DocumentGroup, len(s.PendingChoice.Options))
		for i, g := range s.PendingChoice.Options {
			g.Fragments = CloneFragments(g.Fragments)
			pc.Options[i] = g
		}
		c.PendingChoice = &pc
	}
	c.PendingFragments = CloneFragments(s.PendingFragments)
	c.DocumentsShown = make(map[string]struct{}, len(s.DocumentsShown))
	for k := range s.DocumentsShown {
		c.DocumentsShown[k] = struct{}{}
	}
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON renders DocumentsShown as a sorted list.
func (s *ConversationSession) MarshalJSON() ([]byte, error) {
	type alias ConversationSession
	shown := s.ShownDocuments()
	sort.Strings(shown)
	return json.Marshal(struct {
		*alias
		DocumentsShown []string `json:"documents_shown"`
	}{alias: (*alias)(s), DocumentsShown: shown})
}

package domain

// Message roles used in conversation turns and completion requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// QueryType is the intent label assigned to a conversational turn.
type QueryType string

const (
	QueryProperty  QueryType = "property_search"
	QueryKnowledge QueryType = "knowledge"
	QueryMixed     QueryType = "mixed"
)

// CoerceQueryType maps arbitrary classifier output to a valid label.
// Anything outside the three known labels becomes QueryKnowledge, so a
// misbehaving classifier still produces an answer instead of dropping
// the turn.
func CoerceQueryType(s string) QueryType {
	switch QueryType(s) {
	case QueryProperty, QueryKnowledge, QueryMixed:
		return QueryType(s)
	default:
		return QueryKnowledge
	}
}

// WantsProperties reports whether the label warrants property retrieval.
func (q QueryType) WantsProperties() bool {
	return q == QueryProperty || q == QueryMixed
}

// WantsKnowledge reports whether the label warrants knowledge retrieval.
func (q QueryType) WantsKnowledge() bool {
	return q == QueryKnowledge || q == QueryMixed
}

// Turn is a single message in a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ConversationState is the keyed append-only message log for one
// conversation. A completed turn appends exactly two entries (user,
// assistant); a turn that fails before the terminal persistence state
// appends nothing.
type ConversationState struct {
	ID            string    `json:"id"`
	Turns         []Turn    `json:"turns"`
	LastQueryType QueryType `json:"last_query_type,omitempty"`
	LastFilters   Filter    `json:"last_filters,omitempty"`
}


// Package router orchestrates one conversational turn: classify the
// query, extract filters, retrieve from both corpora, generate a
// response, and persist the exchange. The pipeline is linear; retrieval
// failures are isolated per corpus and never abort the turn.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/conversation"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/metrics"
)

// Display caps applied at fusion time, independent of retrieval depth.
const (
	propertyDisplayCap  = 5
	knowledgeDisplayCap = 3
)

// Retriever is the corpus surface the router consumes.
type Retriever interface {
	Query(ctx context.Context, text string, k int, f domain.Filter) ([]domain.SearchResult, error)
}

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Filters        domain.Filter `json:"filters,omitempty"`
}

// ChatResponse is the generated turn plus the retrieved evidence.
type ChatResponse struct {
	Response          string                `json:"response"`
	Properties        []domain.SearchResult `json:"properties"`
	KnowledgeSnippets []domain.SearchResult `json:"knowledge_snippets"`
	ConversationID    string                `json:"conversation_id"`
	QueryType         domain.QueryType      `json:"query_type"`
	SuggestedActions  []string              `json:"suggested_actions"`
}

// Router runs the per-turn pipeline.
type Router struct {
	completer     domain.Completer
	properties    Retriever
	knowledge     Retriever
	conversations conversation.Store
	logger        *zap.Logger
}

// New creates a query router over the two corpora.
func New(completer domain.Completer, properties, knowledge Retriever, conversations conversation.Store, logger *zap.Logger) *Router {
	return &Router{
		completer:     completer,
		properties:    properties,
		knowledge:     knowledge,
		conversations: conversations,
		logger:        logger,
	}
}

// Chat processes one turn. Persistence happens only after generation
// succeeds, so a failed or cancelled turn leaves no trace in the
// conversation log.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	prior, err := r.conversations.Get(ctx, conversationID)
	if err != nil && !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	queryType := r.classify(ctx, req.Message)
	metrics.ChatTurnsTotal.WithLabelValues(string(queryType)).Inc()

	filters := domain.MergeFilters(prior.LastFilters, req.Filters)
	if queryType.WantsProperties() {
		filters = domain.MergeFilters(filters, r.extractFilters(ctx, req.Message))
	}

	var properties []domain.SearchResult
	if queryType.WantsProperties() {
		properties = r.retrieve(ctx, r.properties, "properties", req.Message, propertyDisplayCap, filters)
	}

	var snippets []domain.SearchResult
	if queryType.WantsKnowledge() {
		snippets = r.retrieve(ctx, r.knowledge, "knowledge", req.Message, knowledgeDisplayCap, domain.Filter{})
	}

	if len(properties) > propertyDisplayCap {
		properties = properties[:propertyDisplayCap]
	}
	if len(snippets) > knowledgeDisplayCap {
		snippets = snippets[:knowledgeDisplayCap]
	}

	answer, err := r.generate(ctx, req.Message, queryType, prior.Turns, properties, snippets)
	if err != nil {
		return nil, err
	}

	userTurn := domain.Turn{Role: domain.RoleUser, Text: req.Message}
	assistantTurn := domain.Turn{Role: domain.RoleAssistant, Text: answer}
	if err := r.conversations.Append(ctx, conversationID, userTurn, assistantTurn, queryType, filters); err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	return &ChatResponse{
		Response:          answer,
		Properties:        properties,
		KnowledgeSnippets: snippets,
		ConversationID:    conversationID,
		QueryType:         queryType,
		SuggestedActions:  suggestedActions(queryType, len(properties) > 0),
	}, nil
}

// classify asks the completion provider for an intent label. Any failure
// or off-vocabulary output falls back to the knowledge label.
func (r *Router) classify(ctx context.Context, message string) domain.QueryType {
	out, err := r.completer.Complete(ctx, []domain.Turn{
		{Role: domain.RoleSystem, Text: classifyPrompt},
		{Role: domain.RoleUser, Text: message},
	})
	if err != nil {
		r.logger.Warn("classification failed, defaulting to knowledge", zap.Error(err))
		return domain.QueryKnowledge
	}
	return domain.CoerceQueryType(strings.ToLower(strings.TrimSpace(out)))
}

// extractFilters asks the completion provider for a structured filter
// object. Unparsable output yields empty filters, not an error, so
// previously carried filters stay in effect.
func (r *Router) extractFilters(ctx context.Context, message string) domain.Filter {
	out, err := r.completer.Complete(ctx, []domain.Turn{
		{Role: domain.RoleSystem, Text: extractPrompt},
		{Role: domain.RoleUser, Text: message},
	})
	if err != nil {
		r.logger.Warn("filter extraction failed", zap.Error(err))
		return domain.Filter{}
	}

	var f domain.Filter
	if err := json.Unmarshal([]byte(trimToJSON(out)), &f); err != nil {
		r.logger.Warn("filter extraction produced unparsable output",
			zap.String("output", out), zap.Error(err))
		return domain.Filter{}
	}
	return f
}

// retrieve queries one corpus with failure isolation: an error is logged
// and the turn continues with an empty list for that corpus.
func (r *Router) retrieve(ctx context.Context, store Retriever, name, query string, k int, filters domain.Filter) []domain.SearchResult {
	results, err := store.Query(ctx, query, k, filters)
	if err != nil {
		r.logger.Warn("retrieval failed, continuing without results",
			zap.String("corpus", name), zap.Error(err))
		return nil
	}
	return results
}

func (r *Router) generate(ctx context.Context, message string, queryType domain.QueryType, history []domain.Turn, properties, snippets []domain.SearchResult) (string, error) {
	contextBlock := buildContext(queryType, properties, snippets)
	system := fmt.Sprintf(responseTemplate(queryType), message, contextBlock)

	msgs := make([]domain.Turn, 0, len(history)+2)
	msgs = append(msgs, domain.Turn{Role: domain.RoleSystem, Text: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.Turn{Role: domain.RoleUser, Text: message})

	answer, err := r.completer.Complete(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	return answer, nil
}

// trimToJSON cuts the substring between the first '{' and the last '}'.
// Completion providers often wrap JSON in code fences or prose.
func trimToJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

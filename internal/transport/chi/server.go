// Package chi exposes the retrieval pipeline over HTTP: search,
// recommendations, chat, and the administrative indexing endpoints.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/router"
)

// Corpus is the corpus surface the HTTP layer consumes.
type Corpus interface {
	Ingest(ctx context.Context, records []domain.Record) (int, error)
	IngestDocument(ctx context.Context, content string) (int, error)
	Query(ctx context.Context, text string, k int, f domain.Filter) ([]domain.SearchResult, error)
	Similar(ctx context.Context, id string, k int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Load(ctx context.Context) (bool, error)
}

// Chatter runs one conversational turn.
type Chatter interface {
	Chat(ctx context.Context, req router.ChatRequest) (*router.ChatResponse, error)
}

const (
	defaultSearchLimit         = 10
	defaultRecommendationLimit = 4
)

// Server holds the HTTP handlers.
type Server struct {
	properties    Corpus
	knowledge     Corpus
	chat          Chatter
	knowledgePath string
	logger        *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(properties, knowledge Corpus, chat Chatter, knowledgePath string, logger *zap.Logger) *Server {
	return &Server{
		properties:    properties,
		knowledge:     knowledge,
		chat:          chat,
		knowledgePath: knowledgePath,
		logger:        logger,
	}
}

// Routes registers all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/search", s.handleSearch)
	r.Post("/api/recommendations", s.handleRecommendations)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/index", s.handleIndex)
	r.Post("/api/index/knowledge", s.handleIndexKnowledge)
	r.Get("/api/index/status", s.handleIndexStatus)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type searchRequest struct {
	Query   string        `json:"query"`
	Limit   int           `json:"limit"`
	Filters domain.Filter `json:"filters"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	results, err := s.properties.Query(r.Context(), req.Query, req.Limit, req.Filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if results == nil {
		results = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Results: results,
		Count:   len(results),
	})
}

type recommendationsRequest struct {
	PropertyID string `json:"property_id"`
	Limit      int    `json:"limit"`
}

type recommendationsResponse struct {
	PropertyID      string                `json:"property_id"`
	Recommendations []domain.SearchResult `json:"recommendations"`
	Count           int                   `json:"count"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.PropertyID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "property_id is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultRecommendationLimit
	}

	results, err := s.properties.Similar(r.Context(), req.PropertyID, req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if results == nil {
		results = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		PropertyID:      req.PropertyID,
		Recommendations: results,
		Count:           len(results),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req router.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "message is required")
		return
	}

	resp, err := s.chat.Chat(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if resp.Properties == nil {
		resp.Properties = []domain.SearchResult{}
	}
	if resp.KnowledgeSnippets == nil {
		resp.KnowledgeSnippets = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type indexRequest struct {
	Records []domain.Record `json:"records"`
}

type indexResponse struct {
	Status            string `json:"status"`
	PropertiesIndexed int    `json:"properties_indexed"`
	Message           string `json:"message"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if len(req.Records) == 0 {
		writeJSON(w, http.StatusOK, indexResponse{
			Status:  "warning",
			Message: "no records to index",
		})
		return
	}
	for _, rec := range req.Records {
		if rec.ID == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "every record needs an id")
			return
		}
	}

	count, err := s.properties.Ingest(r.Context(), req.Records)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Status:            "success",
		PropertiesIndexed: count,
		Message:           fmt.Sprintf("indexed %d properties", count),
	})
}

type indexKnowledgeRequest struct {
	Content string `json:"content"`
}

type indexKnowledgeResponse struct {
	Status        string `json:"status"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Message       string `json:"message"`
}

// handleIndexKnowledge indexes knowledge content from the request body, or
// the configured knowledge base file when the body carries none.
func (s *Server) handleIndexKnowledge(w http.ResponseWriter, r *http.Request) {
	var req indexKnowledgeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
			return
		}
	}

	content := req.Content
	if content == "" {
		if s.knowledgePath == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "no content provided and no knowledge base file configured")
			return
		}
		data, err := os.ReadFile(s.knowledgePath)
		if err != nil {
			s.logger.Error("failed to read knowledge base file",
				zap.String("path", s.knowledgePath), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to read knowledge base file")
			return
		}
		content = string(data)
	}

	count, err := s.knowledge.IngestDocument(r.Context(), content)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, indexKnowledgeResponse{
		Status:        "success",
		ChunksIndexed: count,
		Message:       fmt.Sprintf("indexed %d knowledge chunks", count),
	})
}

type indexStatusResponse struct {
	Indexed          bool `json:"indexed"`
	PropertyCount    int  `json:"property_count"`
	KnowledgeIndexed bool `json:"knowledge_indexed"`
	KnowledgeChunks  int  `json:"knowledge_chunks"`
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	resp := indexStatusResponse{}

	if count, err := s.properties.Count(r.Context()); err == nil {
		resp.PropertyCount = count
		resp.Indexed = count > 0
	}
	if count, err := s.knowledge.Count(r.Context()); err == nil {
		resp.KnowledgeChunks = count
		resp.KnowledgeIndexed = count > 0
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	propCount, propErr := s.properties.Count(r.Context())
	knowCount, knowErr := s.knowledge.Count(r.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if propErr != nil && !errors.Is(propErr, domain.ErrIndexNotLoaded) {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	if knowErr != nil && !errors.Is(knowErr, domain.ErrIndexNotLoaded) {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":             status,
		"properties_indexed": propCount,
		"knowledge_chunks":   knowCount,
	})
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrIndexNotLoaded,
		domain.ErrRecordNotFound,
		domain.ErrConversationNotFound,
		domain.ErrEmbeddingUnavailable,
		domain.ErrCompletionProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrSnapshotCorrupt,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrIndexNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "index_not_loaded",
			"index not initialized, run /api/index first")
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "not_found", msg)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", msg)
	case errors.Is(err, domain.ErrCompletionProviderError):
		writeError(w, http.StatusBadGateway, "completion_provider_error", msg)
	case errors.Is(err, domain.ErrVectorDimMismatch):
		writeError(w, http.StatusBadRequest, "vector_dim_mismatch", msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

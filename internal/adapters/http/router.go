package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/parts-sales-assistant/internal/config"
	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
)

const maxRequestBodyBytes = 1 << 20

type Router struct {
	cfg       config.Config
	dialogue  ports.DialogueService
	retriever ports.CatalogRetriever

	metrics  httpMetrics
	breakers func() []resilience.BreakerState
}

// httpMetrics is the part of the metrics registry the router serves.
type httpMetrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

func NewRouter(
	cfg config.Config,
	dialogue ports.DialogueService,
	retriever ports.CatalogRetriever,
) *Router {
	return &Router{
		cfg:       cfg,
		dialogue:  dialogue,
		retriever: retriever,
	}
}

func (rt *Router) WithMetrics(m httpMetrics) *Router {
	rt.metrics = m
	return rt
}

// WithBreakerStates exposes circuit breaker states on /healthz.
func (rt *Router) WithBreakerStates(fn func() []resilience.BreakerState) *Router {
	rt.breakers = fn
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", routed(rt.healthz))
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/conversations", routed(rt.startConversation))
	mux.HandleFunc("GET /v1/conversations/{id}", routed(rt.getConversation))
	mux.HandleFunc("POST /v1/conversations/{id}/messages", routed(rt.sendMessage))
	mux.HandleFunc("POST /v1/retrieval/search", routed(rt.searchCatalog))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if rt.retriever != nil {
		if catalog, err := rt.retriever.Catalog(); err == nil {
			resp["catalog_chunks"] = catalog.Len()
		} else {
			resp["status"] = "degraded"
			resp["catalog"] = err.Error()
		}
	}
	if rt.breakers != nil {
		breakers := make(map[string]string)
		for _, b := range rt.breakers() {
			breakers[b.Operation] = b.State
		}
		resp["breakers"] = breakers
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) startConversation(w http.ResponseWriter, r *http.Request) {
	state, err := rt.dialogue.Start(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	setConversationID(r, state.ConversationID)
	writeJSON(w, http.StatusCreated, state)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	state, err := rt.dialogue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	reply, err := rt.dialogue.Send(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type searchRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k"`
	Kind        string   `json:"kind"`
	MaxDistance *float64 `json:"max_distance"`
	Rerank      bool     `json:"rerank"`
	RerankTopK  int      `json:"rerank_top_k"`
}

type searchResponse struct {
	Hits   []domain.SearchHit `json:"hits"`
	Ranked []domain.RankedHit `json:"ranked,omitempty"`
}

func (rt *Router) searchCatalog(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.TopK == 0 {
		req.TopK = rt.cfg.RAGSearchTopK
	}
	if req.RerankTopK == 0 {
		req.RerankTopK = rt.cfg.RAGRerankTopK
	}
	filter := domain.SearchFilter{Kind: domain.ChunkKind(req.Kind), MaxDistance: req.MaxDistance}
	if filter.MaxDistance == nil && rt.cfg.RAGMaxDistance > 0 {
		filter.MaxDistance = domain.WithinDistance(rt.cfg.RAGMaxDistance)
	}

	hits, err := rt.retriever.Search(r.Context(), req.Query, req.TopK, filter)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	resp := searchResponse{Hits: hits}
	if req.Rerank {
		resp.Ranked, err = rt.retriever.Rerank(r.Context(), hits, req.Query, req.RerankTopK)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"conversation_id", conversationIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	msg := err.Error()
	if errors.Is(err, domain.ErrTemporary) {
		msg = "temporarily unavailable"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

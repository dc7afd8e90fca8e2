package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/config"
	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
)

type fakeDialogue struct {
	err      error
	lastID   string
	lastText string
}

func (f *fakeDialogue) Start(context.Context) (*domain.ConversationState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state := domain.NewConversationState("conv-1")
	return &state, nil
}

func (f *fakeDialogue) Send(_ context.Context, conversationID, message string) (*domain.TurnReply, error) {
	f.lastID, f.lastText = conversationID, message
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TurnReply{ConversationID: conversationID, Stage: domain.StageWaitModelYear, Reply: "Здравствуйте!"}, nil
}

func (f *fakeDialogue) Get(_ context.Context, conversationID string) (*domain.ConversationState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state := domain.NewConversationState(conversationID)
	state.Stage = domain.StageOfferPart
	return &state, nil
}

type fakeRetriever struct {
	err        error
	lastTopK   int
	lastFilter domain.SearchFilter
	rerankTopK int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, topK int, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	f.lastTopK, f.lastFilter = topK, filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.SearchHit{
		{Position: 0, Distance: 0.1, Chunk: domain.Chunk{Kind: domain.ChunkKindPart, Text: "motor"}},
		{Position: 1, Distance: 0.4, Chunk: domain.Chunk{Kind: domain.ChunkKindPart, Text: "filter"}},
	}, nil
}

func (f *fakeRetriever) Rerank(_ context.Context, candidates []domain.SearchHit, _ string, topK int) ([]domain.RankedHit, error) {
	f.rerankTopK = topK
	out := make([]domain.RankedHit, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		out = append(out, domain.RankedHit{Position: candidates[i].Position, Chunk: candidates[i].Chunk, Score: float64(i)})
	}
	return out, nil
}

func (f *fakeRetriever) Catalog() (*domain.Catalog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewCatalog([]domain.Chunk{{Kind: domain.ChunkKindPhrase, Text: "hi", Phrase: &domain.PhraseRecord{Situation: "greeting", Phrases: []string{"hi"}}}})
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &fakeDialogue{}, &fakeRetriever{}).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestStartConversationReturns201(t *testing.T) {
	res := doJSON(t, newTestHandler(config.Config{}), http.MethodPost, "/v1/conversations", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var state domain.ConversationState
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.ConversationID != "conv-1" || state.Stage != domain.StageStart {
		t.Fatalf("unexpected state: %+v", state)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestSendMessagePassesPathID(t *testing.T) {
	dialogue := &fakeDialogue{}
	handler := NewRouter(config.Config{}, dialogue, &fakeRetriever{}).Handler()

	res := doJSON(t, handler, http.MethodPost, "/v1/conversations/abc/messages", map[string]string{"message": "привет"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if dialogue.lastID != "abc" || dialogue.lastText != "привет" {
		t.Fatalf("unexpected call: id=%q text=%q", dialogue.lastID, dialogue.lastText)
	}
	var reply domain.TurnReply
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Stage != domain.StageWaitModelYear {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestSendMessageValidatesBody(t *testing.T) {
	handler := newTestHandler(config.Config{})

	res := doJSON(t, handler, http.MethodPost, "/v1/conversations/abc/messages", map[string]string{"message": "  "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/abc/messages", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken json, got %d", rec.Code)
	}
}

func TestSearchAppliesDefaultsAndRerank(t *testing.T) {
	retriever := &fakeRetriever{}
	cfg := config.Config{RAGSearchTopK: 10, RAGRerankTopK: 5, RAGMaxDistance: 2}
	handler := NewRouter(cfg, &fakeDialogue{}, retriever).Handler()

	res := doJSON(t, handler, http.MethodPost, "/v1/retrieval/search", map[string]any{
		"query":  "моторчик",
		"kind":   "part",
		"rerank": true,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if retriever.lastTopK != 10 || retriever.rerankTopK != 5 {
		t.Fatalf("expected config defaults, got topK=%d rerank=%d", retriever.lastTopK, retriever.rerankTopK)
	}
	if retriever.lastFilter.Kind != domain.ChunkKindPart {
		t.Fatalf("expected kind filter, got %+v", retriever.lastFilter)
	}
	if retriever.lastFilter.MaxDistance == nil || *retriever.lastFilter.MaxDistance != 2 {
		t.Fatalf("expected configured distance bound, got %+v", retriever.lastFilter.MaxDistance)
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Hits) != 2 || len(resp.Ranked) != 2 || resp.Ranked[0].Chunk.Text != "filter" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	res := doJSON(t, newTestHandler(config.Config{}), http.MethodPost, "/v1/retrieval/search", map[string]any{"query": ""})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHealthzReportsCatalogAndBreakers(t *testing.T) {
	handler := NewRouter(config.Config{}, &fakeDialogue{}, &fakeRetriever{}).
		WithBreakerStates(func() []resilience.BreakerState {
			return []resilience.BreakerState{{Operation: "ollama.embed", State: "closed"}}
		}).
		Handler()

	res := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Status        string            `json:"status"`
		CatalogChunks int               `json:"catalog_chunks"`
		Breakers      map[string]string `json:"breakers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.CatalogChunks != 1 || resp.Breakers["ollama.embed"] != "closed" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestHealthzDegradedWithoutIndex(t *testing.T) {
	notBuilt := domain.WrapError(domain.ErrIndexNotBuilt, "catalog", errors.New("call BuildIndex first"))
	handler := NewRouter(config.Config{}, &fakeDialogue{}, &fakeRetriever{err: notBuilt}).Handler()

	res := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "degraded" {
		t.Fatalf("expected degraded status, got %v", resp)
	}
}

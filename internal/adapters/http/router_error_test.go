package httpadapter

import (
	"errors"
	"net/http"
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/config"
	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

func TestGetConversationReturns404ForNotFound(t *testing.T) {
	dialogue := &fakeDialogue{err: domain.WrapError(domain.ErrConversationNotFound, "get", errors.New("id=missing"))}
	handler := NewRouter(config.Config{}, dialogue, &fakeRetriever{}).Handler()

	res := doJSON(t, handler, http.MethodGet, "/v1/conversations/missing", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSearchMapsIndexNotBuiltTo503(t *testing.T) {
	retriever := &fakeRetriever{err: domain.WrapError(domain.ErrIndexNotBuilt, "search", errors.New("call BuildIndex first"))}
	handler := NewRouter(config.Config{RAGSearchTopK: 5}, &fakeDialogue{}, retriever).Handler()

	res := doJSON(t, handler, http.MethodPost, "/v1/retrieval/search", map[string]any{"query": "фара"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestSendMessageMapsInvalidInputTo400(t *testing.T) {
	dialogue := &fakeDialogue{err: domain.WrapError(domain.ErrInvalidInput, "send message", errors.New("conversation_id is required"))}
	handler := NewRouter(config.Config{}, dialogue, &fakeRetriever{}).Handler()

	res := doJSON(t, handler, http.MethodPost, "/v1/conversations/x/messages", map[string]string{"message": "hi"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidCatalog, "load", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrTemporary, "embed", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

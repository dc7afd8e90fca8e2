package httpadapter

import (
	"net/http"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidCatalog):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrConversationNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrIndexNotBuilt):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

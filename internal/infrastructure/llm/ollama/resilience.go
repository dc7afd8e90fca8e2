package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the embedding endpoint.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, body)
}

// rejectsInput reports whether Ollama refused the texts themselves, e.g.
// "input length exceeds the context length". Sending them again cannot help.
func (e *HTTPStatusError) rejectsInput() bool {
	switch e.StatusCode {
	case http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	case http.StatusBadRequest:
		body := strings.ToLower(e.Body)
		return strings.Contains(body, "context length") || strings.Contains(body, "input length")
	default:
		return false
	}
}

// modelMissing reports the 404 Ollama answers with before the embed model is pulled.
func (e *HTTPStatusError) modelMissing() bool {
	return e.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(e.Body), "not found")
}

var (
	retryEmbed   = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	failEmbed    = resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	rejectsEmbed = resilience.ErrorClassification{Retryable: false, RecordFailure: false}
)

// classifyEmbedError decides retry and breaker accounting for one embed call.
// Rejected input says nothing about the provider's health, so it never counts
// against the breaker. A missing model does: every later call fails the same way.
func classifyEmbedError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return rejectsEmbed
	}
	if resilience.IsCircuitOpen(err) {
		return retryEmbed
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return retryEmbed
		case statusErr.modelMissing():
			return failEmbed
		default:
			return rejectsEmbed
		}
	}

	// http.Client timeouts surface as net.Error; a slow model load is worth another try.
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return retryEmbed
	}
	return failEmbed
}

// toDomainError maps what is left after retries onto domain kinds: rejected
// texts become invalid input, anything worth retrying becomes temporary.
func toDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.rejectsInput() {
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if classifyEmbedError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

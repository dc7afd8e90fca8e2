package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
)

var (
	retryPublish  = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	failPublish   = resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	rejectCommand = resilience.ErrorClassification{Retryable: false, RecordFailure: false}
)

// classifyPublishError decides retry and breaker accounting for one
// notification publish. Connection trouble is retried; the client buffers
// while reconnecting, so a full reconnect buffer is retried too. A command the
// server cannot take, such as one above max_payload, is the command's fault
// and leaves the breaker alone.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return rejectCommand
	case resilience.IsCircuitOpen(err):
		return retryPublish
	case errors.Is(err, nats.ErrMaxPayload):
		return rejectCommand
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return retryPublish
	default:
		return failPublish
	}
}

// publishError maps a failed publish onto domain kinds and names the
// notification so the caller's log line identifies it.
func publishError(cmd domain.NotificationCommand, err error) error {
	if err == nil {
		return nil
	}
	op := fmt.Sprintf("publish %s notification %s", cmd.Kind, cmd.ID)
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if errors.Is(err, nats.ErrMaxPayload) {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	if classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkPayloadSize rejects an encoded command the server would refuse.
// limit <= 0 means the server limit is not known yet.
func checkPayloadSize(payload []byte, limit int64) error {
	if limit > 0 && int64(len(payload)) > limit {
		return fmt.Errorf("%d bytes over server limit %d: %w", len(payload), limit, nats.ErrMaxPayload)
	}
	return nil
}

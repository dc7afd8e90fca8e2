package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "notification-workers"

// Queue carries notification commands from the dialogue service to the
// worker as JSON messages on a single subject.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("parts-sales-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishNotification(ctx context.Context, cmd domain.NotificationCommand) error {
	payload, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := checkPayloadSize(payload, q.conn.MaxPayload()); err != nil {
		return publishError(cmd, err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return publishError(cmd, err)
}

// SubscribeNotifications blocks until ctx is cancelled, then drains the
// subscription. Handler failures are logged; the message is not redelivered.
func (q *Queue) SubscribeNotifications(ctx context.Context, handler func(context.Context, domain.NotificationCommand) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		cmd, err := decodeCommand(msg.Data)
		if err != nil {
			slog.Error("notification_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, cmd); err != nil {
			slog.Error("notification_handler_failed",
				"notification_id", cmd.ID,
				"conversation_id", cmd.ConversationID,
				"kind", cmd.Kind,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeCommand(cmd domain.NotificationCommand) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode notification", err)
	}
	return payload, nil
}

func decodeCommand(data []byte) (domain.NotificationCommand, error) {
	var cmd domain.NotificationCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return domain.NotificationCommand{}, domain.WrapError(domain.ErrInvalidInput, "decode notification", err)
	}
	if cmd.Kind == "" {
		return domain.NotificationCommand{}, domain.WrapError(domain.ErrInvalidInput, "decode notification", errors.New("kind is missing"))
	}
	return cmd, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
)

// TurnEngine computes the next conversation state for one user message.
type TurnEngine interface {
	Respond(ctx context.Context, state domain.ConversationState, message string) (domain.TurnOutcome, error)
}

// ConversationUseCase runs dialogue turns: it serializes turns per
// conversation, dispatches the side effects a turn requests and persists the
// resulting state.
type ConversationUseCase struct {
	engine  TurnEngine
	store   ports.ConversationStore
	sink    ports.NotificationSink
	metrics ports.DialogueMetrics
	now     func() time.Time

	locks keyedLocker
}

func NewConversationUseCase(
	engine TurnEngine,
	store ports.ConversationStore,
	sink ports.NotificationSink,
	metrics ports.DialogueMetrics,
) *ConversationUseCase {
	return &ConversationUseCase{
		engine:  engine,
		store:   store,
		sink:    sink,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ConversationUseCase) Start(ctx context.Context) (*domain.ConversationState, error) {
	state := domain.NewConversationState(uuid.NewString())
	state.UpdatedAt = uc.now()
	if err := uc.store.SaveConversation(ctx, state, nil); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return &state, nil
}

func (uc *ConversationUseCase) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get conversation", errors.New("conversation_id is required"))
	}
	state, err := uc.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return state, nil
}

// Send handles one user message. An unknown conversation id starts a new
// conversation under that id.
func (uc *ConversationUseCase) Send(ctx context.Context, conversationID, message string) (*domain.TurnReply, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send message", errors.New("conversation_id is required"))
	}

	unlock := uc.locks.Lock(conversationID)
	defer unlock()

	state, err := uc.loadOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	outcome, err := uc.engine.Respond(ctx, state, message)
	if err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}

	receipts := make([]domain.NotificationReceipt, 0, len(outcome.Commands))
	for _, cmd := range outcome.Commands {
		receipts = append(receipts, uc.dispatch(ctx, cmd))
	}

	next := outcome.State
	next.UpdatedAt = uc.now()
	if err := uc.store.SaveConversation(ctx, next, outcome.NewTurns); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	if uc.metrics != nil {
		uc.metrics.RecordTurn(state.Stage, next.Stage)
	}

	return &domain.TurnReply{
		ConversationID: conversationID,
		Stage:          next.Stage,
		Reply:          outcome.Utterance,
		Notifications:  receipts,
	}, nil
}

func (uc *ConversationUseCase) loadOrCreate(ctx context.Context, conversationID string) (domain.ConversationState, error) {
	state, err := uc.store.GetConversation(ctx, conversationID)
	if err == nil {
		return *state, nil
	}
	if domain.IsKind(err, domain.ErrConversationNotFound) {
		return domain.NewConversationState(conversationID), nil
	}
	return domain.ConversationState{}, fmt.Errorf("load conversation: %w", err)
}

// dispatch hands a command to the sink. Sink failures never fail the turn;
// they come back as an error receipt.
func (uc *ConversationUseCase) dispatch(ctx context.Context, cmd domain.NotificationCommand) domain.NotificationReceipt {
	cmd.ID = uuid.NewString()
	cmd.CreatedAt = uc.now()

	var (
		receipt domain.NotificationReceipt
		err     error
	)
	switch cmd.Kind {
	case domain.NotificationInvoice:
		receipt, err = uc.sink.SendInvoice(ctx, cmd)
	case domain.NotificationHandover:
		receipt, err = uc.sink.HandOver(ctx, cmd)
	default:
		err = fmt.Errorf("unsupported notification kind %q", cmd.Kind)
	}
	if err != nil {
		slog.Warn("notification_failed",
			"conversation_id", cmd.ConversationID,
			"notification_id", cmd.ID,
			"kind", cmd.Kind,
			"error", err,
		)
		receipt = domain.NotificationReceipt{Kind: cmd.Kind, Status: domain.StatusError, Message: err.Error()}
	}
	if receipt.Kind == "" {
		receipt.Kind = cmd.Kind
	}
	if uc.metrics != nil {
		uc.metrics.RecordNotification(cmd.Kind, receipt.Status)
	}
	return receipt
}

// keyedLocker hands out one mutex per key and forgets it once nobody holds it.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocker) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package domain

import "time"

type Stage string

const (
	StageStart            Stage = "start"
	StageWaitModelYear    Stage = "wait_model_year"
	StageOfferPart        Stage = "offer_part"
	StageHandleObjection  Stage = "handle_objection"
	StageAwaitContactInfo Stage = "await_contact_info"
	StageDone             Stage = "done"
	StageHandoverDone     Stage = "handover_done"
)

// Terminal reports whether the stage accepts no further selling transitions.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageHandoverDone
}

func (s Stage) Valid() bool {
	switch s {
	case StageStart, StageWaitModelYear, StageOfferPart, StageHandleObjection,
		StageAwaitContactInfo, StageDone, StageHandoverDone:
		return true
	default:
		return false
	}
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one history entry. Stage is the stage after the turn was handled.
type Turn struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Stage     Stage  `json:"stage"`
	Situation string `json:"situation,omitempty"`
	Rule      string `json:"rule,omitempty"`
}

type ConversationState struct {
	ConversationID   string      `json:"conversation_id"`
	Stage            Stage       `json:"stage"`
	RequestedPart    string      `json:"requested_part,omitempty"`
	Model            string      `json:"model,omitempty"`
	Year             int         `json:"year,omitempty"`
	ModelYear        string      `json:"model_year,omitempty"`
	SelectedOriginal *PartRecord `json:"selected_original,omitempty"`
	SelectedAnalogue *PartRecord `json:"selected_analogue,omitempty"`
	SelectedPart     *PartRecord `json:"selected_part,omitempty"`
	ClientName       string      `json:"client_name,omitempty"`
	ClientContact    string      `json:"client_contact,omitempty"`
	History          []Turn      `json:"history,omitempty"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func NewConversationState(conversationID string) ConversationState {
	return ConversationState{
		ConversationID: conversationID,
		Stage:          StageStart,
	}
}

// Clone returns a deep copy so a turn can be computed without touching the
// caller's state.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.SelectedOriginal = clonePart(s.SelectedOriginal)
	out.SelectedAnalogue = clonePart(s.SelectedAnalogue)
	out.SelectedPart = clonePart(s.SelectedPart)
	out.History = append([]Turn(nil), s.History...)
	return out
}

func clonePart(p *PartRecord) *PartRecord {
	if p == nil {
		return nil
	}
	return p.Clone()
}

type TurnOutcome struct {
	State     ConversationState
	Utterance string
	Commands  []NotificationCommand
	// NewTurns are the history entries appended by this turn.
	NewTurns []Turn
}

// TurnReply is what a caller of the dialogue service sees for one message.
type TurnReply struct {
	ConversationID string                `json:"conversation_id"`
	Stage          Stage                 `json:"stage"`
	Reply          string                `json:"reply"`
	Notifications  []NotificationReceipt `json:"notifications,omitempty"`
}

package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
)

const (
	defaultSearchTopK = 10
	defaultRerankTopK = 5
)

type EngineConfig struct {
	SearchTopK int
	RerankTopK int
	// MaxDistance bounds part search; zero or less disables the bound.
	MaxDistance float64
	Rules       []Rule
}

// Engine is the sales dialogue state machine. Respond depends only on the
// state, the message and the catalog snapshot held by the retriever.
type Engine struct {
	retriever ports.CatalogRetriever
	cfg       EngineConfig
}

func NewEngine(retriever ports.CatalogRetriever, cfg EngineConfig) *Engine {
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = defaultSearchTopK
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = defaultRerankTopK
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}
	return &Engine{retriever: retriever, cfg: cfg}
}

// turnResult is what a stage handler decides before the reply is rendered.
type turnResult struct {
	situation string
	rule      string
	commands  []domain.NotificationCommand
}

// Respond handles one user message. The input state is not modified; the
// returned outcome carries the next state with the new turns appended.
func (e *Engine) Respond(ctx context.Context, state domain.ConversationState, text string) (domain.TurnOutcome, error) {
	if state.Stage == "" {
		state.Stage = domain.StageStart
	}
	if !state.Stage.Valid() {
		return domain.TurnOutcome{}, domain.WrapError(domain.ErrInvalidInput, "respond", fmt.Errorf("unknown stage %q", state.Stage))
	}

	catalog, err := e.retriever.Catalog()
	if err != nil {
		return domain.TurnOutcome{}, fmt.Errorf("respond: %w", err)
	}

	next := state.Clone()
	msg := parseMessage(text)

	var result turnResult
	switch state.Stage {
	case domain.StageStart:
		next.Stage = domain.StageWaitModelYear
		result = turnResult{situation: SituationGreeting}
	case domain.StageWaitModelYear:
		result, err = e.handleModelYear(ctx, catalog, &next, msg)
	case domain.StageOfferPart, domain.StageHandleObjection:
		result = e.handleOffer(&next, msg)
	case domain.StageAwaitContactInfo:
		result = handleContact(&next, msg)
	default:
		result = turnResult{situation: SituationClosing}
	}
	if err != nil {
		return domain.TurnOutcome{}, err
	}

	for i := range result.commands {
		result.commands[i].ConversationID = next.ConversationID
	}

	utterance := renderPhrase(pickPhrase(catalog, result.situation, next.History), next)
	turns := []domain.Turn{
		{Role: domain.RoleUser, Text: text, Stage: next.Stage, Rule: result.rule},
		{Role: domain.RoleAssistant, Text: utterance, Stage: next.Stage, Situation: result.situation},
	}
	next.History = append(next.History, turns...)

	return domain.TurnOutcome{
		State:     next,
		Utterance: utterance,
		Commands:  result.commands,
		NewTurns:  turns,
	}, nil
}

func (e *Engine) handleModelYear(ctx context.Context, catalog *domain.Catalog, st *domain.ConversationState, msg message) (turnResult, error) {
	year, yearToken, hasYear := ExtractYear(msg.raw)
	// Model and year are taken together from one message; a capitalized word
	// without a year is not a model.
	model := ""
	if hasYear {
		model = ExtractModel(msg.raw, yearToken)
	}
	complete := model != "" && hasYear

	requested := ExtractRequestedPart(msg.raw, model, yearToken, partVocabulary(catalog.Parts()), complete)
	if requested != "" {
		st.RequestedPart = requested
	}
	if complete {
		st.Model = model
		st.Year = year
		st.ModelYear = model + " " + strconv.Itoa(year)
	}

	if st.Model == "" || st.Year == 0 {
		return turnResult{situation: SituationAskModelYear}, nil
	}
	if st.RequestedPart == "" {
		return turnResult{situation: SituationAskPart}, nil
	}

	original, analogue, err := e.findParts(ctx, catalog, st.RequestedPart, st.Model, st.Year, st.ModelYear)
	if err != nil {
		return turnResult{}, err
	}
	st.SelectedOriginal = original
	st.SelectedAnalogue = analogue

	switch {
	case original != nil && analogue != nil:
		st.Stage = domain.StageOfferPart
		return turnResult{situation: SituationOfferBoth}, nil
	case original != nil:
		st.Stage = domain.StageOfferPart
		return turnResult{situation: SituationOfferOriginal}, nil
	case analogue != nil:
		st.Stage = domain.StageOfferPart
		return turnResult{situation: SituationOfferAnalogue}, nil
	default:
		st.Stage = domain.StageHandoverDone
		return turnResult{
			situation: SituationNotFound,
			commands:  []domain.NotificationCommand{handoverCommand(*st, msg.raw)},
		}, nil
	}
}

// findParts looks up the original and the analogue that fit the car. Retrieval
// narrows the candidates; when it finds nothing compatible the whole catalog
// is scanned. In both cases the last match in catalog order wins.
func (e *Engine) findParts(
	ctx context.Context,
	catalog *domain.Catalog,
	requested, model string,
	year int,
	modelYear string,
) (*domain.PartRecord, *domain.PartRecord, error) {
	query := requested + " " + modelYear
	filter := domain.SearchFilter{Kind: domain.ChunkKindPart}
	if e.cfg.MaxDistance > 0 {
		filter.MaxDistance = domain.WithinDistance(e.cfg.MaxDistance)
	}

	hits, err := e.retriever.Search(ctx, query, e.cfg.SearchTopK, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("find parts: %w", err)
	}
	ranked, err := e.retriever.Rerank(ctx, hits, query, e.cfg.RerankTopK)
	if err != nil {
		return nil, nil, fmt.Errorf("find parts: %w", err)
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Position < ranked[j].Position })
	candidates := make([]domain.PartRecord, 0, len(ranked))
	for _, hit := range ranked {
		if hit.Chunk.Part != nil {
			candidates = append(candidates, *hit.Chunk.Part)
		}
	}

	original, analogue := pickCompatible(candidates, requested, model, year)
	if original == nil && analogue == nil {
		original, analogue = pickCompatible(catalog.Parts(), requested, model, year)
	}
	return original, analogue, nil
}

func pickCompatible(parts []domain.PartRecord, requested, model string, year int) (*domain.PartRecord, *domain.PartRecord) {
	var original, analogue *domain.PartRecord
	for _, p := range parts {
		if !MatchesPartName(requested, p.Name) || !PartFits(p, model, year) {
			continue
		}
		if p.IsOriginal {
			original = p.Clone()
		} else {
			analogue = p.Clone()
		}
	}
	return original, analogue
}

func (e *Engine) handleOffer(st *domain.ConversationState, msg message) turnResult {
	rule, ok := matchRule(e.cfg.Rules, st.Stage, msg)
	if !ok {
		if st.Stage == domain.StageHandleObjection {
			return turnResult{situation: SituationRepromptObjection}
		}
		return turnResult{situation: SituationRepromptOffer}
	}

	result := turnResult{rule: rule.Name}
	switch rule.Effect {
	case EffectSelectOriginal:
		if st.SelectedOriginal == nil {
			result.situation = SituationOriginalUnavailable
			return result
		}
		selectPart(st, st.SelectedOriginal, rule.Next)
		result.situation = SituationRequestContact
	case EffectSelectAnalogue:
		if st.SelectedAnalogue == nil {
			return handOver(st, msg, result)
		}
		selectPart(st, st.SelectedAnalogue, rule.Next)
		result.situation = SituationRequestContact
	case EffectAffirm:
		part := st.SelectedOriginal
		if part == nil {
			part = st.SelectedAnalogue
		}
		if part == nil {
			return handOver(st, msg, result)
		}
		selectPart(st, part, rule.Next)
		result.situation = SituationRequestContact
	case EffectPriceObjection:
		st.Stage = rule.Next
		result.situation = SituationPriceObjection
	case EffectAnalogueQuality:
		st.Stage = rule.Next
		result.situation = SituationAnalogueQuality
	case EffectHandover:
		return handOver(st, msg, result)
	default:
		result.situation = SituationRepromptOffer
	}
	return result
}

func selectPart(st *domain.ConversationState, part *domain.PartRecord, next domain.Stage) {
	st.SelectedPart = part.Clone()
	st.Stage = next
}

func handOver(st *domain.ConversationState, msg message, result turnResult) turnResult {
	st.Stage = domain.StageHandoverDone
	result.situation = SituationHandover
	result.commands = append(result.commands, handoverCommand(*st, msg.raw))
	return result
}

func handoverCommand(st domain.ConversationState, userMessage string) domain.NotificationCommand {
	return domain.HandoverCommand(domain.Handover{
		RequestedPart: st.RequestedPart,
		ModelYear:     st.ModelYear,
		UserMessage:   userMessage,
		ClientName:    st.ClientName,
		Contact:       st.ClientContact,
	})
}

func handleContact(st *domain.ConversationState, msg message) turnResult {
	name := ExtractClientName(msg.raw)
	phone := ExtractPhone(msg.raw)
	if name == "" || phone == "" || st.SelectedPart == nil {
		return turnResult{situation: SituationAskContact}
	}

	st.ClientName = name
	st.ClientContact = phone
	st.Stage = domain.StageDone
	return turnResult{
		situation: SituationThankYou,
		commands: []domain.NotificationCommand{domain.InvoiceCommand(domain.Invoice{
			ClientName:  name,
			Contact:     phone,
			PartArticle: st.SelectedPart.Article,
			PartName:    st.SelectedPart.Name,
			Price:       st.SelectedPart.Price,
			ModelYear:   st.ModelYear,
		})},
	}
}

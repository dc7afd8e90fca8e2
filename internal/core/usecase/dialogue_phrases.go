package usecase

import (
	"strconv"
	"strings"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// Situations the engine speaks in. Catalog phrase records with the same
// situation replace the built-in templates.
const (
	SituationGreeting            = "greeting"
	SituationAskModelYear        = "ask_model_year"
	SituationAskPart             = "ask_part"
	SituationOfferBoth           = "offer_both"
	SituationOfferOriginal       = "offer_original"
	SituationOfferAnalogue       = "offer_analogue"
	SituationOriginalUnavailable = "original_unavailable"
	SituationPriceObjection      = "price_objection"
	SituationAnalogueQuality     = "analogue_quality"
	SituationRequestContact      = "request_contact"
	SituationAskContact          = "ask_contact"
	SituationThankYou            = "thank_you"
	SituationNotFound            = "not_found"
	SituationHandover            = "handover"
	SituationRepromptOffer       = "reprompt_offer"
	SituationRepromptObjection   = "reprompt_objection"
	SituationClosing             = "closing"
)

const missingValue = "n/a"

var defaultPhrases = map[string][]string{
	SituationGreeting: {
		"Hello! I can help you pick a part. Which car model and year do you drive, and what part do you need?",
	},
	SituationAskModelYear: {
		"Please tell me the car model and the year of manufacture, for example \"Cruiser 2012\".",
		"To find a matching part I need the model and the year of your car.",
	},
	SituationAskPart: {
		"Got it, {model_year}. Which part are you looking for?",
	},
	SituationOfferBoth: {
		"For {model_year} we have the original {original_name} ({original_article}) for {original_price} and an analogue {analogue_name} ({analogue_article}) for {analogue_price}. Which one do you prefer?",
	},
	SituationOfferOriginal: {
		"For {model_year} we have the original {original_name} ({original_article}) for {original_price}. Shall I reserve it?",
	},
	SituationOfferAnalogue: {
		"For {model_year} we have an analogue {analogue_name} ({analogue_article}) for {analogue_price}. Shall I reserve it?",
	},
	SituationOriginalUnavailable: {
		"The original is not available for {model_year}, but the analogue {analogue_name} costs {analogue_price}. Would that work?",
	},
	SituationPriceObjection: {
		"I understand. The analogue {analogue_name} costs {analogue_price} and fits your car. Would you like the analogue, or stay with the original?",
	},
	SituationAnalogueQuality: {
		"The analogue {analogue_name} is a certified replacement and fits {model_year}. Would you like the analogue or the original?",
	},
	SituationRequestContact: {
		"Great choice: {part_name} ({part_article}) for {part_price}. Please leave your name and phone number to issue the invoice.",
	},
	SituationAskContact: {
		"Please send your name and phone number, for example \"Ivan +79991234567\".",
	},
	SituationThankYou: {
		"Thank you, {client_name}! The invoice for {part_name} ({part_price}) will be sent to {contact}.",
	},
	SituationNotFound: {
		"I could not find {requested_part} for {model_year}. I have passed your request to a manager who will contact you.",
	},
	SituationHandover: {
		"I have passed your request to a manager who will contact you shortly.",
	},
	SituationRepromptOffer: {
		"Would you like the original or the analogue?",
	},
	SituationRepromptObjection: {
		"Shall I go with the analogue, or would you prefer to proceed with the original?",
	},
	SituationClosing: {
		"Thank you for contacting us! Your request has already been processed.",
	},
}

// pickPhrase chooses a template for the situation. The choice rotates with the
// number of assistant turns so repeated prompts vary but stay reproducible.
func pickPhrase(catalog *domain.Catalog, situation string, history []domain.Turn) string {
	var options []string
	if catalog != nil {
		options = catalog.Phrases(situation)
	}
	if len(options) == 0 {
		options = defaultPhrases[situation]
	}
	if len(options) == 0 {
		return ""
	}
	assistantTurns := 0
	for _, t := range history {
		if t.Role == domain.RoleAssistant {
			assistantTurns++
		}
	}
	return options[assistantTurns%len(options)]
}

func renderPhrase(template string, state domain.ConversationState) string {
	vars := map[string]string{
		"model_year":     orMissing(state.ModelYear),
		"requested_part": orMissing(state.RequestedPart),
		"client_name":    orMissing(state.ClientName),
		"contact":        orMissing(state.ClientContact),
	}
	addPartVars(vars, "original_", state.SelectedOriginal)
	addPartVars(vars, "analogue_", state.SelectedAnalogue)
	addPartVars(vars, "part_", state.SelectedPart)

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func addPartVars(vars map[string]string, prefix string, part *domain.PartRecord) {
	if part == nil {
		vars[prefix+"name"] = missingValue
		vars[prefix+"article"] = missingValue
		vars[prefix+"price"] = missingValue
		return
	}
	vars[prefix+"name"] = part.Name
	vars[prefix+"article"] = part.Article
	vars[prefix+"price"] = strconv.Itoa(part.Price)
}

func orMissing(v string) string {
	if strings.TrimSpace(v) == "" {
		return missingValue
	}
	return v
}

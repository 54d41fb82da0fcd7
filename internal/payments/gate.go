// Package payments is the simulated card gateway. It only checks that card
// details are well formed; nothing is charged.
package payments

import (
	"errors"

	apperrors "uniparking/pkg/errors"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"
	"uniparking/pkg/validation"
)

type Gate struct {
	validator *validation.Validator
	log       *logger.Logger
}

func NewGate(v *validation.Validator, log *logger.Logger) *Gate {
	return &Gate{validator: v, log: log}
}

// Check must run before any state is touched. A failure is always an
// InvalidPaymentDetails error listing the offending fields.
func (g *Gate) Check(card *model.Card) error {
	if card == nil {
		return apperrors.InvalidPaymentDetails(map[string]any{"card": "card details are required"})
	}

	err := g.validator.Struct(card)
	if err == nil {
		return nil
	}

	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		g.log.Warn("Card details rejected",
			"last4", card.Last4(),
			"fields", len(verrs),
		)
		return apperrors.InvalidPaymentDetails(verrs.Details())
	}
	return apperrors.Internal("Failed to validate card details", err)
}

package generation

import (
	"context"

	"github.com/rs/zerolog"
)

// CreditCheck is the result of a pre-flight balance check.
type CreditCheck struct {
	Sufficient bool `json:"sufficient"`
	Current    int  `json:"current"`
	Required   int  `json:"required"`
}

// CreditGate performs the pre-flight balance check before a render is
// submitted. It is a pure read: nothing is reserved or deducted here, so two
// concurrent submissions can both pass the check (known limitation carried
// from the product's billing flow; see DESIGN.md).
type CreditGate struct {
	credits CreditReader
	logger  zerolog.Logger
}

func NewCreditGate(credits CreditReader, logger zerolog.Logger) *CreditGate {
	return &CreditGate{credits: credits, logger: logger}
}

func (g *CreditGate) CheckBalance(ctx context.Context, userID string, required int) (CreditCheck, error) {
	current, err := g.credits.Credits(ctx, userID)
	if err != nil {
		return CreditCheck{}, err
	}
	check := CreditCheck{
		Sufficient: current >= required,
		Current:    current,
		Required:   required,
	}
	if !check.Sufficient {
		g.logger.Warn().
			Str("user_id", userID).
			Int("current", current).
			Int("required", required).
			Msg("credits: insufficient balance")
	}
	return check, nil
}

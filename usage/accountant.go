// Package usage converts resource consumption into credit charges and records
// them on an append-only ledger.
package usage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Credit formula: tokens contribute ceil(tokens/750) credits at a blended
// input/output rate, audio contributes ceil(minutes/0.25) credits, pages
// contribute ceil(pages/2) credits. The total is floored at 0.1 credit so a
// zero-cost request still registers as a billable event.
const (
	tokensPerCredit  = 750
	minutesPerCredit = 0.25
	pagesPerCredit   = 2
	// MinimumCharge is the floor applied to every successful run.
	MinimumCharge = 0.1
)

// Record is created exactly once per successful pipeline run and never
// mutated afterwards.
type Record struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	MessageID      string    `json:"message_id"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	AudioSeconds   float64   `json:"audio_seconds"`
	Pages          int       `json:"pages"`
	CreditsCharged float64   `json:"credits_charged"`
	CreatedAt      time.Time `json:"created_at"`
}

// Credits computes the charge for the given consumption.
func Credits(tokensIn, tokensOut int, audioSeconds float64, pages int) float64 {
	var credits float64

	tokens := tokensIn + tokensOut
	if tokens > 0 {
		credits += math.Ceil(float64(tokens) / tokensPerCredit)
	}
	if audioSeconds > 0 {
		minutes := audioSeconds / 60
		credits += math.Ceil(minutes / minutesPerCredit)
	}
	if pages > 0 {
		credits += math.Ceil(float64(pages) / pagesPerCredit)
	}

	if credits < MinimumCharge {
		credits = MinimumCharge
	}
	return credits
}

// Accountant charges accounts for pipeline runs
type Accountant struct {
	ledger Ledger
}

func NewAccountant(ledger Ledger) *Accountant {
	return &Accountant{ledger: ledger}
}

// Charge computes the credit cost, appends the usage record and decrements
// the account balance. The balance update is atomic at the store layer so
// concurrent charges against one account never lose updates.
func (a *Accountant) Charge(ctx context.Context, accountID, messageID string, tokensIn, tokensOut int, audioSeconds float64, pages int) (Record, error) {
	record := Record{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		MessageID:      messageID,
		TokensIn:       tokensIn,
		TokensOut:      tokensOut,
		AudioSeconds:   audioSeconds,
		Pages:          pages,
		CreditsCharged: Credits(tokensIn, tokensOut, audioSeconds, pages),
		CreatedAt:      time.Now().UTC(),
	}

	if err := a.ledger.Append(ctx, record); err != nil {
		return Record{}, fmt.Errorf("failed to append usage record: %w", err)
	}
	if err := a.ledger.IncrementBalance(ctx, accountID, -record.CreditsCharged); err != nil {
		return Record{}, fmt.Errorf("failed to update account balance: %w", err)
	}
	return record, nil
}

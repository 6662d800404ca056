// Package types holds the wire-level data model of the execution core
// (spec.md §3): opportunities, DLQ entries, commitment records and the
// process-wide execution statistics.
package types

import (
	"math/big"
	"time"
)

// Kind enumerates the opportunity shapes recognized by the strategy
// dispatch (spec.md §4.6).
type Kind string

const (
	KindSingleChain   Kind = "single-chain"
	KindCrossChain    Kind = "cross-chain"
	KindIntentFill    Kind = "intent-fill"
	KindCommitReveal  Kind = "commit-reveal"
	KindSolanaBundle  Kind = "solana-bundle"
)

// KnownKinds is the recognized set used by the consumer's kind validation
// step (spec.md §4.1 step 3).
var KnownKinds = map[Kind]struct{}{
	KindSingleChain:  {},
	KindCrossChain:   {},
	KindIntentFill:   {},
	KindCommitReveal: {},
	KindSolanaBundle: {},
}

// PathHint is an optional routing hint carried on an opportunity.
type PathHint struct {
	Venue string
	Token string
}

// Opportunity is one candidate arbitrage execution described by the
// upstream detector (spec.md §3).
type Opportunity struct {
	ID              string
	Kind            Kind
	BuyChain        string
	SellChain       string
	BuyVenue        string
	SellVenue       string
	TokenIn         string
	TokenOut        string
	AmountIn        *big.Int
	ExpectedProfit  float64 // USD
	Confidence      float64 // 0..1
	Expiry          *time.Time
	IntentPayload   []byte // opaque signed bytes, intent-fill only
	PathHints       []PathHint
	ReceivedAt      time.Time
}

// Validate checks the data-model invariants from spec.md §3 that are
// independent of the consumer's wire-format validation pipeline (those
// live in execcore/consumer). A caller constructing an Opportunity directly
// (e.g. from a replay) should still run this.
func (o *Opportunity) Validate() error {
	if o.ID == "" {
		return errInvariant("opportunity id must not be empty")
	}
	if o.AmountIn == nil || o.AmountIn.Sign() <= 0 {
		return errInvariant("amountIn must be > 0")
	}
	if o.BuyChain == "" || o.SellChain == "" {
		return errInvariant("chains must not be empty")
	}
	switch o.Kind {
	case KindCrossChain:
		if o.BuyChain == o.SellChain {
			return errInvariant("cross-chain opportunity requires buyChain != sellChain")
		}
	case KindSingleChain:
		if o.BuyChain != o.SellChain {
			return errInvariant("single-chain opportunity requires buyChain == sellChain")
		}
	}
	return nil
}

type invariantError string

func (e invariantError) Error() string { return string(e) }

func errInvariant(msg string) error { return invariantError(msg) }

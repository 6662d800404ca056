package consumer

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

// rawOpportunity mirrors the loosely-typed JSON payload published by the
// upstream detector. String fields treat "" as absent; Expiry is a pointer
// so the pipeline can tell an absent expiry from a zero one, and the numeric
// fields stay json.Number until the business-rule checks parse them.
type rawOpportunity struct {
	Type string `json:"type"`

	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	BuyChain       string          `json:"buyChain"`
	SellChain      string          `json:"sellChain"`
	BuyVenue       string          `json:"buyVenue"`
	SellVenue      string          `json:"sellVenue"`
	TokenIn        string          `json:"tokenIn"`
	TokenOut       string          `json:"tokenOut"`
	AmountIn       string          `json:"amountIn"`
	ExpectedProfit json.Number     `json:"expectedProfit"`
	Confidence     json.Number     `json:"confidence"`
	Expiry         *int64          `json:"expiry"` // unix millis
	IntentPayload  string          `json:"intentPayload"`
	PathHints      []pathHintWire  `json:"pathHints"`
}

type pathHintWire struct {
	Venue string `json:"venue"`
	Token string `json:"token"`
}

// controlMessageTypes are recognized system-control messages discarded
// silently by the envelope check (spec.md §4.1 step 1).
var controlMessageTypes = map[string]struct{}{
	"stream-init": {},
}

// Options bundles the business-rule thresholds and supported-chain set the
// validation pipeline is evaluated against.
type Options struct {
	ConfidenceThreshold  float64
	MinProfitPercentage  float64
	SupportedChains      map[string]struct{}
	Now                  func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Validate runs the ordered validation pipeline from spec.md §4.1 against a
// raw stream entry payload (the JSON string carried in the "data" field).
// It returns (nil, nil) for a silently-discarded control message, a
// populated *types.Opportunity on acceptance, or a tagged *execerr.Error on
// rejection.
func Validate(payload string, opts Options) (*types.Opportunity, *execerr.Error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || trimmed[0] == '[' {
		return nil, execerr.New(execerr.CodeInvalidEnvelope, "payload is empty or an array")
	}

	var raw rawOpportunity
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, execerr.Wrap(execerr.CodeInvalidEnvelope, "payload is not a valid JSON object", err)
	}

	if _, isControl := controlMessageTypes[raw.Type]; isControl {
		return nil, nil
	}

	if raw.ID == "" || raw.Kind == "" || raw.TokenIn == "" || raw.TokenOut == "" || raw.AmountIn == "" {
		return nil, execerr.New(execerr.CodeMissingField, missingFieldMessage(raw))
	}

	kind := types.Kind(raw.Kind)
	if _, known := types.KnownKinds[kind]; !known {
		return nil, execerr.New(execerr.CodeUnknownKind, fmt.Sprintf("unrecognized kind %q", raw.Kind))
	}

	amount, zerr := parseAmount(raw.AmountIn)
	if zerr != nil {
		return nil, zerr
	}

	var expiry *time.Time
	if raw.Expiry != nil {
		t := time.UnixMilli(*raw.Expiry)
		if !t.After(opts.now()) {
			return nil, execerr.New(execerr.CodeExpired, fmt.Sprintf("opportunity expired at %s", t.UTC().Format(time.RFC3339)))
		}
		expiry = &t
	}

	buyChain := strings.ToLower(strings.TrimSpace(raw.BuyChain))
	sellChain := strings.ToLower(strings.TrimSpace(raw.SellChain))
	if kind == types.KindCrossChain {
		if buyChain == "" || sellChain == "" {
			return nil, execerr.New(execerr.CodeMissingField, "cross-chain opportunity requires buyChain and sellChain")
		}
		if err := checkChainSupported(buyChain, opts); err != nil {
			return nil, err
		}
		if err := checkChainSupported(sellChain, opts); err != nil {
			return nil, err
		}
		if buyChain == sellChain {
			return nil, execerr.New(execerr.CodeSameChain, fmt.Sprintf("buyChain and sellChain are both %q", buyChain))
		}
	} else if buyChain != "" {
		if err := checkChainSupported(buyChain, opts); err != nil {
			return nil, err
		}
		if sellChain == "" {
			sellChain = buyChain
		}
	}

	confidence, _ := raw.Confidence.Float64()
	expectedProfit, _ := raw.ExpectedProfit.Float64()

	// Low-confidence failures take priority over low-profit failures
	// (spec.md §4.1 step 7).
	threshold := opts.ConfidenceThreshold
	if threshold == 0 {
		threshold = 0.70
	}
	minProfit := opts.MinProfitPercentage
	if minProfit == 0 {
		minProfit = 0.01
	}
	if confidence < threshold {
		return nil, execerr.New(execerr.CodeLowConfidence, fmt.Sprintf("confidence %.4f below threshold %.4f", confidence, threshold))
	}
	if expectedProfit < minProfit {
		return nil, execerr.New(execerr.CodeLowProfit, fmt.Sprintf("expectedProfit %.4f below minimum %.4f", expectedProfit, minProfit))
	}

	opp := &types.Opportunity{
		ID:             raw.ID,
		Kind:           kind,
		BuyChain:       buyChain,
		SellChain:      sellChain,
		BuyVenue:       raw.BuyVenue,
		SellVenue:      raw.SellVenue,
		TokenIn:        raw.TokenIn,
		TokenOut:       raw.TokenOut,
		AmountIn:       amount,
		ExpectedProfit: expectedProfit,
		Confidence:     confidence,
		Expiry:         expiry,
		ReceivedAt:     opts.now(),
	}
	if raw.IntentPayload != "" {
		opp.IntentPayload = []byte(raw.IntentPayload)
	}
	for _, h := range raw.PathHints {
		opp.PathHints = append(opp.PathHints, types.PathHint{Venue: h.Venue, Token: h.Token})
	}
	return opp, nil
}

func missingFieldMessage(raw rawOpportunity) string {
	var missing []string
	if raw.ID == "" {
		missing = append(missing, "id")
	}
	if raw.Kind == "" {
		missing = append(missing, "kind")
	}
	if raw.TokenIn == "" {
		missing = append(missing, "tokenIn")
	}
	if raw.TokenOut == "" {
		missing = append(missing, "tokenOut")
	}
	if raw.AmountIn == "" {
		missing = append(missing, "amountIn")
	}
	return fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", "))
}

// parseAmount enforces spec.md §4.1 step 4: digits only, no sign, no
// fraction, no hex prefix; zero or all-zero strings are rejected as
// zero-amount rather than invalid-amount.
func parseAmount(raw string) (*big.Int, *execerr.Error) {
	if raw == "" {
		return nil, execerr.New(execerr.CodeInvalidAmount, "amountIn is empty")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return nil, execerr.New(execerr.CodeInvalidAmount, fmt.Sprintf("amountIn %q is not a plain digit string", raw))
		}
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, execerr.New(execerr.CodeInvalidAmount, fmt.Sprintf("amountIn %q could not be parsed", raw))
	}
	if amount.Sign() == 0 {
		return nil, execerr.New(execerr.CodeZeroAmount, fmt.Sprintf("amountIn %q is zero", raw))
	}
	return amount, nil
}

func checkChainSupported(chain string, opts Options) *execerr.Error {
	if opts.SupportedChains == nil {
		return nil
	}
	if _, ok := opts.SupportedChains[chain]; !ok {
		return execerr.New(execerr.CodeUnknownChain, fmt.Sprintf("unsupported chain %q", chain))
	}
	return nil
}

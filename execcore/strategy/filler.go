package strategy

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

// IntentOrder is the decoded Dutch-auction intent an intent-fill opportunity
// carries in its opaque IntentPayload.
type IntentOrder struct {
	Reactor            string    `json:"reactor"`
	StartAmount        *big.Int  `json:"startAmount"`
	EndAmount          *big.Int  `json:"endAmount"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	ExclusiveFiller    string    `json:"exclusiveFiller"`
	ExclusivityEndTime time.Time `json:"exclusivityEndTime"`
}

// FillerExecutor submits a fill transaction for a decoded intent order.
type FillerExecutor interface {
	Fill(ctx context.Context, chain string, order IntentOrder, amountOut *big.Int) (txHash string, err error)
}

// FillerStrategy fills UniswapX-style Dutch-auction intents: the amount the
// filler must provide decays linearly from StartAmount to EndAmount over
// the order's life, and only reactors on an explicit whitelist are
// trusted (spec.md §4.6).
type FillerStrategy struct {
	exec            FillerExecutor
	reactorAllow    map[string]struct{}
	ourFillerAddr   string
	minProfitUSD    float64
	now             func() time.Time
}

// NewFillerStrategy constructs the intent-fill strategy.
func NewFillerStrategy(exec FillerExecutor, reactorWhitelist []string, ourFillerAddr string, minProfitUSD float64) *FillerStrategy {
	allow := make(map[string]struct{}, len(reactorWhitelist))
	for _, r := range reactorWhitelist {
		allow[r] = struct{}{}
	}
	return &FillerStrategy{exec: exec, reactorAllow: allow, ourFillerAddr: ourFillerAddr, minProfitUSD: minProfitUSD, now: time.Now}
}

func (s *FillerStrategy) Name() string { return "intent-fill" }

func (s *FillerStrategy) Applicable(opp *types.Opportunity) bool {
	if opp.Kind != types.KindIntentFill || len(opp.IntentPayload) == 0 {
		return false
	}
	order, err := decodeIntentOrder(opp.IntentPayload)
	if err != nil {
		return false
	}
	if _, ok := s.reactorAllow[order.Reactor]; !ok {
		return false
	}
	if s.now().Before(order.ExclusivityEndTime) && order.ExclusiveFiller != "" && order.ExclusiveFiller != s.ourFillerAddr {
		return false
	}
	return true
}

func (s *FillerStrategy) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
	order, err := decodeIntentOrder(opp.IntentPayload)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeInvalidEnvelope, "decode intent order", err)
	}

	required := decayedAmount(order, s.now())

	if opp.ExpectedProfit < s.minProfitUSD {
		return Result{}, execerr.New(execerr.CodeLowProfitExec, "intent fill below configured minimum profit")
	}

	txHash, err := s.exec.Fill(ctx, opp.BuyChain, order, required)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeRevert, "intent fill transaction failed", err).WithTx(opp.BuyChain, txHash)
	}
	return Result{Strategy: s.Name(), TxHashes: []string{txHash}, RealizedUSD: opp.ExpectedProfit}, nil
}

func decodeIntentOrder(payload []byte) (IntentOrder, error) {
	var order IntentOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return IntentOrder{}, err
	}
	return order, nil
}

// decayedAmount applies the linear Dutch-auction decay curve: at StartTime
// the filler owes StartAmount, at EndTime it owes EndAmount, interpolated
// linearly in between and clamped outside the window.
func decayedAmount(order IntentOrder, now time.Time) *big.Int {
	if order.StartAmount == nil || order.EndAmount == nil {
		return big.NewInt(0)
	}
	total := order.EndTime.Sub(order.StartTime)
	if total <= 0 || !now.After(order.StartTime) {
		return new(big.Int).Set(order.StartAmount)
	}
	if now.After(order.EndTime) {
		return new(big.Int).Set(order.EndAmount)
	}
	elapsed := now.Sub(order.StartTime)
	diff := new(big.Int).Sub(order.EndAmount, order.StartAmount)
	scaled := new(big.Int).Mul(diff, big.NewInt(int64(elapsed)))
	scaled.Quo(scaled, big.NewInt(int64(total)))
	return new(big.Int).Add(order.StartAmount, scaled)
}

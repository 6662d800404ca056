package types

import "math/big"

// SwapLeg is one hop of a commitment's ordered swap path, matching the
// on-chain tuple in spec.md §6.
type SwapLeg struct {
	Router       string
	TokenIn      string
	TokenOut     string
	AmountOutMin *big.Int
}

// RevealParams are the plaintext parameters kept secret until reveal.
type RevealParams struct {
	Asset    string
	AmountIn *big.Int
	Path     []SwapLeg
	MinProfit *big.Int
	Deadline  *big.Int
	Salt      [32]byte
}

// CommitmentRecord is the commit-reveal state machine's storage record
// (spec.md §3, §4.4). It lives from commit time until reveal, cancellation
// or TTL expiry.
type CommitmentRecord struct {
	CommitmentHash string
	Chain          string
	SubmittedBlock uint64
	RevealBlock    uint64 // SubmittedBlock + 1
	Params         RevealParams
	ExpectedProfit *float64
}

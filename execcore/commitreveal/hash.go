// Package commitreveal implements the commit-reveal execution strategy
// (spec.md §4.4): a commitment hash is submitted on-chain first, the real
// swap parameters are only revealed one block later, and the store tracks
// the window in between.
package commitreveal

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"nhbchain/execcore/types"
)

var commitArgs abi.Arguments

func init() {
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	addressArrTy, _ := abi.NewType("address[]", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)

	commitArgs = abi.Arguments{
		{Type: addressTy},    // asset
		{Type: uint256Ty},    // amountIn
		{Type: addressArrTy}, // flattened path routers
		{Type: uint256Ty},    // minProfit
		{Type: uint256Ty},    // deadline
		{Type: bytes32Ty},    // salt
	}
}

// CommitmentHash ABI-encodes p in fixed tuple order (asset, amountIn, path,
// minProfit, deadline, salt) and returns the keccak256 digest submitted
// on-chain as the commitment. The path is encoded as an address[] of each
// leg's router only; a leg's TokenIn, TokenOut and AmountOutMin are not part
// of the encoding, so the digest does not commit to them.
func CommitmentHash(p types.RevealParams) (common.Hash, error) {
	routers := make([]common.Address, len(p.Path))
	for i, leg := range p.Path {
		routers[i] = common.HexToAddress(leg.Router)
	}
	amountIn := p.AmountIn
	if amountIn == nil {
		amountIn = new(big.Int)
	}
	minProfit := p.MinProfit
	if minProfit == nil {
		minProfit = new(big.Int)
	}
	deadline := p.Deadline
	if deadline == nil {
		deadline = new(big.Int)
	}

	packed, err := commitArgs.Pack(
		common.HexToAddress(p.Asset),
		amountIn,
		routers,
		minProfit,
		deadline,
		p.Salt,
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

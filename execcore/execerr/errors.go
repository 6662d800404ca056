// Package execerr defines the tagged error vocabulary used across the
// execution core (spec.md §7). Errors here are values, not exceptions:
// every strategy and subsystem boundary returns a *Error instead of
// panicking, following the teacher's sentinel-error-plus-%w style seen in
// core/mint.go.
package execerr

import (
	"errors"
	"fmt"
)

// Family distinguishes permanent validation failures from the rest.
type Family string

const (
	FamilyValidation  Family = "VAL"
	FamilyEnvironment Family = "ERR"
	FamilyConcurrency Family = "ERR"
	FamilyEconomic    Family = "ERR"
	FamilySimulation  Family = "ERR"
	FamilyOnChain     Family = "ERR"
	FamilyFatal       Family = "ERR"
)

// Code is a bracketed, machine-readable error tag of the form [FAMILY_SPECIFIC].
type Code string

// Validation codes (spec.md §4.1) — permanent, never auto-replayed.
const (
	CodeInvalidEnvelope    Code = "VAL_INVALID_ENVELOPE"
	CodeMissingField       Code = "VAL_MISSING_FIELD"
	CodeUnknownKind        Code = "VAL_UNKNOWN_KIND"
	CodeInvalidAmount      Code = "VAL_INVALID_AMOUNT"
	CodeZeroAmount         Code = "VAL_ZERO_AMOUNT"
	CodeExpired            Code = "VAL_EXPIRED"
	CodeSameChain          Code = "VAL_SAME_CHAIN"
	CodeUnknownChain       Code = "VAL_UNKNOWN_CHAIN"
	CodeLowConfidence      Code = "VAL_LOW_CONFIDENCE"
	CodeLowProfit          Code = "VAL_LOW_PROFIT"
)

// Environment codes — missing/disabled resources, mostly retryable.
const (
	CodeNoProvider Code = "ERR_NO_PROVIDER"
	CodeNoChain    Code = "ERR_NO_CHAIN"
	CodeNoBridge   Code = "ERR_NO_BRIDGE"
	CodeNoRoute    Code = "ERR_NO_ROUTE"
)

// Concurrency codes — fast-fail, counted, never DLQ'd.
const (
	CodeLockConflict    Code = "ERR_LOCK_CONFLICT"
	CodeCircuitOpen     Code = "ERR_CIRCUIT_OPEN"
	CodeQueueFull       Code = "ERR_QUEUE_FULL"
	CodeExecutionTimeout Code = "ERR_EXECUTION_TIMEOUT"
)

// Economic codes — abort before broadcast.
const (
	CodeGasSpike        Code = "ERR_GAS_SPIKE"
	CodeLowProfitExec   Code = "ERR_LOW_PROFIT"
	CodePriceDeviation  Code = "ERR_PRICE_DEVIATION"
	CodeQuoteExpired    Code = "ERR_QUOTE_EXPIRED"
)

// Simulation codes.
const (
	CodeSimRevert     Code = "ERR_SIM_REVERT"
	CodeSimRevertDest Code = "ERR_SIM_REVERT_DEST"
	CodeSimError      Code = "ERR_SIM_ERROR"
)

// On-chain codes — post-broadcast, recorded with a tx hash for reconciliation.
const (
	CodeRevert        Code = "ERR_REVERT"
	CodeNonce         Code = "ERR_NONCE"
	CodeApproval      Code = "ERR_APPROVAL"
	CodeBridgeTimeout Code = "ERR_BRIDGE_TIMEOUT"
)

// Misc / fatal / shutdown.
const (
	CodeDuplicateCommitment Code = "ERR_DUPLICATE_COMMITMENT"
	CodeCommitmentNotFound  Code = "ERR_COMMITMENT_NOT_FOUND"
	CodeRevealTooEarly      Code = "ERR_REVEAL_TOO_EARLY"
	CodeUnexpected          Code = "ERR_UNEXPECTED"
	CodeShutdown            Code = "ERR_SHUTDOWN"
	CodeUntrustedHost       Code = "ERR_UNTRUSTED_HOST"
	CodeConfigInvalid       Code = "ERR_CONFIG_INVALID"
)

// RetryableCodes is the set eligible for DLQ auto-recovery (spec.md §4.1).
// VAL_* codes are never included: permanently bad data is never replayed.
var RetryableCodes = map[Code]struct{}{
	CodeNonce:      {},
	CodeNoProvider: {},
	CodeApproval:   {},
	CodeNoRoute:    {},
	CodeNoBridge:   {},
}

// IsRetryable reports whether code is in the auto-recovery allowlist.
func IsRetryable(code Code) bool {
	_, ok := RetryableCodes[code]
	return ok
}

// IsValidation reports whether code belongs to the permanent VAL_* family.
func IsValidation(code Code) bool {
	return len(code) >= 4 && code[:4] == "VAL_"
}

// Error is a tagged error carrying a bracketed code and a human message.
type Error struct {
	Code       Code
	Message    string
	TxHash     string // populated for post-broadcast on-chain errors
	Chain      string
	BridgeTxID string // populated when a cross-chain bridge leg already succeeded
	Wrapped    error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Bracketed renders "[CODE] message" per the DLQ wire contract (spec.md §6).
func (e *Error) Bracketed() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// New constructs a tagged error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs a tagged error wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Wrapped: cause}
}

// WithTx attaches a transaction hash and chain for post-broadcast errors.
func (e *Error) WithTx(chain, txHash string) *Error {
	e.Chain = chain
	e.TxHash = txHash
	return e
}

// WithBridgeTx records a bridge transfer id that already succeeded before
// this error occurred, e.g. a destination-leg failure after the bridge
// completed — funds are on the destination chain's custody and need
// reconciliation against this id, not the (empty) destination tx hash.
func (e *Error) WithBridgeTx(bridgeTxID string) *Error {
	e.BridgeTxID = bridgeTxID
	return e
}

// As reports whether err is (or wraps) an *Error, populating target.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

package commitreveal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

const (
	pollInterval       = 2 * time.Second
	waitTimeout        = 120 * time.Second
	maxRecoverableErrs = 4
	revealGasBumpPct   = 10
)

// ChainClient is the minimal on-chain surface the commit-reveal state
// machine drives: submit the commitment, watch block height advance, then
// submit the reveal transaction.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	SubmitCommit(ctx context.Context, commitmentHash [32]byte) (txHash string, err error)
	SubmitReveal(ctx context.Context, params types.RevealParams, gasBumpPercent int) (txHash string, err error)
}

// QuoteOracle re-checks profitability right before reveal, since prices may
// have moved during the mandatory one-block commit window. NoopOracle is
// the default when no oracle is wired, always approving the reveal.
type QuoteOracle interface {
	StillProfitable(ctx context.Context, params types.RevealParams, expectedProfit *float64) (bool, error)
}

// NoopOracle always approves, used when SPEC_FULL's profitability-recheck
// Open Question is left unconfigured for a given deployment.
type NoopOracle struct{}

func (NoopOracle) StillProfitable(ctx context.Context, params types.RevealParams, expectedProfit *float64) (bool, error) {
	return true, nil
}

// Service drives the commit -> wait -> reveal state machine for one
// opportunity at a time.
type Service struct {
	chain  ChainClient
	store  *Store
	oracle QuoteOracle
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewService constructs a Service. A nil oracle defaults to NoopOracle.
func NewService(chain ChainClient, store *Store, oracle QuoteOracle) *Service {
	if oracle == nil {
		oracle = NoopOracle{}
	}
	return &Service{chain: chain, store: store, oracle: oracle, now: time.Now, sleep: time.Sleep}
}

// Commit submits the commitment transaction for params and stores the
// pending-reveal record (committing -> pending-reveal). It returns the
// commitment hash, the handle Reveal/CancelCommit key off of.
func (s *Service) Commit(ctx context.Context, chainName string, params types.RevealParams, expectedProfit *float64) (string, error) {
	hash, err := CommitmentHash(params)
	if err != nil {
		return "", execerr.Wrap(execerr.CodeUnexpected, "compute commitment hash", err)
	}
	hashHex := hash.Hex()

	submittedBlock, err := s.chain.BlockNumber(ctx)
	if err != nil {
		return "", execerr.Wrap(execerr.CodeNoProvider, "read current block before commit", err)
	}

	rec := types.CommitmentRecord{
		CommitmentHash: hashHex,
		Chain:          chainName,
		SubmittedBlock: submittedBlock,
		RevealBlock:    submittedBlock + 1,
		Params:         params,
		ExpectedProfit: expectedProfit,
	}
	if err := s.store.PutIfAbsent(ctx, hashHex, rec); err != nil {
		return "", err
	}

	if _, err := s.chain.SubmitCommit(ctx, hash); err != nil {
		_ = s.store.Delete(ctx, hashHex)
		return "", execerr.Wrap(execerr.CodeUnexpected, "submit commitment transaction", err)
	}

	return hashHex, nil
}

// Reveal drives the pending-reveal -> revealed transition for an
// already-committed commitmentHash. It does not wait for the reveal block
// to arrive: a caller ahead of schedule gets ERR_REVEAL_TOO_EARLY with the
// record left in place, so a later call once the chain has advanced can
// still succeed.
func (s *Service) Reveal(ctx context.Context, commitmentHash string) (string, error) {
	rec, err := s.store.Get(ctx, commitmentHash)
	if err != nil {
		return "", execerr.New(execerr.CodeCommitmentNotFound, "commitment state not found (may have expired)")
	}

	current, err := s.chain.BlockNumber(ctx)
	if err != nil {
		return "", execerr.Wrap(execerr.CodeNoProvider, "read current block before reveal", err)
	}
	if current < rec.RevealBlock {
		return "", execerr.New(execerr.CodeRevealTooEarly, fmt.Sprintf("too early to reveal. current: %d, need: %d", current, rec.RevealBlock))
	}

	ok, err := s.oracle.StillProfitable(ctx, rec.Params, rec.ExpectedProfit)
	if err != nil {
		_ = s.store.Delete(ctx, commitmentHash)
		return "", execerr.Wrap(execerr.CodeQuoteExpired, "profitability re-check failed", err)
	}
	if !ok {
		_ = s.store.Delete(ctx, commitmentHash)
		return "", execerr.New(execerr.CodeQuoteExpired, "opportunity no longer profitable at reveal time")
	}

	txHash, err := s.chain.SubmitReveal(ctx, rec.Params, 0)
	if err != nil {
		txHash, err = s.chain.SubmitReveal(ctx, rec.Params, revealGasBumpPct)
		if err != nil {
			_ = s.store.Delete(ctx, commitmentHash)
			return "", execerr.Wrap(execerr.CodeRevert, "reveal transaction failed after one gas-bumped retry", err)
		}
	}

	_ = s.store.Delete(ctx, commitmentHash)
	return txHash, nil
}

// CancelCommit drives the pending-reveal -> cancelled transition, deleting
// the stored record without submitting a reveal transaction.
func (s *Service) CancelCommit(ctx context.Context, commitmentHash string) error {
	if _, err := s.store.Get(ctx, commitmentHash); err != nil {
		return execerr.New(execerr.CodeCommitmentNotFound, "commitment state not found (may have expired)")
	}
	return s.store.Delete(ctx, commitmentHash)
}

// Execute runs one full commit-reveal cycle for params: commit, block until
// the reveal block arrives, then reveal. Returns the reveal transaction
// hash on success.
func (s *Service) Execute(ctx context.Context, chainName string, params types.RevealParams, expectedProfit *float64) (string, error) {
	commitmentHash, err := s.Commit(ctx, chainName, params, expectedProfit)
	if err != nil {
		return "", err
	}

	rec, err := s.store.Get(ctx, commitmentHash)
	if err != nil {
		return "", execerr.New(execerr.CodeCommitmentNotFound, "commitment state not found (may have expired)")
	}
	if err := s.waitForRevealBlock(ctx, rec.RevealBlock); err != nil {
		_ = s.store.Delete(ctx, commitmentHash)
		return "", err
	}

	return s.Reveal(ctx, commitmentHash)
}

// waitForRevealBlock polls until the chain head reaches target, tolerating
// up to maxRecoverableErrs transient provider errors before giving up, and
// bounding the whole wait at waitTimeout regardless.
func (s *Service) waitForRevealBlock(ctx context.Context, target uint64) error {
	deadline := s.now().Add(waitTimeout)
	recoverableErrs := 0

	for {
		if s.now().After(deadline) {
			return execerr.New(execerr.CodeBridgeTimeout, "timed out waiting for reveal block")
		}

		height, err := s.chain.BlockNumber(ctx)
		if err != nil {
			recoverableErrs++
			if recoverableErrs > maxRecoverableErrs {
				return execerr.Wrap(execerr.CodeNoProvider, "too many provider errors while waiting for reveal block", err)
			}
			if ctxErr := sleepOrDone(ctx, s.sleep, pollInterval); ctxErr != nil {
				return ctxErr
			}
			continue
		}
		if height >= target {
			return nil
		}
		if ctxErr := sleepOrDone(ctx, s.sleep, pollInterval); ctxErr != nil {
			return ctxErr
		}
	}
}

func sleepOrDone(ctx context.Context, sleep func(time.Duration), d time.Duration) error {
	done := make(chan struct{})
	go func() {
		sleep(d)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return execerr.Wrap(execerr.CodeShutdown, "commit-reveal wait canceled", errors.New(ctx.Err().Error()))
	case <-done:
		return nil
	}
}

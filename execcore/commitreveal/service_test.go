package commitreveal

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
	"nhbchain/storage"
)

type fakeChain struct {
	block        uint64
	blockErr     error
	revealErr    error
	revealCalls  int
	commitCalled bool
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	if f.blockErr != nil {
		return 0, f.blockErr
	}
	f.block++
	return f.block, nil
}

func (f *fakeChain) SubmitCommit(ctx context.Context, hash [32]byte) (string, error) {
	f.commitCalled = true
	return "0xcommit", nil
}

func (f *fakeChain) SubmitReveal(ctx context.Context, params types.RevealParams, gasBumpPercent int) (string, error) {
	f.revealCalls++
	if f.revealErr != nil && gasBumpPercent == 0 {
		return "", f.revealErr
	}
	return "0xreveal", nil
}

func testParams() types.RevealParams {
	return types.RevealParams{
		Asset:     "0x0000000000000000000000000000000000000001",
		AmountIn:  big.NewInt(1000),
		MinProfit: big.NewInt(10),
		Deadline:  big.NewInt(99999),
		Salt:      [32]byte{7},
	}
}

func fastService(chain ChainClient) *Service {
	store := NewStore(nil, storage.NewMemDB(), time.Minute)
	s := NewService(chain, store, nil)
	s.sleep = func(time.Duration) {}
	return s
}

func TestExecuteHappyPath(t *testing.T) {
	chain := &fakeChain{block: 100}
	svc := fastService(chain)
	txHash, err := svc.Execute(context.Background(), "ethereum", testParams(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if txHash != "0xreveal" {
		t.Fatalf("txHash = %q", txHash)
	}
	if !chain.commitCalled {
		t.Fatal("expected commit to be submitted")
	}
}

func TestExecuteRetriesRevealOnceWithGasBump(t *testing.T) {
	chain := &fakeChain{block: 100, revealErr: errors.New("underpriced")}
	svc := fastService(chain)
	txHash, err := svc.Execute(context.Background(), "ethereum", testParams(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if txHash != "0xreveal" {
		t.Fatalf("txHash = %q", txHash)
	}
	if chain.revealCalls != 2 {
		t.Fatalf("revealCalls = %d, want 2", chain.revealCalls)
	}
}

func TestExecuteRejectsUnprofitableAtReveal(t *testing.T) {
	chain := &fakeChain{block: 100}
	store := NewStore(nil, storage.NewMemDB(), time.Minute)
	oracle := rejectingOracle{}
	svc := NewService(chain, store, oracle)
	svc.sleep = func(time.Duration) {}

	_, err := svc.Execute(context.Background(), "ethereum", testParams(), nil)
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeQuoteExpired {
		t.Fatalf("err = %v, want CodeQuoteExpired", err)
	}
}

type rejectingOracle struct{}

func (rejectingOracle) StillProfitable(ctx context.Context, params types.RevealParams, expectedProfit *float64) (bool, error) {
	return false, nil
}

func TestRevealTooEarlyLeavesRecordForLaterRetry(t *testing.T) {
	chain := &fakeChain{block: 100}
	store := NewStore(nil, storage.NewMemDB(), time.Minute)
	svc := NewService(chain, store, nil)
	svc.sleep = func(time.Duration) {}

	commitmentHash, err := svc.Commit(context.Background(), "ethereum", testParams(), nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Pin the chain head at the commit block so Reveal sees current < reveal-block.
	// fakeChain.BlockNumber increments before returning, so seed one below.
	rec, err := store.Get(context.Background(), commitmentHash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	chain.block = rec.SubmittedBlock - 1

	_, err = svc.Reveal(context.Background(), commitmentHash)
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeRevealTooEarly {
		t.Fatalf("err = %v, want CodeRevealTooEarly", err)
	}
	if _, getErr := store.Get(context.Background(), commitmentHash); getErr != nil {
		t.Fatalf("record should still be present after a too-early reveal: %v", getErr)
	}

	// Advance the head past the reveal block; the same hash now reveals.
	chain.block = rec.RevealBlock
	txHash, err := svc.Reveal(context.Background(), commitmentHash)
	if err != nil {
		t.Fatalf("Reveal after advancing: %v", err)
	}
	if txHash != "0xreveal" {
		t.Fatalf("txHash = %q", txHash)
	}
	if _, getErr := store.Get(context.Background(), commitmentHash); getErr == nil {
		t.Fatal("record should be deleted after a successful reveal")
	}
}

func TestRevealMissingCommitmentNotFound(t *testing.T) {
	chain := &fakeChain{block: 100}
	svc := fastService(chain)

	_, err := svc.Reveal(context.Background(), "0xdoesnotexist")
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeCommitmentNotFound {
		t.Fatalf("err = %v, want CodeCommitmentNotFound", err)
	}
}

func TestCancelCommitDeletesPendingRecord(t *testing.T) {
	chain := &fakeChain{block: 100}
	store := NewStore(nil, storage.NewMemDB(), time.Minute)
	svc := NewService(chain, store, nil)
	svc.sleep = func(time.Duration) {}

	commitmentHash, err := svc.Commit(context.Background(), "ethereum", testParams(), nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := svc.CancelCommit(context.Background(), commitmentHash); err != nil {
		t.Fatalf("CancelCommit: %v", err)
	}
	if _, err := store.Get(context.Background(), commitmentHash); err == nil {
		t.Fatal("record should be gone after cancellation")
	}
	if err := svc.CancelCommit(context.Background(), commitmentHash); err == nil {
		t.Fatal("cancelling an already-gone commitment should report not-found")
	}
}

func TestExecuteDuplicateCommitmentRejected(t *testing.T) {
	chain := &fakeChain{block: 100}
	store := NewStore(nil, storage.NewMemDB(), time.Minute)
	svc := NewService(chain, store, nil)
	svc.sleep = func(time.Duration) {}

	params := testParams()
	hash, err := CommitmentHash(params)
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}
	if err := store.PutIfAbsent(context.Background(), hash.Hex(), types.CommitmentRecord{CommitmentHash: hash.Hex()}); err != nil {
		t.Fatalf("seed PutIfAbsent: %v", err)
	}

	_, err = svc.Execute(context.Background(), "ethereum", params, nil)
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeDuplicateCommitment {
		t.Fatalf("err = %v, want CodeDuplicateCommitment", err)
	}
}

package gas

import (
	"math/big"
	"testing"
)

func TestObserveFirstSampleNeverSpikes(t *testing.T) {
	p := NewPolicy(3.0, nil)
	if p.Observe("ethereum", big.NewInt(50_000_000_000)) {
		t.Fatal("first sample must not be a spike")
	}
	if p.Baseline("ethereum") != 50_000_000_000 {
		t.Fatalf("Baseline = %v", p.Baseline("ethereum"))
	}
}

func TestObserveFlagsSpikeAboveMultiplier(t *testing.T) {
	p := NewPolicy(3.0, nil)
	p.Observe("ethereum", big.NewInt(50_000_000_000))
	if !p.Observe("ethereum", big.NewInt(200_000_000_000)) {
		t.Fatal("4x jump should be flagged as spike")
	}
}

func TestObserveAllowsModerateIncrease(t *testing.T) {
	p := NewPolicy(3.0, nil)
	p.Observe("ethereum", big.NewInt(50_000_000_000))
	if p.Observe("ethereum", big.NewInt(60_000_000_000)) {
		t.Fatal("1.2x jump should not be flagged as spike")
	}
}

func TestPerChainMultiplierOverride(t *testing.T) {
	p := NewPolicy(3.0, map[string]float64{"polygon": 1.5})
	p.Observe("polygon", big.NewInt(100))
	if !p.Observe("polygon", big.NewInt(200)) {
		t.Fatal("2x jump should exceed 1.5x chain override")
	}
}

func TestResetClearsBaseline(t *testing.T) {
	p := NewPolicy(3.0, nil)
	p.Observe("ethereum", big.NewInt(50_000_000_000))
	p.Reset("ethereum")
	if p.Baseline("ethereum") != 0 {
		t.Fatal("expected baseline cleared after Reset")
	}
	if p.Observe("ethereum", big.NewInt(500_000_000_000)) {
		t.Fatal("first sample after reset must not spike")
	}
}

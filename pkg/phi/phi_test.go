package phi

import (
	"math"
	"testing"
)

func TestConstantFamily(t *testing.T) {
	if math.Abs(Phi-1.6180339887) > 1e-9 {
		t.Errorf("Phi = %v", Phi)
	}
	// The defining identity: 1/φ = φ - 1.
	if math.Abs(Inv-(Phi-1)) > 1e-12 {
		t.Errorf("Inv = %v, want φ-1 = %v", Inv, Phi-1)
	}
	if math.Abs(Inv2-Inv*Inv) > 1e-12 {
		t.Errorf("Inv2 = %v, want %v", Inv2, Inv*Inv)
	}
	if math.Abs(Inv3-Inv*Inv*Inv) > 1e-12 {
		t.Errorf("Inv3 = %v, want %v", Inv3, Inv*Inv*Inv)
	}
	if MaxConfidence != Inv {
		t.Errorf("MaxConfidence = %v, want Inv", MaxConfidence)
	}
}

package sample

import "testing"

func TestQuantiseWidenRoundTrip(t *testing.T) {
	depths := []int{8, 16, 24, 32}
	// Values near full scale are exercised separately by
	// TestQuantiseSaturatesAtEndpoints: at the very top of range, 8/16-bit
	// quantisation clamps rather than rounds, which can exceed half a
	// step by design. These samples stay well clear of that boundary.
	samples := []IQ{
		{I: 0, Q: 0},
		{I: 1000, Q: -1000},
		{I: FullScale / 4, Q: -FullScale / 4},
		{I: FullScale / 2, Q: -FullScale / 2},
	}

	for _, depth := range depths {
		step := lsbStep(depth)
		for _, s := range samples {
			buf := Quantise(s, depth)
			if len(buf) != BytesPerPair(depth) {
				t.Fatalf("depth %d: Quantise returned %d bytes, want %d", depth, len(buf), BytesPerPair(depth))
			}
			back := Widen(buf, depth)
			if abs32(back.I-s.I) > step || abs32(back.Q-s.Q) > step {
				t.Fatalf("depth %d: widen(quantise(%+v)) = %+v, step %d exceeded", depth, s, back, step)
			}
		}
	}
}

func TestQuantiseSaturatesAtEndpoints(t *testing.T) {
	huge := IQ{I: 1 << 30, Q: -(1 << 30)}

	got8 := Widen(Quantise(huge, 8), 8)
	if got8.I != 127*65536 || got8.Q != -128*65536 {
		t.Fatalf("8-bit saturation mismatch: %+v", got8)
	}

	got16 := Widen(Quantise(huge, 16), 16)
	if got16.I != 32767*256 || got16.Q != -32768*256 {
		t.Fatalf("16-bit saturation mismatch: %+v", got16)
	}

	got24 := Widen(Quantise(huge, 24), 24)
	if got24.I != (1<<23)-1 || got24.Q != -(1<<23) {
		t.Fatalf("24-bit saturation mismatch: %+v", got24)
	}
}

func TestWidenFloat32(t *testing.T) {
	got := WidenFloat32(1.0, -1.0)
	if got.I != FullScale || got.Q != -FullScale {
		t.Fatalf("unexpected widen: %+v", got)
	}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// lsbStep returns half the wire LSB's internal-resolution step: spec
// §4.5's round(x/step) formula guarantees the reconstructed sample is
// within half a step of the original, not a full step.
func lsbStep(depth int) int32 {
	switch depth {
	case 8:
		return 65536 / 2
	case 16:
		return 256 / 2
	case 24, 32:
		return 0
	}
	return 0
}

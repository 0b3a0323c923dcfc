package dsp

import (
	"testing"

	"github.com/cwsl/remoteiq/internal/sample"
)

func strongSample() sample.IQ {
	return sample.IQ{I: sample.FullScale / 2, Q: 0}
}

func weakSample() sample.IQ {
	return sample.IQ{I: 1, Q: 0}
}

// TestSquelchGateHoldsThenCloses exercises the squelch close scenario from
// spec §8 scenario 3: with the gate open, a sustained drop below threshold
// keeps the gate open for exactly gateSamples samples (the delay-line
// drain) before the output goes to zero.
func TestSquelchGateHoldsThenCloses(t *testing.T) {
	const rate = 48000
	const gateSeconds = 0.01 // 480 samples at 48kHz

	sink := NewSink(PassthroughResampler{}, Settings{
		ChannelSampleRate:  rate,
		GainTenthsDB:       0,
		SquelchEnabled:     true,
		SquelchDB:          -50, // dBFS
		SquelchGateSeconds: gateSeconds,
	})

	// Prime the gate open with strong samples.
	for i := 0; i < 10; i++ {
		out := sink.ProcessSample(strongSample())
		if len(out) != 1 || out[0].I == 0 {
			t.Fatalf("expected open gate to pass strong samples, got %+v", out)
		}
	}

	gate := sink.gateSamples()
	zeroSeen := false
	nonZeroAfterDrop := 0
	for i := 0; i < gate+10; i++ {
		out := sink.ProcessSample(weakSample())
		if len(out) != 1 {
			t.Fatalf("expected exactly one output sample per input, got %d", len(out))
		}
		if out[0] == (sample.IQ{}) {
			zeroSeen = true
			break
		}
		nonZeroAfterDrop++
	}

	if !zeroSeen {
		t.Fatalf("squelch never closed after %d weak samples (gate=%d)", gate+10, gate)
	}
	if nonZeroAfterDrop > gate {
		t.Fatalf("squelch held open for %d samples, longer than gate %d", nonZeroAfterDrop, gate)
	}
}

func TestSquelchDisabledPassesThrough(t *testing.T) {
	sink := NewSink(PassthroughResampler{}, Settings{
		ChannelSampleRate: 48000,
		SquelchEnabled:    false,
	})
	out := sink.ProcessSample(weakSample())
	if len(out) != 1 || out[0].I != 1 {
		t.Fatalf("expected passthrough sample, got %+v", out)
	}
}

func TestGainAppliesLinearScale(t *testing.T) {
	sink := NewSink(PassthroughResampler{}, Settings{
		ChannelSampleRate: 48000,
		GainTenthsDB:      200, // +20dB => linear factor 10
	})
	out := sink.ProcessSample(sample.IQ{I: 100, Q: 0})
	if out[0].I < 900 || out[0].I > 1100 {
		t.Fatalf("expected ~10x gain, got %+v", out[0])
	}
}

func TestDelayLineResizeShrinkKeepsRecent(t *testing.T) {
	d := NewDelayLine(4)
	for i := int32(1); i <= 4; i++ {
		d.Write(sample.IQ{I: i})
	}
	// Oldest is 1, newest is 4.
	d.Resize(2)
	if d.Len() != 2 {
		t.Fatalf("expected capacity 2, got %d", d.Len())
	}
	if got := d.ReadBack(0); got.I != 4 {
		t.Fatalf("expected newest sample 4 preserved, got %+v", got)
	}
	if got := d.ReadBack(1); got.I != 3 {
		t.Fatalf("expected second-newest sample 3 preserved, got %+v", got)
	}
}

func TestDelayLineResizeGrowPreservesSamples(t *testing.T) {
	d := NewDelayLine(2)
	d.Write(sample.IQ{I: 1})
	d.Write(sample.IQ{I: 2})
	d.Resize(5)
	if d.Len() != 5 {
		t.Fatalf("expected capacity 5, got %d", d.Len())
	}
	if got := d.ReadBack(0); got.I != 2 {
		t.Fatalf("expected newest sample 2 preserved, got %+v", got)
	}
}

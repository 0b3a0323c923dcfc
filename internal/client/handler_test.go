package client

import (
	"testing"
	"time"

	"github.com/cwsl/remoteiq/internal/sample"
)

type fakeSink struct {
	pushed  []sample.IQ
	stopped bool
}

func (f *fakeSink) Push(samples []sample.IQ) { f.pushed = append(f.pushed, samples...) }
func (f *fakeSink) Stop()                    { f.stopped = true }

func newTestHandler(prefillSeconds float64, sampleRate uint32) (*Handler, *fakeSink) {
	sink := &fakeSink{}
	h := New("unused:0", false, false, prefillSeconds, 4096, sink, Settings{
		ChannelSampleRate: sampleRate,
		BitDepth:          16,
	})
	return h, sink
}

func TestEmitBudgetWithholdsUntilPrefilled(t *testing.T) {
	h, sink := newTestHandler(0.01, 48000) // 480 samples = 1920 bytes to prefill at 16-bit

	h.fifo.Write(make([]byte, 100)) // well under the prefill threshold
	h.emitBudget(20 * time.Millisecond)

	if len(sink.pushed) != 0 {
		t.Fatalf("expected no samples pushed before prefill, got %d", len(sink.pushed))
	}
	if h.prefilled {
		t.Fatal("expected prefilled=false while under threshold")
	}
}

func TestEmitBudgetReleasesAfterPrefill(t *testing.T) {
	h, sink := newTestHandler(0.01, 48000)

	h.fifo.Write(make([]byte, 2000)) // over the 1920-byte prefill threshold
	h.emitBudget(20 * time.Millisecond)

	if !h.prefilled {
		t.Fatal("expected prefilled=true once threshold reached")
	}
	if len(sink.pushed) == 0 {
		t.Fatal("expected samples pushed after prefill satisfied")
	}
}

func TestEmitBudgetReprimesBelowTenPercent(t *testing.T) {
	h, _ := newTestHandler(0.01, 48000)
	h.prefilled = true

	h.fifo.Write(make([]byte, 10)) // far under 10% of the 1920-byte threshold
	h.emitBudget(20 * time.Millisecond)

	if h.prefilled {
		t.Fatal("expected re-prime (prefilled reset to false) when buffer starves below 10%")
	}
}

func TestEmitBudgetClampsToBufferedBytes(t *testing.T) {
	h, sink := newTestHandler(0, 48000) // prefill disabled entirely
	h.fifo.Write(make([]byte, 8))       // 2 samples worth at 16-bit stereo

	h.emitBudget(time.Second) // budget far exceeds what's buffered

	if len(sink.pushed) != 2 {
		t.Fatalf("expected exactly the 2 buffered samples, got %d", len(sink.pushed))
	}
}

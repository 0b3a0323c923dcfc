package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwsl/remoteiq/internal/sample"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(0.0001, 48000) // tiny buffer: 4 samples (8 int16 values)
	b.Write([]sample.IQ{
		{I: 1000 * 256, Q: -1000 * 256},
		{I: 2000 * 256, Q: -2000 * 256},
	})

	out := b.Read(4)
	if len(out) != 4 {
		t.Fatalf("expected 4 values (buffer may be smaller), got %d", len(out))
	}
}

func TestSetReadOffsetSeeksBehindWriteHead(t *testing.T) {
	b := New(1, 48000)
	for i := 0; i < 10; i++ {
		b.Write([]sample.IQ{{I: int32(i) * 256, Q: 0}})
	}
	b.SetReadOffset(4)
	if !b.UsingReplay() {
		t.Fatal("expected UsingReplay true after non-zero offset")
	}
	if b.ReadOffset() != 4 {
		t.Fatalf("expected ReadOffset 4, got %d", b.ReadOffset())
	}
}

func TestLoopModeDoesNotOverwrite(t *testing.T) {
	b := New(1, 48000)
	b.Write([]sample.IQ{{I: 42 * 256, Q: 0}})
	b.SetLoop(true)
	b.Write([]sample.IQ{{I: 99 * 256, Q: 0}}) // should not land in the buffer

	b.SetReadOffset(2) // back over the looped write and the real one
	out := b.Read(2)
	if len(out) < 1 || out[0] != 42 {
		t.Fatalf("expected loop write to preserve original sample 42, got %v", out)
	}
}

func TestSaveWAVWritesValidHeader(t *testing.T) {
	b := New(1, 48000)
	b.Write([]sample.IQ{
		{I: 1000 * 256, Q: -1000 * 256},
		{I: 2000 * 256, Q: -2000 * 256},
	})

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := b.SaveWAV(path, 48000, 100000000); err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading wav: %v", err)
	}
	if len(data) < 44 {
		t.Fatalf("expected at least a 44-byte header, got %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q", data[:12])
	}
	if string(data[36:40]) != "data" {
		t.Fatalf("missing data chunk marker: %q", data[36:40])
	}
}

func TestResizePreservesRecentSamples(t *testing.T) {
	b := New(1, 48000)
	for i := 0; i < 5; i++ {
		b.Write([]sample.IQ{{I: int32(i) * 256, Q: 0}})
	}
	b.Resize(0.5, 48000)
	if len(b.data) != int(0.5*48000)*2 {
		t.Fatalf("expected resized length, got %d", len(b.data))
	}
}

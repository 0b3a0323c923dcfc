package compressor

import (
	"bytes"
	"testing"

	"github.com/cwsl/remoteiq/internal/protocol"
)

func TestDeflateRoundTrip(t *testing.T) {
	codec := NewDeflateCodec(6, 4096)

	block := make([]byte, 1024)
	for i := range block {
		block[i] = byte(i % 251)
	}

	enc, err := codec.EncodeBlock(block)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if len(enc) == 0 {
		t.Fatal("expected non-empty compressed block")
	}

	dec, err := codec.DecodeBlock(enc)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !bytes.Equal(dec, block) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(dec), len(block))
	}
}

func TestDeflateBlocksAreIndependentlyDecodable(t *testing.T) {
	codec := NewDeflateCodec(3, 2048)

	a := bytes.Repeat([]byte{0xAA}, 512)
	b := bytes.Repeat([]byte{0x55}, 512)

	encA, err := codec.EncodeBlock(a)
	if err != nil {
		t.Fatalf("EncodeBlock a: %v", err)
	}
	encB, err := codec.EncodeBlock(b)
	if err != nil {
		t.Fatalf("EncodeBlock b: %v", err)
	}

	// Decoding b first, without ever having seen a, must still succeed:
	// each block carries its own complete zlib stream.
	decB, err := codec.DecodeBlock(encB)
	if err != nil {
		t.Fatalf("DecodeBlock b (independent): %v", err)
	}
	if !bytes.Equal(decB, b) {
		t.Fatal("independent decode of block b mismatched")
	}

	decA, err := codec.DecodeBlock(encA)
	if err != nil {
		t.Fatalf("DecodeBlock a: %v", err)
	}
	if !bytes.Equal(decA, a) {
		t.Fatal("independent decode of block a mismatched")
	}
}

func TestNewDeflateCodecClampsWindowBits(t *testing.T) {
	tiny := NewDeflateCodec(1, 4)
	if tiny.windowBits != 8 {
		t.Fatalf("expected windowBits clamped to 8, got %d", tiny.windowBits)
	}
	huge := NewDeflateCodec(1, 1<<20)
	if huge.windowBits != 15 {
		t.Fatalf("expected windowBits clamped to 15, got %d", huge.windowBits)
	}
}

func TestModeOpcodeAndString(t *testing.T) {
	cases := []struct {
		mode Mode
		op   protocol.Opcode
		str  string
	}{
		{ModeNone, protocol.DataIQ, "none"},
		{ModeFLAC, protocol.DataIQFLAC, "flac"},
		{ModeZLib, protocol.DataIQzlib, "zlib"},
	}
	for _, c := range cases {
		if got := c.mode.Opcode(); got != c.op {
			t.Errorf("Mode(%d).Opcode() = %v, want %v", c.mode, got, c.op)
		}
		if got := c.mode.String(); got != c.str {
			t.Errorf("Mode(%d).String() = %q, want %q", c.mode, got, c.str)
		}
	}
}

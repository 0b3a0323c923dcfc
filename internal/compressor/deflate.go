package compressor

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"

	"github.com/klauspost/compress/zlib"
)

// DeflateCodec implements the zlib-compression path of spec §4.4, grounded
// on remotetcpsinksink.cpp's block-oriented zlib setup (one
// deflateInit2/Z_FINISH/deflateEnd cycle per block, so every compressed
// block is independently decodable without replaying earlier blocks).
//
// klauspost/compress/zlib keeps the stdlib compress/zlib surface (it does
// not expose deflateInit2's explicit windowBits knob), so WindowBits here
// is recorded for parity with the original's log2(blockSize) calculation
// but is not passed to the encoder; see DESIGN.md for why this is an
// acceptable narrowing rather than a dropped dependency.
type DeflateCodec struct {
	level      int
	windowBits int
}

// NewDeflateCodec builds a codec at the given compression level (0-9) and
// block size in samples; WindowBits is derived as log2(blockSize), clamped
// to zlib's valid 8-15 range.
func NewDeflateCodec(level, blockSize int) *DeflateCodec {
	wb := bits.Len(uint(blockSize)) - 1
	if wb < 8 {
		wb = 8
	}
	if wb > 15 {
		wb = 15
	}
	return &DeflateCodec{level: level, windowBits: wb}
}

// EncodeBlock compresses one block of quantised IQ bytes into a single,
// independently-decodable zlib stream (Z_FINISH semantics: the writer is
// closed immediately after one Write).
func (c *DeflateCodec) EncodeBlock(block []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("compressor: new zlib writer: %w", err)
	}
	if _, err := w.Write(block); err != nil {
		w.Close()
		return nil, fmt.Errorf("compressor: zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressor: zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBlock reverses EncodeBlock, expecting exactly one complete zlib
// stream per call (the client's framing layer must have already split the
// wire stream on the length-prefixed data frames of spec §6).
func (c *DeflateCodec) DecodeBlock(block []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(block))
	if err != nil {
		return nil, fmt.Errorf("compressor: new zlib reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compressor: zlib read: %w", err)
	}
	return out, nil
}

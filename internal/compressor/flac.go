// Package compressor implements the Compressor module (spec §4.4):
// optional FLAC or deflate compression of the quantised IQ byte stream,
// with each compressed unit tagged by opcode so ClientTCPHandler can
// dispatch it without a priori knowledge of block boundaries.
package compressor

import (
	"fmt"
	"sync"

	goflac "github.com/drgolem/go-flac"
)

// FLACEncoder wraps a libFLAC stream encoder configured for 2-channel
// (interleaved I/Q) audio, grounded on drgolem/go-flac's FlacEncoder and
// on remotetcpsinksink.cpp's FLAC setup in applySettings/flacWrite.
//
// The original implementation's flacWrite callback distinguishes the
// STREAMINFO header (currentFrame==0 && samples==0) from ordinary encoded
// frames so it can replay the header to clients that join mid-stream.
// go-flac's write callback fires identically during
// FLAC__stream_encoder_init_stream, before any sample is processed, so
// draining the encoder's output buffer once right after InitStream
// captures exactly that header block with no extra bookkeeping.
type FLACEncoder struct {
	mu     sync.Mutex
	enc    *goflac.FlacEncoder
	header []byte
}

// NewFLACEncoder builds a 2-channel encoder at the given sample rate and
// bit depth (16 or 24, spec §4.4), using compressionLevel (0-8, libFLAC
// scale) and blockSize in samples per frame.
func NewFLACEncoder(sampleRate, bitsPerSample, compressionLevel, blockSize int) (*FLACEncoder, error) {
	enc, err := goflac.NewFlacEncoder(sampleRate, 2, bitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("compressor: new flac encoder: %w", err)
	}
	if err := enc.SetCompressionLevel(compressionLevel); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compressor: set compression level: %w", err)
	}
	if blockSize > 0 {
		if err := enc.SetBlockSize(blockSize); err != nil {
			enc.Close()
			return nil, fmt.Errorf("compressor: set block size: %w", err)
		}
	}
	if err := enc.InitStream(); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compressor: init stream: %w", err)
	}

	header := enc.TakeBytes()
	return &FLACEncoder{enc: enc, header: header}, nil
}

// Header returns the STREAMINFO block captured at Init time. Every late
// joiner gets this replayed verbatim before the next live frame (spec
// §4.8's "join mid-stream" scenario).
func (f *FLACEncoder) Header() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.header))
	copy(out, f.header)
	return out
}

// EncodeBlock feeds numSamples interleaved (I, Q, I, Q, ...) int32 samples
// right-justified to the encoder's configured bit depth and returns
// whatever compressed frame bytes the encoder produced. libFLAC buffers
// internally, so a call may return no bytes (still filling a frame) or
// more than one frame's worth.
func (f *FLACEncoder) EncodeBlock(interleaved []int32, numSamples int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enc.ProcessInterleaved(interleaved, numSamples); err != nil {
		return nil, fmt.Errorf("compressor: process interleaved: %w", err)
	}
	return f.enc.TakeBytes(), nil
}

// Close flushes the encoder and releases its libFLAC resources.
func (f *FLACEncoder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enc.Finish(); err != nil {
		f.enc.Close()
		return fmt.Errorf("compressor: finish: %w", err)
	}
	f.enc.Close()
	return nil
}

// FLACDecoder mirrors FLACEncoder's stream shape from the decode side. No
// other package in this module constructs it: ClientTCPHandler widens the
// received bytes as raw samples and does not decode FLAC or zlib frames,
// and ReplayBuffer's WAV export works on its own int16 buffer. The
// retrieved go-flac source only carries the encoder, but the module
// exposes a symmetric stream decoder (FlacDecoder / InitStream /
// ProcessCallback) following the same libFLAC C-binding pattern.
type FLACDecoder struct {
	mu  sync.Mutex
	dec *goflac.FlacDecoder
	out []int32
}

// NewFLACDecoder constructs a decoder that will be fed the header block
// first, then successive encoded frames via Feed.
func NewFLACDecoder() (*FLACDecoder, error) {
	dec, err := goflac.NewFlacDecoder()
	if err != nil {
		return nil, fmt.Errorf("compressor: new flac decoder: %w", err)
	}
	d := &FLACDecoder{dec: dec}
	if err := dec.InitStream(d.collect); err != nil {
		dec.Close()
		return nil, fmt.Errorf("compressor: init decode stream: %w", err)
	}
	return d, nil
}

func (d *FLACDecoder) collect(interleaved []int32) {
	d.out = append(d.out, interleaved...)
}

// Feed writes one chunk of FLAC stream bytes (the header, then each
// subsequent frame in order) and returns any interleaved int32 samples
// decoded as a result.
func (d *FLACDecoder) Feed(chunk []byte) ([]int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.out = d.out[:0]
	if err := d.dec.ProcessBytes(chunk); err != nil {
		return nil, fmt.Errorf("compressor: decode: %w", err)
	}
	out := make([]int32, len(d.out))
	copy(out, d.out)
	return out, nil
}

// Close releases the decoder's libFLAC resources.
func (d *FLACDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dec.Close()
}

package compressor

import "github.com/cwsl/remoteiq/internal/sample"

// IQBlockEncoder is the uniform per-session encoding contract Fanout
// drives: given one channel-rate block of already-gained, already-
// squelched IQ samples, produce the wire body for a dataIQFLAC or
// dataIQzlib frame. FLACEncoder and DeflateCodec each quantise and frame
// their block differently (FLAC wants interleaved int32 PCM, zlib wants
// already-quantised bytes), so the conversion lives here rather than in
// the server package, keeping Fanout ignorant of codec internals.
type IQBlockEncoder interface {
	EncodeIQBlock(samples []sample.IQ, bitDepth int) ([]byte, error)
}

// EncodeIQBlock implements IQBlockEncoder for FLACEncoder: each sample is
// scaled to bitDepth (the same depth the encoder was constructed with,
// spec §4.4) before being handed to libFLAC, which expects signed PCM
// right-justified to its configured bit depth rather than the internal
// 24-bit resolution.
func (e *FLACEncoder) EncodeIQBlock(samples []sample.IQ, bitDepth int) ([]byte, error) {
	interleaved := make([]int32, 0, len(samples)*2)
	for _, s := range samples {
		i, q := sample.QuantisedComponents(s, bitDepth)
		interleaved = append(interleaved, i, q)
	}
	return e.EncodeBlock(interleaved, len(samples))
}

// EncodeIQBlock implements IQBlockEncoder for DeflateCodec: samples are
// quantised to the session's negotiated bit depth first, then the raw
// bytes are deflated as one independently-decodable block.
func (c *DeflateCodec) EncodeIQBlock(samples []sample.IQ, bitDepth int) ([]byte, error) {
	body := make([]byte, 0, len(samples)*sample.BytesPerPair(bitDepth))
	for _, s := range samples {
		body = append(body, sample.Quantise(s, bitDepth)...)
	}
	return c.EncodeBlock(body)
}

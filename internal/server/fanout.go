package server

import (
	"sync"

	"github.com/cwsl/remoteiq/internal/compressor"
	"github.com/cwsl/remoteiq/internal/dsp"
	"github.com/cwsl/remoteiq/internal/protocol"
	"github.com/cwsl/remoteiq/internal/sample"
)

// Fanout distributes one block of device-rate IQ samples to every Active
// session: the block is run through the single shared channel Sink
// exactly once (spec §5 — no per-client private mixdown, every admitted
// session sees the same post-gain, post-squelch samples), and only then
// does each session diverge, at its own negotiated wire bit depth and
// compression mode, before the frame is pushed through its non-blocking
// FrameWriter. This is the network thread's half of spec §5's two-thread
// model — the DSP thread that actually produces device-rate samples is
// an external collaborator (SDR hardware capture, out of scope per spec
// §1); cmd/remoteiq-server drives Deliver from a synthetic stand-in.
type Fanout struct {
	roster  *Roster
	channel *dsp.Sink

	mu     sync.Mutex
	codecs map[string]compressor.IQBlockEncoder // session ID -> shared FLAC/zlib encoder instance for that session's mode
}

// NewFanout builds a Fanout over roster, running blocks through channel.
func NewFanout(roster *Roster, channel *dsp.Sink) *Fanout {
	return &Fanout{roster: roster, channel: channel, codecs: make(map[string]compressor.IQBlockEncoder)}
}

// RegisterCodec attaches an encoder to sessionID, used for ModeFLAC/
// ModeZLib sessions; ModeNone sessions need no entry. Every session of a
// given mode shares the same encoder instance (spec §5: one FLAC
// bitstream for the whole server, not one per client), so this is usually
// called with the same *compressor.FLACEncoder or *compressor.DeflateCodec
// for every registration.
func (f *Fanout) RegisterCodec(sessionID string, codec compressor.IQBlockEncoder) {
	f.mu.Lock()
	f.codecs[sessionID] = codec
	f.mu.Unlock()
}

// UnregisterCodec drops sessionID's encoder, called on disconnect.
func (f *Fanout) UnregisterCodec(sessionID string) {
	f.mu.Lock()
	delete(f.codecs, sessionID)
	f.mu.Unlock()
}

// Deliver runs one device-rate block through the shared channel sink
// exactly once, then fans the resulting channel-rate samples out to every
// Active session's own quantise/compress/write step.
func (f *Fanout) Deliver(block []sample.IQ) {
	var out []sample.IQ
	for _, in := range block {
		out = append(out, f.channel.ProcessSample(in)...)
	}
	if len(out) == 0 {
		return
	}

	for _, sess := range f.roster.Active() {
		if sess.Writer == nil {
			continue
		}
		f.deliverTo(sess, out)
	}
}

func (f *Fanout) deliverTo(sess *Session, out []sample.IQ) {
	switch sess.CompressionMode {
	case compressor.ModeNone:
		body := make([]byte, 0, len(out)*sample.BytesPerPair(sess.BitDepth))
		for _, s := range out {
			body = append(body, sample.Quantise(s, sess.BitDepth)...)
		}
		sess.Writer.Write(body)

	case compressor.ModeFLAC, compressor.ModeZLib:
		f.mu.Lock()
		codec, ok := f.codecs[sess.ID]
		f.mu.Unlock()
		if !ok {
			return
		}
		body, err := codec.EncodeIQBlock(out, sess.BitDepth)
		if err != nil || len(body) == 0 {
			return
		}
		sess.Writer.Write(protocol.DataFrame{Opcode: sess.CompressionMode.Opcode(), Body: body}.Encode())
	}
}

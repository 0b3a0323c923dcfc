// Package dsp implements DSPSink: the per-sample server-side pipeline of
// frequency shift, interpolation/decimation contract, gain, and squelch
// (spec §4.3). Quantisation and dispatch to sessions happen in
// server.Fanout, not here.
package dsp

import (
	"math"
	"sync"

	"github.com/cwsl/remoteiq/internal/sample"
)

// Resampler is the external collaborator contract for the
// polyphase interpolator/decimator (spec §4.3 step 2, explicitly out of
// scope for this module): given an input rate Ri and output rate Ro, it
// must produce exactly one output sample for every Ri/Ro inputs when
// decimating, or Ro/Ri outputs per input when interpolating, with
// deterministic fractional-phase accumulation. DSPSink only calls this
// contract; it never implements resampling itself.
type Resampler interface {
	// Process consumes one input sample and returns zero or more output
	// samples at the target rate.
	Process(in sample.IQ) []sample.IQ
}

// PassthroughResampler is a Resampler that performs no rate conversion,
// used when device and channel sample rates coincide.
type PassthroughResampler struct{}

func (PassthroughResampler) Process(in sample.IQ) []sample.IQ { return []sample.IQ{in} }

// Sink holds the single shared channel's DSP state described in spec
// §4.3: one instance per server, not one per client, since spec.md's
// Non-goals rule out a per-client private mixdown — every admitted
// session receives the same post-gain, post-squelch IQ stream, and only
// diverges from there at the per-session wire bit depth and compression
// stage (internal/server/fanout.go). All mutation goes through Settings
// and ProcessSample while holding Sink's own mutex for the duration of
// one sample/block.
type Sink struct {
	mu sync.Mutex

	resampler  Resampler
	channelFrequencyOffset int32
	channelSampleRate      int
	linearGainDB           float64

	squelchEnabled bool
	squelchLevel   float64 // linear magnitude^2 threshold
	squelchGate    float64 // seconds
	squelchCount   int
	squelchOpen    bool
	delay          *DelayLine

	magsqAvg   float64
	magsqAlpha float64
}

// Settings bundles the externally-configurable fields of the shared
// channel Sink (spec §4.3, §4.7's channel-level settings).
type Settings struct {
	ChannelFrequencyOffset int32
	ChannelSampleRate      int
	GainTenthsDB           int32
	SquelchEnabled         bool
	SquelchDB              float64 // dBFS threshold
	SquelchGateSeconds     float64
}

// NewSink constructs a Sink with the given resampler contract and initial
// settings.
func NewSink(resampler Resampler, s Settings) *Sink {
	sink := &Sink{
		resampler:  resampler,
		magsqAlpha: 0.1,
		delay:      NewDelayLine(1),
	}
	sink.Apply(s)
	return sink
}

// Apply updates the sink's settings, resizing the squelch delay line if
// the gate length or channel rate changed (spec §4.3 tie-break).
func (s *Sink) Apply(cfg Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channelFrequencyOffset = cfg.ChannelFrequencyOffset
	s.channelSampleRate = cfg.ChannelSampleRate
	s.linearGainDB = math.Pow(10, float64(cfg.GainTenthsDB)/200.0)
	s.squelchEnabled = cfg.SquelchEnabled
	s.squelchLevel = math.Pow(10, cfg.SquelchDB/10.0)
	s.squelchGate = cfg.SquelchGateSeconds

	gateSamples := int(cfg.SquelchGateSeconds*float64(cfg.ChannelSampleRate)) + 1
	if gateSamples < 1 {
		gateSamples = 1
	}
	if s.delay == nil {
		s.delay = NewDelayLine(gateSamples)
	} else {
		s.delay.Resize(gateSamples)
	}
}

// gateSamples returns the current squelch gate length in samples at the
// current channel rate.
func (s *Sink) gateSamples() int {
	n := int(s.squelchGate * float64(s.channelSampleRate))
	if n < 0 {
		n = 0
	}
	return n
}

// ProcessSample runs one NCO-shifted, resampled input sample through
// gain, the magnitude² meter, squelch, and returns the zero or more
// channel-rate output samples ready for quantisation (spec §4.3 steps
// 1-5). The NCO shift itself — multiplying by a complex exponential at
// -channelFrequencyOffset — is delegated to the caller's oscillator,
// which is expected to have already been applied to `in`; ProcessSample
// starts from step 2 (resample) since the oscillator has no internal
// state this package needs to own.
func (s *Sink) ProcessSample(in sample.IQ) []sample.IQ {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sample.IQ, 0, 1)
	for _, rs := range s.resampler.Process(in) {
		out = append(out, s.processOne(rs))
	}
	return out
}

func (s *Sink) processOne(ci sample.IQ) sample.IQ {
	// Linear gain.
	i := float64(ci.I) * s.linearGainDB
	q := float64(ci.Q) * s.linearGainDB
	gained := sample.IQ{I: int32(i), Q: int32(q)}

	// Moving-average magnitude^2 meter, normalized to full scale.
	ni := i / sample.FullScale
	nq := q / sample.FullScale
	magsq := ni*ni + nq*nq
	s.magsqAvg = magsq*s.magsqAlpha + s.magsqAvg*(1-s.magsqAlpha)

	if !s.squelchEnabled {
		return gained
	}

	gate := s.gateSamples()
	s.delay.Write(gained)

	if s.magsqAvg < s.squelchLevel {
		if s.squelchCount > 0 {
			s.squelchCount--
		}
	} else {
		s.squelchCount = gate
	}
	s.squelchOpen = s.squelchCount > 0

	if s.squelchOpen {
		return s.delay.ReadBack(gate)
	}
	return sample.IQ{}
}

// MagSq returns the current moving-average magnitude² reading, for the
// channel-power metric (SPEC_FULL.md supplement to spec §4.9).
func (s *Sink) MagSq() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.magsqAvg
}

// SquelchOpen reports whether the squelch gate is currently open.
func (s *Sink) SquelchOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.squelchOpen
}

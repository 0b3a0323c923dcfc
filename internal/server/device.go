package server

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cwsl/remoteiq/internal/sample"
)

// NullDevice is a DeviceControl that records whatever settings are
// pushed to it and reports them back unchanged. SDR hardware capture is
// an external collaborator out of scope for this repository (spec §1's
// Non-goals); NullDevice exists so ControlPlane and its change-detector
// have something concrete to drive in the CLI entrypoint and in tests, a
// stand-in for whatever capture front-end a real deployment plugs in.
type NullDevice struct {
	mu    sync.Mutex
	state DeviceState
}

func NewNullDevice() *NullDevice { return &NullDevice{} }

func (d *NullDevice) SetCenterFrequency(hz uint32) {
	d.mu.Lock()
	d.state.CenterFrequency = hz
	d.mu.Unlock()
}

func (d *NullDevice) SetSampleRate(hz uint32) {
	d.mu.Lock()
	d.state.SampleRate = hz
	d.mu.Unlock()
}

func (d *NullDevice) SetTunerGainMode(auto bool) {}

func (d *NullDevice) SetTunerGain(tenthsDB uint32) {
	d.mu.Lock()
	d.state.TunerGain = tenthsDB
	d.mu.Unlock()
}

func (d *NullDevice) SetFrequencyCorrection(ppm uint32) {
	d.mu.Lock()
	d.state.FrequencyCorrection = ppm
	d.mu.Unlock()
}

func (d *NullDevice) SetTunerIFGain(stage, gain uint16) {}

func (d *NullDevice) SetAGCMode(enabled bool) {
	d.mu.Lock()
	d.state.AGCMode = enabled
	d.mu.Unlock()
}

func (d *NullDevice) SetDirectSampling(mode uint32) {
	d.mu.Lock()
	d.state.DirectSampling = mode
	d.mu.Unlock()
}

func (d *NullDevice) SetBiasTee(enabled bool) {
	d.mu.Lock()
	d.state.BiasTee = enabled
	d.mu.Unlock()
}

func (d *NullDevice) SetTunerBandwidth(hz uint32) {
	d.mu.Lock()
	d.state.TunerBandwidth = hz
	d.mu.Unlock()
}

func (d *NullDevice) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SyntheticSource generates device-rate IQ blocks for Fanout.Deliver when
// no real capture front-end is wired in: a single cosine tone plus dither,
// grounded on the retrieved pack's dummy_streamer.go simulator (sine
// pattern written to a named pipe in place of real hardware). Like
// NullDevice, this stands in for SDR hardware capture, which spec §1
// explicitly rules out of scope; it exists purely so Fanout's delivery
// pipeline has something to drive end to end.
type SyntheticSource struct {
	sampleRate int
	toneHz     float64
	blockSize  int
}

// NewSyntheticSource builds a source at sampleRate producing blockSize
// samples per tick, with a tone at toneHz.
func NewSyntheticSource(sampleRate, blockSize int, toneHz float64) *SyntheticSource {
	return &SyntheticSource{sampleRate: sampleRate, toneHz: toneHz, blockSize: blockSize}
}

// Run ticks once per block's worth of wall-clock time, handing each
// generated block to deliver, until ctx is cancelled.
func (s *SyntheticSource) Run(ctx context.Context, deliver func([]sample.IQ)) {
	if s.sampleRate <= 0 || s.blockSize <= 0 {
		return
	}
	interval := time.Duration(float64(s.blockSize) / float64(s.sampleRate) * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	phaseStep := 2 * math.Pi * s.toneHz / float64(s.sampleRate)
	var phase float64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			block := make([]sample.IQ, s.blockSize)
			for i := range block {
				dither := rand.Float64() - 0.5
				i64 := sample.FullScale/4*math.Cos(phase) + dither
				q64 := sample.FullScale/4*math.Sin(phase) + dither
				block[i] = sample.IQ{I: int32(i64), Q: int32(q64)}
				phase += phaseStep
			}
			deliver(block)
		}
	}
}

package server

import (
	"log"
	"sync"
	"time"

	"github.com/cwsl/remoteiq/internal/dsp"
	"github.com/cwsl/remoteiq/internal/protocol"
)

// DeviceControl is the capture device's command surface (spec §4.7's
// "forwarded to the capture device"). SDR hardware capture is an
// external collaborator out of scope for this repository (spec §1's
// Non-goals); ControlPlane only needs something to forward device-level
// opcodes to, so any capture front-end implements this interface.
type DeviceControl interface {
	SetCenterFrequency(hz uint32)
	SetSampleRate(hz uint32)
	SetTunerGainMode(auto bool)
	SetTunerGain(tenthsDB uint32)
	SetFrequencyCorrection(ppm uint32)
	SetTunerIFGain(stage, gain uint16)
	SetAGCMode(enabled bool)
	SetDirectSampling(mode uint32)
	SetBiasTee(enabled bool)
	SetTunerBandwidth(hz uint32)

	// State returns the device's live settings so the change-detector can
	// diff them against what was last pushed to clients.
	State() DeviceState
}

// DeviceState is the subset of capture-device settings the change
// detector polls (spec §4.7's periodic change-detector).
type DeviceState struct {
	CenterFrequency uint32
	SampleRate      uint32
	TunerGain       uint32
	FrequencyCorrection uint32
	AGCMode         bool
	DirectSampling  uint32
	BiasTee         bool
	TunerBandwidth  uint32
}

// ControlPlane dispatches inbound commands from every session (spec
// §4.7), owns the single shared channel DSP pipeline (spec §5: one
// gain/squelch/NCO-offset state for the whole server, never one per
// client), and runs the periodic change-detector that pushes unsolicited
// updates to clients when the capture device's state diverges from what
// was last announced. Grounded on the teacher's SessionManager
// command-switch in session.go, generalized from ubersdr's radiod-channel
// commands to the rtl_tcp-style opcode table of spec §6.
type ControlPlane struct {
	device        DeviceControl
	maxSampleRate uint32
	roster        *Roster
	channel       *dsp.Sink

	chMu      sync.Mutex
	channelCfg dsp.Settings

	broadcast func(from *Session, msg protocol.ChatMessage)
	unicast   func(to *Session, msg protocol.ChatMessage)
	pushFrame func(to *Session, frame []byte)

	lastState DeviceState
}

// NewControlPlane constructs a ControlPlane driving the single shared
// channel sink, seeded with initial (the same Settings channel was
// constructed with, spec §4.3). broadcast/unicast/pushFrame let
// ControlPlane stay decoupled from the wire transport, mirroring how
// Roster.Remove takes callback functions rather than writing sockets
// itself.
func NewControlPlane(device DeviceControl, maxSampleRate uint32, roster *Roster, channel *dsp.Sink, initial dsp.Settings,
	broadcast func(from *Session, msg protocol.ChatMessage),
	unicast func(to *Session, msg protocol.ChatMessage),
	pushFrame func(to *Session, frame []byte),
) *ControlPlane {
	return &ControlPlane{
		device:        device,
		maxSampleRate: maxSampleRate,
		roster:        roster,
		channel:       channel,
		channelCfg:    initial,
		broadcast:     broadcast,
		unicast:       unicast,
		pushFrame:     pushFrame,
	}
}

// ChannelSampleRate reports the shared channel's current sample rate, for
// Listener's meta-data handshake (spec §3's SDRA meta block).
func (cp *ControlPlane) ChannelSampleRate() int {
	cp.chMu.Lock()
	defer cp.chMu.Unlock()
	return cp.channelCfg.ChannelSampleRate
}

// Dispatch handles one decoded fixed-size command from sess (spec §4.7).
// sendMessage carries a variable-length tail and is never represented as
// a fixed Command; the session's read loop decodes it separately and
// calls DispatchChat instead. If the session's RemoteControl flag is
// false, every opcode Dispatch sees is silently dropped.
func (cp *ControlPlane) Dispatch(sess *Session, cmd protocol.Command) {
	if !sess.RemoteControl {
		return
	}

	switch cmd.Opcode {
	case protocol.SetCenterFrequency:
		cp.device.SetCenterFrequency(cmd.Payload)
	case protocol.SetSampleRate:
		cp.device.SetSampleRate(cmd.Payload)
	case protocol.SetTunerGainMode:
		cp.device.SetTunerGainMode(cmd.Payload != 0)
	case protocol.SetTunerGain:
		cp.device.SetTunerGain(cmd.Payload)
	case protocol.SetFrequencyCorrection:
		cp.device.SetFrequencyCorrection(cmd.Payload)
	case protocol.SetTunerIFGain:
		cp.device.SetTunerIFGain(uint16(cmd.Payload>>16), uint16(cmd.Payload))
	case protocol.SetAGCMode:
		cp.device.SetAGCMode(cmd.Payload != 0)
	case protocol.SetDirectSampling:
		cp.device.SetDirectSampling(cmd.Payload)
	case protocol.SetBiasTee:
		cp.device.SetBiasTee(cmd.Payload != 0)
	case protocol.SetTunerBandwidth:
		cp.device.SetTunerBandwidth(cmd.Payload)

	case protocol.SetDecimation, protocol.SetChannelFreqOffset, protocol.SetChannelGain,
		protocol.SetSampleBitDepth, protocol.SetIQSquelchEnabled, protocol.SetIQSquelch,
		protocol.SetIQSquelchGate, protocol.SetDCOffsetRemoval, protocol.SetIQCorrection:
		cp.updateChannelSetting(sess, cmd)

	case protocol.SetChannelSampleRate:
		cp.setChannelSampleRate(sess, cmd)

	default:
		log.Printf("controlplane: session %s sent unknown opcode %s", sess.ID, cmd.Opcode)
	}
}

// updateChannelSetting applies one of the channel-level opcodes to the
// single shared channel sink (spec §4.7's second bullet, spec §5: every
// admitted session shares this state, so a remote-control-authorized
// session retunes the stream everyone receives, not a private mixdown).
// SetSampleBitDepth is the one opcode in this group that stays purely
// per-session: it only changes how Fanout wire-frames sess's copy of the
// shared post-DSP block, so it mutates sess.BitDepth directly instead of
// touching the shared sink.
func (cp *ControlPlane) updateChannelSetting(sess *Session, cmd protocol.Command) {
	if cmd.Opcode == protocol.SetSampleBitDepth {
		sess.BitDepth = int(cmd.Payload)
		return
	}
	if cmd.Opcode == protocol.SetDecimation || cmd.Opcode == protocol.SetDCOffsetRemoval || cmd.Opcode == protocol.SetIQCorrection {
		// No dsp.Settings field or DeviceControl method carries these, so
		// the command is dropped: neither the shared sink nor the device
		// changes.
		return
	}

	cp.chMu.Lock()
	defer cp.chMu.Unlock()

	switch cmd.Opcode {
	case protocol.SetChannelFreqOffset:
		cp.channelCfg.ChannelFrequencyOffset = cmd.PayloadInt32()
	case protocol.SetChannelGain:
		cp.channelCfg.GainTenthsDB = cmd.PayloadInt32()
	case protocol.SetIQSquelchEnabled:
		cp.channelCfg.SquelchEnabled = cmd.Payload != 0
	case protocol.SetIQSquelch:
		cp.channelCfg.SquelchDB = float64(cmd.PayloadFloat32())
	case protocol.SetIQSquelchGate:
		cp.channelCfg.SquelchGateSeconds = float64(cmd.PayloadFloat32())
	}

	cp.channel.Apply(cp.channelCfg)
}

// setChannelSampleRate pins a request above max_sample_rate and retunes
// the shared channel sink (spec §4.7's third bullet). Because the sink is
// shared, the corrected rate is pushed to every Active session, not just
// the requester (spec §5's single-shared-stream architecture).
func (cp *ControlPlane) setChannelSampleRate(sess *Session, cmd protocol.Command) {
	rate := cmd.Payload
	restart := false
	if rate > cp.maxSampleRate {
		rate = cp.maxSampleRate
		restart = true
	}

	cp.chMu.Lock()
	cp.channelCfg.ChannelSampleRate = int(rate)
	cp.channel.Apply(cp.channelCfg)
	cp.chMu.Unlock()

	if cp.pushFrame != nil {
		frame := protocol.EncodeCmd(protocol.SetChannelSampleRate, rate)
		for _, s := range cp.roster.Active() {
			cp.pushFrame(s, frame[:])
		}
	}
	if restart && cp.unicast != nil {
		cp.unicast(sess, protocol.ChatMessage{
			Text: "sample rate pinned to server maximum; reconnect to stream at the new rate",
		})
	}
}

// DispatchChat routes an already-decoded sendMessage frame: a broadcast
// message goes to the broadcast callback with sess as the sender; any
// other message goes to the unicast callback with sess itself as the
// target. No other session is looked up for a non-broadcast message, so it
// returns only to its sender. sendMessage is accepted regardless of RemoteControl, matching
// spec §4.7's "every opcode except sendMessage is silently dropped" — the
// session's read loop calls DispatchChat directly rather than routing
// through Dispatch.
func (cp *ControlPlane) DispatchChat(sess *Session, msg protocol.ChatMessage) {
	if msg.Broadcast {
		if cp.broadcast != nil {
			cp.broadcast(sess, msg)
		}
		return
	}
	if cp.unicast != nil {
		cp.unicast(sess, msg)
	}
}

// RunChangeDetector polls the capture device's live state every 500ms
// and pushes unsolicited commands to every connected client for each
// field that has diverged since the last push (spec §4.7's periodic
// change-detector). It blocks until stop is closed.
func (cp *ControlPlane) RunChangeDetector(stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cp.detectAndPush()
		}
	}
}

func (cp *ControlPlane) detectAndPush() {
	now := cp.device.State()
	prev := cp.lastState

	type change struct {
		op  protocol.Opcode
		val uint32
	}
	var changes []change

	if now.CenterFrequency != prev.CenterFrequency {
		changes = append(changes, change{protocol.SetCenterFrequency, now.CenterFrequency})
	}
	if now.SampleRate != prev.SampleRate {
		changes = append(changes, change{protocol.SetSampleRate, now.SampleRate})
	}
	if now.TunerGain != prev.TunerGain {
		changes = append(changes, change{protocol.SetTunerGain, now.TunerGain})
	}
	if now.FrequencyCorrection != prev.FrequencyCorrection {
		changes = append(changes, change{protocol.SetFrequencyCorrection, now.FrequencyCorrection})
	}
	if now.AGCMode != prev.AGCMode {
		v := uint32(0)
		if now.AGCMode {
			v = 1
		}
		changes = append(changes, change{protocol.SetAGCMode, v})
	}
	if now.DirectSampling != prev.DirectSampling {
		changes = append(changes, change{protocol.SetDirectSampling, now.DirectSampling})
	}
	if now.BiasTee != prev.BiasTee {
		v := uint32(0)
		if now.BiasTee {
			v = 1
		}
		changes = append(changes, change{protocol.SetBiasTee, v})
	}
	if now.TunerBandwidth != prev.TunerBandwidth {
		changes = append(changes, change{protocol.SetTunerBandwidth, now.TunerBandwidth})
	}

	cp.lastState = now
	if len(changes) == 0 || cp.pushFrame == nil {
		return
	}

	for _, sess := range cp.roster.All() {
		for _, c := range changes {
			frame := protocol.EncodeCmd(c.op, c.val)
			cp.pushFrame(sess, frame[:])
		}
	}
}

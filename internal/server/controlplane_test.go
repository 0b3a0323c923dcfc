package server

import (
	"net"
	"testing"

	"github.com/cwsl/remoteiq/internal/dsp"
	"github.com/cwsl/remoteiq/internal/protocol"
)

type fakeConn struct{ net.Conn }

func (fakeConn) RemoteAddr() net.Addr { return fakeAddr("127.0.0.1:9999") }
func (fakeConn) Close() error         { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

type fakeDevice struct {
	state   DeviceState
	freqSet uint32
}

func (d *fakeDevice) SetCenterFrequency(hz uint32)     { d.freqSet = hz }
func (d *fakeDevice) SetSampleRate(hz uint32)          {}
func (d *fakeDevice) SetTunerGainMode(auto bool)       {}
func (d *fakeDevice) SetTunerGain(v uint32)            {}
func (d *fakeDevice) SetFrequencyCorrection(v uint32)  {}
func (d *fakeDevice) SetTunerIFGain(stage, gain uint16) {}
func (d *fakeDevice) SetAGCMode(enabled bool)          {}
func (d *fakeDevice) SetDirectSampling(mode uint32)    {}
func (d *fakeDevice) SetBiasTee(enabled bool)          {}
func (d *fakeDevice) SetTunerBandwidth(hz uint32)      {}
func (d *fakeDevice) State() DeviceState               { return d.state }

func newTestSession() *Session {
	return NewSession(fakeConn{})
}

func newTestChannelSink() *dsp.Sink {
	return dsp.NewSink(dsp.PassthroughResampler{}, dsp.Settings{ChannelSampleRate: 48000})
}

func TestDispatchDropsWhenRemoteControlDisabled(t *testing.T) {
	dev := &fakeDevice{}
	cp := NewControlPlane(dev, 48000, NewRoster(1, 0, "TEST", nil), newTestChannelSink(), dsp.Settings{ChannelSampleRate: 48000}, nil, nil, nil)

	sess := newTestSession()
	sess.RemoteControl = false

	cmd, _ := protocol.DecodeCmd(mustEncode(protocol.SetCenterFrequency, 14250000))
	cp.Dispatch(sess, cmd)

	if dev.freqSet != 0 {
		t.Fatalf("expected device untouched while remote_control=false, got %d", dev.freqSet)
	}
}

func TestDispatchForwardsDeviceOpcode(t *testing.T) {
	dev := &fakeDevice{}
	cp := NewControlPlane(dev, 48000, NewRoster(1, 0, "TEST", nil), newTestChannelSink(), dsp.Settings{ChannelSampleRate: 48000}, nil, nil, nil)

	sess := newTestSession()
	sess.RemoteControl = true

	cmd, _ := protocol.DecodeCmd(mustEncode(protocol.SetCenterFrequency, 14250000))
	cp.Dispatch(sess, cmd)

	if dev.freqSet != 14250000 {
		t.Fatalf("expected device frequency 14250000, got %d", dev.freqSet)
	}
}

func TestSetChannelSampleRatePinsAboveMax(t *testing.T) {
	dev := &fakeDevice{}
	var pushed []byte
	roster := NewRoster(1, 0, "TEST", nil)
	cp := NewControlPlane(dev, 48000, roster, newTestChannelSink(), dsp.Settings{ChannelSampleRate: 48000}, nil, nil,
		func(to *Session, frame []byte) { pushed = frame })

	sess := newTestSession()
	sess.RemoteControl = true
	roster.Add(sess, func(*Session) {})

	cmd, _ := protocol.DecodeCmd(mustEncode(protocol.SetChannelSampleRate, 192000))
	cp.Dispatch(sess, cmd)

	if got := cp.ChannelSampleRate(); got != 48000 {
		t.Fatalf("expected pinned rate 48000, got %d", got)
	}
	got, err := protocol.DecodeCmd(pushed)
	if err != nil || got.Payload != 48000 {
		t.Fatalf("expected pushed frame carrying pinned rate, got %+v err %v", got, err)
	}
}

func TestDispatchChatBroadcastReportsSender(t *testing.T) {
	var broadcastFrom *Session
	cp := NewControlPlane(&fakeDevice{}, 48000, NewRoster(2, 0, "TEST", nil), newTestChannelSink(), dsp.Settings{ChannelSampleRate: 48000},
		func(from *Session, msg protocol.ChatMessage) { broadcastFrom = from },
		nil, nil)

	sess := newTestSession()
	cp.DispatchChat(sess, protocol.ChatMessage{Broadcast: true, Text: "hello"})

	if broadcastFrom != sess {
		t.Fatal("expected broadcast callback invoked with sending session")
	}
}

func TestChangeDetectorPushesOnlyDivergedFields(t *testing.T) {
	dev := &fakeDevice{state: DeviceState{CenterFrequency: 7100000, SampleRate: 48000}}
	roster := NewRoster(1, 0, "TEST", nil)
	sess := newTestSession()
	roster.Add(sess, func(*Session) {})

	var pushes int
	cp := NewControlPlane(dev, 48000, roster, newTestChannelSink(), dsp.Settings{ChannelSampleRate: 48000}, nil, nil, func(to *Session, frame []byte) { pushes++ })

	cp.detectAndPush() // first poll establishes baseline, no prior state to diverge from... except zero-value prev differs
	first := pushes

	dev.state.CenterFrequency = 7200000
	cp.detectAndPush()
	if pushes != first+1 {
		t.Fatalf("expected exactly one additional push after center frequency changed, went from %d to %d", first, pushes)
	}

	before := pushes
	cp.detectAndPush()
	if pushes != before {
		t.Fatalf("expected no pushes once state is stable, went from %d to %d", before, pushes)
	}
}

func mustEncode(op protocol.Opcode, v uint32) []byte {
	buf := protocol.EncodeCmd(op, v)
	return buf[:]
}

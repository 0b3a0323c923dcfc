package server

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cwsl/remoteiq/internal/compressor"
	"github.com/cwsl/remoteiq/internal/dsp"
	"github.com/cwsl/remoteiq/internal/sample"
)

// recordingConn is a net.Conn stand-in that appends every Write to an
// internal buffer, for asserting what a FrameWriter actually flushed.
type recordingConn struct {
	net.Conn
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *recordingConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}
func (c *recordingConn) RemoteAddr() net.Addr               { return fakeAddr("127.0.0.1:1") }
func (c *recordingConn) Close() error                       { return nil }
func (c *recordingConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *recordingConn) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func newActiveSession(t *testing.T, mode compressor.Mode, bitDepth int) (*Session, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	sess := NewSession(conn)
	sess.setState(StateActive)
	sess.CompressionMode = mode
	sess.BitDepth = bitDepth
	sess.Writer = NewFrameWriter(sess, 8, time.Second)
	return sess, conn
}

func newTestChannel() *dsp.Sink {
	return dsp.NewSink(dsp.PassthroughResampler{}, dsp.Settings{ChannelSampleRate: 48000})
}

func TestFanoutDeliversUncompressedQuantisedBytes(t *testing.T) {
	roster := NewRoster(4, 0, "TEST", nil)
	sess, conn := newActiveSession(t, compressor.ModeNone, 16)
	roster.Add(sess, func(*Session) {})

	fanout := NewFanout(roster, newTestChannel())
	fanout.Deliver([]sample.IQ{{I: 1000 << 8, Q: -1000 << 8}})

	waitFor(t, func() bool { return len(conn.bytes()) > 0 })
	if len(conn.bytes()) != 4 {
		t.Fatalf("expected 4 bytes (one 16-bit I/Q pair), got %d", len(conn.bytes()))
	}
	sess.Writer.Close()
}

func TestFanoutSkipsQueuedSessions(t *testing.T) {
	roster := NewRoster(1, 0, "TEST", nil)
	active, activeConn := newActiveSession(t, compressor.ModeNone, 16)
	queued, queuedConn := newActiveSession(t, compressor.ModeNone, 16)

	roster.Add(active, func(*Session) {})
	roster.Add(queued, func(*Session) {}) // second session exceeds maxClients=1, becomes Queued

	fanout := NewFanout(roster, newTestChannel())
	fanout.Deliver([]sample.IQ{{I: 500 << 8, Q: 500 << 8}})

	waitFor(t, func() bool { return len(activeConn.bytes()) > 0 })
	if len(queuedConn.bytes()) != 0 {
		t.Fatalf("expected queued session to receive no samples, got %d bytes", len(queuedConn.bytes()))
	}
	active.Writer.Close()
	queued.Writer.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met within deadline")
	}
}

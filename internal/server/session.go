// Package server implements ServerListener, ClientSession, and
// ServerControlPlane (spec §4.2, §4.7): accepting client connections,
// admission/queueing, per-session settings, and inbound command
// dispatch. Grounded on the teacher's SessionManager (session.go) for the
// map-based roster-under-a-mutex shape, adapted from "one session per
// radiod channel" to "one session per streaming client".
package server

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/remoteiq/internal/compressor"
)

// AdmissionState is a ClientSession's place in the admission state
// machine (spec §3's ClientSession, §4.2's admission policy).
type AdmissionState int

const (
	StateQueued AdmissionState = iota
	StateActive
	StateClosing
)

func (s AdmissionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "queued"
	}
}

// Conn is the minimal transport contract a ClientSession writes to and
// reads commands from; both a plain net.Conn and a WebSocket connection
// satisfy it (see wsconn.go).
type Conn interface {
	net.Conn
}

// Session holds everything ServerListener and ServerControlPlane track
// for one connected client (spec §3's ClientSession).
type Session struct {
	ID         string
	RemoteAddr string
	Conn       Conn

	mu             sync.Mutex
	state          AdmissionState
	queuePosition  int
	createdAt      time.Time
	deadlineTimer  *time.Timer
	pendingWrites  int64 // bytes queued but not yet flushed, for backpressure accounting
	flacHeaderSent bool

	CompressionMode compressor.Mode
	Writer          *FrameWriter // non-blocking socket writer, set once by handleConn

	// BitDepth and RemoteControl are the only settings that stay
	// per-session (spec §5): every admitted session shares one channel
	// DSP pipeline and one gain/squelch/NCO-offset state, owned by
	// ControlPlane and run once per block by Fanout, not duplicated per
	// client. BitDepth is purely a wire-framing choice (how Fanout
	// quantises/encodes the shared post-DSP block for this session), and
	// RemoteControl is an admission-time authorization flag, so both stay
	// here rather than moving to the shared pipeline.
	BitDepth      int
	RemoteControl bool
}

// NewSession constructs a Queued session; ServerListener decides whether
// to immediately promote it to Active based on current roster size.
func NewSession(conn Conn) *Session {
	return &Session{
		ID:         uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
		Conn:       conn,
		state:      StateQueued,
		createdAt:  time.Now(),
	}
}

func (s *Session) State() AdmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st AdmissionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) QueuePosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queuePosition
}

func (s *Session) setQueuePosition(p int) {
	s.mu.Lock()
	s.queuePosition = p
	s.mu.Unlock()
}

// StartDeadline arms a one-shot timer that calls onExpire once the
// session's time limit elapses (spec §4.2's per-session timer).
func (s *Session) StartDeadline(limit time.Duration, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
	}
	if limit <= 0 {
		return
	}
	s.deadlineTimer = time.AfterFunc(limit, onExpire)
}

// StopDeadline cancels the session's timer, if any (idempotent).
func (s *Session) StopDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
}

// HasSentFLACHeader reports whether the cached FLAC header has already
// been replayed to this session.
func (s *Session) HasSentFLACHeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flacHeaderSent
}

func (s *Session) MarkFLACHeaderSent() {
	s.mu.Lock()
	s.flacHeaderSent = true
	s.mu.Unlock()
}

// AddPendingWrite adjusts the count of bytes handed to the socket whose
// Write has not yet returned: FrameWriter adds a frame's full length
// before writing it and subtracts the same length afterwards, whether or
// not the write succeeded. Nothing passes this count to
// metrics.SetFillRatio.
func (s *Session) AddPendingWrite(delta int64) {
	s.mu.Lock()
	s.pendingWrites += delta
	s.mu.Unlock()
}

func (s *Session) PendingWrites() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingWrites
}

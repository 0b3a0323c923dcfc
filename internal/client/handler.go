package client

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/cwsl/remoteiq/internal/protocol"
	"github.com/cwsl/remoteiq/internal/sample"
)

// State is ClientTCPHandler's connection lifecycle state (spec §4.6).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReadingMeta
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReadingMeta:
		return "reading_meta"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// reconnectDelay is the client's fixed reconnect backoff (spec §5: "a
// fixed 500 ms; there is no exponential growth").
const reconnectDelay = 500 * time.Millisecond

// tickInterval is the periodic socket-drain tick (spec §4.6: "≈50 ms").
const tickInterval = 50 * time.Millisecond

// Sink is the downstream DSP consumer a Handler feeds decoded samples
// to. The real demodulation/decimation chain is an external collaborator
// out of scope for this repository (spec §1's Non-goals); Handler only
// needs somewhere to deliver widened samples and a way to stop that
// consumer on disconnect (spec §4.6: "the downstream DSP engine is
// stopped").
type Sink interface {
	Push(samples []sample.IQ)
	Stop()
}

// Handler implements ClientTCPHandler: connect, negotiate meta-data,
// prefill, and stream (spec §4.6). Grounded on the state-machine shape of
// remotetcpinputtcphandler.cpp's connect/dataReadyRead/disconnected
// slots, ported from Qt signal/slot dispatch to a single goroutine
// running an explicit state machine and a ticker, the idiomatic Go
// equivalent of a timer-driven socket-drain loop.
type Handler struct {
	addr            string
	useTLS          bool
	overrideRemote  bool
	prefillSeconds  float64

	settings *SettingsStore
	fifo     *FIFO
	sink     Sink

	mu    sync.Mutex
	state State
	conn  net.Conn

	stop chan struct{}
	done chan struct{}

	prefilled bool
}

// New builds a Handler targeting addr (host:port). fifoBytes sizes the
// destination ring buffer (the original's m_tcpBuf is sized to
// `fifoSize*2*4` bytes of raw-read headroom at the widest bit depth).
func New(addr string, useTLS bool, overrideRemote bool, prefillSeconds float64, fifoBytes int, sink Sink, initial Settings) *Handler {
	return &Handler{
		addr:           addr,
		useTLS:         useTLS,
		overrideRemote: overrideRemote,
		prefillSeconds: prefillSeconds,
		settings:       NewSettingsStore(initial, overrideRemote),
		fifo:           NewFIFO(fifoBytes),
		sink:           sink,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// State returns the handler's current lifecycle state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handler) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Settings exposes the handler's settings store (for CLI/UI surfaces and
// override-mode pushes).
func (h *Handler) Settings() *SettingsStore { return h.settings }

// Run drives the full Disconnected→Connecting→ReadingMeta→Streaming
// cycle, reconnecting automatically after any error, until Stop is
// called.
func (h *Handler) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			return
		default:
		}

		if err := h.runOnce(); err != nil {
			log.Printf("client: %v", err)
		}

		h.setState(StateDisconnected)
		h.sink.Stop()
		select {
		case <-h.stop:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// Stop signals Run to exit and waits for it to do so.
func (h *Handler) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Handler) runOnce() error {
	h.setState(StateConnecting)
	conn, err := net.DialTimeout("tcp", h.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	defer conn.Close()

	h.setState(StateReadingMeta)
	if err := h.readMeta(conn); err != nil {
		return fmt.Errorf("meta negotiation: %w", err)
	}

	h.setState(StateStreaming)
	h.prefilled = false
	return h.stream(conn)
}

// readMeta dispatches on the server's leading 4-byte magic (spec §4.6).
func (h *Handler) readMeta(conn net.Conn) error {
	magic := make([]byte, 4)
	if _, err := readFull(conn, magic); err != nil {
		return err
	}

	switch {
	case bytes.Equal(magic, []byte("RTL0")):
		rest := make([]byte, protocol.RTL0MetaSize-4)
		if _, err := readFull(conn, rest); err != nil {
			return err
		}
		return nil // RTL0 carries no settings beyond tuner id/gain stages

	case bytes.Equal(magic, []byte("SDRA")):
		rest := make([]byte, protocol.SDRAMetaSize-4)
		if _, err := readFull(conn, rest); err != nil {
			return err
		}
		full := append(magic, rest...)
		meta, err := protocol.DecodeSDRAMeta(full)
		if err != nil {
			return err
		}
		return h.applySDRAMeta(conn, meta)

	default:
		return h.readSpyServerMeta(conn, magic)
	}
}

func (h *Handler) applySDRAMeta(conn net.Conn, meta protocol.SDRAMeta) error {
	next := Settings{
		CenterFrequency:   meta.CenterFrequency,
		PPMCorrection:     meta.PPMCorrection,
		DeviceSampleRate:  meta.DeviceSampleRate,
		DecimationLog2:    meta.DecimationLog2,
		Gain:              meta.Gain,
		RFBandwidth:       meta.RFBandwidth,
		ChannelFreqOffset: meta.ChannelFreqOffset,
		ChannelGain:       int32(meta.ChannelGain),
		ChannelSampleRate: meta.ChannelSampleRate,
		BitDepth:          meta.SampleBitDepth,
		SquelchEnabled:    meta.Flags&protocol.SDRAFlagSquelchEnabled != 0,
		Squelch:           meta.Squelch,
		SquelchGate:       meta.SquelchGate,
	}

	if applied := h.settings.ApplyFromServer(next); !applied {
		return h.pushLocalSettings(conn)
	}
	return nil
}

// pushLocalSettings sends the locally authoritative channel settings to
// the server as four command frames: channel frequency offset, channel
// gain, channel sample rate, and sample bit depth. Device-level fields
// (center frequency, PPM, device rate, decimation, gains, RF bandwidth)
// and the squelch settings are not pushed.
func (h *Handler) pushLocalSettings(conn net.Conn) error {
	s := h.settings.Get()
	frames := [][5]byte{
		protocol.EncodeCmd(protocol.SetChannelFreqOffset, uint32(s.ChannelFreqOffset)),
		protocol.EncodeCmd(protocol.SetChannelGain, uint32(s.ChannelGain)),
		protocol.EncodeCmd(protocol.SetChannelSampleRate, s.ChannelSampleRate),
		protocol.EncodeCmd(protocol.SetSampleBitDepth, s.BitDepth),
	}
	for _, f := range frames {
		if _, err := conn.Write(f[:]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) readSpyServerMeta(conn net.Conn, firstFour []byte) error {
	rest := make([]byte, protocol.SpyServerHeaderSize-4)
	if _, err := readFull(conn, rest); err != nil {
		return err
	}
	hdr, err := protocol.DecodeSpyServerHeader(append(firstFour, rest...))
	if err != nil {
		return err
	}
	if hdr.Message != protocol.SpyServerMsgDevice {
		return fmt.Errorf("expected spy-server Device message, got %d", hdr.Message)
	}
	devBody := make([]byte, hdr.Size)
	if _, err := readFull(conn, devBody); err != nil {
		return err
	}
	if _, err := protocol.DecodeSpyServerDeviceInfo(devBody); err != nil {
		return err
	}

	stateHdrBuf := make([]byte, protocol.SpyServerHeaderSize)
	if _, err := readFull(conn, stateHdrBuf); err != nil {
		return err
	}
	stateHdr, err := protocol.DecodeSpyServerHeader(stateHdrBuf)
	if err != nil {
		return err
	}
	if stateHdr.Message != protocol.SpyServerMsgState {
		return fmt.Errorf("expected spy-server State message, got %d", stateHdr.Message)
	}
	stateBody := make([]byte, stateHdr.Size)
	if _, err := readFull(conn, stateBody); err != nil {
		return err
	}
	state, err := protocol.DecodeSpyServerStateInfo(stateBody)
	if err != nil {
		return err
	}

	s := h.settings.Get()
	s.CenterFrequency = uint64(state.CenterFrequency)
	s.DeviceSampleRate = state.IQSampleRate
	h.settings.ApplyFromServer(s)

	// Issue the command sequence required to begin streaming (spec
	// §4.6): set the center frequency and sample rate the State body
	// reported, then request streaming at the configured bit depth.
	freq := protocol.EncodeCmd(protocol.SetCenterFrequency, state.CenterFrequency)
	rate := protocol.EncodeCmd(protocol.SetSampleRate, state.IQSampleRate)
	depth := protocol.EncodeCmd(protocol.SetSampleBitDepth, s.BitDepth)
	for _, f := range [][5]byte{freq, rate, depth} {
		if _, err := conn.Write(f[:]); err != nil {
			return err
		}
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// stream runs the periodic-tick socket drain and prefill discipline
// until the connection errors (spec §4.6).
func (h *Handler) stream(conn net.Conn) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	errCh := make(chan error, 1)
	go h.readerLoop(conn, errCh)

	lastTick := time.Now()
	for {
		select {
		case <-h.stop:
			return nil
		case err := <-errCh:
			return err
		case now := <-ticker.C:
			h.emitBudget(now.Sub(lastTick))
			lastTick = now
		}
	}
}

// readerLoop continuously drains whatever the socket has ready into the
// FIFO; stream's ticker governs how much of that buffered data is
// released downstream so the prefill/budget discipline holds even though
// the socket read itself is unbounded.
func (h *Handler) readerLoop(conn net.Conn, errCh chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			h.fifo.Write(buf[:n])
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// emitBudget implements spec §4.6's prefill/per-tick-budget discipline:
// before prefill is satisfied nothing is released; afterwards, up to
// elapsed×sample_rate samples are drained from the FIFO and pushed to
// the sink, clamped to what's actually buffered.
func (h *Handler) emitBudget(elapsed time.Duration) {
	s := h.settings.Get()
	bytesPerPair := sample.BytesPerPair(int(s.BitDepth))
	if bytesPerPair == 0 || s.ChannelSampleRate == 0 {
		return
	}

	prefillBytes := int(h.prefillSeconds * float64(s.ChannelSampleRate) * float64(bytesPerPair))
	avail, _ := h.fifo.FillRatio()

	if !h.prefilled {
		if prefillBytes > 0 && avail < prefillBytes {
			return
		}
		h.prefilled = true
	} else if prefillBytes > 0 && avail < prefillBytes/10 {
		// Dropped below 10% of the prefill level: re-prime rather than
		// starve the downstream consumer sample-by-sample.
		h.prefilled = false
		return
	}

	budgetSamples := int(elapsed.Seconds() * float64(s.ChannelSampleRate))
	budgetBytes := budgetSamples * bytesPerPair
	if budgetBytes <= 0 {
		return
	}
	if budgetBytes > avail {
		budgetBytes = avail - avail%bytesPerPair
	}
	if budgetBytes <= 0 {
		return
	}

	raw := make([]byte, budgetBytes)
	n := h.fifo.Read(raw)
	raw = raw[:n-n%bytesPerPair]

	out := make([]sample.IQ, 0, len(raw)/bytesPerPair)
	for off := 0; off+bytesPerPair <= len(raw); off += bytesPerPair {
		out = append(out, sample.Widen(raw[off:off+bytesPerPair], int(s.BitDepth)))
	}
	if len(out) > 0 {
		h.sink.Push(out)
	}
}

package server

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwsl/remoteiq/internal/blacklist"
	"github.com/cwsl/remoteiq/internal/compressor"
	"github.com/cwsl/remoteiq/internal/metrics"
	"github.com/cwsl/remoteiq/internal/protocol"
	"github.com/cwsl/remoteiq/internal/ratelimit"
)

// Options configures Listener (spec §4.2, §6's CLI surface).
type Options struct {
	Callsign          string
	MaxClients        int
	TimeLimit         time.Duration
	RemoteControl     bool
	IQOnly            bool
	Compression       compressor.Mode
	CompressionLevel  int
	BlockSize         int
	DeviceSampleRate  uint32
	MaxSampleRate     uint32
	BitDepth          int
	WriteQueueDepth   int
	WriteDeadline     time.Duration
}

// upgrader is shared across every WSS accept; gorilla recommends a single
// long-lived Upgrader rather than one per request, the way the teacher's
// package-level `upgrader` in websocket.go does it.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener accepts plain-TCP and WSS clients, applies the admission
// policy of spec §4.2 (blacklist, rate limit, roster admission), and
// owns each Session for its lifetime. Grounded on the teacher's
// SessionManager (session.go) for the map-under-a-mutex roster shape and
// on websocket.go for the WSS upgrade path, fused here into one listener
// since this protocol (unlike the teacher's audio/spectrum WebSocket
// split) has a single client surface regardless of transport.
type Listener struct {
	opts      Options
	roster    *Roster
	blacklist *blacklist.List
	connLimit *ratelimit.IPLimiter
	metrics   *metrics.Registry
	control   *ControlPlane
	fanout    *Fanout
	codec     compressor.IQBlockEncoder // shared FLAC/zlib encoder; nil when Compression == ModeNone

	flacHeader []byte // captured at startup if Compression == ModeFLAC
}

// NewListener wires a Listener. fanout is the shared delivery pipeline
// every admitted session's FLAC/zlib frames flow through (spec §5); codec
// is the single shared encoder instance registered for every session of
// that compression mode, nil when Compression is ModeNone. flacHeader, if
// non-nil, is replayed to every session before its first compressed-IQ
// frame (spec §4.4's late-joiner header replay).
func NewListener(opts Options, roster *Roster, bl *blacklist.List, limiter *ratelimit.IPLimiter,
	reg *metrics.Registry, control *ControlPlane, fanout *Fanout, codec compressor.IQBlockEncoder, flacHeader []byte) *Listener {
	return &Listener{
		opts:       opts,
		roster:     roster,
		blacklist:  bl,
		connLimit:  limiter,
		metrics:    reg,
		control:    control,
		fanout:     fanout,
		codec:      codec,
		flacHeader: flacHeader,
	}
}

// ListenTCP accepts rtl_tcp-compatible plain-TCP clients until ctx is
// cancelled or the listener errors.
func (l *Listener) ListenTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("server: listening for TCP clients on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Printf("server: accept error: %v", err)
				continue
			}
		}
		go l.handleConn(conn)
	}
}

// ServeWSS runs an HTTPS server upgrading every request on path to a
// WSS client, blocking until ctx is cancelled.
func (l *Listener) ServeWSS(ctx context.Context, addr, path, certPath, keyPath string) error {
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("server: websocket upgrade failed: %v", err)
			return
		}
		l.handleConn(newWSConn(conn))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("server: listening for WSS clients on %s%s", addr, path)
	err := srv.ListenAndServeTLS(certPath, keyPath)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleConn runs the full lifetime of one accepted connection: admission
// checks, meta-data handshake, roster registration, and the command read
// loop, until the client disconnects (spec §4.2).
func (l *Listener) handleConn(conn net.Conn) {
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	if l.blacklist != nil && l.blacklist.IsBanned(host) {
		if l.metrics != nil {
			l.metrics.IncBlacklisted()
		}
		conn.Write(protocol.EncodeBlacklistedMessage())
		conn.Close()
		return
	}
	if l.connLimit != nil && !l.connLimit.Allow(host) {
		if l.metrics != nil {
			l.metrics.IncRateLimited()
		}
		conn.Close()
		return
	}
	if l.metrics != nil {
		l.metrics.IncConnections()
	}

	sess := NewSession(conn)
	sess.CompressionMode = l.opts.Compression
	sess.RemoteControl = l.opts.RemoteControl
	sess.BitDepth = l.opts.BitDepth

	writer := NewFrameWriter(sess, l.opts.WriteQueueDepth, l.opts.WriteDeadline)
	sess.Writer = writer
	defer writer.Close()

	l.sendMeta(sess, writer)

	if l.fanout != nil && l.codec != nil && sess.CompressionMode != compressor.ModeNone {
		l.fanout.RegisterCodec(sess.ID, l.codec)
	}

	state, queueMsg := l.roster.Add(sess, func(s *Session) { l.expire(s, writer) })
	sess.setState(state)
	if queueMsg != "" {
		writer.Write(protocol.EncodeSendMessage(protocol.ChatMessage{Text: queueMsg}))
	}
	if state == StateActive && l.flacHeader != nil && sess.CompressionMode == compressor.ModeFLAC {
		writer.Write(protocol.DataFrame{Opcode: protocol.DataIQFLAC, Body: l.flacHeader}.Encode())
		sess.MarkFLACHeaderSent()
	}

	defer func() {
		l.roster.Remove(sess, func(s *Session) {
			l.promote(s)
		}, func(s *Session, msg string) {
			l.notify(s, msg)
		}, func(s *Session) {
			l.expire(s, s.Writer)
		})
		if l.fanout != nil {
			l.fanout.UnregisterCodec(sess.ID)
		}
		conn.Close()
		if l.metrics != nil {
			l.metrics.IncDisconnections()
			l.metrics.DeleteSession(sess.ID)
		}
	}()

	l.readLoop(sess)
}

// sendMeta writes the SDRA 128-byte meta-data block immediately on
// accept (spec §3); plain rtl_tcp clients that only understand RTL0 are
// expected to simply ignore the trailing bytes they don't recognise, the
// way rtl_tcp's own clients skip unknown tail bytes. ChannelSampleRate
// reflects the single shared channel's current rate (spec §5), not
// anything private to sess.
func (l *Listener) sendMeta(sess *Session, writer *FrameWriter) {
	rate := uint32(l.opts.DeviceSampleRate)
	if l.control != nil {
		rate = uint32(l.control.ChannelSampleRate())
	}
	meta := protocol.EncodeSDRAMeta(protocol.SDRAMeta{
		DeviceSampleRate:  l.opts.DeviceSampleRate,
		ChannelSampleRate: rate,
		SampleBitDepth:    uint32(sess.BitDepth),
		ProtocolRevision:  1,
	})
	writer.Write(meta[:])
}

// readLoop decodes fixed 5-byte commands (and the variable-length
// sendMessage tail) off sess's connection until it errs or closes.
func (l *Listener) readLoop(sess *Session) {
	buf := make([]byte, protocol.CommandSize)
	for {
		if _, err := readFull(sess.Conn, buf); err != nil {
			return
		}
		cmd, err := protocol.DecodeCmd(buf)
		if err != nil {
			return
		}

		if cmd.Opcode == protocol.SendMessage {
			tail := make([]byte, cmd.Payload)
			if _, err := readFull(sess.Conn, tail); err != nil {
				return
			}
			msg, err := protocol.DecodeSendMessageTail(tail)
			if err != nil {
				continue
			}
			l.control.DispatchChat(sess, msg)
			continue
		}

		l.control.Dispatch(sess, cmd)
	}
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

// expire is the roster deadline callback (spec §4.2's per-session time
// limit): politely tell the client, then drop the connection so the
// deferred cleanup in handleConn runs the normal disconnect path.
func (l *Listener) expire(sess *Session, writer *FrameWriter) {
	writer.Write(protocol.EncodeSendMessage(protocol.ChatMessage{Text: "session time limit reached"}))
	sess.Conn.Close()
}

// promote and notify are Roster.Remove's callbacks. Both write through
// sess.Writer — the same non-blocking FrameWriter handleConn's goroutine
// created for sess — rather than the raw socket, so a promotion or queue
// renumbering notice never blocks the goroutine running Roster.Remove
// (which releases the roster lock before calling them).
func (l *Listener) promote(sess *Session) {
	log.Printf("server: promoted session %s to active", sess.ID)
	if l.flacHeader != nil && sess.CompressionMode == compressor.ModeFLAC && !sess.HasSentFLACHeader() {
		sess.Writer.Write(protocol.DataFrame{Opcode: protocol.DataIQFLAC, Body: l.flacHeader}.Encode())
		sess.MarkFLACHeaderSent()
	}
}

func (l *Listener) notify(sess *Session, msg string) {
	if msg == "" || sess.Writer == nil {
		return
	}
	sess.Writer.Write(protocol.EncodeSendMessage(protocol.ChatMessage{Text: msg}))
}

// tlsConfigFromFiles loads a cert/key pair into a tls.Config. It is
// unexported and nothing calls it; ServeWSS loads the pair itself through
// ListenAndServeTLS.
func tlsConfigFromFiles(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

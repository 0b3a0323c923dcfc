package server

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a *websocket.Conn to the Conn (net.Conn-shaped) interface
// Session expects, so the same framing and admission code serves plain
// TCP and WSS clients alike (spec §3's "WSS as an alternate transport").
// Grounded on the teacher's wsConn in websocket.go, trimmed to the
// read/write surface Session actually needs — the teacher's spectrum
// write-channel and stats aggregator belong to its own audio pipeline,
// not this protocol's framing.
type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	readMu  sync.Mutex
	reader  []byte // unread remainder of the current WebSocket message
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{conn: c}
}

// Read drains the current binary message before asking gorilla for the
// next one, so a caller doing small fixed-size reads (5-byte commands)
// sees a continuous byte stream rather than one []byte per WS frame.
func (w *wsConn) Read(p []byte) (int, error) {
	w.readMu.Lock()
	defer w.readMu.Unlock()

	for len(w.reader) == 0 {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		w.reader = msg
	}
	n := copy(p, w.reader)
	w.reader = w.reader[n:]
	return n, nil
}

func (w *wsConn) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error                       { return w.conn.Close() }
func (w *wsConn) LocalAddr() net.Addr                { return w.conn.LocalAddr() }
func (w *wsConn) RemoteAddr() net.Addr               { return w.conn.RemoteAddr() }
func (w *wsConn) SetDeadline(t time.Time) error {
	if err := w.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(t)
}
func (w *wsConn) SetReadDeadline(t time.Time) error  { return w.conn.SetReadDeadline(t) }
func (w *wsConn) SetWriteDeadline(t time.Time) error { return w.conn.SetWriteDeadline(t) }

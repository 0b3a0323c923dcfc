package server

import (
	"sync/atomic"
	"time"
)

// FrameWriter owns a Session's outbound socket and performs every write
// off of a dedicated goroutine via a bounded channel, so a slow client
// never blocks the sample pipeline feeding it (spec §5: "socket writes
// are non-blocking; if the underlying socket cannot accept more bytes,
// the write is truncated and the remainder is discarded for that
// tick"). Grounded on wsConn's spectrumWriteChan pattern in the
// teacher's websocket.go, generalized from WebSocket binary frames to
// a plain net.Conn/Conn byte stream.
type FrameWriter struct {
	sess *Session

	queue      chan []byte
	done       chan struct{}
	dropped    int64
	writeDelay time.Duration
}

// NewFrameWriter starts the writer goroutine for sess. depth bounds how
// many pending frames may queue before new frames are dropped; writeDelay
// bounds how long a single Write may block the goroutine (a stalled TCP
// peer's receive window filling up) before it's abandoned.
func NewFrameWriter(sess *Session, depth int, writeDelay time.Duration) *FrameWriter {
	if depth <= 0 {
		depth = 1
	}
	fw := &FrameWriter{
		sess:       sess,
		queue:      make(chan []byte, depth),
		done:       make(chan struct{}),
		writeDelay: writeDelay,
	}
	go fw.run()
	return fw
}

func (fw *FrameWriter) run() {
	defer close(fw.done)
	for frame := range fw.queue {
		fw.sess.AddPendingWrite(int64(len(frame)))
		if fw.writeDelay > 0 {
			fw.sess.Conn.SetWriteDeadline(time.Now().Add(fw.writeDelay))
		}
		_, err := fw.sess.Conn.Write(frame)
		fw.sess.AddPendingWrite(-int64(len(frame)))
		if err != nil {
			return
		}
	}
}

// Write enqueues frame for the writer goroutine. It never blocks: if the
// queue is full the frame is dropped and Write reports false, matching
// the "discard the remainder for that tick" policy rather than letting a
// slow reader stall every session sharing the sample pipeline.
func (fw *FrameWriter) Write(frame []byte) bool {
	select {
	case fw.queue <- frame:
		return true
	default:
		atomic.AddInt64(&fw.dropped, 1)
		return false
	}
}

// Dropped reports how many frames have been discarded due to backpressure.
func (fw *FrameWriter) Dropped() int64 {
	return atomic.LoadInt64(&fw.dropped)
}

// Close stops accepting new frames and waits for the writer goroutine to
// drain and exit.
func (fw *FrameWriter) Close() {
	close(fw.queue)
	<-fw.done
}

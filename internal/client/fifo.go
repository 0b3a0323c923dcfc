package client

import "sync"

// FIFO is the destination ring buffer the periodic-tick reader drains
// socket bytes into and the downstream DSP consumer drains samples out
// of (spec §4.6, §5). Grounded on the original's m_sampleFifo sizing
// convention (`size()*2*4` bytes of headroom for the raw read buffer),
// expressed here as a plain byte ring since FormatConverter.Widen
// already knows how to turn raw bytes back into sample.IQ.
type FIFO struct {
	mu   sync.Mutex
	data []byte
	r, w int
	full bool
}

// NewFIFO allocates a ring of capacity bytes.
func NewFIFO(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{data: make([]byte, capacity)}
}

// Len returns the number of unread bytes currently buffered.
func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.len()
}

func (f *FIFO) len() int {
	if f.full {
		return len(f.data)
	}
	if f.w >= f.r {
		return f.w - f.r
	}
	return len(f.data) - f.r + f.w
}

// Free returns the number of bytes that can still be written before the
// ring is full.
func (f *FIFO) Free() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data) - f.len()
}

// Cap returns the FIFO's total byte capacity.
func (f *FIFO) Cap() int {
	return len(f.data)
}

// Write appends p to the ring, truncating if there isn't enough free
// space: bytes beyond Free() are dropped. Handler's readerLoop writes each
// socket read as it arrives, without checking Free() first.
func (f *FIFO) Write(p []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	free := len(f.data) - f.len()
	n := len(p)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		f.data[f.w] = p[i]
		f.w = (f.w + 1) % len(f.data)
	}
	if n > 0 {
		f.full = f.w == f.r
	}
	return n
}

// Read drains up to len(p) bytes into p, returning how many were copied.
func (f *FIFO) Read(p []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	avail := f.len()
	n := len(p)
	if n > avail {
		n = avail
	}
	for i := 0; i < n; i++ {
		p[i] = f.data[f.r]
		f.r = (f.r + 1) % len(f.data)
	}
	if n > 0 {
		f.full = false
	}
	return n
}

// Reset empties the FIFO, used when re-priming after a prefill underrun
// (spec §4.6: "re-primes after any drop below 10% of that level").
func (f *FIFO) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.r, f.w, f.full = 0, 0, false
}

// FillRatio reports (bytes, capacity) for the fill-ratio metric (spec
// §4.9's client-side socket-buffer/sample-FIFO fill ratios).
func (f *FIFO) FillRatio() (bytes, capacity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.len(), len(f.data)
}

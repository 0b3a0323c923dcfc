// Package replay implements ReplayBuffer (spec §4.8): a circular buffer
// of the last N seconds of pre-compression interleaved I/Q samples,
// supporting negative-offset seek, loop-mode write-without-overwrite,
// and WAV export. Grounded on sdrbase/dsp/replaybuffer.h's template
// ReplayBuffer<T>, generalized here to a fixed 16-bit interleaved I/Q
// element instead of the original's four sample-type conv() overloads
// (this module only ever stores the already-widened internal samples).
package replay

import (
	"sync"

	"github.com/cwsl/remoteiq/internal/sample"
)

// Buffer is a circular store of interleaved (I, Q) int16 pairs.
type Buffer struct {
	mu sync.Mutex

	data       []int16
	write      int
	read       int
	readOffset int
	count      int
	loop       bool
}

// New allocates a buffer sized to hold lengthSeconds of audio at
// sampleRate, per spec §4.8.
func New(lengthSeconds float64, sampleRate int) *Buffer {
	n := int(lengthSeconds*float64(sampleRate)) * 2
	if n < 2 {
		n = 2
	}
	return &Buffer{data: make([]int16, n)}
}

// Resize changes the buffer's duration at the given sample rate,
// preserving the most recently written samples (mirrors setSize's
// memmove-based resize in the original).
func (b *Buffer) Resize(lengthSeconds float64, sampleRate int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	newSize := int(lengthSeconds*float64(sampleRate)) * 2
	if newSize < 2 {
		newSize = 2
	}
	if newSize == len(b.data) {
		return
	}

	keep := b.count
	if keep > newSize {
		keep = newSize
	}
	recent := make([]int16, keep)
	start := (b.write - keep + len(b.data)*2) % len(b.data)
	for i := 0; i < keep; i++ {
		recent[i] = b.data[(start+i)%len(b.data)]
	}

	newData := make([]int16, newSize)
	copy(newData, recent)
	b.data = newData
	b.write = keep % newSize
	b.count = keep
}

// SetLoop enables or disables loop mode: while looping, Write advances
// the write pointer without copying new samples in, so Read continues to
// replay the buffer's existing contents (spec §4.8's "write-on-replay
// advances the head without overwriting").
func (b *Buffer) SetLoop(loop bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loop = loop
}

// Write appends interleaved I/Q samples to the circular buffer.
func (b *Buffer) Write(iq []sample.IQ) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range iq {
		pair := [2]int16{quantise16(s.I), quantise16(s.Q)}
		for _, v := range pair {
			if !b.loop {
				b.data[b.write] = v
			}
			b.write++
			if b.write >= len(b.data) {
				b.write = 0
			}
			b.count++
			if b.count > len(b.data) {
				b.count = len(b.data)
			}
		}
	}
}

func quantise16(x int32) int16 {
	v := x / 256
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SetReadOffset seeks the read head to offset samples (I/Q pairs) behind
// the current write head (0 = the write head itself; offset n starts the
// next Read at the first of the last n samples written), per spec §4.8's
// "negative seek from the write head".
func (b *Buffer) SetReadOffset(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.readOffset = offset
	back := offset * 2
	if back > len(b.data) {
		back = len(b.data)
	}
	read := b.write - back
	for read < 0 {
		read += len(b.data)
	}
	b.read = read
}

// ReadOffset reports the currently configured read offset in samples.
func (b *Buffer) ReadOffset() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readOffset
}

// UsingReplay reports whether the buffer is actively replaying rather
// than passing live writes straight through (spec §4.8).
func (b *Buffer) UsingReplay() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readOffset > 0 || b.loop
}

// Clear zeroes the buffer and resets its sample count.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.data {
		b.data[i] = 0
	}
	b.count = 0
}

// Read returns up to count raw interleaved int16 values starting at the
// current read position, advancing it as the original's read() does.
// The actual number returned may be less than count at the wrap point.
func (b *Buffer) Read(count int) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.data) - b.read
	if n > count {
		n = count
	}
	out := make([]int16, n)
	copy(out, b.data[b.read:b.read+n])
	b.read += n
	if b.read >= len(b.data) {
		b.read = 0
	}
	return out
}


package replay

import (
	"encoding/binary"
	"fmt"
	"os"
)

// SaveWAV writes the buffer's current contents to a 16-bit stereo PCM WAV
// file (I as the left channel, Q as the right), matching spec §4.8's
// save_wav(path, rate, center_freq). The header-then-backpatch shape is
// grounded on WAVWriter in clients/go/radio_client.go, generalized from
// mono to stereo since this buffer always stores interleaved I/Q pairs.
// centerFreq is accepted for API parity with the original (which tags the
// WAV's auxiliary chunk with it) but is not yet written to any chunk;
// ordinary WAV readers need only the standard fmt/data chunks this
// implementation produces.
func (b *Buffer) SaveWAV(path string, sampleRate uint32, centerFreq uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("replay: create %s: %w", path, err)
	}
	defer f.Close()

	const (
		channels      = 2
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := uint16(channels * bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("replay: write header: %w", err)
	}

	offset := (b.write + len(b.data) - b.count) % len(b.data)
	sampleBuf := make([]byte, 4)
	dataSize := 0
	for i := 0; i < b.count; i += 2 {
		idx := (i + offset) % len(b.data)
		l := b.data[idx]
		r := b.data[(idx+1)%len(b.data)]
		binary.LittleEndian.PutUint16(sampleBuf[0:2], uint16(l))
		binary.LittleEndian.PutUint16(sampleBuf[2:4], uint16(r))
		if _, err := f.Write(sampleBuf); err != nil {
			return fmt.Errorf("replay: write sample: %w", err)
		}
		dataSize += 4
	}

	if _, err := f.Seek(4, 0); err != nil {
		return fmt.Errorf("replay: seek riff size: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(36+dataSize)); err != nil {
		return fmt.Errorf("replay: patch riff size: %w", err)
	}
	if _, err := f.Seek(40, 0); err != nil {
		return fmt.Errorf("replay: seek data size: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(dataSize)); err != nil {
		return fmt.Errorf("replay: patch data size: %w", err)
	}

	return nil
}

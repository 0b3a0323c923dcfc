package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CommandSize is the fixed width of every control-channel command except
// sendMessage's variable-length tail (spec §3, §4.1).
const CommandSize = 5

// Command is a decoded {opcode, payload} pair. Payload is interpreted as
// a big-endian uint32 for most opcodes; setIQSquelch and setIQSquelchGate
// carry an IEEE-754 big-endian float32 in the same four bytes instead.
type Command struct {
	Opcode  Opcode
	Payload uint32
}

// EncodeCmd lays out {opcode, big-endian u32} into a fixed 5-byte frame.
// This mirrors RemoteTCPProtocol::encodeUInt32 in the original plugin:
// the control channel is always big-endian, independent of the payload
// body's little-endian sample encoding (spec §4.1).
func EncodeCmd(op Opcode, value uint32) [CommandSize]byte {
	var buf [CommandSize]byte
	buf[0] = byte(op)
	binary.BigEndian.PutUint32(buf[1:], value)
	return buf
}

// EncodeCmdF32 is EncodeCmd for the two float-payload opcodes
// (setIQSquelch, setIQSquelchGate), bit-reinterpreting the float32 as a
// big-endian uint32 rather than scaling it.
func EncodeCmdF32(op Opcode, value float32) [CommandSize]byte {
	return EncodeCmd(op, math.Float32bits(value))
}

// DecodeCmd parses a fixed 5-byte frame back into its opcode and raw u32
// payload. Callers that expect a float payload reinterpret the bits with
// math.Float32frombits; DecodeCmd itself never guesses the payload type.
func DecodeCmd(buf []byte) (Command, error) {
	if len(buf) < CommandSize {
		return Command{}, fmt.Errorf("decode command: %w", ErrTruncated)
	}
	return Command{
		Opcode:  Opcode(buf[0]),
		Payload: binary.BigEndian.Uint32(buf[1:CommandSize]),
	}, nil
}

// PayloadFloat32 reinterprets c.Payload as an IEEE-754 binary32, for the
// squelch/squelch-gate opcodes.
func (c Command) PayloadFloat32() float32 {
	return math.Float32frombits(c.Payload)
}

// PayloadInt32 reinterprets c.Payload as a signed two's-complement value,
// for opcodes whose payload is a signed quantity (setChannelFreqOffset,
// setChannelGain).
func (c Command) PayloadInt32() int32 {
	return int32(c.Payload)
}

// EncodeUInt64 writes a big-endian uint64 at p[0:8], used by meta-data
// block construction (centre frequency in the SDRA block).
func EncodeUInt64(p []byte, v uint64) {
	binary.BigEndian.PutUint64(p, v)
}

// ExtractUInt64 reads a big-endian uint64 from p[0:8].
func ExtractUInt64(p []byte) uint64 {
	return binary.BigEndian.Uint64(p)
}

// EncodeInt16 writes a big-endian int16 at p[0:2], used for the four
// per-stage gain fields in the SDRA meta-data block.
func EncodeInt16(p []byte, v int16) {
	binary.BigEndian.PutUint16(p, uint16(v))
}

// ExtractInt16 reads a big-endian int16 from p[0:2].
func ExtractInt16(p []byte) int16 {
	return int16(binary.BigEndian.Uint16(p))
}

// EncodeFloat32 writes a big-endian IEEE-754 float32 at p[0:4].
func EncodeFloat32(p []byte, v float32) {
	binary.BigEndian.PutUint32(p, math.Float32bits(v))
}

// ExtractFloat32 reads a big-endian IEEE-754 float32 from p[0:4].
func ExtractFloat32(p []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(p))
}

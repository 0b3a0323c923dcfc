package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ChatMessage is the decoded body of a sendMessage frame (spec §3): a
// broadcast flag followed by two zero-terminated UTF-8 strings. It is
// also used server-side for blacklist/queue/time-limit notifications
// (spec §7's "user-visible failures surfaced as chat-channel messages").
type ChatMessage struct {
	Broadcast bool
	Callsign  string
	Text      string
}

// EncodeSendMessage builds the full sendMessage wire frame: opcode, a
// big-endian u32 length of the tail, then {broadcast byte, callsign\0,
// text\0}.
func EncodeSendMessage(msg ChatMessage) []byte {
	tail := make([]byte, 0, 1+len(msg.Callsign)+1+len(msg.Text)+1)
	if msg.Broadcast {
		tail = append(tail, 1)
	} else {
		tail = append(tail, 0)
	}
	tail = append(tail, []byte(msg.Callsign)...)
	tail = append(tail, 0)
	tail = append(tail, []byte(msg.Text)...)
	tail = append(tail, 0)

	frame := make([]byte, 1+4+len(tail))
	frame[0] = byte(SendMessage)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(tail)))
	copy(frame[5:], tail)
	return frame
}

// DecodeSendMessageTail parses the variable-length tail of a sendMessage
// frame (everything after the 5-byte command header, once the declared
// length has been read off the wire).
func DecodeSendMessageTail(tail []byte) (ChatMessage, error) {
	if len(tail) < 1 {
		return ChatMessage{}, fmt.Errorf("decode sendMessage: %w", ErrTruncated)
	}
	broadcast := tail[0] != 0
	rest := tail[1:]

	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return ChatMessage{}, fmt.Errorf("decode sendMessage callsign: %w", ErrTruncated)
	}
	callsign := string(rest[:i])
	rest = rest[i+1:]

	j := bytes.IndexByte(rest, 0)
	if j < 0 {
		return ChatMessage{}, fmt.Errorf("decode sendMessage text: %w", ErrTruncated)
	}
	text := string(rest[:j])

	return ChatMessage{Broadcast: broadcast, Callsign: callsign, Text: text}, nil
}

// EncodeBlacklistedMessage builds the sendBlacklistedMessage frame: opcode
// followed by a zero-length payload (spec §6).
func EncodeBlacklistedMessage() []byte {
	frame := make([]byte, 5)
	frame[0] = byte(SendBlacklistedMessage)
	return frame
}

// DataFrame is the generic {opcode, length, body} shape used for
// compressed IQ, position, and direction frames (spec §3). Raw dataIQ
// frames are the one exception: they carry no opcode or length on the
// wire, so they are never represented as a DataFrame.
type DataFrame struct {
	Opcode Opcode
	Body   []byte
}

// Encode serialises a DataFrame as {opcode byte, length u32 BE, body}.
func (f DataFrame) Encode() []byte {
	buf := make([]byte, 1+4+len(f.Body))
	buf[0] = byte(f.Opcode)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.Body)))
	copy(buf[5:], f.Body)
	return buf
}

// EncodePosition builds a dataPosition frame: opcode, length=12, then
// three big-endian float32 values (latitude, longitude, altitude).
func EncodePosition(lat, lon, alt float32) []byte {
	body := make([]byte, 12)
	EncodeFloat32(body[0:4], lat)
	EncodeFloat32(body[4:8], lon)
	EncodeFloat32(body[8:12], alt)
	return DataFrame{Opcode: DataPosition, Body: body}.Encode()
}

// EncodeDirection builds a dataDirection frame: opcode, length=16, then
// {u32 isotropic, f32 azimuth, f32 elevation}. Only the frame encoding
// lives here; no settings or config field of this module carries the
// isotropic flag, and the "isotrophic" spelling is not accepted anywhere.
func EncodeDirection(isotropic bool, az, el float32) []byte {
	body := make([]byte, 16)
	if isotropic {
		binary.BigEndian.PutUint32(body[0:4], 1)
	}
	EncodeFloat32(body[4:8], az)
	EncodeFloat32(body[8:12], el)
	return DataFrame{Opcode: DataDirection, Body: body}.Encode()
}

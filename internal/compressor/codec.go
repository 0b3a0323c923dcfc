package compressor

import "github.com/cwsl/remoteiq/internal/protocol"

// Mode identifies which wire compression is active for a session,
// matching spec §6's "compression" config values.
type Mode int

const (
	ModeNone Mode = iota
	ModeFLAC
	ModeZLib
)

// Opcode returns the data-frame opcode used to tag frames produced under
// this mode, per spec §6's opcode table.
func (m Mode) Opcode() protocol.Opcode {
	switch m {
	case ModeFLAC:
		return protocol.DataIQFLAC
	case ModeZLib:
		return protocol.DataIQzlib
	default:
		return protocol.DataIQ
	}
}

func (m Mode) String() string {
	switch m {
	case ModeFLAC:
		return "flac"
	case ModeZLib:
		return "zlib"
	default:
		return "none"
	}
}

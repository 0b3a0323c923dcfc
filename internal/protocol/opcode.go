// Package protocol implements the byte-exact rtl_tcp-compatible control
// protocol, the SDRA extensions, and the spy-server variant used to
// negotiate and stream IQ samples between a remoteiq server and client.
package protocol

import "fmt"

// Opcode identifies the first byte of every command frame on the control
// channel. Values below 0x80 are inherited from osmocom rtl_tcp; 0xc0 and
// above are SDRangel-style extensions.
type Opcode uint8

const (
	SetCenterFrequency    Opcode = 0x01
	SetSampleRate         Opcode = 0x02
	SetTunerGainMode      Opcode = 0x03
	SetTunerGain          Opcode = 0x04
	SetFrequencyCorrection Opcode = 0x05
	SetTunerIFGain        Opcode = 0x06
	SetAGCMode            Opcode = 0x08
	SetDirectSampling     Opcode = 0x09
	SetBiasTee            Opcode = 0x0e
	SetTunerBandwidth     Opcode = 0x40
	SetDCOffsetRemoval    Opcode = 0xc0
	SetIQCorrection       Opcode = 0xc1
	SetDecimation         Opcode = 0xc2
	SetChannelSampleRate  Opcode = 0xc3
	SetChannelFreqOffset  Opcode = 0xc4
	SetChannelGain        Opcode = 0xc5
	SetSampleBitDepth     Opcode = 0xc6
	SetIQSquelchEnabled   Opcode = 0xc7
	SetIQSquelch          Opcode = 0xc8
	SetIQSquelchGate      Opcode = 0xc9
	SendMessage           Opcode = 0xd0
	SendBlacklistedMessage Opcode = 0xd1
	DataIQ                Opcode = 0xf0
	DataIQFLAC            Opcode = 0xf1
	DataIQzlib            Opcode = 0xf2
	DataPosition          Opcode = 0xf3
	DataDirection         Opcode = 0xf4
)

var opcodeNames = map[Opcode]string{
	SetCenterFrequency:     "setCenterFrequency",
	SetSampleRate:          "setSampleRate",
	SetTunerGainMode:       "setTunerGainMode",
	SetTunerGain:           "setTunerGain",
	SetFrequencyCorrection: "setFrequencyCorrection",
	SetTunerIFGain:         "setTunerIFGain",
	SetAGCMode:             "setAGCMode",
	SetDirectSampling:      "setDirectSampling",
	SetBiasTee:             "setBiasTee",
	SetTunerBandwidth:      "setTunerBandwidth",
	SetDCOffsetRemoval:     "setDCOffsetRemoval",
	SetIQCorrection:        "setIQCorrection",
	SetDecimation:          "setDecimation",
	SetChannelSampleRate:   "setChannelSampleRate",
	SetChannelFreqOffset:   "setChannelFreqOffset",
	SetChannelGain:         "setChannelGain",
	SetSampleBitDepth:      "setSampleBitDepth",
	SetIQSquelchEnabled:    "setIQSquelchEnabled",
	SetIQSquelch:           "setIQSquelch",
	SetIQSquelchGate:       "setIQSquelchGate",
	SendMessage:            "sendMessage",
	SendBlacklistedMessage: "sendBlacklistedMessage",
	DataIQ:                 "dataIQ",
	DataIQFLAC:             "dataIQFLAC",
	DataIQzlib:             "dataIQzlib",
	DataPosition:           "dataPosition",
	DataDirection:          "dataDirection",
}

// String renders the opcode's protocol name, or a hex fallback for values
// not in the known table (used for UnknownOpcode log lines).
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(o))
}

// Known reports whether o is a recognised opcode.
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

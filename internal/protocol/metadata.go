package protocol

import (
	"encoding/binary"
	"fmt"
)

// RTL0MetaSize and SDRAMetaSize are the two server meta-data block sizes
// spec §3 defines. They are sent exactly once, server-to-client,
// immediately on accept, before any command or data frame.
const (
	RTL0MetaSize = 12
	SDRAMetaSize = 128
)

// RTL0Meta is the rtl_tcp-compatible meta-data block: magic, tuner id,
// gain-stage count.
type RTL0Meta struct {
	TunerID    uint32
	GainStages uint32
}

// EncodeRTL0Meta lays out the 12-byte "RTL0" block.
func EncodeRTL0Meta(m RTL0Meta) [RTL0MetaSize]byte {
	var buf [RTL0MetaSize]byte
	copy(buf[0:4], "RTL0")
	binary.BigEndian.PutUint32(buf[4:8], m.TunerID)
	binary.BigEndian.PutUint32(buf[8:12], m.GainStages)
	return buf
}

// DecodeRTL0Meta parses a 12-byte "RTL0" block. The magic is not
// re-validated here; ClientTCPHandler dispatches on the first four bytes
// before calling this.
func DecodeRTL0Meta(buf []byte) (RTL0Meta, error) {
	if len(buf) < RTL0MetaSize {
		return RTL0Meta{}, fmt.Errorf("decode RTL0 meta: %w", ErrTruncated)
	}
	return RTL0Meta{
		TunerID:    binary.BigEndian.Uint32(buf[4:8]),
		GainStages: binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// SDRAFlags bitfield, per spec §6.
const (
	SDRAFlagBiasTee          uint32 = 1 << 0
	SDRAFlagDirectSampling   uint32 = 1 << 1
	SDRAFlagAGC              uint32 = 1 << 2
	SDRAFlagDCBlock          uint32 = 1 << 3
	SDRAFlagIQCorrection     uint32 = 1 << 4
	SDRAFlagSquelchEnabled   uint32 = 1 << 5
	SDRAFlagRemoteControl    uint32 = 1 << 6
	SDRAFlagNotIQOnly        uint32 = 1 << 7
)

// SDRAMeta is the 128-byte "SDRA" extended meta-data block (spec §3, §6):
// wider device state, channel-selection parameters, squelch, and the
// protocol revision.
type SDRAMeta struct {
	TunerID            uint32
	CenterFrequency    uint64
	PPMCorrection      int32
	Flags              uint32
	DeviceSampleRate   uint32
	DecimationLog2     uint32
	Gain               [4]int16
	RFBandwidth        uint32
	ChannelFreqOffset  int32
	ChannelGain        uint32
	ChannelSampleRate  uint32
	SampleBitDepth     uint32
	ProtocolRevision   uint32
	Squelch            float32
	SquelchGate        float32
}

// EncodeSDRAMeta lays out the 128-byte "SDRA" block per the field offsets
// in spec §6. Bytes 72..127 are reserved padding, left zero.
func EncodeSDRAMeta(m SDRAMeta) [SDRAMetaSize]byte {
	var buf [SDRAMetaSize]byte
	copy(buf[0:4], "SDRA")
	binary.BigEndian.PutUint32(buf[4:8], m.TunerID)
	EncodeUInt64(buf[8:16], m.CenterFrequency)
	binary.BigEndian.PutUint32(buf[16:20], uint32(m.PPMCorrection))
	binary.BigEndian.PutUint32(buf[20:24], m.Flags)
	binary.BigEndian.PutUint32(buf[24:28], m.DeviceSampleRate)
	binary.BigEndian.PutUint32(buf[28:32], m.DecimationLog2)
	EncodeInt16(buf[32:34], m.Gain[0])
	EncodeInt16(buf[34:36], m.Gain[1])
	EncodeInt16(buf[36:38], m.Gain[2])
	EncodeInt16(buf[38:40], m.Gain[3])
	binary.BigEndian.PutUint32(buf[40:44], m.RFBandwidth)
	binary.BigEndian.PutUint32(buf[44:48], uint32(m.ChannelFreqOffset))
	binary.BigEndian.PutUint32(buf[48:52], m.ChannelGain)
	binary.BigEndian.PutUint32(buf[52:56], m.ChannelSampleRate)
	binary.BigEndian.PutUint32(buf[56:60], m.SampleBitDepth)
	binary.BigEndian.PutUint32(buf[60:64], m.ProtocolRevision)
	EncodeFloat32(buf[64:68], m.Squelch)
	EncodeFloat32(buf[68:72], m.SquelchGate)
	return buf
}

// DecodeSDRAMeta parses a 128-byte "SDRA" block.
func DecodeSDRAMeta(buf []byte) (SDRAMeta, error) {
	if len(buf) < SDRAMetaSize {
		return SDRAMeta{}, fmt.Errorf("decode SDRA meta: %w", ErrTruncated)
	}
	return SDRAMeta{
		TunerID:           binary.BigEndian.Uint32(buf[4:8]),
		CenterFrequency:   ExtractUInt64(buf[8:16]),
		PPMCorrection:     int32(binary.BigEndian.Uint32(buf[16:20])),
		Flags:             binary.BigEndian.Uint32(buf[20:24]),
		DeviceSampleRate:  binary.BigEndian.Uint32(buf[24:28]),
		DecimationLog2:    binary.BigEndian.Uint32(buf[28:32]),
		Gain: [4]int16{
			ExtractInt16(buf[32:34]),
			ExtractInt16(buf[34:36]),
			ExtractInt16(buf[36:38]),
			ExtractInt16(buf[38:40]),
		},
		RFBandwidth:       binary.BigEndian.Uint32(buf[40:44]),
		ChannelFreqOffset: int32(binary.BigEndian.Uint32(buf[44:48])),
		ChannelGain:       binary.BigEndian.Uint32(buf[48:52]),
		ChannelSampleRate: binary.BigEndian.Uint32(buf[52:56]),
		SampleBitDepth:    binary.BigEndian.Uint32(buf[56:60]),
		ProtocolRevision:  binary.BigEndian.Uint32(buf[60:64]),
		Squelch:           ExtractFloat32(buf[64:68]),
		SquelchGate:       ExtractFloat32(buf[68:72]),
	}, nil
}

// Spy-server message kinds for the fixed header (little-endian, unlike
// the rest of the control protocol — spec §3, "Spy-server variant").
const (
	SpyServerMsgDevice uint32 = 0
	SpyServerMsgState  uint32 = 1
)

const SpyServerHeaderSize = 20

// SpyServerHeader is the fixed 20-byte {id, message, reserved, reserved,
// size} header preceding a Device or State body, all little-endian.
type SpyServerHeader struct {
	ID      uint32
	Message uint32
	Size    uint32
}

// EncodeSpyServerHeader lays out the 20-byte spy-server header.
func EncodeSpyServerHeader(h SpyServerHeader) [SpyServerHeaderSize]byte {
	var buf [SpyServerHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.ID)
	binary.LittleEndian.PutUint32(buf[4:8], h.Message)
	// buf[8:16] reserved, left zero
	binary.LittleEndian.PutUint32(buf[16:20], h.Size)
	return buf
}

// DecodeSpyServerHeader parses the 20-byte spy-server header.
func DecodeSpyServerHeader(buf []byte) (SpyServerHeader, error) {
	if len(buf) < SpyServerHeaderSize {
		return SpyServerHeader{}, fmt.Errorf("decode spy-server header: %w", ErrTruncated)
	}
	return SpyServerHeader{
		ID:      binary.LittleEndian.Uint32(buf[0:4]),
		Message: binary.LittleEndian.Uint32(buf[4:8]),
		Size:    binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// SpyServerDeviceInfo is the body of a Device message: device type,
// serial number, and the device's sample-rate, bandwidth, decimation,
// gain, frequency-range and IQ-format limits.
// Field layout is supplemented from the original remotetcpinput plugin's
// spyserver.h, which the distilled spec names but does not fully
// tabulate (spec §4.6).
type SpyServerDeviceInfo struct {
	DeviceType        uint32
	DeviceSerial      uint32
	MaximumSampleRate uint32
	MaximumBandwidth  uint32
	DecimationStages  uint32
	GainStageCount    uint32
	MaximumGainIndex  uint32
	MinimumFrequency  uint32
	MaximumFrequency  uint32
	Resolution        uint32
	MinimumIQDecimation uint32
	ForcedIQFormat    uint32
}

const SpyServerDeviceInfoSize = 48

// EncodeSpyServerDeviceInfo lays out the 48-byte Device body,
// little-endian like the rest of the spy-server variant.
func EncodeSpyServerDeviceInfo(d SpyServerDeviceInfo) [SpyServerDeviceInfoSize]byte {
	var buf [SpyServerDeviceInfoSize]byte
	fields := []uint32{
		d.DeviceType, d.DeviceSerial, d.MaximumSampleRate, d.MaximumBandwidth,
		d.DecimationStages, d.GainStageCount, d.MaximumGainIndex, d.MinimumFrequency,
		d.MaximumFrequency, d.Resolution, d.MinimumIQDecimation, d.ForcedIQFormat,
	}
	for i, v := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return buf
}

// DecodeSpyServerDeviceInfo parses a 48-byte Device body.
func DecodeSpyServerDeviceInfo(buf []byte) (SpyServerDeviceInfo, error) {
	if len(buf) < SpyServerDeviceInfoSize {
		return SpyServerDeviceInfo{}, fmt.Errorf("decode spy-server device info: %w", ErrTruncated)
	}
	read := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[i*4 : i*4+4]) }
	return SpyServerDeviceInfo{
		DeviceType:          read(0),
		DeviceSerial:        read(1),
		MaximumSampleRate:   read(2),
		MaximumBandwidth:    read(3),
		DecimationStages:    read(4),
		GainStageCount:      read(5),
		MaximumGainIndex:    read(6),
		MinimumFrequency:    read(7),
		MaximumFrequency:    read(8),
		Resolution:          read(9),
		MinimumIQDecimation: read(10),
		ForcedIQFormat:      read(11),
	}, nil
}

// SpyServerStateInfo is the body of a State message: the device's
// current tuning and capture configuration, as reported on connect and
// after any change (supplemented per spec §4.6's reference to a State
// body without a field layout).
type SpyServerStateInfo struct {
	ADCCount        uint32
	CenterFrequency uint32
	IQSampleRate    uint32
	GainIndex       uint32
	DeviceFlags     uint32
}

const SpyServerStateInfoSize = 20

// EncodeSpyServerStateInfo lays out the 20-byte State body.
func EncodeSpyServerStateInfo(s SpyServerStateInfo) [SpyServerStateInfoSize]byte {
	var buf [SpyServerStateInfoSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], s.ADCCount)
	binary.LittleEndian.PutUint32(buf[4:8], s.CenterFrequency)
	binary.LittleEndian.PutUint32(buf[8:12], s.IQSampleRate)
	binary.LittleEndian.PutUint32(buf[12:16], s.GainIndex)
	binary.LittleEndian.PutUint32(buf[16:20], s.DeviceFlags)
	return buf
}

// DecodeSpyServerStateInfo parses a 20-byte State body.
func DecodeSpyServerStateInfo(buf []byte) (SpyServerStateInfo, error) {
	if len(buf) < SpyServerStateInfoSize {
		return SpyServerStateInfo{}, fmt.Errorf("decode spy-server state info: %w", ErrTruncated)
	}
	return SpyServerStateInfo{
		ADCCount:        binary.LittleEndian.Uint32(buf[0:4]),
		CenterFrequency: binary.LittleEndian.Uint32(buf[4:8]),
		IQSampleRate:    binary.LittleEndian.Uint32(buf[8:12]),
		GainIndex:       binary.LittleEndian.Uint32(buf[12:16]),
		DeviceFlags:     binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

package eeg

import (
	"encoding/binary"
	"fmt"
)

// Packet types on the data (notify) characteristic
const (
	PacketTypeDataChunk    byte = 0x66
	PacketTypeDeviceConfig byte = 0xDD
)

// Control opcodes on the command (write) characteristic
const (
	CmdStartStreaming byte = 0xAA
	CmdStopStreaming  byte = 0x5B
	CmdTriggerPulse   byte = 0xC1
)

const (
	ChannelCount    = 8
	SamplesPerChunk = 25 // 250 SPS / 10 Hz

	SampleRecordSize = ChannelCount*2 + 4 // 8 x int16 + trigger state + 3 reserved
	ChunkHeaderSize  = 4                  // type + start index (LE) + sample count
	ChunkPacketSize  = ChunkHeaderSize + SamplesPerChunk*SampleRecordSize

	DeviceConfigHeaderSize = 8 // type + channel count + 6 reserved
	ElectrodeRecordSize    = 10
	DeviceConfigPacketSize = DeviceConfigHeaderSize + ChannelCount*ElectrodeRecordSize

	// ATT framing overhead on top of the largest packet.
	TransportOverhead = 3
	DefaultMTU        = 23
	RequiredMTU       = ChunkPacketSize + TransportOverhead
)

// Sample is one multichannel acquisition sample. Channel values are the
// saturated int16 encoding of a microvolt reading; the trigger state carries
// the low 4 bits of the emulated GPIO latch.
type Sample struct {
	Signals      [ChannelCount]int16
	TriggerState byte
	Reserved     [3]byte
}

// ElectrodeConfig describes one channel in the device config packet.
// Name is truncated to 8 bytes on the wire.
type ElectrodeConfig struct {
	Name string
	Type byte
}

// DefaultElectrodes is the fixed montage the emulated device reports.
var DefaultElectrodes = [ChannelCount]ElectrodeConfig{
	{Name: "CH1"}, {Name: "CH2"}, {Name: "CH3"}, {Name: "CH4"},
	{Name: "CH5"}, {Name: "CH6"}, {Name: "CH7"}, {Name: "CH8"},
}

// EncodeDeviceConfigPacket serializes the 0xDD device config packet.
func EncodeDeviceConfigPacket(electrodes [ChannelCount]ElectrodeConfig) []byte {
	buf := make([]byte, DeviceConfigPacketSize)
	buf[0] = PacketTypeDeviceConfig
	buf[1] = ChannelCount
	for i, e := range electrodes {
		off := DeviceConfigHeaderSize + i*ElectrodeRecordSize
		copy(buf[off:off+8], e.Name)
		buf[off+8] = e.Type
	}
	return buf
}

// DecodeDeviceConfigPacket deserializes a 0xDD packet.
func DecodeDeviceConfigPacket(data []byte) (int, []ElectrodeConfig, error) {
	if len(data) < DeviceConfigPacketSize {
		return 0, nil, fmt.Errorf("device config packet too short: %d bytes", len(data))
	}
	if data[0] != PacketTypeDeviceConfig {
		return 0, nil, fmt.Errorf("unexpected packet type 0x%02x", data[0])
	}
	channels := int(data[1])
	electrodes := make([]ElectrodeConfig, 0, ChannelCount)
	for i := 0; i < ChannelCount; i++ {
		off := DeviceConfigHeaderSize + i*ElectrodeRecordSize
		name := data[off : off+8]
		end := 0
		for end < len(name) && name[end] != 0 {
			end++
		}
		electrodes = append(electrodes, ElectrodeConfig{
			Name: string(name[:end]),
			Type: data[off+8],
		})
	}
	return channels, electrodes, nil
}

// EncodeChunkPacket serializes the 0x66 data chunk packet.
func EncodeChunkPacket(startIndex uint16, samples *[SamplesPerChunk]Sample) []byte {
	buf := make([]byte, ChunkPacketSize)
	buf[0] = PacketTypeDataChunk
	binary.LittleEndian.PutUint16(buf[1:3], startIndex)
	buf[3] = SamplesPerChunk
	for i := range samples {
		off := ChunkHeaderSize + i*SampleRecordSize
		for ch, v := range samples[i].Signals {
			binary.LittleEndian.PutUint16(buf[off+ch*2:], uint16(v))
		}
		buf[off+16] = samples[i].TriggerState
		copy(buf[off+17:off+20], samples[i].Reserved[:])
	}
	return buf
}

// DecodeChunkPacket deserializes a 0x66 packet.
func DecodeChunkPacket(data []byte) (uint16, []Sample, error) {
	if len(data) < ChunkPacketSize {
		return 0, nil, fmt.Errorf("chunk packet too short: %d bytes", len(data))
	}
	if data[0] != PacketTypeDataChunk {
		return 0, nil, fmt.Errorf("unexpected packet type 0x%02x", data[0])
	}
	startIndex := binary.LittleEndian.Uint16(data[1:3])
	count := int(data[3])
	if count != SamplesPerChunk {
		return 0, nil, fmt.Errorf("unexpected sample count %d", count)
	}
	samples := make([]Sample, count)
	for i := 0; i < count; i++ {
		off := ChunkHeaderSize + i*SampleRecordSize
		for ch := 0; ch < ChannelCount; ch++ {
			samples[i].Signals[ch] = int16(binary.LittleEndian.Uint16(data[off+ch*2:]))
		}
		samples[i].TriggerState = data[off+16]
		copy(samples[i].Reserved[:], data[off+17:off+20])
	}
	return startIndex, samples, nil
}

// Command is a decoded control write.
type Command struct {
	Opcode       byte
	TriggerClass byte
}

// ParseCommand decodes a control characteristic write. Empty writes and
// unknown opcodes return ok=false and are ignored by the caller.
func ParseCommand(data []byte) (Command, bool) {
	if len(data) == 0 {
		return Command{}, false
	}
	switch data[0] {
	case CmdStartStreaming, CmdStopStreaming:
		return Command{Opcode: data[0]}, true
	case CmdTriggerPulse:
		cmd := Command{Opcode: CmdTriggerPulse, TriggerClass: 1}
		if len(data) >= 2 {
			cmd.TriggerClass = data[1]
		}
		return cmd, true
	default:
		return Command{}, false
	}
}

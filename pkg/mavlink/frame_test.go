package mavlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16KnownVector(t *testing.T) {
	// CRC-16/MCRF4XX check value for "123456789".
	crc := newCRC16().updateBytes([]byte("123456789"))
	assert.Equal(t, uint16(0x6F91), uint16(crc))
}

func ftpFrame(t *testing.T, seq uint8, ftpPayload []byte) *Frame {
	t.Helper()

	payload := make([]byte, FTPPayloadSize)
	copy(payload, ftpPayload)
	msg := &FileTransferProtocol{
		TargetSystem:    1,
		TargetComponent: 1,
		Payload:         payload,
	}
	raw, err := msg.Marshal()
	require.NoError(t, err)

	return &Frame{
		Seq:         seq,
		SystemID:    255,
		ComponentID: 190,
		MsgID:       MsgIDFileTransferProtocol,
		Payload:     raw,
	}
}

func TestFrameRoundTrip(t *testing.T) {
	frame := ftpFrame(t, 7, []byte{0x01, 0x02, 0x03})

	encoded, err := frame.Encode()
	require.NoError(t, err)

	var parser Parser
	frames := parser.Push(encoded)
	require.Len(t, frames, 1)

	got := frames[0]
	assert.Equal(t, uint8(7), got.Seq)
	assert.Equal(t, uint8(255), got.SystemID)
	assert.Equal(t, uint8(190), got.ComponentID)
	assert.Equal(t, uint32(MsgIDFileTransferProtocol), got.MsgID)

	msg, err := UnmarshalFileTransferProtocol(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), msg.TargetSystem)
	assert.Len(t, msg.Payload, FTPPayloadSize)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, msg.Payload[:3])
}

func TestEncodeTrimsTrailingZeros(t *testing.T) {
	frame := ftpFrame(t, 0, []byte{0x01})

	encoded, err := frame.Encode()
	require.NoError(t, err)

	// Addressing (3) + one meaningful FTP byte; the 250 trailing zero
	// payload bytes must not be on the wire.
	assert.Less(t, len(encoded), headerLen+16+checksumLen)

	var parser Parser
	frames := parser.Push(encoded)
	require.Len(t, frames, 1)

	msg, err := UnmarshalFileTransferProtocol(frames[0].Payload)
	require.NoError(t, err)
	assert.Len(t, msg.Payload, FTPPayloadSize)
	assert.Equal(t, uint8(0x01), msg.Payload[0])
}

func TestParserResyncsAfterNoise(t *testing.T) {
	frame := ftpFrame(t, 3, []byte{0xAA, 0xBB})
	encoded, err := frame.Encode()
	require.NoError(t, err)

	stream := append([]byte{0x00, 0x42, magicV2, 0x01}, encoded...)

	var parser Parser
	var frames []*Frame
	// Feed byte by byte to exercise incremental reassembly.
	for _, b := range stream {
		frames = append(frames, parser.Push([]byte{b})...)
	}
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(3), frames[0].Seq)
}

func TestParserRejectsCorruptChecksum(t *testing.T) {
	frame := ftpFrame(t, 1, []byte{0x10, 0x20})
	encoded, err := frame.Encode()
	require.NoError(t, err)

	encoded[len(encoded)-1] ^= 0xFF

	var parser Parser
	assert.Empty(t, parser.Push(encoded))
}

func TestEncodeUnknownMessage(t *testing.T) {
	frame := &Frame{MsgID: 0, Payload: []byte{1}}
	_, err := frame.Encode()
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

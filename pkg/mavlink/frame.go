// Package mavlink implements the minimal subset of MAVLink v2 framing this
// client needs: encoding and decoding FILE_TRANSFER_PROTOCOL messages on a
// datagram or stream link. Signing and the wider message set are out of
// scope; unknown message ids are skipped, not errors.
package mavlink

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// magicV2 starts every MAVLink v2 frame.
	magicV2 = 0xFD

	// headerLen is the v2 header size: magic, len, incompat, compat, seq,
	// sysid, compid, msgid[3].
	headerLen = 10

	checksumLen = 2
)

// MsgIDFileTransferProtocol is the MAVLink message id of
// FILE_TRANSFER_PROTOCOL, the container that tunnels FTP payloads.
const MsgIDFileTransferProtocol = 110

// crcExtra per message id, seeded from the message definition. Only the
// messages this client handles are listed.
var crcExtras = map[uint32]byte{
	MsgIDFileTransferProtocol: 84,
}

// ErrUnknownMessage marks a well-formed frame whose message id this client
// has no definition (and therefore no crc_extra) for.
var ErrUnknownMessage = errors.New("unknown message id")

// errBadChecksum marks a frame that failed checksum validation.
var errBadChecksum = errors.New("bad frame checksum")

// Frame is one decoded MAVLink v2 frame.
type Frame struct {
	Seq         uint8
	SystemID    uint8
	ComponentID uint8
	MsgID       uint32

	// Payload is the full, zero-padded message payload. MAVLink v2 trims
	// trailing zero bytes on the wire; Decode restores them.
	Payload []byte
}

// Encode serializes the frame, trimming trailing zero payload bytes per
// the v2 wire format (at least one payload byte is always kept).
func (f *Frame) Encode() ([]byte, error) {
	extra, ok := crcExtras[f.MsgID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, f.MsgID)
	}
	if len(f.Payload) > 255 {
		return nil, fmt.Errorf("payload length %d exceeds 255", len(f.Payload))
	}

	payload := f.Payload
	for len(payload) > 1 && payload[len(payload)-1] == 0 {
		payload = payload[:len(payload)-1]
	}

	buf := make([]byte, headerLen+len(payload)+checksumLen)
	buf[0] = magicV2
	buf[1] = uint8(len(payload))
	// buf[2], buf[3]: incompat/compat flags, unused without signing
	buf[4] = f.Seq
	buf[5] = f.SystemID
	buf[6] = f.ComponentID
	buf[7] = uint8(f.MsgID)
	buf[8] = uint8(f.MsgID >> 8)
	buf[9] = uint8(f.MsgID >> 16)
	copy(buf[headerLen:], payload)

	crc := newCRC16().updateBytes(buf[1 : headerLen+len(payload)]).update(extra)
	binary.LittleEndian.PutUint16(buf[headerLen+len(payload):], uint16(crc))

	return buf, nil
}

// decodeFrame parses one complete frame from buf and returns it along with
// the number of bytes consumed. payloadLen is the full (padded) payload
// size to restore for the message id.
func decodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < headerLen+checksumLen {
		return nil, 0, fmt.Errorf("frame too short: %d bytes", len(buf))
	}
	if buf[0] != magicV2 {
		return nil, 0, fmt.Errorf("bad magic 0x%02x", buf[0])
	}

	payloadLen := int(buf[1])
	total := headerLen + payloadLen + checksumLen
	if len(buf) < total {
		return nil, 0, fmt.Errorf("truncated frame: have %d bytes, want %d", len(buf), total)
	}

	msgID := uint32(buf[7]) | uint32(buf[8])<<8 | uint32(buf[9])<<16
	extra, ok := crcExtras[msgID]
	if !ok {
		return nil, total, fmt.Errorf("%w: %d", ErrUnknownMessage, msgID)
	}

	crc := newCRC16().updateBytes(buf[1 : headerLen+payloadLen]).update(extra)
	wire := binary.LittleEndian.Uint16(buf[headerLen+payloadLen : total])
	if uint16(crc) != wire {
		return nil, total, fmt.Errorf("%w: computed 0x%04x, frame carries 0x%04x",
			errBadChecksum, uint16(crc), wire)
	}

	return &Frame{
		Seq:         buf[4],
		SystemID:    buf[5],
		ComponentID: buf[6],
		MsgID:       msgID,
		Payload:     append([]byte(nil), buf[headerLen:headerLen+payloadLen]...),
	}, total, nil
}

// Parser incrementally extracts frames from a byte stream. Bytes that are
// not part of a valid frame (line noise, unknown messages, checksum
// failures) are skipped; stream transports feed reads through one Parser,
// datagram transports use a fresh buffer per datagram.
type Parser struct {
	buf []byte
}

// Push appends raw link bytes and returns any complete, valid frames.
func (p *Parser) Push(data []byte) []*Frame {
	p.buf = append(p.buf, data...)

	var frames []*Frame
	for {
		// Seek the next magic byte.
		start := 0
		for start < len(p.buf) && p.buf[start] != magicV2 {
			start++
		}
		p.buf = p.buf[start:]
		if len(p.buf) < headerLen+checksumLen {
			return frames
		}

		frame, consumed, err := decodeFrame(p.buf)
		if err != nil {
			if consumed == 0 {
				// Incomplete: wait for more bytes.
				return frames
			}
			// Invalid or unknown frame: resync one byte past the magic
			// in case the magic itself was payload noise.
			p.buf = p.buf[1:]
			continue
		}

		p.buf = p.buf[consumed:]
		frames = append(frames, frame)
	}
}

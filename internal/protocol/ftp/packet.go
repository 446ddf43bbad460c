// Package ftp implements the client side of the MAVLink File Transfer
// Protocol: the packet codec, the sequence/session bookkeeping, the retry
// discipline and the chunked/burst transfer state machine that turn small,
// unordered, possibly-dropped request/response messages into reliable
// filesystem operations against a remote vehicle.
//
// The package deliberately knows nothing about transports. It consumes the
// Transport interface, which carries one already-framed FTP payload per
// message; MAVLink framing and link management live in pkg/mavlink and
// pkg/transport.
package ftp

import (
	"encoding/binary"
	"fmt"
)

// Wire layout of the FTP payload carried inside a FILE_TRANSFER_PROTOCOL
// message. All multi-byte fields are little-endian:
//
//	offset  size  field
//	0       2     seq_number
//	2       1     session
//	3       1     opcode
//	4       1     size (valid bytes in data)
//	5       1     req_opcode (opcode being answered, Ack/Nak only)
//	6       1     burst_complete (burst responses only)
//	7       1     padding
//	8       4     offset
//	12      239   data
const (
	// PayloadSize is the fixed total size of an encoded FTP payload.
	PayloadSize = 251

	// MaxDataSize is the capacity of the data field.
	MaxDataSize = PayloadSize - packetHeaderSize

	packetHeaderSize = 12
)

// Packet is the atomic protocol message. Packets are immutable once built;
// a retry resends the same encoded bytes, never a rebuilt packet.
type Packet struct {
	// Seq is assigned by the initiator and echoed by the responder.
	Seq uint16

	// Session identifies the open file handle; 0 means no session.
	Session uint8

	// OpCode is the requested command, or OpAck/OpNak for responses.
	OpCode OpCode

	// ReqOpCode echoes, in a response, the opcode it answers.
	ReqOpCode OpCode

	// BurstComplete marks the last packet of a burst-read stream.
	BurstComplete bool

	// Offset is the byte offset into the file or listing, or the entry
	// index for directory listings.
	Offset uint32

	// Data holds at most MaxDataSize valid bytes. The encoded size field
	// is derived from len(Data) unless Size overrides it.
	Data []byte

	// Size, when nonzero, overrides the derived data count in the size
	// field. ReadFile and BurstReadFile requests use it to carry the
	// requested byte count while the data field stays empty.
	Size uint8
}

// Encode serializes the packet into a fixed PayloadSize byte buffer.
// Unused data bytes are zero padding; the size field is the authoritative
// count of valid bytes.
func (p *Packet) Encode() ([]byte, error) {
	if len(p.Data) > MaxDataSize {
		return nil, fmt.Errorf("%w: data length %d exceeds capacity %d",
			ErrMalformedPacket, len(p.Data), MaxDataSize)
	}

	size := uint8(len(p.Data))
	if p.Size != 0 {
		size = p.Size
	}

	buf := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.Seq)
	buf[2] = p.Session
	buf[3] = uint8(p.OpCode)
	buf[4] = size
	buf[5] = uint8(p.ReqOpCode)
	if p.BurstComplete {
		buf[6] = 1
	}
	binary.LittleEndian.PutUint32(buf[8:12], p.Offset)
	copy(buf[packetHeaderSize:], p.Data)

	return buf, nil
}

// Decode parses a fixed-size payload buffer into a Packet.
// It fails with ErrMalformedPacket if the buffer length does not match
// PayloadSize or the declared size exceeds the data capacity.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) != PayloadSize {
		return nil, fmt.Errorf("%w: buffer length %d, want %d",
			ErrMalformedPacket, len(buf), PayloadSize)
	}

	size := int(buf[4])
	if size > MaxDataSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds capacity %d",
			ErrMalformedPacket, size, MaxDataSize)
	}

	data := make([]byte, size)
	copy(data, buf[packetHeaderSize:packetHeaderSize+size])

	return &Packet{
		Seq:           binary.LittleEndian.Uint16(buf[0:2]),
		Session:       buf[2],
		OpCode:        OpCode(buf[3]),
		ReqOpCode:     OpCode(buf[5]),
		BurstComplete: buf[6] != 0,
		Offset:        binary.LittleEndian.Uint32(buf[8:12]),
		Data:          data,
		Size:          uint8(size),
	}, nil
}

// String renders a compact summary for debug logging.
func (p *Packet) String() string {
	return fmt.Sprintf("seq=%d session=%d op=%s req=%s offset=%d size=%d burst_complete=%t",
		p.Seq, p.Session, p.OpCode, p.ReqOpCode, p.Offset, len(p.Data), p.BurstComplete)
}

// nakCode extracts the error code from a Nak response. A Nak with no data
// bytes is treated as an unknown failure.
func (p *Packet) nakCode() NakCode {
	if len(p.Data) == 0 {
		return NakFail
	}
	return NakCode(p.Data[0])
}

// nakErrno extracts the remote errno from a FailErrno Nak, if present.
func (p *Packet) nakErrno() int {
	if len(p.Data) >= 2 && p.nakCode() == NakFailErrno {
		return int(p.Data[1])
	}
	return 0
}

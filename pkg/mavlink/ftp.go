package mavlink

import "fmt"

// FTPPayloadSize is the fixed size of the FTP payload tunneled inside a
// FILE_TRANSFER_PROTOCOL message.
const FTPPayloadSize = 251

// fileTransferProtocolLen is the full message payload: three addressing
// bytes plus the FTP payload.
const fileTransferProtocolLen = 3 + FTPPayloadSize

// FileTransferProtocol is the MAVLink FILE_TRANSFER_PROTOCOL message: an
// opaque FTP payload plus addressing. The addressing bytes route the
// message on multi-vehicle networks; the FTP payload is never interpreted
// at this layer.
type FileTransferProtocol struct {
	TargetNetwork   uint8
	TargetSystem    uint8
	TargetComponent uint8
	Payload         []byte // exactly FTPPayloadSize bytes
}

// Marshal serializes the message payload.
func (m *FileTransferProtocol) Marshal() ([]byte, error) {
	if len(m.Payload) != FTPPayloadSize {
		return nil, fmt.Errorf("ftp payload length %d, want %d", len(m.Payload), FTPPayloadSize)
	}

	buf := make([]byte, fileTransferProtocolLen)
	buf[0] = m.TargetNetwork
	buf[1] = m.TargetSystem
	buf[2] = m.TargetComponent
	copy(buf[3:], m.Payload)
	return buf, nil
}

// UnmarshalFileTransferProtocol parses a FILE_TRANSFER_PROTOCOL message
// payload, restoring any trailing zero bytes the v2 framing trimmed.
func UnmarshalFileTransferProtocol(data []byte) (*FileTransferProtocol, error) {
	if len(data) > fileTransferProtocolLen {
		return nil, fmt.Errorf("message length %d exceeds %d", len(data), fileTransferProtocolLen)
	}

	padded := make([]byte, fileTransferProtocolLen)
	copy(padded, data)

	return &FileTransferProtocol{
		TargetNetwork:   padded[0],
		TargetSystem:    padded[1],
		TargetComponent: padded[2],
		Payload:         padded[3:],
	}, nil
}

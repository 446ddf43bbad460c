package ftp

import "fmt"

// OpCode identifies a MAVLink FTP command, or marks a payload as an
// acknowledgement (Ack) or negative acknowledgement (Nak).
type OpCode uint8

// MAVLink FTP opcodes.
const (
	OpNone             OpCode = 0
	OpTerminateSession OpCode = 1
	OpResetSessions    OpCode = 2
	OpListDirectory    OpCode = 3
	OpOpenFileRO       OpCode = 4
	OpReadFile         OpCode = 5
	OpCreateFile       OpCode = 6
	OpWriteFile        OpCode = 7
	OpRemoveFile       OpCode = 8
	OpCreateDirectory  OpCode = 9
	OpRemoveDirectory  OpCode = 10
	OpOpenFileWO       OpCode = 11
	OpTruncateFile     OpCode = 12
	OpRename           OpCode = 13
	OpCalcFileCRC32    OpCode = 14
	OpBurstReadFile    OpCode = 15
	OpAck              OpCode = 128
	OpNak              OpCode = 129
)

var opcodeNames = map[OpCode]string{
	OpNone:             "None",
	OpTerminateSession: "TerminateSession",
	OpResetSessions:    "ResetSessions",
	OpListDirectory:    "ListDirectory",
	OpOpenFileRO:       "OpenFileRO",
	OpReadFile:         "ReadFile",
	OpCreateFile:       "CreateFile",
	OpWriteFile:        "WriteFile",
	OpRemoveFile:       "RemoveFile",
	OpCreateDirectory:  "CreateDirectory",
	OpRemoveDirectory:  "RemoveDirectory",
	OpOpenFileWO:       "OpenFileWO",
	OpTruncateFile:     "TruncateFile",
	OpRename:           "Rename",
	OpCalcFileCRC32:    "CalcFileCRC32",
	OpBurstReadFile:    "BurstReadFile",
	OpAck:              "Ack",
	OpNak:              "Nak",
}

func (o OpCode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(o))
}

// NakCode is the remote-defined error code carried in the first data byte of
// a Nak response. Remote implementations may send codes this client does not
// know about; those render as Unknown(code) and are treated as failures.
type NakCode uint8

// Nak error codes.
const (
	NakNone                NakCode = 0  // No error
	NakFail                NakCode = 1  // Unknown failure
	NakFailErrno           NakCode = 2  // Command failed, errno in second data byte
	NakInvalidDataSize     NakCode = 3  // Payload size is invalid
	NakInvalidSession      NakCode = 4  // Session is not currently open
	NakNoSessionsAvailable NakCode = 5  // All available sessions are in use
	NakEOF                 NakCode = 6  // Offset past end of file for ListDirectory and ReadFile
	NakUnknownCommand      NakCode = 7  // Unknown command / opcode
	NakFileExists          NakCode = 8  // File/directory already exists
	NakFileProtected       NakCode = 9  // File/directory is write protected
	NakFileNotFound        NakCode = 10 // File/directory not found
)

var nakMessages = map[NakCode]string{
	NakNone:                "no error",
	NakFail:                "unknown failure",
	NakFailErrno:           "command failed on remote",
	NakInvalidDataSize:     "payload size is invalid",
	NakInvalidSession:      "session is not currently open",
	NakNoSessionsAvailable: "all available sessions are already in use",
	NakEOF:                 "offset past end of file",
	NakUnknownCommand:      "unknown command",
	NakFileExists:          "file or directory already exists",
	NakFileProtected:       "file or directory is write protected",
	NakFileNotFound:        "file or directory not found",
}

func (n NakCode) String() string {
	if msg, ok := nakMessages[n]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown(%d)", uint8(n))
}

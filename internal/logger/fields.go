package logger

// Standard field keys for structured logging. Use these consistently so
// link traces can be filtered by operation, sequence number or session.
const (
	// Protocol exchange
	KeyOpcode  = "opcode"  // FTP opcode of the request or response
	KeySeq     = "seq"     // Sequence number of the exchange
	KeySession = "session" // Remote-assigned session id
	KeyOffset  = "offset"  // Byte offset (or entry index for listings)
	KeySize    = "size"    // Byte count
	KeyAttempt = "attempt" // Retry attempt number

	// Operations
	KeyOperation = "operation" // User-level operation: list, read, write, ...
	KeyPath      = "path"      // Remote path the operation targets

	// Link
	KeyTarget = "target" // Connection target string
)

package ftp

import (
	"errors"
	"fmt"
)

// Sentinel errors for local protocol failures.
var (
	// ErrMalformedPacket marks a payload that could not be decoded.
	// Malformed responses are absorbed and retried by the engine; this
	// error only surfaces from Decode and Encode directly.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrRequestInFlight is returned when a request is issued while a
	// prior request is still awaiting its response.
	ErrRequestInFlight = errors.New("request already in flight")

	// ErrCancelled is returned when the caller cancelled the operation.
	ErrCancelled = errors.New("operation cancelled")
)

// TransportError wraps a send/receive failure from the underlying link.
// It is fatal to the current operation.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %q: transport: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError is returned when the retry budget for a single request is
// exhausted without a matching response.
type TimeoutError struct {
	Op       string
	Path     string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %q: no response after %d attempts", e.Op, e.Path, e.Attempts)
}

// ProtocolError marks an offset or session inconsistency beyond tolerance.
// The remote side is in a state this client cannot reconcile, so the
// operation aborts immediately instead of retrying.
type ProtocolError struct {
	Op     string
	Path   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %q: protocol violation: %s", e.Op, e.Path, e.Reason)
}

// RemoteError is a well-formed negative acknowledgement from the remote
// side, carrying its error code and, for FailErrno, the remote errno.
type RemoteError struct {
	Op    string
	Path  string
	Code  NakCode
	Errno int
}

func (e *RemoteError) Error() string {
	if e.Code == NakFailErrno && e.Errno != 0 {
		return fmt.Sprintf("%s %q: %s (errno %d)", e.Op, e.Path, e.Code, e.Errno)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.Path, e.Code)
}

// IsNotFound reports whether the remote rejected the request because the
// file or directory does not exist.
func (e *RemoteError) IsNotFound() bool { return e.Code == NakFileNotFound }

// IsExists reports whether the remote rejected the request because the
// target already exists.
func (e *RemoteError) IsExists() bool { return e.Code == NakFileExists }

// isRemoteEOF reports whether err is a Nak carrying the end-of-file code,
// which read and list operations remap to normal completion.
func isRemoteEOF(err error) bool {
	var rerr *RemoteError
	return errors.As(err, &rerr) && rerr.Code == NakEOF
}

// cancelledError builds the error surfaced when ctx was cancelled mid-flight.
func cancelledError(op, path string) error {
	return fmt.Errorf("%s %q: %w", op, path, ErrCancelled)
}

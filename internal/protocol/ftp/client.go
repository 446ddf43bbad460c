package ftp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickelectric/mavftp-cli/internal/logger"
)

// Transport is the boundary to the underlying telemetry link. Each payload
// is one already-framed, already-checksummed FTP message of up to
// PayloadSize bytes; framing, transport checksums and connection management
// are entirely external.
//
// The client owns the transport for the lifetime of the process. No other
// component may send on it, preventing sequence-number races.
type Transport interface {
	// Send transmits one FTP payload.
	Send(ctx context.Context, payload []byte) error

	// Recv blocks until the next FTP payload arrives or ctx is done.
	Recv(ctx context.Context) ([]byte, error)

	// Close releases the link.
	Close() error
}

// Config tunes the protocol engine. The zero value is usable; unset fields
// fall back to defaults chosen for a typical 57600-baud telemetry link.
type Config struct {
	// Timeout is the per-attempt wait for a response before the request
	// is resent.
	Timeout time.Duration

	// MaxRetries bounds resends of a single request. The total number of
	// attempts is MaxRetries+1.
	MaxRetries int

	// ChunkSize bounds the data bytes requested per read chunk and sent
	// per write chunk. Must be at most MaxDataSize. The useful value is
	// remote-implementation-dependent, hence configurable.
	ChunkSize int

	// BurstTimeout is the wait for the next streamed packet of a burst
	// read before the burst is resumed from the last contiguous offset.
	BurstTimeout time.Duration

	// BurstGapTolerance is how many out-of-order burst packets are
	// buffered before a gap is declared and the burst resumed.
	BurstGapTolerance int

	// Backoff is the wait policy between resends. Defaults to no wait
	// beyond the attempt timeout itself.
	Backoff Backoff

	// Progress, if set, is called as read and write transfers advance.
	// total is 0 when the final size is unknown.
	Progress func(transferred, total uint64)
}

// Default engine tuning.
const (
	DefaultTimeout      = 500 * time.Millisecond
	DefaultMaxRetries   = 5
	DefaultChunkSize    = MaxDataSize
	DefaultBurstTimeout = time.Second
	DefaultGapTolerance = 8
)

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > MaxDataSize {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.BurstTimeout <= 0 {
		cfg.BurstTimeout = DefaultBurstTimeout
	}
	if cfg.BurstGapTolerance <= 0 {
		cfg.BurstGapTolerance = DefaultGapTolerance
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ConstantBackoff(0)
	}
	return cfg
}

// Client executes filesystem operations against a remote MAVLink FTP
// server. All exported operations are safe for concurrent use but run one
// at a time: the protocol is a strict request/response ping-pong and the
// remote side is usually resource-constrained, so concurrent invocations
// are serialized behind a single operation lock rather than parallelized.
type Client struct {
	mu    sync.Mutex
	tr    Transport
	cfg   Config
	track tracker
}

// New creates a client over tr. The client assumes no prior session state;
// calling ResetSessions first is recommended to guarantee a clean slate
// after a desynchronized prior run.
func New(tr Transport, cfg Config) *Client {
	return &Client{tr: tr, cfg: cfg.withDefaults()}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.tr.Close()
}

// ResetSessions unconditionally instructs the remote to discard all session
// state. Used for recovery after a crashed or desynchronized client.
func (c *Client) ResetSessions(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.request(ctx, "reset", "", &Packet{OpCode: OpResetSessions})
	c.track.releaseSession()
	return err
}

// List returns the entries of a remote directory, sorted by name. Skipped
// entries are excluded. The listing may span many response packets; it is
// only final once the remote signals end-of-listing.
func (c *Client) List(ctx context.Context, path string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.newTransfer("list", path)
	return t.list(ctx)
}

// Read downloads a remote file and returns its contents. Burst mode is
// used by default; if the remote rejects the burst request the transfer
// falls back to chunked reads.
func (c *Client) Read(ctx context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.newTransfer("read", path)
	return t.read(ctx)
}

// Write uploads data to a remote file, creating or truncating it. Writes
// are always chunked: one WriteFile request per chunk, each acknowledged
// before the next is sent.
func (c *Client) Write(ctx context.Context, path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.newTransfer("write", path)
	return t.write(ctx, data)
}

// Create creates an empty remote file, truncating it if it exists.
func (c *Client) Create(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.newTransfer("create", path)
	if _, err := t.open(ctx, OpCreateFile); err != nil {
		return err
	}
	t.close(ctx)
	return t.err
}

// Mkdir creates a remote directory.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	return c.simpleOp(ctx, "mkdir", path, OpCreateDirectory, []byte(path))
}

// Rmdir removes an empty remote directory.
func (c *Client) Rmdir(ctx context.Context, path string) error {
	return c.simpleOp(ctx, "rmdir", path, OpRemoveDirectory, []byte(path))
}

// Remove deletes a remote file.
func (c *Client) Remove(ctx context.Context, path string) error {
	return c.simpleOp(ctx, "remove", path, OpRemoveFile, []byte(path))
}

// Rename moves a remote file or directory. Both paths travel in one
// request, NUL-separated.
func (c *Client) Rename(ctx context.Context, from, to string) error {
	data := append(append([]byte(from), 0), []byte(to)...)
	return c.simpleOp(ctx, "rename", from, OpRename, data)
}

// Truncate shrinks or zero-extends a remote file to size bytes.
func (c *Client) Truncate(ctx context.Context, path string, size uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.request(ctx, "truncate", path, &Packet{
		OpCode: OpTruncateFile,
		Offset: size,
		Data:   []byte(path),
	})
	return err
}

// Crc32 asks the remote to compute the file's CRC-32 (see Checksum for the
// exact variant) in a single request/response round trip.
func (c *Client) Crc32(ctx context.Context, path string) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.newTransfer("crc32", path)
	return t.crc32(ctx)
}

// simpleOp performs a single open/operate round trip with no session and
// no multi-chunk transfer.
func (c *Client) simpleOp(ctx context.Context, op, path string, opcode OpCode, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.request(ctx, op, path, &Packet{OpCode: opcode, Data: data})
	return err
}

// request performs one tracked request/response exchange and converts a Nak
// response into a RemoteError. Callers that treat end-of-file as success
// inspect the error with isRemoteEOF.
func (c *Client) request(ctx context.Context, op, path string, req *Packet) (*Packet, error) {
	resp, err := c.roundTrip(ctx, op, path, req)
	if err != nil {
		return nil, err
	}
	if resp.OpCode == OpNak {
		return nil, &RemoteError{Op: op, Path: path, Code: resp.nakCode(), Errno: resp.nakErrno()}
	}
	return resp, nil
}

// errAttemptTimeout signals that one wait for a response expired; the
// caller decides whether the retry budget allows another attempt.
var errAttemptTimeout = errors.New("attempt timed out")

// roundTrip sends req and waits for its matching response, resending the
// identical encoded packet (same sequence number, same body) on timeout up
// to the configured retry budget. Malformed and stale packets are absorbed;
// only retry exhaustion, a session mismatch, a transport failure or
// cancellation surface as errors.
func (c *Client) roundTrip(ctx context.Context, op, path string, req *Packet) (*Packet, error) {
	out, err := c.track.register(req)
	if err != nil {
		return nil, err
	}
	defer c.track.clear()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			out.retries++
			logger.Debug("resending request",
				logger.KeyOpcode, req.OpCode.String(),
				logger.KeySeq, req.Seq,
				logger.KeyAttempt, attempt)
			if err := sleep(ctx, c.cfg.Backoff(attempt)); err != nil {
				return nil, cancelledError(op, path)
			}
		}

		if err := c.tr.Send(ctx, out.encoded); err != nil {
			if ctx.Err() != nil {
				return nil, cancelledError(op, path)
			}
			return nil, &TransportError{Op: op, Path: path, Err: err}
		}
		out.sentAt = time.Now()

		resp, err := c.awaitResponse(ctx, op, path)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, errAttemptTimeout) {
			continue
		}
		return nil, err
	}

	// The remote never answered. The session, if any, is considered freed
	// client-side even though the remote could not confirm.
	c.track.releaseSession()
	return nil, &TimeoutError{Op: op, Path: path, Attempts: c.cfg.MaxRetries + 1}
}

// awaitResponse drains the receive path until a packet matches the
// outstanding request or the attempt timeout expires.
func (c *Client) awaitResponse(ctx context.Context, op, path string) (*Packet, error) {
	deadline := time.Now().Add(c.cfg.Timeout)

	for {
		resp, err := c.recvUntil(ctx, deadline)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelledError(op, path)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, errAttemptTimeout
			}
			return nil, &TransportError{Op: op, Path: path, Err: err}
		}

		switch c.track.match(resp) {
		case matchAccepted:
			return resp, nil
		case matchStale:
			logger.Debug("dropping stale response", logger.KeySeq, resp.Seq)
		case matchSessionMismatch:
			return nil, &ProtocolError{Op: op, Path: path,
				Reason: fmt.Sprintf("response session %d does not match open session %d",
					resp.Session, c.track.session)}
		}
	}
}

// recvUntil receives and decodes one packet, bounded by deadline. Payloads
// that fail to decode are treated as dropped and skipped.
func (c *Client) recvUntil(ctx context.Context, deadline time.Time) (*Packet, error) {
	for {
		actx, cancel := context.WithDeadline(ctx, deadline)
		raw, err := c.tr.Recv(actx)
		cancel()
		if err != nil {
			return nil, err
		}

		resp, err := Decode(raw)
		if err != nil {
			logger.Debug("dropping undecodable payload", "error", err)
			continue
		}
		return resp, nil
	}
}

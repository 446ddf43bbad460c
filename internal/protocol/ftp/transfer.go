package ftp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickelectric/mavftp-cli/internal/logger"
)

// transferState tracks where a logical operation is in its lifecycle.
type transferState int

const (
	stateIdle transferState = iota
	stateOpening
	stateReading
	stateWriting
	stateListing
	stateComputingCRC
	stateClosing
	stateDone
	stateFailed
)

func (s transferState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpening:
		return "opening"
	case stateReading:
		return "reading"
	case stateWriting:
		return "writing"
	case stateListing:
		return "listing"
	case stateComputingCRC:
		return "computing-crc"
	case stateClosing:
		return "closing"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("transferState(%d)", int(s))
	}
}

// transfer drives one logical, possibly multi-packet operation. It is owned
// exclusively by a single Client call and discarded on completion; resuming
// an interrupted transfer is not supported, a failure discards the partial
// buffer and the caller retries the whole operation.
type transfer struct {
	c     *Client
	op    string
	path  string
	state transferState

	buf      []byte // accumulated bytes for reads and listings
	offset   uint32 // next expected byte offset (or entry index for listings)
	fileSize uint32 // total expected size when known, else 0
	err      error
}

func (c *Client) newTransfer(op, path string) *transfer {
	return &transfer{c: c, op: op, path: path, state: stateIdle}
}

func (t *transfer) setState(s transferState) {
	logger.Debug("transfer state change",
		logger.KeyOperation, t.op,
		logger.KeyPath, t.path,
		"from", t.state.String(),
		"to", s.String())
	t.state = s
}

func (t *transfer) fail(err error) error {
	t.setState(stateFailed)
	t.buf = nil
	t.err = err
	return err
}

// open sends the session-opening request and, on Ack, records the file size
// the remote reports in the response data.
func (t *transfer) open(ctx context.Context, opcode OpCode) (uint32, error) {
	t.setState(stateOpening)

	resp, err := t.c.request(ctx, t.op, t.path, &Packet{OpCode: opcode, Data: []byte(t.path)})
	if err != nil {
		return 0, t.fail(err)
	}

	var size uint32
	if len(resp.Data) >= 4 {
		size = binary.LittleEndian.Uint32(resp.Data[:4])
	}
	t.fileSize = size

	logger.Debug("session opened",
		logger.KeyPath, t.path,
		logger.KeySession, resp.Session,
		logger.KeySize, size)
	return size, nil
}

// close terminates the open session best-effort: its own failure does not
// change the already-determined outcome of the transfer.
func (t *transfer) close(ctx context.Context) {
	outcome := t.state
	t.setState(stateClosing)

	if t.c.track.sessionOpen {
		// The operation's context may already be cancelled; closing uses
		// its own short deadline so the remote still gets the terminate.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.c.cfg.Timeout*2)
		_, err := t.c.request(cctx, t.op, t.path, &Packet{
			OpCode:  OpTerminateSession,
			Session: t.c.track.session,
		})
		cancel()
		if err != nil {
			logger.Debug("best-effort session terminate failed", "error", err)
		}
		t.c.track.releaseSession()
	}

	if outcome == stateFailed {
		t.setState(stateFailed)
	} else {
		t.setState(stateDone)
	}
}

// ----------------------------------------------------------------------------
// Reading
// ----------------------------------------------------------------------------

// read downloads the whole file: open, burst by default with chunked
// fallback, then best-effort terminate.
func (t *transfer) read(ctx context.Context) ([]byte, error) {
	size, err := t.open(ctx, OpOpenFileRO)
	if err != nil {
		return nil, err
	}

	t.setState(stateReading)
	t.buf = make([]byte, 0, size)

	err = t.burstRead(ctx)
	if err != nil {
		var rerr *RemoteError
		if errors.As(err, &rerr) && rerr.Code == NakUnknownCommand && t.offset == 0 {
			logger.Info("remote does not support burst read, falling back to chunked",
				logger.KeyPath, t.path)
			err = t.chunkedRead(ctx)
		}
	}
	if err != nil {
		t.fail(err)
		t.close(ctx)
		return nil, err
	}

	data := t.buf
	t.buf = nil
	t.close(ctx)
	return data, nil
}

// chunkedRead requests one chunk per round trip at the expected offset
// until the remote answers end-of-file at that offset, which is the normal
// termination signal, not an error.
func (t *transfer) chunkedRead(ctx context.Context) error {
	session := t.c.track.session
	retried := false

	for {
		if ctx.Err() != nil {
			return cancelledError(t.op, t.path)
		}

		resp, err := t.c.request(ctx, t.op, t.path, &Packet{
			OpCode:  OpReadFile,
			Session: session,
			Offset:  t.offset,
			Size:    uint8(t.c.cfg.ChunkSize),
		})
		if isRemoteEOF(err) {
			return nil
		}
		if err != nil {
			return err
		}

		// An offset mismatch may be a stale duplicate that survived the
		// sequence check on a wrapped counter; retry the same request
		// once, then treat a second mismatch as a remote inconsistency.
		if resp.Offset != t.offset {
			if retried {
				return &ProtocolError{Op: t.op, Path: t.path,
					Reason: fmt.Sprintf("data at offset %d, expected %d", resp.Offset, t.offset)}
			}
			retried = true
			logger.Warn("unexpected data offset, retrying once",
				logger.KeyOffset, resp.Offset,
				"expected", t.offset)
			continue
		}
		retried = false

		t.append(resp.Data)
	}
}

// burstRead asks the remote to stream the file. After the single initiating
// request the remote sends many response packets without further requests
// in between; the state machine appends data strictly by increasing offset,
// buffers a bounded number of out-of-order packets, and resumes the burst
// from the last contiguous offset when a gap is detected or the stream
// stalls, rather than discarding progress.
func (t *transfer) burstRead(ctx context.Context) error {
	session := t.c.track.session
	pending := make(map[uint32]*Packet)
	stalls := 0

	// Every resume without intervening progress draws from one retry
	// budget, so a remote that keeps ending the stream short of the size
	// it reported at open makes the read fail instead of looping forever.
	// In-order data resets the budget.
	resume := func() error {
		stalls++
		if stalls > t.c.cfg.MaxRetries {
			return &TimeoutError{Op: t.op, Path: t.path, Attempts: stalls}
		}
		logger.Debug("resuming burst",
			logger.KeyOffset, t.offset,
			logger.KeyAttempt, stalls)
		return t.sendBurstRequest(ctx, session)
	}

	if err := t.sendBurstRequest(ctx, session); err != nil {
		return err
	}

	for t.fileSize == 0 || t.offset < t.fileSize {
		if ctx.Err() != nil {
			return cancelledError(t.op, t.path)
		}

		resp, err := t.c.recvUntil(ctx, time.Now().Add(t.c.cfg.BurstTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return cancelledError(t.op, t.path)
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				return &TransportError{Op: t.op, Path: t.path, Err: err}
			}
			if err := resume(); err != nil {
				return err
			}
			continue
		}

		if resp.ReqOpCode != OpBurstReadFile {
			logger.Debug("dropping non-burst packet during burst", logger.KeySeq, resp.Seq)
			continue
		}
		if resp.Session != session {
			return &ProtocolError{Op: t.op, Path: t.path,
				Reason: fmt.Sprintf("burst packet for session %d, expected %d", resp.Session, session)}
		}

		if resp.OpCode == OpNak {
			if resp.nakCode() == NakEOF {
				// End of file: complete if everything up to the known
				// size arrived, otherwise resume the missing range.
				if t.fileSize == 0 || t.offset >= t.fileSize {
					return nil
				}
				if err := resume(); err != nil {
					return err
				}
				continue
			}
			return &RemoteError{Op: t.op, Path: t.path, Code: resp.nakCode(), Errno: resp.nakErrno()}
		}

		switch {
		case resp.Offset < t.offset:
			// Duplicate of data already appended.
			continue

		case resp.Offset > t.offset:
			// Gap: hold on to the packet in case the missing one is
			// merely reordered; past the tolerance, resume the burst at
			// the last contiguous offset instead.
			if _, dup := pending[resp.Offset]; !dup && len(pending) >= t.c.cfg.BurstGapTolerance {
				logger.Debug("burst gap past tolerance",
					logger.KeyOffset, t.offset,
					"received", resp.Offset)
				if err := resume(); err != nil {
					return err
				}
				continue
			}
			pending[resp.Offset] = resp
			continue
		}

		t.append(resp.Data)
		stalls = 0
		complete := resp.BurstComplete

		// Drain any buffered packets that are now contiguous.
		for {
			next, ok := pending[t.offset]
			if !ok {
				break
			}
			delete(pending, t.offset)
			t.append(next.Data)
			complete = complete || next.BurstComplete
		}

		if complete && (t.fileSize == 0 || t.offset < t.fileSize) {
			// The remote finished its burst but the file has more; start
			// the next burst where this one ended.
			if t.fileSize == 0 {
				return nil
			}
			if err := resume(); err != nil {
				return err
			}
		}
	}

	return nil
}

// sendBurstRequest issues the burst-initiating request at the current
// offset. The response stream is matched by req_opcode and offset, not by
// sequence number, so the outstanding-request slot is released immediately.
func (t *transfer) sendBurstRequest(ctx context.Context, session uint8) error {
	req := &Packet{
		OpCode:  OpBurstReadFile,
		Session: session,
		Offset:  t.offset,
		Size:    uint8(t.c.cfg.ChunkSize),
	}
	out, err := t.c.track.register(req)
	if err != nil {
		return err
	}
	t.c.track.clear()

	if err := t.c.tr.Send(ctx, out.encoded); err != nil {
		if ctx.Err() != nil {
			return cancelledError(t.op, t.path)
		}
		return &TransportError{Op: t.op, Path: t.path, Err: err}
	}
	return nil
}

// append adds a verified in-order chunk and reports progress.
func (t *transfer) append(data []byte) {
	t.buf = append(t.buf, data...)
	t.offset += uint32(len(data))
	if t.c.cfg.Progress != nil {
		t.c.cfg.Progress(uint64(t.offset), uint64(t.fileSize))
	}
}

// ----------------------------------------------------------------------------
// Writing
// ----------------------------------------------------------------------------

// write uploads data: create/truncate the remote file, stream chunks in
// strict ping-pong, then best-effort terminate. Write is never burst.
func (t *transfer) write(ctx context.Context, data []byte) error {
	if _, err := t.open(ctx, OpCreateFile); err != nil {
		return err
	}

	t.setState(stateWriting)
	session := t.c.track.session

	for offset := 0; offset < len(data); {
		if ctx.Err() != nil {
			err := cancelledError(t.op, t.path)
			t.fail(err)
			t.close(ctx)
			return err
		}

		chunk := data[offset:]
		if len(chunk) > t.c.cfg.ChunkSize {
			chunk = chunk[:t.c.cfg.ChunkSize]
		}

		_, err := t.c.request(ctx, t.op, t.path, &Packet{
			OpCode:  OpWriteFile,
			Session: session,
			Offset:  uint32(offset),
			Data:    chunk,
		})
		if err != nil {
			t.fail(err)
			t.close(ctx)
			return err
		}

		offset += len(chunk)
		if t.c.cfg.Progress != nil {
			t.c.cfg.Progress(uint64(offset), uint64(len(data)))
		}
	}

	t.close(ctx)
	return t.err
}

// ----------------------------------------------------------------------------
// Listing
// ----------------------------------------------------------------------------

// list pages through a directory. The listing offset counts entries, not
// bytes; each response carries one or more NUL-delimited entry fragments
// and an end-of-file Nak marks the end of the listing.
func (t *transfer) list(ctx context.Context) ([]Entry, error) {
	t.setState(stateListing)

	var entries []Entry
	for {
		if ctx.Err() != nil {
			return nil, t.fail(cancelledError(t.op, t.path))
		}

		resp, err := t.c.request(ctx, t.op, t.path, &Packet{
			OpCode: OpListDirectory,
			Offset: t.offset,
			Data:   []byte(t.path),
		})
		if isRemoteEOF(err) {
			break
		}
		if err != nil {
			return nil, t.fail(err)
		}

		parsed, count := parseEntries(resp.Data)
		if count == 0 {
			// A well-behaved remote ends a listing with an EOF Nak; an
			// empty Ack is accepted as the same signal.
			break
		}
		entries = append(entries, parsed...)
		t.offset += uint32(count)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	t.setState(stateDone)
	return entries, nil
}

// ----------------------------------------------------------------------------
// Checksums
// ----------------------------------------------------------------------------

// crc32 asks the remote to compute the file checksum in a single round
// trip. The remote walks the whole file, so the reply may take several
// attempts on large files.
func (t *transfer) crc32(ctx context.Context) (uint32, error) {
	t.setState(stateComputingCRC)

	resp, err := t.c.request(ctx, t.op, t.path, &Packet{
		OpCode: OpCalcFileCRC32,
		Data:   []byte(t.path),
	})
	if err != nil {
		return 0, t.fail(err)
	}
	if len(resp.Data) < 4 {
		return 0, t.fail(&ProtocolError{Op: t.op, Path: t.path,
			Reason: fmt.Sprintf("checksum reply carries %d bytes, want 4", len(resp.Data))})
	}

	t.setState(stateDone)
	return binary.LittleEndian.Uint32(resp.Data[:4]), nil
}

package ftp

import (
	"time"
)

// matchResult classifies an incoming response against the outstanding
// request.
type matchResult int

const (
	// matchAccepted: sequence and session match, the response answers the
	// outstanding request.
	matchAccepted matchResult = iota

	// matchStale: sequence mismatch. The packet is a duplicate or a
	// leftover from an earlier exchange and must be dropped silently.
	matchStale

	// matchSessionMismatch: sequence matches but the session id diverges
	// from the open session. Fatal to the current transfer.
	matchSessionMismatch
)

// outstandingRequest records a sent-but-unanswered packet. Exactly one
// exists at a time; the protocol is a strict request/response ping-pong
// outside of burst reads.
type outstandingRequest struct {
	packet  *Packet
	encoded []byte
	sentAt  time.Time
	retries int
}

// tracker allocates sequence numbers for outgoing requests, holds the
// session id assigned by the remote side, and validates incoming responses
// against the single outstanding request.
//
// The tracker is not safe for concurrent use; the client serializes all
// access behind its operation lock.
type tracker struct {
	nextSeq     uint16
	outstanding *outstandingRequest

	sessionOpen bool
	session     uint8
}

// register assigns the next sequence number to req, encodes it, and records
// it as the outstanding request. It fails with ErrRequestInFlight if a prior
// request is still unresolved.
func (t *tracker) register(req *Packet) (*outstandingRequest, error) {
	if t.outstanding != nil {
		return nil, ErrRequestInFlight
	}

	req.Seq = t.nextSeq
	t.nextSeq++ // wraps at 65535 by uint16 arithmetic

	encoded, err := req.Encode()
	if err != nil {
		return nil, err
	}

	out := &outstandingRequest{
		packet:  req,
		encoded: encoded,
		sentAt:  time.Now(),
	}
	t.outstanding = out
	return out, nil
}

// match validates a decoded response against the outstanding request.
// On matchAccepted the outstanding slot is cleared and, if the request was
// a session open, the remote-assigned session id is adopted.
func (t *tracker) match(resp *Packet) matchResult {
	out := t.outstanding
	if out == nil || resp.Seq != out.packet.Seq {
		return matchStale
	}

	if t.sessionOpen && resp.Session != t.session {
		return matchSessionMismatch
	}

	if !t.sessionOpen && resp.OpCode == OpAck && opensSession(out.packet.OpCode) {
		t.session = resp.Session
		t.sessionOpen = true
	}

	t.outstanding = nil
	return matchAccepted
}

// clear drops the outstanding request, if any. Called when retries are
// exhausted or the operation aborts.
func (t *tracker) clear() {
	t.outstanding = nil
}

// releaseSession forgets the open session. Called after a terminate or
// reset request, and on the retry-exhaustion path where the remote is
// unresponsive: the session is still logically freed client-side.
func (t *tracker) releaseSession() {
	t.sessionOpen = false
	t.session = 0
}

// opensSession reports whether an Ack for op carries a remote-assigned
// session id.
func opensSession(op OpCode) bool {
	switch op {
	case OpOpenFileRO, OpOpenFileWO, OpCreateFile:
		return true
	default:
		return false
	}
}

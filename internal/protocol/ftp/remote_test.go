package ftp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeRemote is an in-memory vehicle-side FTP server speaking through the
// Transport interface. It answers synchronously from Send by queueing the
// response payloads for Recv, and exposes knobs to inject the link faults
// the engine has to survive.
type fakeRemote struct {
	t *testing.T

	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	sessions map[uint8]string
	nextSess uint8

	// Fault injection.
	dropResponses int    // lose the next N requests before they take effect
	dropAll       bool   // lose every request
	rejectBurst   bool   // Nak burst requests with unknown-command
	reorderBurst  bool   // swap two adjacent packets of the next burst
	partialBurst  int    // truncate the next burst to N packets, none final
	badOffsets    int    // answer the next N reads at a shifted offset
	staleFirst    bool   // precede the next response with a stale-seq packet
	reportedSize  uint32 // when nonzero, lie about the size on read-only open

	sent [][]byte // every payload received from the client, in order

	inbox chan []byte
	done  chan struct{}
	once  sync.Once
}

func newFakeRemote(t *testing.T) *fakeRemote {
	return &fakeRemote{
		t:        t,
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		sessions: make(map[uint8]string),
		nextSess: 1,
		inbox:    make(chan []byte, 4096),
		done:     make(chan struct{}),
	}
}

func (r *fakeRemote) Send(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, bytes.Clone(payload))

	req, err := Decode(payload)
	if err != nil {
		return fmt.Errorf("client sent undecodable payload: %w", err)
	}

	// A dropped request is lost on the link before the vehicle sees it,
	// so it must not have side effects either.
	if r.dropAll {
		return nil
	}
	if r.dropResponses > 0 {
		r.dropResponses--
		return nil
	}

	responses := r.handle(req)

	if r.staleFirst {
		r.staleFirst = false
		stale := &Packet{Seq: req.Seq + 100, OpCode: OpAck, ReqOpCode: req.OpCode}
		responses = append([]*Packet{stale}, responses...)
	}

	for _, resp := range responses {
		buf, err := resp.Encode()
		if err != nil {
			r.t.Fatalf("fake remote built unencodable response: %v", err)
		}
		select {
		case r.inbox <- buf:
		default:
			r.t.Fatal("fake remote inbox overflow")
		}
	}
	return nil
}

func (r *fakeRemote) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case buf := <-r.inbox:
		return buf, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, errors.New("transport closed")
	}
}

func (r *fakeRemote) Close() error {
	r.once.Do(func() { close(r.done) })
	return nil
}

func (r *fakeRemote) handle(req *Packet) []*Packet {
	ack := func(data []byte) []*Packet {
		return []*Packet{{
			Seq: req.Seq, Session: req.Session,
			OpCode: OpAck, ReqOpCode: req.OpCode, Data: data,
		}}
	}
	nak := func(code NakCode) []*Packet {
		return []*Packet{{
			Seq: req.Seq, Session: req.Session,
			OpCode: OpNak, ReqOpCode: req.OpCode, Data: []byte{byte(code)},
		}}
	}
	le32 := func(v uint32) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		return b[:]
	}
	path := string(req.Data)

	switch req.OpCode {
	case OpNone:
		return ack(nil)

	case OpResetSessions:
		r.sessions = make(map[uint8]string)
		return ack(nil)

	case OpOpenFileRO:
		data, ok := r.files[path]
		if !ok {
			return nak(NakFileNotFound)
		}
		size := uint32(len(data))
		if r.reportedSize != 0 {
			size = r.reportedSize
		}
		sess := r.openSession(path)
		return []*Packet{{
			Seq: req.Seq, Session: sess,
			OpCode: OpAck, ReqOpCode: req.OpCode, Data: le32(size),
		}}

	case OpCreateFile, OpOpenFileWO:
		if _, ok := r.files[path]; !ok || req.OpCode == OpCreateFile {
			r.files[path] = []byte{}
		}
		sess := r.openSession(path)
		return []*Packet{{
			Seq: req.Seq, Session: sess,
			OpCode: OpAck, ReqOpCode: req.OpCode, Data: le32(uint32(len(r.files[path]))),
		}}

	case OpTerminateSession:
		delete(r.sessions, req.Session)
		return ack(nil)

	case OpReadFile:
		data, ok := r.files[r.sessions[req.Session]]
		if !ok {
			return nak(NakInvalidSession)
		}
		if req.Offset >= uint32(len(data)) {
			return nak(NakEOF)
		}
		end := req.Offset + uint32(req.Size)
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}
		offset := req.Offset
		if r.badOffsets > 0 {
			r.badOffsets--
			offset++
		}
		return []*Packet{{
			Seq: req.Seq, Session: req.Session,
			OpCode: OpAck, ReqOpCode: req.OpCode,
			Offset: offset, Data: data[req.Offset:end],
		}}

	case OpBurstReadFile:
		if r.rejectBurst {
			return nak(NakUnknownCommand)
		}
		data, ok := r.files[r.sessions[req.Session]]
		if !ok {
			return nak(NakInvalidSession)
		}
		if req.Offset >= uint32(len(data)) {
			return nak(NakEOF)
		}
		var pkts []*Packet
		for off := req.Offset; off < uint32(len(data)); off += uint32(req.Size) {
			end := off + uint32(req.Size)
			if end > uint32(len(data)) {
				end = uint32(len(data))
			}
			pkts = append(pkts, &Packet{
				Seq: req.Seq, Session: req.Session,
				OpCode: OpAck, ReqOpCode: OpBurstReadFile,
				Offset: off, Data: data[off:end],
				BurstComplete: end == uint32(len(data)),
			})
		}
		if r.reorderBurst && len(pkts) > 2 {
			r.reorderBurst = false
			pkts[1], pkts[2] = pkts[2], pkts[1]
		}
		if r.partialBurst > 0 && len(pkts) > r.partialBurst {
			pkts = pkts[:r.partialBurst]
			for _, p := range pkts {
				p.BurstComplete = false
			}
			r.partialBurst = 0
		}
		return pkts

	case OpWriteFile:
		path, ok := r.sessions[req.Session]
		if !ok {
			return nak(NakInvalidSession)
		}
		data := r.files[path]
		end := int(req.Offset) + len(req.Data)
		if end > len(data) {
			data = append(data, make([]byte, end-len(data))...)
		}
		copy(data[req.Offset:], req.Data)
		r.files[path] = data
		return ack(nil)

	case OpRemoveFile:
		if _, ok := r.files[path]; !ok {
			return nak(NakFileNotFound)
		}
		delete(r.files, path)
		return ack(nil)

	case OpCreateDirectory:
		if r.dirs[path] {
			return nak(NakFileExists)
		}
		r.dirs[path] = true
		return ack(nil)

	case OpRemoveDirectory:
		if !r.dirs[path] {
			return nak(NakFileNotFound)
		}
		delete(r.dirs, path)
		return ack(nil)

	case OpRename:
		from, to, ok := strings.Cut(path, "\x00")
		if !ok {
			return nak(NakInvalidDataSize)
		}
		if data, exists := r.files[from]; exists {
			delete(r.files, from)
			r.files[to] = data
			return ack(nil)
		}
		if r.dirs[from] {
			delete(r.dirs, from)
			r.dirs[to] = true
			return ack(nil)
		}
		return nak(NakFileNotFound)

	case OpTruncateFile:
		data, ok := r.files[path]
		if !ok {
			return nak(NakFileNotFound)
		}
		size := req.Offset
		if size <= uint32(len(data)) {
			r.files[path] = data[:size]
		} else {
			r.files[path] = append(data, make([]byte, size-uint32(len(data)))...)
		}
		return ack(nil)

	case OpListDirectory:
		frags, ok := r.listing(path)
		if !ok {
			return nak(NakFileNotFound)
		}
		if req.Offset >= uint32(len(frags)) {
			return nak(NakEOF)
		}
		var buf []byte
		for _, frag := range frags[req.Offset:] {
			if len(buf)+len(frag)+1 > MaxDataSize {
				break
			}
			buf = append(buf, frag...)
			buf = append(buf, 0)
		}
		return []*Packet{{
			Seq: req.Seq, Session: req.Session,
			OpCode: OpAck, ReqOpCode: req.OpCode,
			Offset: req.Offset, Data: buf,
		}}

	case OpCalcFileCRC32:
		data, ok := r.files[path]
		if !ok {
			return nak(NakFileNotFound)
		}
		return ack(le32(Checksum(data)))

	default:
		return nak(NakUnknownCommand)
	}
}

func (r *fakeRemote) openSession(path string) uint8 {
	sess := r.nextSess
	r.nextSess++
	r.sessions[sess] = path
	return sess
}

// listing builds the fragment list a vehicle reports for dir: the hidden
// dot entries first, then the direct children sorted by name.
func (r *fakeRemote) listing(dir string) ([]string, bool) {
	if !r.dirs[dir] {
		return nil, false
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"

	var children []string
	for p, data := range r.files {
		if name, ok := directChild(p, prefix); ok {
			children = append(children, fmt.Sprintf("F%s\t%d", name, len(data)))
		}
	}
	for p := range r.dirs {
		if name, ok := directChild(p, prefix); ok {
			children = append(children, "D"+name)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i][1:] < children[j][1:] })

	return append([]string{"S.", "S.."}, children...), true
}

func directChild(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || path == prefix {
		return "", false
	}
	rest := path[len(prefix):]
	if strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// opsSent decodes the opcode of every payload the client sent.
func (r *fakeRemote) opsSent() []OpCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]OpCode, 0, len(r.sent))
	for _, payload := range r.sent {
		p, err := Decode(payload)
		if err != nil {
			r.t.Fatalf("sent payload does not decode: %v", err)
		}
		ops = append(ops, p.OpCode)
	}
	return ops
}

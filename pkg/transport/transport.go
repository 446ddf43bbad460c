// Package transport connects the FTP engine to a real MAVLink link. It
// dials UDP or TCP endpoints, frames outgoing FTP payloads as
// FILE_TRANSFER_PROTOCOL messages and extracts incoming ones, delivering
// exactly one 251-byte payload per message to the engine.
//
// Target strings follow the usual MAVLink conventions:
//
//	udpout:host:port  send datagrams to host:port (typical for a vehicle)
//	udpin:host:port   listen on host:port, reply to whoever talks first
//	tcpout:host:port  TCP client connection
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/patrickelectric/mavftp-cli/internal/logger"
	"github.com/patrickelectric/mavftp-cli/pkg/mavlink"
)

// Options configures link addressing.
type Options struct {
	// SystemID and ComponentID identify this client on the MAVLink
	// network. Ground stations conventionally use system 255.
	SystemID    uint8
	ComponentID uint8

	// TargetNetwork, TargetSystem and TargetComponent address the vehicle
	// whose filesystem is being operated on.
	TargetNetwork   uint8
	TargetSystem    uint8
	TargetComponent uint8
}

// recvBuffer bounds payloads queued between the reader goroutine and the
// engine. Burst reads can deliver a few thousand packets back to back.
const recvBuffer = 4096

// ErrNoPeer is returned by Send on a udpin link before any remote endpoint
// has announced itself.
var ErrNoPeer = errors.New("no remote endpoint yet")

// Conn is a MAVLink link carrying FTP payloads. It implements the
// engine's transport boundary.
type Conn struct {
	opts Options

	conn     net.Conn                    // connected socket (udpout, tcpout)
	listen   *net.UDPConn                // listening socket (udpin)
	peer     atomic.Pointer[net.UDPAddr] // learned peer for udpin
	frameSeq atomic.Uint32

	recv chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a MAVLink link described by target and starts the receive
// loop.
func Dial(target string, opts Options) (*Conn, error) {
	scheme, addr, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		opts: opts,
		recv: make(chan []byte, recvBuffer),
		done: make(chan struct{}),
	}

	switch scheme {
	case "udpout":
		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", target, err)
		}
		conn, err := net.DialUDP("udp", nil, udpAddr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}
		c.conn = conn
		go c.readDatagrams(conn, nil)

	case "udpin":
		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", target, err)
		}
		conn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", target, err)
		}
		c.listen = conn
		go c.readDatagrams(conn, &c.peer)

	case "tcpout":
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}
		c.conn = conn
		go c.readStream(conn)

	default:
		return nil, fmt.Errorf("unsupported target scheme %q (want udpout, udpin or tcpout)", scheme)
	}

	logger.Info("link opened", logger.KeyTarget, target)
	return c, nil
}

// parseTarget splits "scheme:host:port" into scheme and dialable address.
func parseTarget(target string) (scheme, addr string, err error) {
	scheme, addr, ok := strings.Cut(target, ":")
	if !ok || addr == "" {
		return "", "", fmt.Errorf("invalid target %q (want scheme:host:port)", target)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("invalid target address %q: %w", addr, err)
	}
	return scheme, addr, nil
}

// Send frames one FTP payload and writes it to the link.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	msg := &mavlink.FileTransferProtocol{
		TargetNetwork:   c.opts.TargetNetwork,
		TargetSystem:    c.opts.TargetSystem,
		TargetComponent: c.opts.TargetComponent,
		Payload:         payload,
	}
	raw, err := msg.Marshal()
	if err != nil {
		return err
	}

	frame := &mavlink.Frame{
		Seq:         uint8(c.frameSeq.Add(1)),
		SystemID:    c.opts.SystemID,
		ComponentID: c.opts.ComponentID,
		MsgID:       mavlink.MsgIDFileTransferProtocol,
		Payload:     raw,
	}
	encoded, err := frame.Encode()
	if err != nil {
		return err
	}

	// A zero deadline clears any deadline armed by an earlier Send, so a
	// ctx without one does not inherit a stale timeout from the socket.
	deadline, _ := ctx.Deadline()
	if c.conn != nil {
		_ = c.conn.SetWriteDeadline(deadline)
	}

	switch {
	case c.conn != nil:
		_, err = c.conn.Write(encoded)
	case c.listen != nil:
		peer := c.peer.Load()
		if peer == nil {
			return ErrNoPeer
		}
		_, err = c.listen.WriteToUDP(encoded, peer)
	}
	if err != nil {
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

// Recv returns the next FTP payload, blocking until one arrives, ctx is
// done, or the link closes.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-c.recv:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, net.ErrClosed
	}
}

// Close shuts down the link and the receive loop.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
		if c.listen != nil {
			err = c.listen.Close()
		}
	})
	return err
}

// readDatagrams parses each datagram independently; datagrams carry whole
// frames. peer, when non-nil, learns the reply address from the first
// sender (udpin mode).
func (c *Conn) readDatagrams(conn net.PacketConn, peer *atomic.Pointer[net.UDPAddr]) {
	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Error("link read failed", "error", err)
			}
			return
		}

		if peer != nil && peer.Load() == nil {
			if udpAddr, ok := from.(*net.UDPAddr); ok {
				peer.Store(udpAddr)
				logger.Info("remote endpoint learned", logger.KeyTarget, udpAddr.String())
			}
		}

		var parser mavlink.Parser
		for _, frame := range parser.Push(buf[:n]) {
			c.deliver(frame)
		}
	}
}

// readStream feeds a TCP byte stream through one incremental parser.
func (c *Conn) readStream(conn net.Conn) {
	parser := &mavlink.Parser{}
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Error("link read failed", "error", err)
			}
			return
		}
		for _, frame := range parser.Push(buf[:n]) {
			c.deliver(frame)
		}
	}
}

// deliver queues a decoded FTP payload for the engine, dropping messages
// not addressed to this client. A full queue drops the message; the
// protocol's retry discipline recovers.
func (c *Conn) deliver(frame *mavlink.Frame) {
	if frame.MsgID != mavlink.MsgIDFileTransferProtocol {
		return
	}
	msg, err := mavlink.UnmarshalFileTransferProtocol(frame.Payload)
	if err != nil {
		logger.Debug("dropping unparseable message", "error", err)
		return
	}
	if msg.TargetSystem != 0 && msg.TargetSystem != c.opts.SystemID {
		return
	}

	select {
	case c.recv <- msg.Payload:
	default:
		logger.Warn("receive queue full, dropping payload")
	}
}

// Package bridge maintains a TCP connection to a serial bridge device
// and moves mesh packets across it: framed sends on one side, a
// continuous framed receive loop on the other.
package bridge

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshcore-tools/meshbridge/pkg/crypto"
	"github.com/meshcore-tools/meshbridge/pkg/protocol"
	"github.com/meshcore-tools/meshbridge/pkg/storage"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrBadHex       = errors.New("invalid hex packet")
)

// Client is a client connection to the mesh bridge device.
//
// One receive goroutine reads frames; sends may come from any number of
// goroutines and are serialized by a write lock so frame bytes never
// interleave on the wire. The client imposes no timeouts, retries, or
// reconnection: when the connection drops the receive loop ends and the
// packet channel closes, and the owner decides what happens next.
type Client struct {
	addr   string
	secret []byte
	sender string

	mu        sync.Mutex // guards conn on connect/close
	conn      net.Conn
	reader    *bufio.Reader
	writeMu   sync.Mutex
	connected atomic.Bool

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64

	packetLog *storage.PacketLog

	// Callbacks, invoked from the receive goroutine
	OnPacket    func(*protocol.Packet, []byte)
	OnGroupText func(*protocol.GroupText, *protocol.Packet)
}

// NewClient creates a client for the bridge at addr using secret as the
// public channel secret and sender as the display name on outbound
// group texts.
func NewClient(addr string, secret []byte, sender string) *Client {
	return &Client{
		addr:   addr,
		secret: secret,
		sender: sender,
	}
}

// AttachPacketLog attaches a packet log; every packet sent or received
// after attachment is persisted.
func (c *Client) AttachPacketLog(pl *storage.PacketLog) {
	c.packetLog = pl
}

// SetSender changes the display name used on outbound group texts.
func (c *Client) SetSender(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = name
}

// Sender returns the current display name.
func (c *Client) Sender() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sender
}

// Connect dials the bridge device.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected.Store(true)

	log.Printf("Connected to bridge at %s", c.addr)
	return nil
}

// Close closes the connection. The receive loop, if running, observes
// the failed read and terminates.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected.Store(false)
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SendPacket frames packet and writes it to the bridge.
func (c *Client) SendPacket(packet []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := protocol.WriteFrame(conn, packet)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	c.sent.Add(1)
	c.logPacket(packet, storage.DirectionSent)
	return nil
}

// SendRawHex parses a hex string (spaces allowed) and sends it as a raw
// packet. Malformed hex is rejected before any bytes reach the wire.
func (c *Client) SendRawHex(s string) (int, error) {
	packet, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadHex, err)
	}

	if err := c.SendPacket(packet); err != nil {
		return 0, err
	}
	return len(packet), nil
}

// SendGroupText builds and sends a public channel group text with the
// current timestamp.
func (c *Client) SendGroupText(message string) (int, error) {
	packet, err := crypto.BuildGroupTextPacket(c.secret, c.Sender(), message, uint32(time.Now().Unix()))
	if err != nil {
		return 0, err
	}

	if err := c.SendPacket(packet); err != nil {
		return 0, err
	}
	return len(packet), nil
}

// Start launches the receive loop and returns the channel it feeds with
// decoded packets. The channel closes when the loop ends: on context
// cancellation, connection close, or a stream-fatal read error.
func (c *Client) Start(ctx context.Context) <-chan *protocol.Packet {
	packets := make(chan *protocol.Packet, 16)

	// Cancellation has to unblock the pending read.
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	go c.receiveLoop(ctx, packets)

	return packets
}

// receiveLoop reads frames until the stream fails, dropping corrupt
// frames and surfacing everything else on the packets channel.
func (c *Client) receiveLoop(ctx context.Context, packets chan<- *protocol.Packet) {
	defer close(packets)

	count := 0
	for {
		raw, err := c.readPacket()
		if err != nil {
			if errors.Is(err, protocol.ErrChecksumMismatch) {
				// Frame corrupted in transit: drop it, keep reading.
				c.dropped.Add(1)
				log.Printf("Dropped frame: %v", err)
				continue
			}
			if c.connected.Load() && !errors.Is(err, protocol.ErrTruncated) {
				log.Printf("Receive loop ended: %v", err)
			}
			break
		}

		c.received.Add(1)
		count++
		c.logPacket(raw, storage.DirectionReceived)

		pkt, err := protocol.DecodePacket(raw)
		if err != nil {
			log.Printf("Undecodable packet (%d bytes): %v", len(raw), err)
			continue
		}

		if c.OnPacket != nil {
			c.OnPacket(pkt, raw)
		}
		c.dispatchGroupText(pkt)

		select {
		case packets <- pkt:
		case <-ctx.Done():
			return
		}
	}

	log.Printf("Receiver stopped (%d packets)", count)
}

// readPacket reads one frame, first skipping any delimiter bytes the
// device emitted after the previous frame's checksum. The delimiter is
// not covered by the checksum and never required.
func (c *Client) readPacket() ([]byte, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	if reader == nil {
		return nil, ErrNotConnected
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return nil, protocol.ErrTruncated
		}
		if b != protocol.FrameDelimiter {
			if err := reader.UnreadByte(); err != nil {
				return nil, err
			}
			break
		}
	}

	return protocol.ReadFrame(reader)
}

// dispatchGroupText decrypts public channel group texts for the
// callback. Packets for other channels or types pass through silently.
func (c *Client) dispatchGroupText(pkt *protocol.Packet) {
	if c.OnGroupText == nil || pkt.Header.Type != protocol.TypeGroupText {
		return
	}

	gt, err := crypto.OpenGroupTextPacket(c.secret, pkt)
	if err != nil {
		if !errors.Is(err, crypto.ErrWrongChannel) {
			log.Printf("Group text rejected: %v", err)
		}
		return
	}

	c.OnGroupText(gt, pkt)
}

func (c *Client) logPacket(raw []byte, direction storage.Direction) {
	if c.packetLog == nil {
		return
	}

	if err := c.packetLog.Save(raw, direction, c.secret); err != nil {
		log.Printf("Failed to log packet: %v", err)
	}
}

// Status is a snapshot of the client's connection and counters.
type Status struct {
	Connected bool   `json:"connected"`
	Addr      string `json:"addr"`
	Sender    string `json:"sender"`
	Sent      uint64 `json:"sent"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
}

// Status returns a snapshot of the client state.
func (c *Client) Status() Status {
	return Status{
		Connected: c.connected.Load(),
		Addr:      c.addr,
		Sender:    c.Sender(),
		Sent:      c.sent.Load(),
		Received:  c.received.Load(),
		Dropped:   c.dropped.Load(),
	}
}

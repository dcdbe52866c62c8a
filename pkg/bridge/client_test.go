package bridge

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/meshcore-tools/meshbridge/pkg/crypto"
	"github.com/meshcore-tools/meshbridge/pkg/protocol"
)

// testBridge is a fake bridge device on a loopback listener.
type testBridge struct {
	ln    net.Listener
	conns chan net.Conn
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	tb := &testBridge{ln: ln, conns: make(chan net.Conn, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		tb.conns <- conn
	}()

	return tb
}

func (tb *testBridge) accept(t *testing.T) net.Conn {
	t.Helper()

	select {
	case conn := <-tb.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func connectedClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()

	tb := newTestBridge(t)
	client := NewClient(tb.ln.Addr().String(), crypto.PublicChannelSecret(), "Tester")
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client, tb.accept(t)
}

func TestSendGroupTextFrames(t *testing.T) {
	client, device := connectedClient(t)

	n, err := client.SendGroupText("hello")
	if err != nil {
		t.Fatalf("SendGroupText() error = %v", err)
	}

	packet, err := protocol.ReadFrame(device)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(packet) != n {
		t.Errorf("packet length = %d, reported %d", len(packet), n)
	}

	pkt, err := protocol.DecodePacket(packet)
	if err != nil {
		t.Fatalf("DecodePacket() error = %v", err)
	}

	gt, err := crypto.OpenGroupTextPacket(crypto.PublicChannelSecret(), pkt)
	if err != nil {
		t.Fatalf("OpenGroupTextPacket() error = %v", err)
	}
	if gt.Sender != "Tester" || gt.Text != "hello" {
		t.Errorf("decoded %q from %q, want %q from %q", gt.Text, gt.Sender, "hello", "Tester")
	}

	status := client.Status()
	if status.Sent != 1 {
		t.Errorf("Sent = %d, want 1", status.Sent)
	}
}

func TestSendRawHex(t *testing.T) {
	client, device := connectedClient(t)

	n, err := client.SendRawHex("15 00 11")
	if err != nil {
		t.Fatalf("SendRawHex() error = %v", err)
	}
	if n != 3 {
		t.Errorf("sent %d bytes, want 3", n)
	}

	packet, err := protocol.ReadFrame(device)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !bytes.Equal(packet, []byte{0x15, 0x00, 0x11}) {
		t.Errorf("packet = %x, want 150011", packet)
	}
}

func TestSendRawHexRejectsBadInput(t *testing.T) {
	client, device := connectedClient(t)

	if _, err := client.SendRawHex("not hex"); !errors.Is(err, ErrBadHex) {
		t.Errorf("error = %v, want ErrBadHex", err)
	}

	// Nothing may have reached the wire.
	device.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	if n, _ := device.Read(buf); n != 0 {
		t.Error("bytes were written despite the encoding error")
	}
}

func TestSendWhenDisconnected(t *testing.T) {
	client := NewClient("127.0.0.1:1", crypto.PublicChannelSecret(), "Tester")
	if err := client.SendPacket([]byte{0x01}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestReceiveLoopDeliversPackets(t *testing.T) {
	client, device := connectedClient(t)

	var gotText *protocol.GroupText
	client.OnGroupText = func(gt *protocol.GroupText, _ *protocol.Packet) {
		gotText = gt
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	packets := client.Start(ctx)

	raw, err := crypto.BuildGroupTextPacket(crypto.PublicChannelSecret(), "Alice", "hi", 1700000000)
	if err != nil {
		t.Fatalf("BuildGroupTextPacket() error = %v", err)
	}
	frame, err := protocol.EncodeFrame(raw)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	// Device traffic carries a trailing delimiter after the checksum.
	frame = append(frame, protocol.FrameDelimiter)
	if _, err := device.Write(frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case pkt := <-packets:
		if pkt.Header.Type != protocol.TypeGroupText {
			t.Errorf("Type = %v, want GRP_TXT", pkt.Header.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no packet delivered")
	}

	if gotText == nil || gotText.Sender != "Alice" {
		t.Errorf("OnGroupText got %+v, want sender Alice", gotText)
	}
}

func TestReceiveLoopDropsCorruptFrames(t *testing.T) {
	client, device := connectedClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	packets := client.Start(ctx)

	good, err := protocol.EncodeFrame([]byte{0x15, 0x00, 0xAA})
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	corrupt := bytes.Clone(good)
	corrupt[4] ^= 0x01 // body byte, checksum now wrong

	// Corrupt frame first, then a good one: the loop must survive.
	if _, err := device.Write(append(corrupt, good...)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case pkt := <-packets:
		if !bytes.Equal(pkt.Encode(), []byte{0x15, 0x00, 0xAA}) {
			t.Errorf("delivered packet = %x", pkt.Encode())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("good frame after corrupt one was not delivered")
	}

	if dropped := client.Status().Dropped; dropped != 1 {
		t.Errorf("Dropped = %d, want 1", dropped)
	}
}

func TestReceiveLoopEndsOnCancel(t *testing.T) {
	client, _ := connectedClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	packets := client.Start(ctx)

	cancel()

	select {
	case _, ok := <-packets:
		if ok {
			t.Error("expected closed channel, got packet")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("packet channel did not close after cancellation")
	}
}

func TestReceiveLoopEndsOnPeerClose(t *testing.T) {
	client, device := connectedClient(t)

	packets := client.Start(context.Background())

	device.Close()

	select {
	case _, ok := <-packets:
		if ok {
			t.Error("expected closed channel, got packet")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("packet channel did not close after peer close")
	}
}

func TestInspect(t *testing.T) {
	pkt := &protocol.Packet{
		Header:  protocol.Header{Route: protocol.RouteFlood, Type: protocol.TypeGroupText},
		Path:    []byte{0x01, 0x02},
		Payload: bytes.Repeat([]byte{0xAB}, 40),
	}

	info := Inspect(pkt)
	if info.Route != "FLOOD" || info.Type != "GRP_TXT" {
		t.Errorf("route/type = %s/%s", info.Route, info.Type)
	}
	if info.PathLen != 2 || info.PayloadLen != 40 {
		t.Errorf("sizes = %d/%d, want 2/40", info.PathLen, info.PayloadLen)
	}
	if want := 64 + 3; len(info.Preview) != want { // 32 bytes hex + "..."
		t.Errorf("preview length = %d, want %d", len(info.Preview), want)
	}
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshcore-tools/meshbridge/pkg/bridge"
	"github.com/meshcore-tools/meshbridge/pkg/crypto"
	"github.com/meshcore-tools/meshbridge/pkg/storage"
)

// stubSender records sends without a live bridge connection.
type stubSender struct {
	texts   []string
	rawHex  []string
	sendErr error
}

func (s *stubSender) SendGroupText(message string) (int, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.texts = append(s.texts, message)
	return 21, nil
}

func (s *stubSender) SendRawHex(h string) (int, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.rawHex = append(s.rawHex, h)
	return len(h) / 2, nil
}

func (s *stubSender) Status() bridge.Status {
	return bridge.Status{Connected: true, Addr: "127.0.0.1:5002", Sender: "Tester", Sent: 3}
}

func newTestServer(t *testing.T) (*Server, *stubSender, *storage.PacketLog) {
	t.Helper()

	pl, err := storage.NewPacketLog(filepath.Join(t.TempDir(), "packets.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { pl.Close() })

	sender := &stubSender{}
	return NewServer(sender, pl, DefaultConfig()), sender, pl
}

func doJSON(server *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		json.NewEncoder(&reqBody).Encode(body)
	}

	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestSendMessage(t *testing.T) {
	server, sender, _ := newTestServer(t)

	w := doJSON(server, "POST", "/api/v1/messages", SendMessageRequest{Text: "hello mesh"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp SendMessageResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 21, resp.PacketBytes)
	assert.Equal(t, []string{"hello mesh"}, sender.texts)
}

func TestSendMessageValidation(t *testing.T) {
	server, sender, _ := newTestServer(t)

	w := doJSON(server, "POST", "/api/v1/messages", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sender.texts)
}

func TestSendMessageBridgeDown(t *testing.T) {
	server, sender, _ := newTestServer(t)
	sender.sendErr = bridge.ErrNotConnected

	w := doJSON(server, "POST", "/api/v1/messages", SendMessageRequest{Text: "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSendRawPacket(t *testing.T) {
	server, sender, _ := newTestServer(t)

	w := doJSON(server, "POST", "/api/v1/packets", SendPacketRequest{Hex: "150011"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"150011"}, sender.rawHex)
}

func TestSendRawPacketBadHex(t *testing.T) {
	server, sender, _ := newTestServer(t)
	sender.sendErr = fmt.Errorf("%w: odd length", bridge.ErrBadHex)

	w := doJSON(server, "POST", "/api/v1/packets", SendPacketRequest{Hex: "zz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPackets(t *testing.T) {
	server, _, pl := newTestServer(t)
	secret := crypto.PublicChannelSecret()

	packet, err := crypto.BuildGroupTextPacket(secret, "Alice", "hi", 1700000000)
	assert.NoError(t, err)
	assert.NoError(t, pl.Save(packet, storage.DirectionReceived, secret))

	w := doJSON(server, "GET", "/api/v1/packets?limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ListPacketsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Packets, 1)

	entry := resp.Packets[0]
	assert.Equal(t, "received", entry.Direction)
	assert.Equal(t, "FLOOD", entry.Route)
	assert.Equal(t, "GRP_TXT", entry.Type)
	assert.Equal(t, "Alice", entry.Sender)
	assert.Equal(t, "hi", entry.Text)
	assert.Equal(t, int64(1700000000), entry.MsgTime)
}

func TestListPacketsBadLimit(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doJSON(server, "GET", "/api/v1/packets?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(server, "GET", "/api/v1/packets?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus(t *testing.T) {
	server, _, pl := newTestServer(t)
	secret := crypto.PublicChannelSecret()
	assert.NoError(t, pl.Save([]byte{0x15, 0x00, 0x01}, storage.DirectionSent, secret))

	w := doJSON(server, "GET", "/api/v1/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Bridge.Connected)
	assert.Equal(t, uint64(3), resp.Bridge.Sent)
	assert.Equal(t, int64(1), resp.Logged.Sent)
}

func TestRateLimit(t *testing.T) {
	sender := &stubSender{}
	config := DefaultConfig()
	config.RateLimit = 2
	server := NewServer(sender, nil, config)

	for i := 0; i < 2; i++ {
		w := doJSON(server, "GET", "/api/v1/status", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(server, "GET", "/api/v1/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStatusWithoutPacketLog(t *testing.T) {
	server := NewServer(&stubSender{}, nil, DefaultConfig())

	w := doJSON(server, "GET", "/api/v1/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(server, "GET", "/api/v1/packets", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ListPacketsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Packets)
}

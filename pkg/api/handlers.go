package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meshcore-tools/meshbridge/pkg/bridge"
	"github.com/meshcore-tools/meshbridge/pkg/protocol"
	"github.com/meshcore-tools/meshbridge/pkg/storage"
)

// SendMessageRequest is the body of POST /api/v1/messages
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SendMessageResponse confirms a sent group text
type SendMessageResponse struct {
	Success     bool `json:"success"`
	PacketBytes int  `json:"packetBytes"`
}

// handleSendMessage handles POST /api/v1/messages
func (s *Server) handleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	n, err := s.sender.SendGroupText(req.Text)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "Send failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{Success: true, PacketBytes: n})
}

// SendPacketRequest is the body of POST /api/v1/packets
type SendPacketRequest struct {
	Hex string `json:"hex" binding:"required"`
}

// handleSendPacket handles POST /api/v1/packets: a raw hex packet send.
func (s *Server) handleSendPacket(c *gin.Context) {
	var req SendPacketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	n, err := s.sender.SendRawHex(req.Hex)
	if err != nil {
		// Malformed hex is the caller's fault and rejected before any
		// bytes are written; everything else is a transport problem.
		status := http.StatusBadGateway
		if errors.Is(err, bridge.ErrBadHex) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{
			Error:   "Send failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{Success: true, PacketBytes: n})
}

// PacketEntry is one logged packet in API form
type PacketEntry struct {
	Direction string `json:"direction"`
	Route     string `json:"route"`
	Type      string `json:"type"`
	PathLen   int    `json:"pathLen"`
	Raw       string `json:"raw"`
	Sender    string `json:"sender,omitempty"`
	Text      string `json:"text,omitempty"`
	MsgTime   int64  `json:"msgTime,omitempty"`
	SeenCount int    `json:"seenCount"`
	LastSeen  int64  `json:"lastSeen"`
}

// ListPacketsResponse is the body of GET /api/v1/packets
type ListPacketsResponse struct {
	Success bool          `json:"success"`
	Packets []PacketEntry `json:"packets"`
}

// handleListPackets handles GET /api/v1/packets?limit=N
func (s *Server) handleListPackets(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid limit",
				Message: "limit must be an integer between 1 and 1000",
			})
			return
		}
		limit = parsed
	}

	entries := []PacketEntry{}
	if s.packetLog != nil {
		stored, err := s.packetLog.Recent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Query failed",
				Message: err.Error(),
			})
			return
		}

		for _, p := range stored {
			entries = append(entries, packetEntry(p))
		}
	}

	c.JSON(http.StatusOK, ListPacketsResponse{Success: true, Packets: entries})
}

func packetEntry(p *storage.StoredPacket) PacketEntry {
	return PacketEntry{
		Direction: string(p.Direction),
		Route:     protocol.RouteClass(p.Route).String(),
		Type:      protocol.PacketType(p.Type).String(),
		PathLen:   p.PathLen,
		Raw:       hex.EncodeToString(p.Raw),
		Sender:    p.Sender,
		Text:      p.Text,
		MsgTime:   p.MsgTime,
		SeenCount: p.SeenCount,
		LastSeen:  p.LastSeen,
	}
}

// StatusResponse is the body of GET /api/v1/status
type StatusResponse struct {
	Success bool          `json:"success"`
	Bridge  bridge.Status `json:"bridge"`
	Logged  LoggedCounts  `json:"logged"`
}

// LoggedCounts summarizes the packet log
type LoggedCounts struct {
	Sent     int64 `json:"sent"`
	Received int64 `json:"received"`
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Success: true,
		Bridge:  s.sender.Status(),
	}

	if s.packetLog != nil {
		sent, received, err := s.packetLog.Counts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Query failed",
				Message: err.Error(),
			})
			return
		}
		resp.Logged = LoggedCounts{Sent: sent, Received: received}
	}

	c.JSON(http.StatusOK, resp)
}

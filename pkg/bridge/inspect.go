package bridge

import (
	"encoding/hex"
	"fmt"

	"github.com/meshcore-tools/meshbridge/pkg/protocol"
)

// PacketInfo is the display-oriented view of a packet: header fields by
// name, sizes, and a short payload preview. It reads only the canonical
// layout (header, path, payload-to-end); there is no embedded payload
// length field to trust.
type PacketInfo struct {
	Route      string `json:"route"`
	Type       string `json:"type"`
	PathLen    int    `json:"pathLen"`
	PayloadLen int    `json:"payloadLen"`
	Preview    string `json:"preview"`
}

const previewBytes = 32

// Inspect summarizes a decoded packet for display.
func Inspect(pkt *protocol.Packet) PacketInfo {
	preview := pkt.Payload
	ellipsis := ""
	if len(preview) > previewBytes {
		preview = preview[:previewBytes]
		ellipsis = "..."
	}

	return PacketInfo{
		Route:      pkt.Header.Route.String(),
		Type:       pkt.Header.Type.String(),
		PathLen:    len(pkt.Path),
		PayloadLen: len(pkt.Payload),
		Preview:    hex.EncodeToString(preview) + ellipsis,
	}
}

// String formats the info as a single display line.
func (i PacketInfo) String() string {
	return fmt.Sprintf("route=%s type=%s path=%dB payload=%dB %s",
		i.Route, i.Type, i.PathLen, i.PayloadLen, i.Preview)
}

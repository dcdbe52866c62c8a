package protocol

import "fmt"

// Frame constants
const (
	// Frame magic bytes (RS232 bridge marker)
	FrameMagic0 = 0xC0
	FrameMagic1 = 0x3E

	// Delimiter byte the bridge device appends after frames it sends
	FrameDelimiter = 0x0A

	// Maximum packet size representable in the 16-bit length field
	MaxPacketSize = 0xFFFF
)

// Sizes used by the MeshCore crypto scheme
const (
	PathHashSize  = 1  // channel hash discriminator
	CipherMACSize = 2  // truncated HMAC
	CipherKeySize = 16 // AES-128 key
	MACKeySize    = 32 // HMAC key material taken from the secret
	CipherBlock   = 16 // AES block size
)

// RouteClass is the 2-bit route field of the packet header.
type RouteClass uint8

// Known route classes
const (
	RouteDirect    RouteClass = 0x00
	RouteFlood     RouteClass = 0x01
	RouteTransport RouteClass = 0x02
)

// String returns the route name, or UNKNOWN(0xNN) for reserved values.
func (r RouteClass) String() string {
	switch r {
	case RouteDirect:
		return "DIRECT"
	case RouteFlood:
		return "FLOOD"
	case RouteTransport:
		return "TRANSPORT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(r))
	}
}

// PacketType is the 4-bit type field of the packet header.
type PacketType uint8

// Known packet types
const (
	TypeTextMsg   PacketType = 0x00
	TypeAck       PacketType = 0x03
	TypeAdvert    PacketType = 0x04
	TypeGroupText PacketType = 0x05
)

// String returns the type name, or UNKNOWN(0xNN) for reserved values.
func (t PacketType) String() string {
	switch t {
	case TypeTextMsg:
		return "TXT_MSG"
	case TypeAck:
		return "ACK"
	case TypeAdvert:
		return "ADVERT"
	case TypeGroupText:
		return "GRP_TXT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// Text types carried in the first byte after the group text timestamp
const (
	TextTypePlain uint8 = 0x00
)

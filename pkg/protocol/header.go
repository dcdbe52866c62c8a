package protocol

// Header is the single packet header byte split into its two bit fields:
// the route class in the low 2 bits and the packet type in bits 2-5.
// Bits 6-7 are reserved and encode as zero.
type Header struct {
	Route RouteClass
	Type  PacketType
}

// Pack packs the header into its wire byte.
func (h Header) Pack() byte {
	return (byte(h.Type)&0x0F)<<2 | byte(h.Route)&0x03
}

// UnpackHeader splits a header byte into route and type. Reserved or
// unknown field values are preserved rather than rejected, so any byte
// round-trips through Unpack/Pack modulo the reserved high bits.
func UnpackHeader(b byte) Header {
	return Header{
		Route: RouteClass(b & 0x03),
		Type:  PacketType((b >> 2) & 0x0F),
	}
}

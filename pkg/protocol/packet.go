package protocol

import "errors"

var (
	ErrShortPacket = errors.New("packet too short")
	ErrBadPathLen  = errors.New("path length exceeds packet")
)

// Packet is a mesh-protocol message: header byte, hop path, payload.
//
// The payload runs from the end of the path to the end of the packet.
// There is no embedded payload length field; total packet length is
// 2 + len(Path) + len(Payload).
type Packet struct {
	Header  Header
	Path    []byte
	Payload []byte
}

// Encode encodes the packet to wire bytes.
func (p *Packet) Encode() []byte {
	buf := make([]byte, 0, 2+len(p.Path)+len(p.Payload))
	buf = append(buf, p.Header.Pack())
	buf = append(buf, byte(len(p.Path)))
	buf = append(buf, p.Path...)
	buf = append(buf, p.Payload...)
	return buf
}

// DecodePacket decodes wire bytes into a Packet. The buffer must hold at
// least the header and path length bytes, and the declared path must fit.
func DecodePacket(buf []byte) (*Packet, error) {
	if len(buf) < 2 {
		return nil, ErrShortPacket
	}

	pathLen := int(buf[1])
	if len(buf) < 2+pathLen {
		return nil, ErrBadPathLen
	}

	p := &Packet{
		Header:  UnpackHeader(buf[0]),
		Path:    make([]byte, pathLen),
		Payload: make([]byte, len(buf)-2-pathLen),
	}
	copy(p.Path, buf[2:2+pathLen])
	copy(p.Payload, buf[2+pathLen:])

	return p, nil
}

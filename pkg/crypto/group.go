package crypto

import (
	"errors"

	"github.com/meshcore-tools/meshbridge/pkg/protocol"
)

var (
	ErrNotGroupText = errors.New("packet is not a group text")
	ErrWrongChannel = errors.New("channel hash mismatch")
	ErrShortPayload = errors.New("group text payload too short")
)

// BuildGroupTextPacket assembles a complete outbound public-channel
// group text packet:
//
//	header (FLOOD | GRP_TXT<<2) | path_len=0 | channel hash | mac | ciphertext
//
// path_len zero marks a locally originated packet with no recorded hops.
// The result is ready for protocol.EncodeFrame. Given identical
// arguments the packet is byte-for-byte reproducible.
func BuildGroupTextPacket(secret []byte, sender, message string, timestamp uint32) ([]byte, error) {
	plaintext := protocol.EncodeGroupTextPlaintext(timestamp, sender, message)

	encrypted, err := EncryptThenMAC(secret, plaintext)
	if err != nil {
		return nil, err
	}

	pkt := &protocol.Packet{
		Header:  protocol.Header{Route: protocol.RouteFlood, Type: protocol.TypeGroupText},
		Payload: append([]byte{ChannelHash(secret)}, encrypted...),
	}

	return pkt.Encode(), nil
}

// OpenGroupTextPacket decrypts an inbound GRP_TXT packet addressed to
// the channel identified by secret. It rejects packets of another type,
// packets whose channel hash byte does not match the secret, and
// payloads that fail MAC verification.
func OpenGroupTextPacket(secret []byte, pkt *protocol.Packet) (*protocol.GroupText, error) {
	if pkt.Header.Type != protocol.TypeGroupText {
		return nil, ErrNotGroupText
	}

	if len(pkt.Payload) < protocol.PathHashSize+protocol.CipherMACSize {
		return nil, ErrShortPayload
	}

	if pkt.Payload[0] != ChannelHash(secret) {
		return nil, ErrWrongChannel
	}

	plaintext, err := DecryptThenVerify(secret, pkt.Payload[protocol.PathHashSize:])
	if err != nil {
		return nil, err
	}

	return protocol.DecodeGroupTextPlaintext(plaintext)
}

// Package protocol implements the MeshCore wire protocol spoken by a
// serial-to-TCP bridge device.
//
// # Frame Format
//
// Packets travel inside a length-delimited, checksummed envelope:
//
//	offset  size  field
//	0       2     magic (0xC0 0x3E)
//	2       2     length, big-endian u16, counts packet bytes only
//	4       N     packet bytes
//	4+N     2     Fletcher-16 checksum of the packet bytes, [sum2, sum1]
//
// The bridge device appends a 0x0A delimiter after frames it originates.
// The delimiter is not part of the frame: it is never covered by the
// checksum or the length, and the encoder never emits one.
//
// # Packet Format
//
// A packet starts with a single header byte holding two bit fields: the
// route class in the low 2 bits and the packet type in the next 4 bits.
// The header byte is followed by a path length byte, that many path hash
// bytes, and the payload running to the end of the packet.
//
// Route and type values outside the known constants are preserved as
// opaque integers; the codec round-trips any byte value.
//
// # Group Text Plaintext
//
// The pre-encryption layout of a public channel group text is a 32-bit
// little-endian timestamp, one text-type byte (0x00 = plain), and the
// UTF-8 text "<sender>: <message>" running to the end of the buffer with
// no length prefix. Encryption of this plaintext lives in pkg/crypto.
package protocol

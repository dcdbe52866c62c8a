package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	ErrTruncated        = errors.New("truncated frame")
	ErrBadMagic         = errors.New("bad frame magic")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrPacketTooLarge   = errors.New("packet exceeds 16-bit length field")
)

// EncodeFrame wraps packet in the bridge envelope: magic, big-endian
// length, packet bytes, Fletcher-16 checksum. No trailing delimiter is
// appended; the delimiter is something the device produces, not the codec.
func EncodeFrame(packet []byte) ([]byte, error) {
	if len(packet) > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	buf := make([]byte, 0, 4+len(packet)+2)
	buf = append(buf, FrameMagic0, FrameMagic1)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(packet)))
	buf = append(buf, packet...)

	checksum := Fletcher16(packet)
	buf = append(buf, checksum[0], checksum[1])

	return buf, nil
}

// WriteFrame encodes packet and writes the complete frame to w in a
// single Write call, so concurrent writers holding their own lock never
// interleave frame bytes.
func WriteFrame(w io.Writer, packet []byte) error {
	frame, err := EncodeFrame(packet)
	if err != nil {
		return err
	}

	_, err = w.Write(frame)
	return err
}

// ReadFrame reads exactly one frame from r and returns the packet bytes.
//
// The reader copes with arbitrary chunking of the underlying stream. A
// stream that ends mid-frame yields ErrTruncated; a frame that does not
// start with the magic yields ErrBadMagic with no resynchronization
// attempt; a body that fails checksum verification yields
// ErrChecksumMismatch and the frame is discarded. No timeout is imposed
// here -- a read that never completes blocks until the caller closes the
// underlying connection.
func ReadFrame(r io.Reader) ([]byte, error) {
	var head [4]byte
	if err := readFull(r, head[:]); err != nil {
		return nil, err
	}

	if head[0] != FrameMagic0 || head[1] != FrameMagic1 {
		return nil, ErrBadMagic
	}

	length := binary.BigEndian.Uint16(head[2:4])

	packet := make([]byte, length)
	if err := readFull(r, packet); err != nil {
		return nil, err
	}

	var checksum [2]byte
	if err := readFull(r, checksum[:]); err != nil {
		return nil, err
	}

	if !VerifyFletcher16(packet, checksum) {
		return nil, ErrChecksumMismatch
	}

	return packet, nil
}

// readFull fills buf, mapping any premature end of stream to ErrTruncated.
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrTruncated
		}
		return err
	}
	return nil
}

package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// GroupText is the decoded plaintext of a public channel group message.
type GroupText struct {
	Timestamp uint32 // seconds since epoch
	TextType  uint8
	Sender    string
	Text      string
}

// EncodeGroupTextPlaintext assembles the pre-encryption plaintext of a
// group text: 32-bit little-endian timestamp, one text-type byte (plain),
// then "<sender>: <message>" in UTF-8 with no length prefix.
func EncodeGroupTextPlaintext(timestamp uint32, sender, message string) []byte {
	text := fmt.Sprintf("%s: %s", sender, message)

	buf := make([]byte, 0, 5+len(text))
	buf = binary.LittleEndian.AppendUint32(buf, timestamp)
	buf = append(buf, TextTypePlain)
	buf = append(buf, text...)

	return buf
}

// DecodeGroupTextPlaintext parses a decrypted group text plaintext.
// Trailing zero bytes left over from block cipher padding are trimmed
// from the text. The sender is everything before the first ": "; a text
// without that separator decodes with an empty sender.
func DecodeGroupTextPlaintext(buf []byte) (*GroupText, error) {
	if len(buf) < 5 {
		return nil, ErrShortPacket
	}

	gt := &GroupText{
		Timestamp: binary.LittleEndian.Uint32(buf[0:4]),
		TextType:  buf[4],
	}

	text := string(bytes.TrimRight(buf[5:], "\x00"))
	if sender, rest, ok := strings.Cut(text, ": "); ok {
		gt.Sender = sender
		gt.Text = rest
	} else {
		gt.Text = text
	}

	return gt, nil
}

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/meshcore-tools/meshbridge/pkg/protocol"
)

var (
	ErrSecretTooShort = errors.New("channel secret shorter than cipher key")
	ErrBadMAC         = errors.New("payload MAC verification failed")
	ErrBadPayloadLen  = errors.New("encrypted payload length invalid")
)

// PublicChannelPSK is the well-known pre-shared key of the public
// broadcast channel, base64 encoded. It is a published constant, not a
// secret: the channel hash derived from it acts as a discriminator, not
// a security boundary.
const PublicChannelPSK = "izOH6cXN6mrJ5e26oRXNcg=="

var publicChannelSecret = func() []byte {
	secret, err := base64.StdEncoding.DecodeString(PublicChannelPSK)
	if err != nil {
		panic("crypto: invalid public channel PSK literal: " + err.Error())
	}
	return secret
}()

// PublicChannelSecret returns the raw 16-byte public channel secret.
func PublicChannelSecret() []byte {
	return bytes.Clone(publicChannelSecret)
}

// ChannelHash derives the 1-byte channel discriminator from a shared
// secret: the first byte of its SHA-256 digest.
func ChannelHash(secret []byte) byte {
	digest := sha256.Sum256(secret)
	return digest[0]
}

// padToBlockSize zero-pads data up to the next cipher block boundary.
// Data already on a block boundary is returned unchanged: the scheme
// never adds a full padding block.
func padToBlockSize(data []byte) []byte {
	rem := len(data) % protocol.CipherBlock
	if rem == 0 {
		return data
	}
	return append(bytes.Clone(data), make([]byte, protocol.CipherBlock-rem)...)
}

// macKey returns the keyed-hash key material: the first 32 bytes of the
// secret, or the whole secret when it is shorter than 32 bytes.
func macKey(secret []byte) []byte {
	if len(secret) > protocol.MACKeySize {
		return secret[:protocol.MACKeySize]
	}
	return secret
}

// EncryptThenMAC encrypts plaintext for a channel and returns
// mac || ciphertext.
//
// The ciphertext is AES-128-ECB over the zero-padded plaintext, keyed
// with the first 16 bytes of the secret; the MAC is the first 2 bytes of
// HMAC-SHA256 over the ciphertext. There is no IV or nonce: the output
// is fully determined by (secret, plaintext), and identical plaintext
// blocks produce identical ciphertext blocks. That determinism is an
// intentional wire-format property the mesh firmware depends on.
func EncryptThenMAC(secret, plaintext []byte) ([]byte, error) {
	if len(secret) < protocol.CipherKeySize {
		return nil, ErrSecretTooShort
	}

	block, err := aes.NewCipher(secret[:protocol.CipherKeySize])
	if err != nil {
		return nil, err
	}

	padded := padToBlockSize(plaintext)
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += protocol.CipherBlock {
		block.Encrypt(ciphertext[i:i+protocol.CipherBlock], padded[i:i+protocol.CipherBlock])
	}

	mac := hmac.New(sha256.New, macKey(secret))
	mac.Write(ciphertext)
	tag := mac.Sum(nil)[:protocol.CipherMACSize]

	return append(tag, ciphertext...), nil
}

// DecryptThenVerify is the inverse of EncryptThenMAC: it checks the
// truncated MAC over the ciphertext, then decrypts block by block.
// Zero padding is left on the plaintext tail; the caller trims it
// according to the payload layout.
func DecryptThenVerify(secret, payload []byte) ([]byte, error) {
	if len(secret) < protocol.CipherKeySize {
		return nil, ErrSecretTooShort
	}

	ctLen := len(payload) - protocol.CipherMACSize
	if ctLen < 0 || ctLen%protocol.CipherBlock != 0 {
		return nil, ErrBadPayloadLen
	}

	tag := payload[:protocol.CipherMACSize]
	ciphertext := payload[protocol.CipherMACSize:]

	mac := hmac.New(sha256.New, macKey(secret))
	mac.Write(ciphertext)
	if !hmac.Equal(tag, mac.Sum(nil)[:protocol.CipherMACSize]) {
		return nil, ErrBadMAC
	}

	block, err := aes.NewCipher(secret[:protocol.CipherKeySize])
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += protocol.CipherBlock {
		block.Decrypt(plaintext[i:i+protocol.CipherBlock], ciphertext[i:i+protocol.CipherBlock])
	}

	return plaintext, nil
}

// Package keycodec encrypts the small secrets users hand us (provider API keys)
// before they are stored.
//
// Values are AES-256-CBC with PKCS#7 padding and a fresh random IV per call,
// encoded as hex(iv) ":" hex(ciphertext). There is no authentication tag, so
// the codec only protects confidentiality at rest.
package keycodec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// KeySize is the required key length in bytes.
const KeySize = 32

const ivSize = aes.BlockSize

// Codec seals and opens API keys with one process-wide key.
type Codec struct {
	block cipher.Block
}

// New builds a Codec. key must be exactly KeySize bytes; shorter or longer
// secrets are rejected instead of being padded or truncated.
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return &Codec{block: block}, nil
}

// Encrypt seals plaintext and returns hex(iv):hex(ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt. Any malformed or undecryptable
// input yields "" so callers treat the key as unusable.
func (c *Codec) Decrypt(token string) string {
	ivHex, ctHex, ok := strings.Cut(token, ":")
	if !ok {
		return ""
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != ivSize {
		return ""
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return ""
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)

	plain, ok := pkcs7Unpad(out, aes.BlockSize)
	if !ok {
		return ""
	}
	return string(plain)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}

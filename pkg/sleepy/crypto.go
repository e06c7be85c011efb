// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"fmt"
)

// PublicChannelKey is the all-zero AES-128 key of the public channel
var PublicChannelKey = Key(make([]byte, 16))

// Key is a channel pre-shared key (16 bytes for AES-128, 32 for AES-256)
type Key []byte

// NewKey validates and copies a raw pre-shared key
func NewKey(raw []byte) (Key, error) {
	if len(raw) != 16 && len(raw) != 32 {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrInvalidKey, len(raw))
	}
	key := make(Key, len(raw))
	copy(key, raw)
	return key, nil
}

// ParseKey decodes a base64 pre-shared key
func ParseKey(encoded string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid PSK: %w", err)
	}
	return NewKey(raw)
}

// IsPublic reports whether k is the public channel key
func (k Key) IsPublic() bool {
	return bytes.Equal(k, PublicChannelKey)
}

// Bits returns the AES key size in bits
func (k Key) Bits() int {
	return len(k) * 8
}

// Decrypt recovers a plaintext frame from an encrypted packet.
//
// The packet may carry a transport header of unknown length in front of the
// ciphertext, so each offset in headerOffsets is tried in order. At each
// offset the remainder is decrypted block by block (no chaining, no IV) and
// the sender's zero padding is trimmed by walking the telemetry records.
// The first candidate passing ValidFrame wins, trimmed form first and then
// the untrimmed form. ok is false when no offset yields a valid frame.
func Decrypt(data []byte, key Key) (plaintext []byte, ok bool) {
	for _, offset := range headerOffsets {
		if offset >= len(data) {
			continue
		}

		ciphertext := data[offset:]
		if len(ciphertext)%BlockSize != 0 {
			continue
		}

		decrypted, err := decryptBlocks(ciphertext, key)
		if err != nil {
			continue
		}

		trimmed := decrypted[:scanTelemetryEnd(decrypted)]
		if ValidFrame(trimmed) {
			return trimmed, true
		}

		if ValidFrame(decrypted) {
			return decrypted, true
		}
	}

	return nil, false
}

// decryptBlocks decrypts each AES block of ciphertext independently
func decryptBlocks(ciphertext []byte, key Key) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of %d", len(ciphertext), block.BlockSize())
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(out[i:i+block.BlockSize()], ciphertext[i:i+block.BlockSize()])
	}
	return out, nil
}

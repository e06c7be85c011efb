// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"encoding/hex"
	"fmt"
)

// Packet is a decoded Sleepy Sensor payload.
//
// When decryption succeeds the packet is reported in its plaintext form:
// Encrypted is false and DecryptionSuccessful is true.
type Packet struct {
	Frame                Frame
	Readings             []Reading
	Encrypted            bool
	DecryptionAttempted  bool
	DecryptionSuccessful bool
}

// Decoder turns raw payloads and JSON envelopes into packets.
// A Decoder holds no mutable state and is safe for concurrent use.
type Decoder struct {
	key         Key
	autoDecrypt bool
}

// NewDecoder creates a decoder. A nil key selects PublicChannelKey.
func NewDecoder(key Key, autoDecrypt bool) *Decoder {
	if key == nil {
		key = PublicChannelKey
	}
	return &Decoder{key: key, autoDecrypt: autoDecrypt}
}

// Key returns the decoder's pre-shared key
func (d *Decoder) Key() Key {
	return d.key
}

// AutoDecrypt reports whether encrypted packets are decrypted
func (d *Decoder) AutoDecrypt() bool {
	return d.autoDecrypt
}

// DecodeHex decodes a hex encoded payload
func (d *Decoder) DecodeHex(rawHex string) (*Packet, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}
	return d.DecodePayload(raw)
}

// DecodePayload decodes a raw payload, decrypting it when it looks encrypted
func (d *Decoder) DecodePayload(raw []byte) (*Packet, error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}

	readings := DecodeStream(raw[FrameHeaderSize:])
	packet := &Packet{
		Frame:     frame,
		Readings:  readings,
		Encrypted: LooksEncrypted(raw, readings, frame.Timestamp),
	}

	if !packet.Encrypted || !d.autoDecrypt {
		return packet, nil
	}

	packet.DecryptionAttempted = true
	plaintext, ok := Decrypt(raw, d.key)
	if !ok {
		return packet, nil
	}

	// ValidFrame guarantees a full header
	packet.Frame, _ = ParseFrame(plaintext)
	packet.Readings = DecodeStream(plaintext[FrameHeaderSize:])
	packet.Encrypted = false
	packet.DecryptionSuccessful = true

	return packet, nil
}

// SensorCount returns the number of decoded readings
func (p *Packet) SensorCount() int {
	return len(p.Readings)
}

// FlagsString returns the flags byte as a hex literal
func (p *Packet) FlagsString() string {
	return fmt.Sprintf("0x%02X", p.Frame.Flags)
}

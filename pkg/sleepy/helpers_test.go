// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"crypto/aes"
	"encoding/binary"
)

// ============================================================
// Test Helpers
// ============================================================

type record struct {
	channel  uint8
	dataType uint8
	value    []byte
}

// buildPacket encodes a frame header and LPP records, optionally terminated
// with the end marker
func buildPacket(timestamp uint32, flags uint8, endMarker bool, records ...record) []byte {
	data := make([]byte, FrameHeaderSize)
	binary.BigEndian.PutUint32(data[0:4], timestamp)
	data[4] = flags
	for _, r := range records {
		data = append(data, r.channel, r.dataType)
		data = append(data, r.value...)
	}
	if endMarker {
		data = append(data, ChannelEnd)
	}
	return data
}

// encryptBlocks zero pads and encrypts data block by block, the way the
// sensor firmware does
func encryptBlocks(data []byte, key []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	padded := make([]byte, (len(data)+BlockSize-1)/BlockSize*BlockSize)
	copy(padded, data)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		block.Encrypt(out[i:i+BlockSize], padded[i:i+BlockSize])
	}
	return out
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func i16(v int16) []byte {
	return u16(uint16(v))
}

func strPtr(s string) *string {
	return &s
}

const testTimestamp = 1734090000 // 2024-12-13T11:40:00Z

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"encoding/binary"
	"fmt"
)

// Value is a decoded reading value: Scalar, GPS, Vector or Colour
type Value interface {
	Shape() Shape
}

// Scalar is a single numeric reading
type Scalar float64

// GPS is a decoded location fix
type GPS struct {
	Latitude  float64 `json:"latitude" cbor:"latitude"`
	Longitude float64 `json:"longitude" cbor:"longitude"`
	Altitude  float64 `json:"altitude" cbor:"altitude"`
}

// Vector is a three-axis reading (accelerometer in g, gyrometer in deg/s)
type Vector struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
	Z float64 `json:"z" cbor:"z"`
}

// Colour is an RGB reading
type Colour struct {
	R uint8 `json:"r" cbor:"r"`
	G uint8 `json:"g" cbor:"g"`
	B uint8 `json:"b" cbor:"b"`
}

func (Scalar) Shape() Shape { return ShapeScalar }
func (GPS) Shape() Shape    { return ShapeGPS }
func (Vector) Shape() Shape { return ShapeVector }
func (Colour) Shape() Shape { return ShapeColour }

// DecodeValue decodes the value bytes of a single LPP record.
// data must hold at least the type's size; extra bytes are ignored.
func DecodeValue(dataType uint8, data []byte) (Value, error) {
	info, ok := LookupType(dataType)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownTag, dataType)
	}
	if len(data) < info.Size {
		return nil, fmt.Errorf("%s value needs %d bytes, got %d", info.Name, info.Size, len(data))
	}
	data = data[:info.Size]

	switch dataType {
	case TypeGPS:
		return decodeGPS(data), nil
	case TypeAccelerometer:
		return decodeVector(data, 1000), nil
	case TypeGyrometer:
		return decodeVector(data, 100), nil
	case TypeColour:
		return Colour{R: data[0], G: data[1], B: data[2]}, nil
	}

	return Scalar(decodeScalar(data, info.Divisor, info.Signed)), nil
}

// decodeScalar reads a big-endian integer of len(data) bytes and divides it
func decodeScalar(data []byte, divisor int, signed bool) float64 {
	var raw uint64
	for _, b := range data {
		raw = raw<<8 | uint64(b)
	}

	if signed {
		return float64(signExtend(raw, len(data)*8)) / float64(divisor)
	}
	return float64(raw) / float64(divisor)
}

// signExtend interprets the low bits of v as a two's complement integer
func signExtend(v uint64, bits int) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

func int24(b []byte) int64 {
	return signExtend(uint64(b[0])<<16|uint64(b[1])<<8|uint64(b[2]), 24)
}

func decodeGPS(data []byte) GPS {
	return GPS{
		Latitude:  float64(int24(data[0:3])) / 10000.0,
		Longitude: float64(int24(data[3:6])) / 10000.0,
		Altitude:  float64(int24(data[6:9])) / 100.0,
	}
}

func decodeVector(data []byte, divisor float64) Vector {
	return Vector{
		X: float64(int16(binary.BigEndian.Uint16(data[0:2]))) / divisor,
		Y: float64(int16(binary.BigEndian.Uint16(data[2:4]))) / divisor,
		Z: float64(int16(binary.BigEndian.Uint16(data[4:6]))) / divisor,
	}
}

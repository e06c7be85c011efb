// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sleepy decodes telemetry packets sent by Sleepy Sensor mesh nodes.
//
// A packet is a 5-byte frame header (big-endian uint32 RTC timestamp and a
// flags byte) followed by a Cayenne LPP style telemetry stream of
// [channel][type][value] records. Packets sent on a private channel are AES
// encrypted block by block with the channel's pre-shared key and zero padded;
// this package detects those, recovers the plaintext when the key matches and
// decodes the readings. Observer nodes relay packets to MQTT inside a JSON
// envelope whose "raw" field holds the packet as hex.
package sleepy

// Frame layout
const (
	FrameHeaderSize = 5
	timestampSize   = 4
	flagsOffset     = 4
)

// Telemetry channel limits
const (
	ChannelEnd        = 0x00 // End of telemetry marker
	MaxChannel        = 0x14 // Highest channel number the firmware emits
	ChannelBattery    = 0x01
	MinRecordOverhead = 2 // channel + type bytes
)

// Plausible RTC range: [2000-01-01, 2100-01-01)
const (
	MinPlausibleTimestamp = 946684800
	MaxPlausibleTimestamp = 4102444800
)

// Timestamps at or above this are not rendered as calendar time
const maxRenderableTimestamp = 1 << 31

// Encryption parameters
const (
	BlockSize = 16

	// entropyThreshold is the ratio of distinct bytes to telemetry length
	// above which a telemetry section that failed to decode is treated as
	// ciphertext.
	entropyThreshold = 0.6

	// entropyMinLength is the telemetry length that must be exceeded before
	// the distinct byte check applies.
	entropyMinLength = 5
)

// headerOffsets are the transport header lengths tried, in order, when
// searching for the start of the ciphertext: none, 4-byte MAC, and the 8, 9,
// 12 and 16 byte packet headers seen from relays.
var headerOffsets = [...]int{0, 4, 8, 9, 12, 16}

// LPP data types (SensorMesh firmware)
const (
	TypeAnalogInput   = 0x02
	TypeAnalogOutput  = 0x03
	TypeGenericSensor = 0x64
	TypeLuminosity    = 0x65
	TypeTemperature   = 0x67
	TypeHumidity      = 0x68
	TypeAccelerometer = 0x71
	TypePressure      = 0x73
	TypeVoltage       = 0x74
	TypeCurrent       = 0x75
	TypeAltitude      = 0x79
	TypePower         = 0x80
	TypeDistance      = 0x82
	TypeEnergy        = 0x83
	TypeDirection     = 0x84
	TypeGyrometer     = 0x86
	TypeColour        = 0x87
	TypeGPS           = 0x88
	TypeFrequency     = 0x92
)

// Shape identifies how a type's value bytes are laid out
type Shape int

// Value shapes
const (
	ShapeScalar Shape = iota
	ShapeGPS
	ShapeVector
	ShapeColour
)

// TypeInfo describes the wire encoding of one LPP data type
type TypeInfo struct {
	Type    uint8
	Size    int
	Divisor int
	Signed  bool
	Name    string
	Unit    string
	Shape   Shape
}

// typeTable is the wire contract with the sensor firmware
var typeTable = map[uint8]TypeInfo{
	TypeGPS:           {TypeGPS, 9, 1, false, "GPS", "lat/lon/alt", ShapeGPS},
	TypeAccelerometer: {TypeAccelerometer, 6, 1, false, "Accelerometer", "g", ShapeVector},
	TypeGyrometer:     {TypeGyrometer, 6, 1, false, "Gyrometer", "deg/s", ShapeVector},
	TypeTemperature:   {TypeTemperature, 2, 10, true, "Temperature", "°C", ShapeScalar},
	TypeHumidity:      {TypeHumidity, 1, 2, false, "Relative Humidity", "%", ShapeScalar},
	TypePressure:      {TypePressure, 2, 10, false, "Barometric Pressure", "hPa", ShapeScalar},
	TypeAltitude:      {TypeAltitude, 2, 1, true, "Altitude", "m", ShapeScalar},
	TypeVoltage:       {TypeVoltage, 2, 100, false, "Voltage", "V", ShapeScalar},
	TypeCurrent:       {TypeCurrent, 2, 1000, false, "Current", "A", ShapeScalar},
	TypePower:         {TypePower, 2, 1, false, "Power", "W", ShapeScalar},
	TypeAnalogInput:   {TypeAnalogInput, 2, 100, true, "Analog Input", "V", ShapeScalar},
	TypeAnalogOutput:  {TypeAnalogOutput, 2, 100, true, "Analog Output", "V", ShapeScalar},
	TypeLuminosity:    {TypeLuminosity, 2, 1, false, "Luminosity", "lux", ShapeScalar},
	TypeEnergy:        {TypeEnergy, 4, 1000, false, "Energy", "kWh", ShapeScalar},
	TypeDirection:     {TypeDirection, 2, 1, false, "Direction", "°", ShapeScalar},
	TypeColour:        {TypeColour, 3, 1, false, "Colour", "RGB", ShapeColour},
	TypeGenericSensor: {TypeGenericSensor, 4, 1, false, "Generic Sensor", "", ShapeScalar},
	TypeFrequency:     {TypeFrequency, 4, 1, false, "Frequency", "Hz", ShapeScalar},
	TypeDistance:      {TypeDistance, 4, 1000, false, "Distance", "m", ShapeScalar},
}

// LookupType returns the descriptor for an LPP data type
func LookupType(t uint8) (TypeInfo, bool) {
	info, ok := typeTable[t]
	return info, ok
}

// KnownTypes returns the number of data types in the table
func KnownTypes() int {
	return len(typeTable)
}

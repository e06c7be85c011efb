// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import "errors"

// Decode errors. All are local to one message.
var (
	ErrMalformedEnvelope = errors.New("invalid JSON envelope")
	ErrMalformedHex      = errors.New("malformed hex payload")
	ErrPayloadTooShort   = errors.New("payload too short (minimum 5 bytes required)")
	ErrUnknownTag        = errors.New("unknown LPP data type")
	ErrInvalidKey        = errors.New("PSK must be 16 or 32 bytes")
)

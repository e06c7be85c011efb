// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"fmt"
	"sync"
	"time"
)

// Outcome classifies the result of decoding one message
type Outcome int

const (
	OutcomeDecoded       Outcome = iota // plaintext packet
	OutcomeDecrypted                    // encrypted packet recovered with the PSK
	OutcomeEncrypted                    // encrypted packet left undecrypted
	OutcomeNoPayload                    // envelope without a raw field
	OutcomeFailed                       // envelope or payload error
)

// Classify returns the outcome for a decoded message and its error
func Classify(msg *Message, err error) Outcome {
	if err != nil || msg == nil {
		return OutcomeFailed
	}
	if msg.PayloadErr != nil {
		return OutcomeFailed
	}
	if msg.Payload == nil {
		return OutcomeNoPayload
	}
	if msg.Payload.DecryptionSuccessful {
		return OutcomeDecrypted
	}
	if msg.Payload.Encrypted {
		return OutcomeEncrypted
	}
	return OutcomeDecoded
}

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeDecoded:
		return "decoded"
	case OutcomeDecrypted:
		return "decrypted"
	case OutcomeEncrypted:
		return "encrypted"
	case OutcomeNoPayload:
		return "no_payload"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Counters holds listener message counters and rates
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	TotalMessages  uint64
	Decoded        uint64
	Decrypted      uint64
	DecryptFailed  uint64
	NoPayload      uint64
	Failed         uint64
	EnvelopeErrors uint64
	PayloadErrors  uint64
	Readings       uint64

	// Rates (calculated)
	MessageRate float64 // messages/sec
	FailureRate float64 // failures/sec
}

// Statistics tracks listener message counters and rates.
// It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		Counters: Counters{
			StartTime:      now,
			LastUpdateTime: now,
		},
	}
}

// Update records one decoded message and returns its outcome
func (s *Statistics) Update(msg *Message, err error) Outcome {
	outcome := Classify(msg, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalMessages++
	switch outcome {
	case OutcomeDecoded:
		s.Decoded++
	case OutcomeDecrypted:
		s.Decrypted++
	case OutcomeEncrypted:
		s.DecryptFailed++
	case OutcomeNoPayload:
		s.NoPayload++
	case OutcomeFailed:
		s.Failed++
		if err != nil {
			s.EnvelopeErrors++
		} else {
			s.PayloadErrors++
		}
	}

	if msg != nil && msg.Payload != nil {
		s.Readings += uint64(len(msg.Payload.Readings))
	}

	s.LastUpdateTime = time.Now()
	return outcome
}

// CalculateRates calculates message and failure rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.MessageRate = float64(s.TotalMessages) / elapsed
		s.FailureRate = float64(s.Failed+s.DecryptFailed) / elapsed
	}
}

// Snapshot returns a copy of the counters with fresh rates
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return s.Counters
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var decodedPercent, failedPercent float64
	if snap.TotalMessages > 0 {
		decodedPercent = float64(snap.Decoded+snap.Decrypted) * 100.0 / float64(snap.TotalMessages)
		failedPercent = float64(snap.Failed+snap.DecryptFailed) * 100.0 / float64(snap.TotalMessages)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total received:  %8d\n", snap.TotalMessages)
	result += fmt.Sprintf("Decoded:         %8d (%.1f%%)\n", snap.Decoded+snap.Decrypted, decodedPercent)
	if snap.Decrypted > 0 {
		result += fmt.Sprintf("  Decrypted:        %5d\n", snap.Decrypted)
	}
	result += fmt.Sprintf("Failed:          %8d (%.1f%%)\n", snap.Failed+snap.DecryptFailed, failedPercent)
	if snap.DecryptFailed > 0 {
		result += fmt.Sprintf("  Decrypt failed:   %5d\n", snap.DecryptFailed)
	}
	if snap.EnvelopeErrors > 0 {
		result += fmt.Sprintf("  Bad envelope:     %5d\n", snap.EnvelopeErrors)
	}
	if snap.PayloadErrors > 0 {
		result += fmt.Sprintf("  Bad payload:      %5d\n", snap.PayloadErrors)
	}
	if snap.NoPayload > 0 {
		result += fmt.Sprintf("No payload:      %8d\n", snap.NoPayload)
	}
	result += fmt.Sprintf("Readings:        %8d\n", snap.Readings)
	result += fmt.Sprintf("Message Rate:    %8.1f msgs/sec\n", snap.MessageRate)
	result += fmt.Sprintf("Failure Rate:    %8.1f fails/sec\n", snap.FailureRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.Counters = Counters{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

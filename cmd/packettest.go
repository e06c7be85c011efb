// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a decodable Sleepy Sensor packet",
	Long: `Wait for a decodable observer packet on the connection until timeout.

This command connects to an MQTT broker, WebSocket or serial port and waits
for any envelope whose raw payload decodes. Malformed envelopes and payloads
are counted and ignored.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a decodable packet
  2 - Connection error

Useful for checking that an observer is publishing and the PSK is right.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	decoder, err := cfg.NewDecoder()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	src, err := OpenSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Sleepystat - Packet Test\n")
	fmt.Printf("Connection: %s\n", src.Describe())
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for decodable packet...\n\n")

	packetChan := make(chan *sleepy.Message, 1)
	skipped := make(chan struct{}, 1024)

	err = src.Start(func(topic string, payload []byte) {
		msg, err := decoder.DecodeMessage(payload)
		if err != nil || msg.Payload == nil {
			select {
			case skipped <- struct{}{}:
			default:
			}
			return
		}
		select {
		case packetChan <- msg:
		default:
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer src.Close()

	// Wait for packet or timeout
	select {
	case msg := <-packetChan:
		if n := len(skipped); n > 0 {
			fmt.Printf("(skipped %d undecodable envelopes)\n", n)
		}
		packet := msg.Payload
		fmt.Printf("SUCCESS: Received decodable packet\n")
		if msg.Envelope.Origin != nil {
			fmt.Printf("  Origin: %s\n", *msg.Envelope.Origin)
		}
		fmt.Printf("  RTC Timestamp: %s\n", packet.Frame.TimestampISO())
		fmt.Printf("  Encrypted: %v (decrypted: %v)\n", packet.Encrypted, packet.DecryptionSuccessful)
		fmt.Printf("  Sensor Count: %d\n", packet.SensorCount())
		src.Close()
		os.Exit(0)

	case <-src.Done():
		fmt.Fprintf(os.Stderr, "Connection closed before a packet arrived\n")
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No decodable packet received within %d seconds\n", packetTestTimeout)
		src.Close()
		os.Exit(1)
	}

	return nil
}

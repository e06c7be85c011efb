// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "Print raw envelopes without decoding",
	Long: `Connect and print every envelope exactly as the source delivers it.

Nothing is decoded. Useful for checking what an observer actually publishes
and for debugging connection stability.

Exit codes:
  0 - Connection stayed up for the whole duration
  1 - Connection lost before the duration elapsed
  2 - Connection error`,
	RunE: runTap,
}

var tapDuration int

func init() {
	rootCmd.AddCommand(tapCmd)
	tapCmd.Flags().IntVar(&tapDuration, "duration", 30, "Duration in seconds")
}

type tapFrame struct {
	received time.Time
	topic    string
	payload  []byte
}

func runTap(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	src, err := OpenSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Sleepystat - Envelope Tap\n")
	fmt.Printf("Connection: %s\n", src.Describe())
	fmt.Printf("Duration: %d seconds\n\n", tapDuration)

	frames := make(chan tapFrame, 100)
	err = src.Start(func(topic string, payload []byte) {
		select {
		case frames <- tapFrame{received: time.Now(), topic: topic, payload: payload}:
		default:
			// Printing fell behind; the source must not block
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer src.Close()

	start := time.Now()
	endTime := start.Add(time.Duration(tapDuration) * time.Second)
	bytesReceived := 0
	envelopesReceived := 0

	fmt.Printf("Listening for envelopes...\n\n")

	heartbeat := time.NewTicker(5 * time.Second)
	defer heartbeat.Stop()

	for time.Now().Before(endTime) {
		select {
		case f := <-frames:
			bytesReceived += len(f.payload)
			envelopesReceived++
			fmt.Printf("[%s] %s (%d bytes): %s\n",
				f.received.Format("15:04:05.000"), f.topic, len(f.payload), f.payload)

		case <-src.Done():
			fmt.Printf("\n[%s] Connection lost\n", time.Now().Format("15:04:05.000"))
			printTapResults(time.Since(start), envelopesReceived, bytesReceived)
			fmt.Printf("Result: FAILED (connection lost)\n")
			src.Close()
			os.Exit(1)

		case <-heartbeat.C:
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), time.Until(endTime).Seconds())

		case <-time.After(time.Until(endTime)):
		}
	}

	printTapResults(time.Since(start), envelopesReceived, bytesReceived)
	fmt.Printf("Result: PASSED (connection stable)\n")
	return nil
}

func printTapResults(elapsed time.Duration, envelopes, bytes int) {
	fmt.Printf("\n--- Tap Results ---\n")
	fmt.Printf("Duration: %s\n", formatDuration(elapsed))
	fmt.Printf("Envelopes received: %d\n", envelopes)
	fmt.Printf("Bytes received: %d\n", bytes)
}

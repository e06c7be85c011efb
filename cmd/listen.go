// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
	"github.com/spf13/cobra"
)

var (
	outputFormat        string
	listenWorkers       int
	listenQueueSize     int
	listenStatsInterval time.Duration
	verbose             bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode and display observer packets as they arrive",
	Long: `Continuously decode and display Sleepy Sensor packets relayed by observers.

Each envelope is decoded on a worker pool and printed as a human-readable
report, or as one JSON document per line (--output json), or as a stream of
CBOR items (--output cbor).

Encrypted packets are decrypted with the channel PSK (--psk, default public
channel key) unless --no-decrypt is given.

With --verbose, statistics are printed every --stats-interval. A final
statistics summary is always printed on exit.

Supports MQTT, WebSocket and serial connections.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVarP(&outputFormat, "output", "o", defaultOutput, "Output format: text, json or cbor")
	listenCmd.Flags().IntVar(&listenWorkers, "workers", defaultWorkers, "Decode workers")
	listenCmd.Flags().IntVar(&listenQueueSize, "queue-size", defaultQueueSize, "Pending envelopes before new ones are dropped")
	listenCmd.Flags().DurationVar(&listenStatsInterval, "stats-interval", defaultStatsInterval, "Statistics interval (with --verbose)")
	listenCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log payload errors and print periodic statistics")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags())
	if err != nil {
		return err
	}

	decoder, err := cfg.NewDecoder()
	if err != nil {
		return err
	}

	src, err := OpenSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := startMetrics(ctx, cfg)
	if err != nil {
		return err
	}

	stats := sleepy.NewStatistics()
	proc := newProcessor(decoder, stats, metrics, os.Stdout, cfg.Listener.Output)
	proc.verbose = verbose
	pool := NewPool(cfg.Listener.Workers, cfg.Listener.QueueSize)

	// Human-readable banners would corrupt machine output
	banner := os.Stdout
	if cfg.Listener.Output != outputText {
		banner = os.Stderr
	}
	fmt.Fprintf(banner, "Sleepystat - Packet Listener\n")
	fmt.Fprintf(banner, "Connection: %s\n", src.Describe())
	fmt.Fprintf(banner, "Key: %s\n", describeKey(decoder))
	fmt.Fprintf(banner, "Press Ctrl+C to exit\n\n")

	err = src.Start(func(topic string, payload []byte) {
		metrics.IncReceived()
		if !pool.Submit(func() { proc.handle(topic, payload) }) {
			metrics.IncDropped()
			if verbose {
				log.Printf("[%s] queue full, envelope dropped", topic)
			}
		}
	})
	if err != nil {
		pool.Close()
		return err
	}

	var tick <-chan time.Time
	if verbose {
		ticker := time.NewTicker(cfg.Listener.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-src.Done():
			log.Printf("Connection closed")
			break loop
		case <-tick:
			fmt.Fprint(os.Stderr, stats.String())
		}
	}

	if err := src.Close(); err != nil {
		log.Printf("Close error: %v", err)
	}
	pool.Close()

	fmt.Fprint(os.Stderr, "\n"+stats.String())
	if dropped := pool.Dropped(); dropped > 0 {
		fmt.Fprintf(os.Stderr, "Dropped (queue full): %d\n", dropped)
	}
	return nil
}

// startMetrics registers the collectors and serves them when an address
// is configured
func startMetrics(ctx context.Context, cfg *Config) (*Metrics, error) {
	if cfg.Metrics.Addr == "" {
		return nil, nil
	}
	metrics, err := NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	serveMetrics(ctx, cfg.Metrics.Addr, metrics)
	log.Printf("Serving metrics on %s/metrics", cfg.Metrics.Addr)
	return metrics, nil
}

// describeKey summarizes the decoder's key for banners
func describeKey(d *sleepy.Decoder) string {
	if !d.AutoDecrypt() {
		return "decryption disabled"
	}
	if d.Key().IsPublic() {
		return "public channel (AES-128)"
	}
	return fmt.Sprintf("private channel (AES-%d)", d.Key().Bits())
}

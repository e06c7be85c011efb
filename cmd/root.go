// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath string

	// MQTT connection flags
	mqttBroker   string
	mqttPort     int
	mqttTopic    string
	mqttUsername string
	mqttTLS      bool
	mqttCAFile   string
	mqttCertFile string
	mqttKeyFile  string
	mqttInsecure bool

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Decoder flags
	pskBase64 string
	noDecrypt bool

	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "sleepystat",
	Short: "Sleepy Sensor Telemetry Decoder",
	Long: `Sleepystat - A CLI tool for decoding Sleepy Sensor telemetry relayed by mesh observers.

Observers publish each received packet as a JSON envelope whose "raw" field
holds the packet as hex. Sleepystat decodes the LPP telemetry, detects packets
encrypted on a private channel and decrypts them with the channel PSK.

Connection modes:
  MQTT:      --broker mqtt.example.org [--mqtt-port 1883] [--topic sleepy_sensor/#]
  WebSocket: --url ws://host/path [--username user]
  Serial:    --port /dev/ttyUSB0 [--baud 115200]

Settings can also be loaded from a YAML file with --config; flags given on the
command line take precedence over the file.

For MQTT and WebSocket authentication, the password is read from the
SLEEPYSTAT_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	addConnectionFlags(rootCmd.PersistentFlags())
}

// addConnectionFlags registers the connection and decoder flags on fs
func addConnectionFlags(fs *pflag.FlagSet) {
	// MQTT connection flags
	fs.StringVar(&mqttBroker, "broker", "", "MQTT broker host")
	fs.IntVar(&mqttPort, "mqtt-port", 0, "MQTT broker port (default 1883, 8883 with --tls)")
	fs.StringVarP(&mqttTopic, "topic", "t", defaultTopic, "MQTT topic filter")
	fs.StringVar(&mqttUsername, "mqtt-username", "", "MQTT username")
	fs.BoolVar(&mqttTLS, "tls", false, "Connect to the broker over TLS")
	fs.StringVar(&mqttCAFile, "ca-file", "", "CA certificate for broker verification (PEM)")
	fs.StringVar(&mqttCertFile, "cert-file", "", "Client certificate (PEM)")
	fs.StringVar(&mqttKeyFile, "key-file", "", "Client private key (PEM)")
	fs.BoolVar(&mqttInsecure, "insecure", false, "Skip broker certificate verification")

	// Serial connection flags
	fs.StringVarP(&portName, "port", "p", "", "Serial port device")
	fs.IntVarP(&baudRate, "baud", "b", defaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	fs.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	fs.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	fs.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Decoder flags
	fs.StringVarP(&pskBase64, "psk", "k", "", "Channel PSK, base64 (default: public channel key)")
	fs.BoolVar(&noDecrypt, "no-decrypt", false, "Do not attempt to decrypt encrypted packets")

	fs.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Sleepystat - Sleepy Sensor Telemetry Decoder
//
// A CLI tool for decoding Sleepy Sensor mesh telemetry relayed by observer
// nodes over MQTT, WebSocket or serial, in human-readable or machine form.

package main

import (
	"os"

	"github.com/Thermoquad/sleepystat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

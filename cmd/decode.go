// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	decodeFile string
	decodeHex  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [envelope-json]",
	Short: "Decode a single envelope or raw payload offline",
	Long: `Decode one observer JSON envelope without connecting to anything.

The envelope is read from the argument, from --file, or from stdin when
neither is given. With --hex, a raw payload in hex is decoded instead and only
the packet is reported.

Examples:
  sleepystat decode '{"raw": "675C1D10000167..."}'
  sleepystat decode --file packet.json --output json
  sleepystat decode --hex 675C1D1000016700FA00 --psk <base64>`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "Read the envelope from a file ('-' for stdin)")
	decodeCmd.Flags().StringVar(&decodeHex, "hex", "", "Decode a raw hex payload instead of an envelope")
	decodeCmd.Flags().StringVarP(&outputFormat, "output", "o", defaultOutput, "Output format: text, json or cbor")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags())
	if err != nil {
		return err
	}
	decoder, err := cfg.NewDecoder()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if decodeHex != "" {
		packet, err := decoder.DecodeHex(strings.TrimSpace(decodeHex))
		if err != nil {
			return err
		}
		return writePacket(out, packet, cfg.Listener.Output)
	}

	data, err := readEnvelope(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	msg, err := decoder.DecodeMessage(data)
	if err != nil {
		return err
	}
	return writeMessage(out, msg, cfg.Listener.Output)
}

// readEnvelope returns the envelope from the argument, --file or stdin
func readEnvelope(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) > 0 {
		if decodeFile != "" {
			return nil, fmt.Errorf("give the envelope as an argument or with --file, not both")
		}
		return []byte(args[0]), nil
	}

	if decodeFile != "" && decodeFile != "-" {
		data, err := os.ReadFile(decodeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", decodeFile, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}

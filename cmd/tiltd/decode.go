package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tiltd/pkg/config"
	"tiltd/pkg/protocol"
)

type decodeResult struct {
	Line       int      `json:"line"`
	Roll       *float64 `json:"roll,omitempty"`
	Pitch      *float64 `json:"pitch,omitempty"`
	ChecksumOK *bool    `json:"checksum_ok,omitempty"`
	Status     string   `json:"status,omitempty"`
	FrameHex   string   `json:"frame_hex,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func newDecodeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "decode [record...]",
		Short: "Decode records given as arguments or one per line on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			dec := decoderFromConfig(cfg)
			enc := json.NewEncoder(cmd.OutOrStdout())

			failed := 0
			emit := func(line int, rec string) error {
				res := decodeLine(dec, line, rec)
				if res.Error != "" {
					failed++
				}
				return enc.Encode(res)
			}

			if len(args) > 0 {
				for i, rec := range args {
					if err := emit(i+1, rec); err != nil {
						return err
					}
				}
			} else if err := decodeStream(cmd.InOrStdin(), emit); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d record(s) failed to decode", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "TOML config file")
	return cmd
}

func decodeStream(r io.Reader, emit func(int, string) error) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		if err := emit(line, sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}

func decodeLine(dec protocol.Decoder, line int, rec string) decodeResult {
	res := decodeResult{Line: line}
	frame, err := protocol.ParseRecord([]byte(rec))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	s, err := dec.Decode(frame)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Roll = &s.Roll
	res.Pitch = &s.Pitch
	res.ChecksumOK = &s.ChecksumOK
	res.Status = s.ChecksumStatus()
	res.FrameHex = s.FrameHex()
	return res
}

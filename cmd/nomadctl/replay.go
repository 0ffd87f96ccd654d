package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"supernomad/internal/location"
	"supernomad/internal/tracking/engine"
	"supernomad/internal/tracking/models"
	id "supernomad/pkg/domain"
	"supernomad/pkg/requestcontext"
)

// replayLine is one JSON line of a recorded trip.
type replayLine struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CountryCode string    `json:"country_code"`
	CountryName string    `json:"country_name"`
	City        string    `json:"city"`
	CapturedAt  time.Time `json:"captured_at"`
	// VPNActiveFor is a Go duration string such as "2h".
	VPNActiveFor string `json:"vpn_active_for"`
}

func (l replayLine) sample() (models.LocationSample, error) {
	var vpnFor time.Duration
	vpnActive := l.VPNActiveFor != ""
	if vpnActive {
		d, err := time.ParseDuration(l.VPNActiveFor)
		if err != nil {
			return models.LocationSample{}, fmt.Errorf("vpn_active_for: %w", err)
		}
		vpnFor = d
	}
	confidence, duration := location.Assess(vpnActive, vpnFor)
	return models.LocationSample{
		ID:                id.NewSampleID(),
		Latitude:          l.Latitude,
		Longitude:         l.Longitude,
		CountryCode:       id.NormalizeCountryCode(l.CountryCode),
		CountryName:       l.CountryName,
		City:              l.City,
		CapturedAt:        l.CapturedAt,
		Confidence:        confidence,
		VPNActiveDuration: duration,
	}, nil
}

func init() {
	var confirmVPN bool
	var vpnThreshold time.Duration
	replayCmd := &cobra.Command{
		Use:   "replay SAMPLES.jsonl",
		Short: "Feed recorded samples through the engine and print notifications",
		Long: "Each line is a JSON object with latitude, longitude, country_code, " +
			"country_name, city, captured_at and an optional vpn_active_for duration. " +
			"Samples are processed with the clock set to captured_at. Use - for stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			return withApp(cmd, func(ctx context.Context, a *app) error {
				return replay(ctx, a, in, cmd.OutOrStdout(), confirmVPN)
			}, engine.WithVPNSuspectThreshold(vpnThreshold))
		},
	}
	replayCmd.Flags().BoolVar(&confirmVPN, "confirm-vpn", false, "Confirm VPN-suspect samples instead of leaving them pending")
	replayCmd.Flags().DurationVar(&vpnThreshold, "vpn-threshold", time.Hour, "VPN duration after which a sample needs confirmation")
	rootCmd.AddCommand(replayCmd)
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func replay(ctx context.Context, a *app, in io.Reader, out io.Writer, confirmVPN bool) error {
	scanner := bufio.NewScanner(in)
	var samples, processed, dropped, pending int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		samples++
		var line replayLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		sample, err := line.sample()
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		sctx := requestcontext.WithTime(ctx, sample.CapturedAt)
		res, err := a.service.ProcessLocation(sctx, sample)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch {
		case res.Dropped:
			dropped++
		case res.Pending && confirmVPN:
			if _, err := a.service.ConfirmLocation(sctx, sample.ID, true); err != nil {
				return fmt.Errorf("line %d: confirm: %w", lineNo, err)
			}
			processed++
		case res.Pending:
			pending++
		default:
			processed++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "replayed %d samples: %d processed, %d pending, %d dropped\n",
		samples, processed, pending, dropped)
	return err
}

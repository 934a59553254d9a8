// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// trngctl exercises the TRNG driver end to end against the simulated
// device: power-on self tests, instantiate, generate and release. It is a
// development tool; on real hardware the platform wires the driver through
// its own register mapping.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	ctrdrbg "github.com/sixafter/aes-ctr-drbg"
	"github.com/spf13/cobra"

	"github.com/sixafter/trng"
	"github.com/sixafter/trng/internal/engine"
	"github.com/sixafter/trng/internal/sim"
)

var (
	count    int
	mode     string
	revision int
	seedLife uint32
	dfmul    uint32
	raw      bool
	verbose  bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trngctl",
	Short: "Drive the TRNG state machine against a simulated device",
	Long: `trngctl runs the TRNG driver against a simulated register back-end:
the power-on known-answer and health tests, instantiate in the requested
mode, generate, and release. Output, timings and instance statistics are
reported so the full register flow can be inspected.`,
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate random bytes through the full driver stack",
		RunE:  runGenerate,
	}

	cmd.Flags().IntVarP(&count, "count", "n", 64, "Number of random bytes to generate")
	cmd.Flags().StringVarP(&mode, "mode", "m", "hrng", "Operating mode: hrng, drng or ptrng")
	cmd.Flags().IntVarP(&revision, "revision", "r", 1, "IP silicon revision: 1 or 2")
	cmd.Flags().Uint32Var(&seedLife, "seed-life", trng.DefaultSeedLife, "Generate calls permitted per seed")
	cmd.Flags().Uint32Var(&dfmul, "dfmul", trng.DefaultDFMul, "Derivation function length multiplier")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write raw bytes to stdout instead of a hex dump")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable driver logging")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if count <= 0 {
		return fmt.Errorf("--count must be a positive integer")
	}

	version := trng.V1
	katCapture := engine.KATV1Expected[:]
	switch revision {
	case 1:
	case 2:
		version = trng.V2
		katCapture = engine.KATV2Expected[:]
	default:
		return fmt.Errorf("--revision must be 1 or 2")
	}

	// A V1 caller seed is 48 bytes, which bounds the DF multiplier.
	if mode == "drng" && version == trng.V1 && !cmd.Flags().Changed("dfmul") {
		dfmul = 2
	}

	opts := []trng.Option{
		trng.WithVersion(version),
		trng.WithSeedLife(seedLife),
		trng.WithDFMul(dfmul),
	}
	switch mode {
	case "hrng":
		opts = append(opts, trng.WithMode(trng.ModeHRNG))
	case "ptrng":
		opts = append(opts, trng.WithMode(trng.ModePTRNG), trng.WithSeedLifeZero())
	case "drng":
		seed := make([]byte, seedLenFor(version))
		if _, err := io.ReadFull(ctrdrbg.Reader, seed); err != nil {
			return fmt.Errorf("seeding drng: %w", err)
		}
		opts = append(opts, trng.WithMode(trng.ModeDRNG), trng.WithSeed(seed))
	default:
		return fmt.Errorf("--mode must be hrng, drng or ptrng")
	}

	if verbose {
		log := logrus.New()
		log.SetOutput(cmd.ErrOrStderr())
		log.SetLevel(logrus.DebugLevel)
		opts = append(opts, trng.WithLogger(log))
	}

	// The simulator replays the captured known-answer output for the
	// power-on self test, then models the core behaviorally.
	dev, err := trng.Open(sim.New(sim.WithGenerateScript(katCapture)), opts...)
	if err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	defer dev.Close()

	buf := make([]byte, count)
	start := time.Now()
	if _, err := dev.Read(buf); err != nil {
		return fmt.Errorf("generating: %w", err)
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if raw {
		if _, err := out.Write(buf); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, hex.Dump(buf))
	}

	if verbose {
		stats := dev.Stats()
		rate := float64(count) / elapsed.Seconds()
		fmt.Fprintf(cmd.ErrOrStderr(), "generated %s in %s (%s/s), %d generate calls, %d reseeds\n",
			humanize.Bytes(uint64(count)), elapsed.Round(time.Microsecond),
			humanize.Bytes(uint64(rate)), stats.GenerateCalls, stats.Reseeds)
	}
	return nil
}

// seedLenFor returns the initial seed length per revision.
func seedLenFor(v trng.Version) int {
	if v == trng.V2 {
		return trng.SeedLenV2
	}
	return trng.SeedLenV1
}

func main() {
	rootCmd.AddCommand(newGenerateCommand())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trngctl: %v\n", err)
		os.Exit(1)
	}
}

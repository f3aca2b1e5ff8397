package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shivam-909/freelistalloc/internal/driver"
	standardbook "github.com/shivam-909/freelistalloc/internal/orderbook/standard"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		ops        int
		profileOut string
		profileDir string
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:          "standard",
		Short:        "Run the order-book workload on the Go allocator",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stop, err := driver.StartProfile(profileOut, profileDir)
			if err != nil {
				return err
			}
			defer stop()

			ob := standardbook.New()
			elapsed, err := driver.Run(ob, ops, seed)
			if err != nil {
				return fmt.Errorf("order book: %w", err)
			}
			driver.Report(cmd.OutOrStdout(), "Standard Allocator", ops, elapsed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&ops, "ops", "n", 2500000, "operations to run")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "order book workload seed")
	cmd.Flags().StringVar(&profileOut, "profile", "", "pprof profile to capture: cpu, mem or alloc")
	cmd.Flags().StringVar(&profileDir, "profile-dir", ".", "directory for profile output")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shivam-909/freelistalloc/alloc"
	"github.com/shivam-909/freelistalloc/internal/driver"
	manualbook "github.com/shivam-909/freelistalloc/internal/orderbook/manual"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		ops        int
		workers    int
		maxLive    int
		profileOut string
		profileDir string
		verify     bool
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Run the order-book workload on the free-list allocator",
		Long: `Runs random order-book inserts and removals with every node allocated
from the free-list allocator. With --workers > 0 it instead runs a parallel
allocate/free churn directly against the allocator.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stop, err := driver.StartProfile(profileOut, profileDir)
			if err != nil {
				return err
			}
			defer stop()

			a := alloc.Default()
			if workers > 0 {
				elapsed, err := driver.Churn(context.Background(), a, workers, ops, maxLive)
				if err != nil {
					return fmt.Errorf("churn: %w", err)
				}
				driver.Report(cmd.OutOrStdout(), fmt.Sprintf("Free-list Churn x%d", workers), ops*workers, elapsed)
			} else {
				ob := manualbook.NewWith(a)
				elapsed, err := driver.Run(ob, ops, seed)
				ob.Reset()
				if err != nil {
					return fmt.Errorf("order book: %w", err)
				}
				driver.Report(cmd.OutOrStdout(), "Manual Allocator", ops, elapsed)
			}

			if verify {
				if err := a.Verify(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "heap verified: %d mapped blocks\n", len(a.Snapshot()))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&ops, "ops", "n", 2500000, "operations to run (per worker with --workers)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel churn workers; 0 runs the order book")
	cmd.Flags().IntVar(&maxLive, "max-live", 256, "live allocations per churn worker")
	cmd.Flags().StringVar(&profileOut, "profile", "", "pprof profile to capture: cpu, mem or alloc")
	cmd.Flags().StringVar(&profileDir, "profile-dir", ".", "directory for profile output")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "order book workload seed")
	cmd.Flags().BoolVar(&verify, "verify", false, "check allocator free lists after the run")
	return cmd
}

// Package driver runs the order-book and churn workloads behind the
// benchmark commands.
package driver

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shivam-909/freelistalloc/alloc"
	"github.com/shivam-909/freelistalloc/internal/orderbook"
)

// StartProfile starts a pprof profile of the given kind ("cpu", "mem",
// "alloc" or "" for none) written under dir. The returned func stops it.
func StartProfile(kind, dir string) (func(), error) {
	var mode func(*profile.Profile)
	switch kind {
	case "":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "alloc":
		mode = profile.MemProfileAllocs
	default:
		return nil, fmt.Errorf("unknown profile kind %q", kind)
	}
	p := profile.Start(mode, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook)
	return p.Stop, nil
}

// Run drives ob through ops seeded inserts and removals. It stops at the
// first failed operation.
func Run(ob orderbook.OrderBook, ops int, seed uint64) (time.Duration, error) {
	w := orderbook.NewWorkload(seed)
	start := time.Now()
	for i := range ops {
		if err := w.Step(ob); err != nil {
			return time.Since(start), fmt.Errorf("op %d: %w", i, err)
		}
	}
	return time.Since(start), nil
}

// Report prints a one-line summary with grouped digits.
func Report(w io.Writer, label string, ops int, elapsed time.Duration) {
	avg := time.Duration(0)
	if ops > 0 {
		avg = elapsed / time.Duration(ops)
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%s || %d OPS || TOTAL: %s || AVERAGE: %s\n", label, ops, elapsed.String(), avg.String())
}

// Churn has workers goroutines each perform ops random allocations and
// frees against a, keeping up to maxLive allocations each. Every payload is
// checked before it is freed.
func Churn(ctx context.Context, a *alloc.Allocator, workers, ops, maxLive int) (time.Duration, error) {
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := range workers {
		g.Go(func() error {
			return churn(ctx, a, uint64(w), ops, maxLive)
		})
	}
	err := g.Wait()
	return time.Since(start), err
}

func churn(ctx context.Context, a *alloc.Allocator, seed uint64, ops, maxLive int) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	tag := byte(seed) + 1
	live := make([][]byte, 0, maxLive)
	defer func() {
		for _, b := range live {
			alloc.FreeSliceWith(a, b)
		}
	}()

	for i := 0; i < ops; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(live) == maxLive || (len(live) > 0 && rng.IntN(2) == 0) {
			j := rng.IntN(len(live))
			b := live[j]
			for k := range b {
				if b[k] != tag {
					return fmt.Errorf("worker %d: payload at %p overwritten", seed, &b[0])
				}
			}
			alloc.FreeSliceWith(a, b)
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		b := alloc.MakeSliceWith[byte](a, rng.IntN(4096)+1)
		if b == nil {
			return alloc.ErrOutOfMemory
		}
		for k := range b {
			b[k] = tag
		}
		live = append(live, b)
	}
	return nil
}

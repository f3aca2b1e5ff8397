package driver

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivam-909/freelistalloc/alloc"
	standardbook "github.com/shivam-909/freelistalloc/internal/orderbook/standard"
)

func TestReportGroupsDigits(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, "Manual Allocator", 2500000, 5*time.Second)
	assert.Equal(t, "Manual Allocator || 2,500,000 OPS || TOTAL: 5s || AVERAGE: 2µs\n", buf.String())

	buf.Reset()
	Report(&buf, "empty", 0, 0)
	assert.Contains(t, buf.String(), "AVERAGE: 0s")
}

func TestRun(t *testing.T) {
	ob := standardbook.New()
	elapsed, err := Run(ob, 1000, 7)
	require.NoError(t, err)
	assert.Positive(t, elapsed)
}

func TestChurn(t *testing.T) {
	a := alloc.NewAllocator(&alloc.Config{GrowthFloor: 1 << 20})
	_, err := Churn(context.Background(), a, 4, 2000, 64)
	require.NoError(t, err)
	require.NoError(t, a.Verify())
	for _, b := range a.Snapshot() {
		require.Len(t, b.Free, 1)
	}
}

func TestChurnCancelled(t *testing.T) {
	a := alloc.NewAllocator(&alloc.Config{GrowthFloor: 1 << 20})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Churn(ctx, a, 2, 10, 4)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, a.Verify())
}

func TestStartProfile(t *testing.T) {
	stop, err := StartProfile("", t.TempDir())
	require.NoError(t, err)
	stop()

	_, err = StartProfile("heap-of-bugs", t.TempDir())
	require.Error(t, err)
}

package exchangeimport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyBatches_FailedChunkDoesNotAbortRun(t *testing.T) {
	var calls [][2]int
	applied, errs := applyBatches(250, 100, func(start, end int) error {
		calls = append(calls, [2]int{start, end})
		if start == 100 {
			return errors.New("disk full")
		}
		return nil
	})

	// The middle chunk fails; the first and last still land.
	require.Equal(t, [][2]int{{0, 100}, {100, 200}, {200, 250}}, calls)
	require.Equal(t, 150, applied)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "rows 100-200")
	require.Contains(t, errs[0].Error(), "disk full")
}

func TestApplyBatches_Empty(t *testing.T) {
	applied, errs := applyBatches(0, 100, func(start, end int) error {
		t.Fatal("apply should not run for zero rows")
		return nil
	})
	require.Zero(t, applied)
	require.Empty(t, errs)
}

func TestApplyBatches_SingleShortChunk(t *testing.T) {
	applied, errs := applyBatches(7, 100, func(start, end int) error {
		require.Equal(t, 0, start)
		require.Equal(t, 7, end)
		return nil
	})
	require.Equal(t, 7, applied)
	require.Empty(t, errs)
}

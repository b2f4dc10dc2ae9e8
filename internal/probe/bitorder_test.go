package probe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBitOrderMapInjective(t *testing.T) {
	m := NewBitOrderMap(4)
	require.NoError(t, m.Set(0, 2))
	require.Error(t, m.Set(0, 3), "re-mapping a bit must fail")
	require.Error(t, m.Set(1, 2), "claiming a taken channel must fail")
	require.NoError(t, m.Set(1, 1))

	require.Error(t, m.Set(-1, 0))
	require.Error(t, m.Set(4, 0))
}

func TestWithIdentityFallback(t *testing.T) {
	m := NewBitOrderMap(4)
	require.NoError(t, m.Set(0, 3))
	require.NoError(t, m.Set(2, 1))

	total, backfilled := m.WithIdentityFallback()

	// The flagged list is exactly the originally unresolved set.
	require.Equal(t, []int{1, 3}, backfilled)
	require.Equal(t, m.Unresolved(), backfilled)

	// The result is total over all positions.
	require.Empty(t, total.Unresolved())

	// Calibrated entries survive; backfilled positions map to themselves.
	ch, _ := total.Channel(0)
	require.Equal(t, 3, ch)
	ch, _ = total.Channel(1)
	require.Equal(t, 1, ch)
	ch, _ = total.Channel(3)
	require.Equal(t, 3, ch)

	// The original map is untouched.
	require.Equal(t, []int{1, 3}, m.Unresolved())
}

func TestWithIdentityFallbackComplete(t *testing.T) {
	m := Identity(3)
	total, backfilled := m.WithIdentityFallback()
	require.Empty(t, backfilled)
	require.NotNil(t, backfilled, "flag list must serialize as [], not null")
	require.Empty(t, total.Unresolved())
}

func TestIdentity(t *testing.T) {
	m := Identity(5)
	require.Equal(t, []int{0, 1, 2, 3, 4}, m.Resolved())
	for i := 0; i < 5; i++ {
		ch, ok := m.Channel(i)
		require.True(t, ok)
		require.Equal(t, i, ch)
	}
}

func TestToMapRoundTrip(t *testing.T) {
	m := NewBitOrderMap(3)
	require.NoError(t, m.Set(0, 1))
	require.NoError(t, m.Set(2, 0))

	if diff := cmp.Diff(map[int]int{0: 1, 2: 0}, m.ToMap()); diff != "" {
		t.Fatalf("ToMap mismatch (-want +got):\n%s", diff)
	}
}

package decode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"qscan/internal/probe"
)

func TestRIDRoundTrip(t *testing.T) {
	for blockBits := 1; blockBits <= 8; blockBits++ {
		for blockID := 0; blockID < 5; blockID++ {
			for local := 0; local < 1<<blockBits; local++ {
				global := GlobalRID(blockID, blockBits, local)
				gotBlock, gotLocal := SplitRID(global, blockBits)
				require.Equal(t, blockID, gotBlock)
				require.Equal(t, local, gotLocal)
			}
		}
	}
}

func TestLocalRIDIdentity(t *testing.T) {
	m := probe.Identity(4)
	require.Equal(t, 0, LocalRID("0000", m, 4))
	require.Equal(t, 1, LocalRID("0001", m, 4))
	require.Equal(t, 2, LocalRID("0010", m, 4))
	require.Equal(t, 15, LocalRID("1111", m, 4))
	// Only blockBits bits are read even from a wider payload.
	require.Equal(t, 1, LocalRID("1101", m, 2))
}

func TestLocalRIDPermuted(t *testing.T) {
	// Logical bit 0 on channel 1, bit 1 on channel 0: reading "01" gives
	// bit 1 set rather than bit 0.
	m := probe.NewBitOrderMap(2)
	require.NoError(t, m.Set(0, 1))
	require.NoError(t, m.Set(1, 0))

	require.Equal(t, 2, LocalRID("01", m, 2))
	require.Equal(t, 1, LocalRID("10", m, 2))
}

func TestLocalRIDUnresolvedContributesZero(t *testing.T) {
	m := probe.NewBitOrderMap(3)
	require.NoError(t, m.Set(0, 0))
	// Bits 1 and 2 unresolved.
	require.Equal(t, 1, LocalRID("111", m, 3))
}

func TestAnalyzeHitsBlockedScenario(t *testing.T) {
	// Two-bit block 1, target global rid 5 = (1<<2)|1: outcome "01" decodes
	// to local 1, global 5.
	probs := map[string]float64{"01": 0.7, "10": 0.3}
	hit := AnalyzeHits(probs, probe.Identity(2), 1, 2, []int{5})

	require.InDelta(t, 0.7, hit.PAnyHit, 1e-12)
	require.Equal(t, "01", hit.Top1Bitstring)
	require.InDelta(t, 0.7, hit.Top1Prob, 1e-12)
	require.Equal(t, 1, hit.Top1LocalRID)
	require.Equal(t, 5, hit.Top1GlobalRID)
	require.True(t, hit.Top1Hit)
}

func TestAnalyzeHitsMassIsExact(t *testing.T) {
	probs := map[string]float64{
		"0000": 0.1,
		"0001": 0.2,
		"0010": 0.3,
		"0011": 0.4,
	}
	// Block 0, targets {1, 3}: expected mass 0.2 + 0.4.
	hit := AnalyzeHits(probs, probe.Identity(4), 0, 4, []int{1, 3})
	require.InDelta(t, 0.6, hit.PAnyHit, 1e-12)
	require.GreaterOrEqual(t, hit.PAnyHit, 0.0)
	require.LessOrEqual(t, hit.PAnyHit, 1.0)
}

func TestAnalyzeHitsNoTargets(t *testing.T) {
	probs := map[string]float64{"01": 1.0}
	hit := AnalyzeHits(probs, probe.Identity(2), 0, 2, nil)
	require.Zero(t, hit.PAnyHit)
	require.False(t, hit.Top1Hit)
}

func TestAnalyzeHitsEmptyDistribution(t *testing.T) {
	hit := AnalyzeHits(nil, probe.Identity(2), 0, 2, []int{1})
	require.Zero(t, hit.PAnyHit)
	require.Empty(t, hit.Top1Bitstring)
}

func TestAnalyzeHitsTieBreaksLowestGlobalRID(t *testing.T) {
	probs := map[string]float64{"10": 0.5, "01": 0.5}
	hit := AnalyzeHits(probs, probe.Identity(2), 1, 2, nil)
	// "01" decodes to global 5, "10" to global 6; equal mass picks 5.
	require.Equal(t, 5, hit.Top1GlobalRID)
	require.Equal(t, "01", hit.Top1Bitstring)
}

func TestAnalyzeHitsIdempotent(t *testing.T) {
	probs := map[string]float64{"0110": 0.25, "1001": 0.5, "0001": 0.25}
	m := probe.Identity(4)

	first := AnalyzeHits(probs, m, 2, 4, []int{41, 33})
	second := AnalyzeHits(probs, m, 2, 4, []int{41, 33})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated decode differs (-first +second):\n%s", diff)
	}
}

func TestTopK(t *testing.T) {
	probs := map[string]float64{
		"00": 0.1,
		"01": 0.4,
		"10": 0.4,
		"11": 0.1,
	}
	top := TopK(probs, 3)
	require.Len(t, top, 3)
	require.Equal(t, "01", top[0].Bitstring, "equal masses order by bitstring")
	require.Equal(t, "10", top[1].Bitstring)
	require.Equal(t, "00", top[2].Bitstring)

	require.Len(t, TopK(probs, 0), 4, "k=0 keeps everything")
}

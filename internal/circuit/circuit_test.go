package circuit

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestGroverDeterministic(t *testing.T) {
	a, err := Grover(4, 10, []int{9}, 1)
	require.NoError(t, err)
	b, err := Grover(4, 10, []int{9}, 1)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("identical inputs produced different circuits (-a +b):\n%s", diff)
	}
}

func TestGroverInvalidTarget(t *testing.T) {
	_, err := Grover(2, 10, []int{4}, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidTarget), "want ErrInvalidTarget, got %v", err)

	_, err = Grover(2, 10, []int{-1}, 1)
	require.True(t, errors.Is(err, ErrInvalidTarget))

	// Boundary: 3 is the largest representable target for two bits.
	_, err = Grover(2, 10, []int{3}, 1)
	require.NoError(t, err)
}

func TestGroverValidation(t *testing.T) {
	cases := []struct {
		name      string
		blockBits int
		nbitsMax  int
		targets   []int
		iters     int
	}{
		{"zero block bits", 0, 10, []int{0}, 1},
		{"block wider than register", 11, 10, []int{0}, 1},
		{"zero iterations", 4, 10, []int{0}, 0},
		{"no targets", 4, 10, nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Grover(tc.blockBits, tc.nbitsMax, tc.targets, tc.iters)
			require.Error(t, err)
		})
	}
}

func TestGroverMeasuresFixedWidth(t *testing.T) {
	for _, blockBits := range []int{1, 2, 3, 4} {
		c, err := Grover(blockBits, 10, []int{0}, 1)
		require.NoError(t, err)

		measures := 0
		for _, g := range c.Gates {
			if g.Kind == GateMeasure {
				measures++
				require.Equal(t, g.Qubit, g.CBit)
			}
		}
		// Measured width is fixed regardless of the active block width, so
		// the same bit-order map decodes every scale.
		require.Equal(t, 10, measures, "blockBits=%d", blockBits)
	}
}

func TestGroverAncillaPlacement(t *testing.T) {
	// Four active bits need two ancillas for the C^3Z ladder, placed above
	// the measured register.
	c, err := Grover(4, 10, []int{5}, 1)
	require.NoError(t, err)
	require.Equal(t, 12, c.NumQubits)

	// One active bit needs no ancillas.
	c, err = Grover(1, 10, []int{0}, 1)
	require.NoError(t, err)
	require.Equal(t, 10, c.NumQubits)
}

func TestGroverUsesOnlyNativeGates(t *testing.T) {
	c, err := Grover(4, 10, []int{3}, 2)
	require.NoError(t, err)
	for _, g := range c.Gates {
		switch g.Kind {
		case GateU3, GateCZ, GateMeasure:
		default:
			t.Fatalf("non-native gate kind %v", g.Kind)
		}
	}
}

func TestDepthExcludesMeasurements(t *testing.T) {
	c, err := Calibration(10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, c.Depth())
	require.Len(t, c.Gates, 11)
}

func TestCalibration(t *testing.T) {
	c, err := Calibration(10, 3)
	require.NoError(t, err)

	// Exactly one X, expressed through U3(pi, 0, pi), on the probed qubit.
	first := c.Gates[0]
	require.Equal(t, GateU3, first.Kind)
	require.Equal(t, 3, first.Qubit)
	require.InDelta(t, math.Pi, first.Theta, 1e-12)
	require.InDelta(t, math.Pi, first.Lambda, 1e-12)

	_, err = Calibration(10, 10)
	require.Error(t, err)
	_, err = Calibration(10, -1)
	require.Error(t, err)
}

func TestRecommendedIters(t *testing.T) {
	// floor(pi/4 * sqrt(1024)) = floor(25.13) = 25
	require.Equal(t, 25, RecommendedIters(1024, 1))
	// M clamps to 1
	require.Equal(t, 25, RecommendedIters(1024, 0))
	require.Equal(t, 3, RecommendedIters(16, 1))
}

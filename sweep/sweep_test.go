package sweep

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fumin/spinbath"
)

type memCache struct {
	levels map[spinbath.Field][2][]float64
	puts   int
}

func newMemCache() *memCache {
	return &memCache{levels: make(map[spinbath.Field][2][]float64)}
}

func (c *memCache) Get(ctx context.Context, f spinbath.Field) ([2][]float64, bool, error) {
	e, ok := c.levels[f]
	return e, ok, nil
}

func (c *memCache) Put(ctx context.Context, f spinbath.Field, energies [2][]float64) error {
	c.levels[f] = energies
	c.puts++
	return nil
}

func electron() *spinbath.System {
	g := r3.NewMat([]float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	return spinbath.MustNew(spinbath.Config{ElectronSpin: 0.5, G: [2]*r3.Mat{spinbath.Ground: g, spinbath.Excited: g}})
}

func TestFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lo, hi float64
		steps  int
		mags   []float64
	}{
		{lo: 0, hi: 1, steps: 5, mags: []float64{0, 0.25, 0.5, 0.75, 1}},
		{lo: 0.3, hi: 0.3, steps: 1, mags: []float64{0.3}},
		{lo: -1, hi: 1, steps: 2, mags: []float64{-1, 1}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test), func(t *testing.T) {
			t.Parallel()
			fields, err := Fields(test.lo, test.hi, test.steps, 0.1, 0.2)
			require.NoError(t, err)
			require.Len(t, fields, len(test.mags))
			for i, f := range fields {
				require.InDelta(t, test.mags[i], f.Magnitude, 1e-12)
				require.Equal(t, 0.1, f.Theta)
				require.Equal(t, 0.2, f.Phi)
			}
		})
	}

	_, err := Fields(0, 1, 0, 0, 0)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = Fields(1, 0, 3, 0, 0)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestRun(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	fields, err := Fields(0, 1, 3, 0, 0)
	require.NoError(t, err)

	s := electron()
	points, err := Run(context.Background(), s, fields, Options{Kind: spinbath.Optical, Strengths: true, Logger: zap.New(core).Sugar()})
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		require.Equal(t, i, p.Index)
		require.False(t, p.Cached)
		b := fields[i].Magnitude
		for _, m := range spinbath.Manifolds {
			require.InDeltaSlice(t, []float64{-spinbath.BetaElectron * b, spinbath.BetaElectron * b}, p.Energies[m], 1e-9)
			require.InDelta(t, 2*spinbath.BetaElectron*b*1e6, p.Superhyperfine[m].GapNear0, 1e-3)
		}
		require.Len(t, p.Transitions, 4)
		for _, tr := range p.Transitions {
			require.NotNil(t, tr.Strength)
		}
	}
	require.Equal(t, fields[2], s.Field())
	require.Equal(t, 1, logs.FilterMessage("sweep done").Len())
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	fields, err := Fields(0.1, 0.5, 4, 0.3, 0)
	require.NoError(t, err)
	cache := newMemCache()

	first, err := Run(context.Background(), electron(), fields, Options{Cache: cache})
	require.NoError(t, err)
	require.Equal(t, len(fields), cache.puts)

	second, err := Run(context.Background(), electron(), fields, Options{Cache: cache})
	require.NoError(t, err)
	require.Equal(t, len(fields), cache.puts)
	for i := range second {
		require.True(t, second[i].Cached)
		require.Equal(t, first[i].Energies, second[i].Energies)
		require.Equal(t, first[i].Superhyperfine, second[i].Superhyperfine)
		require.Nil(t, second[i].Transitions)
	}

	// Transitions need eigenvectors, so the cache is bypassed.
	third, err := Run(context.Background(), electron(), fields, Options{Cache: cache, Kind: spinbath.SpinGround})
	require.NoError(t, err)
	require.False(t, third[0].Cached)
	require.Len(t, third[0].Transitions, 1)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()
	fields, err := Fields(0, 1, 10, 0, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	points, err := Run(ctx, electron(), fields, Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, points)
}

func TestRunInvalidKind(t *testing.T) {
	t.Parallel()
	fields, err := Fields(0, 1, 2, 0, 0)
	require.NoError(t, err)
	_, err = Run(context.Background(), electron(), fields, Options{Kind: "raman"})
	require.ErrorIs(t, err, spinbath.ErrInvalidTransitionType)
}

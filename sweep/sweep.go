// Package sweep solves a system over a range of magnetic fields.
package sweep

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/fumin/spinbath"
	"github.com/fumin/spinbath/util"
)

var ErrInvalidRange = errors.New("invalid field range")

// Point is the solution at one field.
type Point struct {
	Index    int
	Field    spinbath.Field
	Energies [2][]float64
	// Transitions of the requested type, nil if none were requested.
	Transitions    []spinbath.Transition
	Superhyperfine [2]spinbath.SuperhyperfineLevels
	// Cached is true if the energies were read from the cache.
	Cached bool
}

// Cache stores the energies of both manifolds per field.
type Cache interface {
	Get(ctx context.Context, f spinbath.Field) ([2][]float64, bool, error)
	Put(ctx context.Context, f spinbath.Field, energies [2][]float64) error
}

type Options struct {
	// Kind is the type of transitions to compute, none if empty.
	Kind      spinbath.TransitionType
	Strengths bool
	// Cache is consulted only when no transitions are requested, since it
	// holds energies but not eigenvectors.
	Cache Cache
	// Logger defaults to a no-op logger.
	Logger *zap.SugaredLogger
	// LogInterval throttles progress logs.
	LogInterval time.Duration
}

// Fields returns steps fields with magnitudes evenly spaced over [lo, hi], all along (theta, phi).
func Fields(lo, hi float64, steps int, theta, phi float64) ([]spinbath.Field, error) {
	if steps < 1 || hi < lo {
		return nil, errors.Wrapf(ErrInvalidRange, "[%g, %g] in %d steps", lo, hi, steps)
	}
	mags := []float64{lo}
	if steps > 1 {
		mags = floats.Span(make([]float64, steps), lo, hi)
	}

	fields := make([]spinbath.Field, len(mags))
	for i, m := range mags {
		fields[i] = spinbath.Field{Magnitude: m, Theta: theta, Phi: phi}
	}
	return fields, nil
}

// Run solves s at every field in order. The field of s is left at the last
// solved field. Run stops at the first error or when ctx is done.
func Run(ctx context.Context, s *spinbath.System, fields []spinbath.Field, opts Options) ([]Point, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	interval := opts.LogInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	throttler := util.NewSkipThrottler(interval)
	useCache := opts.Cache != nil && opts.Kind == ""

	start := time.Now()
	points := make([]Point, 0, len(fields))
	var numCached int
	for i, f := range fields {
		if err := ctx.Err(); err != nil {
			return points, errors.Wrap(err, "")
		}

		p := Point{Index: i, Field: f}
		var found bool
		if useCache {
			var err error
			p.Energies, found, err = opts.Cache.Get(ctx, f)
			if err != nil {
				return points, errors.Wrapf(err, "%d %#v", i, f)
			}
		}
		p.Cached = found

		if !found {
			if err := solve(&p, s, opts); err != nil {
				return points, errors.Wrapf(err, "%d %#v", i, f)
			}
			if useCache {
				if err := opts.Cache.Put(ctx, f, p.Energies); err != nil {
					return points, errors.Wrapf(err, "%d %#v", i, f)
				}
			}
		} else {
			numCached++
		}

		for _, m := range spinbath.Manifolds {
			l, err := spinbath.Splittings(p.Energies[m])
			if err != nil {
				// Systems with a single level have no splitting.
				if !errors.Is(err, spinbath.ErrInvalidLevel) {
					return points, errors.Wrapf(err, "%d %#v", i, f)
				}
				continue
			}
			p.Superhyperfine[m] = l
		}
		points = append(points, p)

		if throttler.Ok() {
			logger.Infow("sweep progress", "point", i+1, "total", len(fields), "magnitude", f.Magnitude, "cached", numCached, "elapsed", time.Since(start))
		}
	}

	logger.Infow("sweep done", "points", len(points), "cached", numCached, "elapsed", time.Since(start))
	return points, nil
}

func solve(p *Point, s *spinbath.System, opts Options) error {
	if err := s.SetField(p.Field); err != nil {
		return errors.Wrap(err, "")
	}
	for _, m := range spinbath.Manifolds {
		e, err := s.Energies(m)
		if err != nil {
			return errors.Wrap(err, "")
		}
		p.Energies[m] = e
	}

	if opts.Kind != "" {
		var err error
		p.Transitions, err = s.Transitions(opts.Kind, opts.Strengths)
		if err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

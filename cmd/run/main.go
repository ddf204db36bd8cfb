package main

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fumin/spinbath"
	"github.com/fumin/spinbath/config"
	"github.com/fumin/spinbath/mat"
	"github.com/fumin/spinbath/spectrum"
	"github.com/fumin/spinbath/store"
	"github.com/fumin/spinbath/sweep"
)

type app struct {
	configPath string
	verbose    bool
	dbPath     string

	cfg    *config.Config
	logger *zap.SugaredLogger
	out    io.Writer
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr(args []string, out io.Writer) error {
	a := &app{out: out}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	err := root.ExecuteContext(context.Background())
	if a.logger != nil {
		a.logger.Sync()
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "run",
		Short:         "Energy levels of a paramagnetic ion in a nuclear spin bath",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file, YAML or TOML")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "development logging")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "sqlite cache of sweep levels")

	root.AddCommand(a.levelsCmd(), a.transitionsCmd(), a.sweepCmd(), a.spectrumCmd(), a.contrastCmd(), a.hamiltonianCmd(), a.diagonalizeCmd())
	return root
}

func (a *app) init() error {
	newLogger := zap.NewProduction
	if a.verbose {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		return errors.Wrap(err, "")
	}
	a.logger = logger.Sugar()

	a.cfg, err = config.Load(a.configPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (a *app) system() (*spinbath.System, error) {
	sc, err := a.cfg.System()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	s, err := spinbath.New(sc)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	a.logger.Debugw("system", "dim", s.Space().Dim(), "neighbors", len(s.Sites()))
	return s, nil
}

func fieldFlags(cmd *cobra.Command, f *spinbath.Field) {
	cmd.Flags().Float64VarP(&f.Magnitude, "field", "b", 0, "field magnitude in T")
	cmd.Flags().Float64Var(&f.Theta, "theta", 0, "polar angle of the field in radians")
	cmd.Flags().Float64Var(&f.Phi, "phi", 0, "azimuthal angle of the field in radians")
}

func (a *app) levelsCmd() *cobra.Command {
	var f spinbath.Field
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the energy levels and superhyperfine splittings at one field",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.system()
			if err != nil {
				return errors.Wrap(err, "")
			}
			if err := s.SetField(f); err != nil {
				return errors.Wrap(err, "")
			}

			w := csv.NewWriter(a.out)
			w.Write([]string{"manifold", "level", "energy"})
			for _, m := range spinbath.Manifolds {
				e, err := s.Energies(m)
				if err != nil {
					return errors.Wrap(err, "")
				}
				for i, v := range e {
					w.Write([]string{m.String(), strconv.Itoa(i), format(v)})
				}
			}
			for _, m := range spinbath.Manifolds {
				l, err := s.SuperhyperfineLevels(m)
				if err != nil {
					if errors.Is(err, spinbath.ErrInvalidLevel) {
						continue
					}
					return errors.Wrap(err, "")
				}
				for i, v := range l.Values() {
					w.Write([]string{m.String() + "_shf_khz", strconv.Itoa(i), format(v)})
				}
			}
			w.Flush()
			return errors.Wrap(w.Error(), "")
		},
	}
	fieldFlags(cmd, &f)
	return cmd
}

func (a *app) transitionsCmd() *cobra.Command {
	var f spinbath.Field
	var kind string
	var strengths bool
	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Print the transitions at one field",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.system()
			if err != nil {
				return errors.Wrap(err, "")
			}
			if err := s.SetField(f); err != nil {
				return errors.Wrap(err, "")
			}
			transitions, err := s.Transitions(spinbath.TransitionType(kind), strengths)
			if err != nil {
				return errors.Wrap(err, "")
			}

			w := csv.NewWriter(a.out)
			w.Write([]string{"from", "to", "energy", "fx", "fy", "fz"})
			for _, t := range transitions {
				record := []string{strconv.Itoa(t.From), strconv.Itoa(t.To), format(t.Energy), "", "", ""}
				if t.Strength != nil {
					for p, v := range t.Strength {
						record[3+p] = format(v)
					}
				}
				w.Write(record)
			}
			w.Flush()
			return errors.Wrap(w.Error(), "")
		},
	}
	fieldFlags(cmd, &f)
	cmd.Flags().StringVar(&kind, "kind", string(spinbath.Optical), "optical, spin_gs or spin_es")
	cmd.Flags().BoolVar(&strengths, "strengths", true, "compute optical strengths")
	return cmd
}

func (a *app) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Print the energy levels over the configured field sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.system()
			if err != nil {
				return errors.Wrap(err, "")
			}
			sw := a.cfg.Sweep
			fields, err := sweep.Fields(sw.Min, sw.Max, sw.Steps, sw.Theta, sw.Phi)
			if err != nil {
				return errors.Wrap(err, "")
			}

			opts := sweep.Options{Logger: a.logger}
			if a.dbPath != "" {
				key, err := a.key()
				if err != nil {
					return errors.Wrap(err, "")
				}
				st, err := store.Open(a.dbPath, key)
				if err != nil {
					return errors.Wrap(err, "")
				}
				defer st.Close()
				opts.Cache = st
			}
			points, err := sweep.Run(cmd.Context(), s, fields, opts)
			if err != nil {
				return errors.Wrap(err, "")
			}

			w := csv.NewWriter(a.out)
			w.Write([]string{"magnitude", "manifold", "level", "energy"})
			for _, p := range points {
				for m, es := range p.Energies {
					for i, e := range es {
						w.Write([]string{format(p.Field.Magnitude), spinbath.Manifold(m).String(), strconv.Itoa(i), format(e)})
					}
				}
			}
			w.Flush()
			return errors.Wrap(w.Error(), "")
		},
	}
}

func (a *app) spectrumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spectrum",
		Short: "Print the broadened transition strengths over the configured field sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.system()
			if err != nil {
				return errors.Wrap(err, "")
			}
			sw, sp := a.cfg.Sweep, a.cfg.Spectrum
			fields, err := sweep.Fields(sw.Min, sw.Max, sw.Steps, sw.Theta, sw.Phi)
			if err != nil {
				return errors.Wrap(err, "")
			}
			grid, err := spectrum.Grid(sp.Min, sp.Max, sp.Step)
			if err != nil {
				return errors.Wrap(err, "")
			}

			opts := sweep.Options{Kind: spinbath.TransitionType(sp.Kind), Strengths: true, Logger: a.logger}
			points, err := sweep.Run(cmd.Context(), s, fields, opts)
			if err != nil {
				return errors.Wrap(err, "")
			}
			columns := make([][]spinbath.Transition, len(points))
			for j, p := range points {
				columns[j] = p.Transitions
			}
			maps := spectrum.Map(columns, grid, sp.FWHM)

			w := csv.NewWriter(a.out)
			w.Write([]string{"magnitude", "energy", "x", "y", "z"})
			for j, p := range points {
				for i, e := range grid {
					w.Write([]string{format(p.Field.Magnitude), format(e), format(maps[0].At(i, j)), format(maps[1].At(i, j)), format(maps[2].At(i, j))})
				}
			}
			w.Flush()
			return errors.Wrap(w.Error(), "")
		},
	}
}

func (a *app) contrastCmd() *cobra.Command {
	var f spinbath.Field
	var levels []int
	cmd := &cobra.Command{
		Use:   "contrast",
		Short: "Print the branching contrast of two ground levels through an excited level",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.system()
			if err != nil {
				return errors.Wrap(err, "")
			}
			if err := s.SetField(f); err != nil {
				return errors.Wrap(err, "")
			}

			var lv *[3]int
			if len(levels) > 0 {
				if len(levels) != 3 {
					return errors.Errorf("expected 3 levels, got %v", levels)
				}
				lv = &[3]int{levels[0], levels[1], levels[2]}
			}
			c, err := s.BranchingContrast(lv)
			if err != nil {
				return errors.Wrap(err, "")
			}
			fmt.Fprintf(a.out, "upper,lower,r,rho\n%s,%s,%s,%s\n", format(c.Upper), format(c.Lower), format(c.R), format(c.Rho))
			return nil
		},
	}
	fieldFlags(cmd, &f)
	cmd.Flags().IntSliceVar(&levels, "levels", nil, "lower ground, upper ground and excited level, default 0,1,0")
	return cmd
}

func (a *app) hamiltonianCmd() *cobra.Command {
	var f spinbath.Field
	var manifold, dir string
	cmd := &cobra.Command{
		Use:   "hamiltonian",
		Short: "Write a Hamiltonian in COO format",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := spinbath.ParseManifold(manifold)
			if err != nil {
				return errors.Wrap(err, "")
			}
			s, err := a.system()
			if err != nil {
				return errors.Wrap(err, "")
			}
			if err := s.SetField(f); err != nil {
				return errors.Wrap(err, "")
			}
			h, err := s.Hamiltonian(m)
			if err != nil {
				return errors.Wrap(err, "")
			}

			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return errors.Wrap(err, "")
			}
			if err := h.WriteCOO(dir); err != nil {
				return errors.Wrap(err, "")
			}
			a.logger.Infow("hamiltonian written", "dir", dir, "manifold", m.String(), "rows", h.Rows(), "nonzero", len(h.Data))
			return nil
		},
	}
	fieldFlags(cmd, &f)
	cmd.Flags().StringVar(&manifold, "manifold", "ground", "ground or excited")
	cmd.Flags().StringVarP(&dir, "out", "o", "hamiltonian", "output directory")
	return cmd
}

func (a *app) diagonalizeCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "diagonalize",
		Short: "Print the levels of a Hamiltonian written by the hamiltonian command",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := mat.ReadCOO(dir)
			if err != nil {
				return errors.Wrap(err, "")
			}
			sp, err := spinbath.Diagonalize(h)
			if err != nil {
				return errors.Wrap(err, "")
			}
			a.logger.Debugw("hamiltonian read", "dir", dir, "rows", h.Rows(), "nonzero", len(h.Data))

			w := csv.NewWriter(a.out)
			w.Write([]string{"level", "energy", "residual"})
			for i, r := range sp.Residuals(h) {
				w.Write([]string{strconv.Itoa(i), format(sp.Energies[i]), format(r)})
			}
			w.Flush()
			return errors.Wrap(w.Error(), "")
		},
	}
	cmd.Flags().StringVarP(&dir, "in", "i", "hamiltonian", "directory of a COO Hamiltonian")
	return cmd
}

// key identifies the configured system in the sweep cache.
func (a *app) key() (string, error) {
	sc := *a.cfg
	sc.Sweep, sc.Spectrum = config.Sweep{}, config.Spectrum{}
	b, err := json.Marshal(sc)
	if err != nil {
		return "", errors.Wrap(err, "")
	}
	return fmt.Sprintf("%x", sha256.Sum256(b)), nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

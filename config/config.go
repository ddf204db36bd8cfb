// Package config loads the description of a system and of the computations
// run on it from a YAML or TOML file, with SPINBATH_ environment overrides.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fumin/spinbath"
	"github.com/fumin/spinbath/spin"
)

const EnvPrefix = "SPINBATH"

var ErrInvalidConfig = errors.New("invalid config")

type Neighbor struct {
	// Displacement from the ion in angstroms.
	Displacement []float64 `mapstructure:"displacement"`
	Spin         float64   `mapstructure:"spin"`
	G            float64   `mapstructure:"g"`
	Species      string    `mapstructure:"species"`
}

// Sweep is a range of field magnitudes along a fixed direction.
type Sweep struct {
	Min   float64 `mapstructure:"min"`
	Max   float64 `mapstructure:"max"`
	Steps int     `mapstructure:"steps"`
	Theta float64 `mapstructure:"theta"`
	Phi   float64 `mapstructure:"phi"`
}

// Spectrum is an energy grid in GHz over which transitions are broadened.
type Spectrum struct {
	Min  float64 `mapstructure:"min"`
	Max  float64 `mapstructure:"max"`
	Step float64 `mapstructure:"step"`
	FWHM float64 `mapstructure:"fwhm"`
	Kind string  `mapstructure:"kind"`
}

type Config struct {
	ElectronSpin float64 `mapstructure:"electron_spin"`
	NuclearSpin  float64 `mapstructure:"nuclear_spin"`
	// Tensors are 9 values in row major order.
	GGround  []float64 `mapstructure:"g_ground"`
	GExcited []float64 `mapstructure:"g_excited"`
	AGround  []float64 `mapstructure:"a_ground"`
	AExcited []float64 `mapstructure:"a_excited"`
	NuclearG float64   `mapstructure:"nuclear_g"`
	// HyperfineGround and HyperfineExcited are "default", "electron_nuclear" or "electron_electron".
	HyperfineGround  string     `mapstructure:"hyperfine_ground"`
	HyperfineExcited string     `mapstructure:"hyperfine_excited"`
	Neighbors        []Neighbor `mapstructure:"neighbors"`

	Sweep    Sweep    `mapstructure:"sweep"`
	Spectrum Spectrum `mapstructure:"spectrum"`
}

// SetDefaults sets the default of every key. The default system is a free spin 1/2 with g = 2.
func SetDefaults(v *viper.Viper) {
	isotropic := []float64{2, 0, 0, 0, 2, 0, 0, 0, 2}
	zero := make([]float64, 9)

	v.SetDefault("electron_spin", 0.5)
	v.SetDefault("nuclear_spin", 0.0)
	v.SetDefault("g_ground", isotropic)
	v.SetDefault("g_excited", isotropic)
	v.SetDefault("a_ground", zero)
	v.SetDefault("a_excited", zero)
	v.SetDefault("nuclear_g", 0.0)
	v.SetDefault("hyperfine_ground", "default")
	v.SetDefault("hyperfine_excited", "default")

	v.SetDefault("sweep.min", 0.0)
	v.SetDefault("sweep.max", 1.0)
	v.SetDefault("sweep.steps", 101)
	v.SetDefault("sweep.theta", 0.0)
	v.SetDefault("sweep.phi", 0.0)

	v.SetDefault("spectrum.min", -10.0)
	v.SetDefault("spectrum.max", 10.0)
	v.SetDefault("spectrum.step", 0.001)
	v.SetDefault("spectrum.fwhm", 0.1)
	v.SetDefault("spectrum.kind", string(spinbath.Optical))
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the config at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, path)
		}
	}
	return LoadWithViper(v)
}

func LoadWithViper(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &c, nil
}

func (c *Config) Validate() error {
	for name, t := range map[string][]float64{"g_ground": c.GGround, "g_excited": c.GExcited, "a_ground": c.AGround, "a_excited": c.AExcited} {
		if len(t) != 9 {
			return errors.Wrapf(ErrInvalidConfig, "%s has %d values, expected 9", name, len(t))
		}
	}
	for name, s := range map[string]float64{"electron_spin": c.ElectronSpin, "nuclear_spin": c.NuclearSpin} {
		if !spin.Spin(s).Valid() {
			return errors.Wrapf(ErrInvalidConfig, "%s %v", name, s)
		}
	}
	for k, n := range c.Neighbors {
		if len(n.Displacement) != 3 {
			return errors.Wrapf(ErrInvalidConfig, "neighbor %d displacement has %d values, expected 3", k, len(n.Displacement))
		}
		if !spin.Spin(n.Spin).Valid() {
			return errors.Wrapf(ErrInvalidConfig, "neighbor %d spin %v", k, n.Spin)
		}
	}
	for name, f := range map[string]string{"hyperfine_ground": c.HyperfineGround, "hyperfine_excited": c.HyperfineExcited} {
		if _, err := spinbath.ParseHyperfineForm(f); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s %v", name, err)
		}
	}
	if c.Sweep.Steps < 1 || c.Sweep.Max < c.Sweep.Min {
		return errors.Wrapf(ErrInvalidConfig, "sweep %#v", c.Sweep)
	}
	if !(c.Spectrum.Step > 0) || !(c.Spectrum.Max > c.Spectrum.Min) || c.Spectrum.FWHM <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "spectrum %#v", c.Spectrum)
	}
	switch spinbath.TransitionType(c.Spectrum.Kind) {
	case spinbath.Optical, spinbath.SpinGround, spinbath.SpinExcited:
	default:
		return errors.Wrapf(ErrInvalidConfig, "spectrum kind %q", c.Spectrum.Kind)
	}
	return nil
}

// System converts c into the configuration of a spinbath.System.
func (c *Config) System() (spinbath.Config, error) {
	if err := c.Validate(); err != nil {
		return spinbath.Config{}, errors.Wrap(err, "")
	}
	sc := spinbath.Config{
		ElectronSpin: spin.Spin(c.ElectronSpin),
		NuclearSpin:  spin.Spin(c.NuclearSpin),
		G:            [2]*r3.Mat{spinbath.Ground: r3.NewMat(c.GGround), spinbath.Excited: r3.NewMat(c.GExcited)},
		A:            [2]*r3.Mat{spinbath.Ground: r3.NewMat(c.AGround), spinbath.Excited: r3.NewMat(c.AExcited)},
		NuclearG:     c.NuclearG,
	}
	for m, name := range [2]string{c.HyperfineGround, c.HyperfineExcited} {
		f, err := spinbath.ParseHyperfineForm(name)
		if err != nil {
			return spinbath.Config{}, errors.Wrap(err, "")
		}
		sc.Hyperfine[m] = f
	}
	for _, n := range c.Neighbors {
		sc.Neighbors = append(sc.Neighbors, spinbath.Neighbor{
			Displacement: [3]float64{n.Displacement[0], n.Displacement[1], n.Displacement[2]},
			Spin:         spin.Spin(n.Spin),
			G:            n.G,
			Species:      n.Species,
		})
	}
	return sc, nil
}

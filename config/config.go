package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	URL     string            `yaml:"url" json:"url"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level" json:"level"`
	Format string     `yaml:"format,omitempty" json:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki" json:"loki"`
}

// TelemetryConfig configures runtime telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
}

// PhotometryConfig controls how observations are binned and aligned.
type PhotometryConfig struct {
	// Bin collapses each night onto its mean epoch before alignment.
	Bin      bool    `yaml:"bin,omitempty" json:"bin,omitempty"`
	BinWidth float64 `yaml:"bin_width,omitempty" json:"bin_width,omitempty"`
	// MaxGap is the widest bracket (days) interpolation may bridge; zero is unlimited.
	MaxGap      float64 `yaml:"max_gap,omitempty" json:"max_gap,omitempty"`
	Extrapolate bool    `yaml:"extrapolate,omitempty" json:"extrapolate,omitempty"`
}

// ExtinctionConfig configures the extinction correction.
type ExtinctionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// AV scales the CCM89 ratios when no explicit coefficients are given.
	AV           float64            `yaml:"av,omitempty" json:"av,omitempty"`
	Coefficients map[string]float64 `yaml:"coefficients,omitempty" json:"coefficients,omitempty"`
}

// StrategyConfig selects and tunes the bolometric strategy.
type StrategyConfig struct {
	Name            string  `yaml:"name" json:"name"`
	MinPoints       int     `yaml:"min_points,omitempty" json:"min_points,omitempty"`
	MaxSEDGap       float64 `yaml:"max_sed_gap,omitempty" json:"max_sed_gap,omitempty"`
	MinWavelength   float64 `yaml:"min_wavelength,omitempty" json:"min_wavelength,omitempty"`
	FailOnFitError  bool    `yaml:"fail_on_fit_error,omitempty" json:"fail_on_fit_error,omitempty"`
	SeedTemperature float64 `yaml:"seed_temperature,omitempty" json:"seed_temperature,omitempty"`
	MaxIterations   int     `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	UVBand          string  `yaml:"uv_band,omitempty" json:"uv_band,omitempty"`
	// ExcludeBands are dropped from every SED before reduction.
	ExcludeBands []string `yaml:"exclude_bands,omitempty" json:"exclude_bands,omitempty"`
}

// BCConfig configures the bolometric correction strategy.
type BCConfig struct {
	Method    string `yaml:"method,omitempty" json:"method,omitempty"`
	Reference string `yaml:"reference,omitempty" json:"reference,omitempty"`
}

// DistanceConfig is the source distance in Mpc.
type DistanceConfig struct {
	Mpc         float64 `yaml:"mpc" json:"mpc"`
	Uncertainty float64 `yaml:"uncertainty,omitempty" json:"uncertainty,omitempty"`
}

// ExplosionConfig anchors output phases to an explosion epoch.
type ExplosionConfig struct {
	Time        float64 `yaml:"time" json:"time"`
	Uncertainty float64 `yaml:"uncertainty,omitempty" json:"uncertainty,omitempty"`
}

// TablesConfig points to reference tables. Bands replaces the embedded band
// table; each BC file adds methods to the embedded ones.
type TablesConfig struct {
	Bands string   `yaml:"bands,omitempty" json:"bands,omitempty"`
	BC    []string `yaml:"bc,omitempty" json:"bc,omitempty"`
}

// OutputConfig controls rendering of light curves.
type OutputConfig struct {
	Decimals int `yaml:"decimals,omitempty" json:"decimals,omitempty"`
}

// Config is the root configuration structure for a light curve run.
type Config struct {
	Name        string           `yaml:"name,omitempty" json:"name,omitempty"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Logging     LoggingConfig    `yaml:"logging" json:"logging"`
	Telemetry   TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	Workers     int              `yaml:"workers,omitempty" json:"workers,omitempty"`
	Photometry  PhotometryConfig `yaml:"photometry" json:"photometry"`
	Extinction  ExtinctionConfig `yaml:"extinction" json:"extinction"`
	Strategy    StrategyConfig   `yaml:"strategy" json:"strategy"`
	BC          BCConfig         `yaml:"bc" json:"bc"`
	Distance    DistanceConfig   `yaml:"distance" json:"distance"`
	Explosion   *ExplosionConfig `yaml:"explosion,omitempty" json:"explosion,omitempty"`
	Tables      TablesConfig     `yaml:"tables" json:"tables"`
	Output      OutputConfig     `yaml:"output" json:"output"`
	Source      string           `yaml:"-" json:"-"`
}

// Load reads and decodes the configuration from disk. YAML files are decoded
// directly; a .cue file or a directory is evaluated as a CUE package whose
// top-level config field holds the configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	var cfg *Config
	switch {
	case info.IsDir():
		cfg, err = loadCUE(abs)
	case strings.EqualFold(filepath.Ext(abs), ".cue"):
		cfg, err = loadCUE(filepath.Dir(abs))
	default:
		cfg, err = loadYAML(abs)
	}
	if err != nil {
		return nil, err
	}
	cfg.Source = abs
	cfg.resolveTablePaths(filepath.Dir(abs), info.IsDir())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return nil, fmt.Errorf("config %s is empty", path)
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s: top-level YAML document must be a mapping", path)
	}
	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadCUE(dir string) (*Config, error) {
	overlay, err := ResolveOverlays(dir)
	if err != nil {
		return nil, err
	}
	instances := load.Instances([]string{"."}, &load.Config{
		Dir:     dir,
		Overlay: overlay,
	})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instance found in %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("load CUE package %s: %w", dir, err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build CUE package %s: %w", dir, err)
	}
	configValue := value.LookupPath(cue.ParsePath("config"))
	if !configValue.Exists() {
		return nil, fmt.Errorf("CUE package %s: missing top-level config field", dir)
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("superbol_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	configValue = schema.LookupPath(cue.ParsePath("#Config")).Unify(configValue)
	if err := configValue.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE package %s: %w", dir, err)
	}

	var cfg Config
	if err := configValue.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode CUE config %s: %w", dir, err)
	}
	return &cfg, nil
}

func (c *Config) resolveTablePaths(base string, isDir bool) {
	if isDir {
		base = c.Source
	}
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Tables.Bands = resolve(c.Tables.Bands)
	for i, p := range c.Tables.BC {
		c.Tables.BC[i] = resolve(p)
	}
}

// Validate checks values that do not depend on other packages.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config must not be nil")
	}
	var problems []string
	if strings.TrimSpace(c.Strategy.Name) == "" {
		problems = append(problems, "strategy.name is required")
	}
	if c.Distance.Mpc <= 0 {
		problems = append(problems, "distance.mpc must be positive")
	}
	if c.Distance.Uncertainty < 0 {
		problems = append(problems, "distance.uncertainty must not be negative")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if c.Photometry.BinWidth < 0 {
		problems = append(problems, "photometry.bin_width must not be negative")
	}
	if c.Photometry.MaxGap < 0 {
		problems = append(problems, "photometry.max_gap must not be negative")
	}
	if c.Strategy.MinPoints < 0 {
		problems = append(problems, "strategy.min_points must not be negative")
	}
	if c.Strategy.MaxSEDGap < 0 {
		problems = append(problems, "strategy.max_sed_gap must not be negative")
	}
	if c.Extinction.Enabled && c.Extinction.AV <= 0 && len(c.Extinction.Coefficients) == 0 {
		problems = append(problems, "extinction requires av or coefficients when enabled")
	}
	if c.Output.Decimals < 0 {
		problems = append(problems, "output.decimals must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WorkerCount returns the configured epoch concurrency.
func (c *Config) WorkerCount() int {
	if c == nil || c.Workers <= 0 {
		return 1
	}
	return min(c.Workers, runtime.NumCPU()*4)
}

// BinWidth returns the night separation used when binning.
func (c *Config) BinWidth() float64 {
	if c == nil || c.Photometry.BinWidth <= 0 {
		return 0.3
	}
	return c.Photometry.BinWidth
}

// MinPoints returns the minimum SED size for the configured strategy.
func (c *Config) MinPoints() int {
	if c == nil || c.Strategy.MinPoints <= 0 {
		return 2
	}
	return c.Strategy.MinPoints
}

// BCMethod returns the bolometric correction method name.
func (c *Config) BCMethod() string {
	if c == nil || c.BC.Method == "" {
		return "H01"
	}
	return c.BC.Method
}

// Decimals returns the number of decimals used for text output.
func (c *Config) Decimals() int {
	if c == nil || c.Output.Decimals <= 0 {
		return 4
	}
	return c.Output.Decimals
}

// SourceFiles lists the files a configuration was assembled from, including
// the reference tables it points to.
func SourceFiles(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	var files []string
	if cfg.Source != "" {
		if info, err := os.Stat(cfg.Source); err == nil && info.IsDir() {
			matches, _ := filepath.Glob(filepath.Join(cfg.Source, "*.cue"))
			files = append(files, matches...)
		} else {
			files = append(files, cfg.Source)
		}
	}
	if cfg.Tables.Bands != "" {
		files = append(files, cfg.Tables.Bands)
	}
	files = append(files, cfg.Tables.BC...)
	return files
}

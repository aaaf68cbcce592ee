package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"omibyte.io/stm8kit/dce"
	"omibyte.io/stm8kit/targets"
)

// ConfigFile is the name of the project file looked up in the project
// directory.
const ConfigFile = "stm8kit.yaml"

type Config struct {
	Name    string   `yaml:"name"`
	Target  string   `yaml:"target"`
	Sources []string `yaml:"sources"`
	Include []string `yaml:"include"`
	Defines []string `yaml:"defines"`
	CFlags  []string `yaml:"cflags"`
	LDFlags []string `yaml:"ldflags"`

	SPL    SPLConfig    `yaml:"spl"`
	DCE    DCEConfig    `yaml:"dce"`
	Budget BudgetConfig `yaml:"budget"`
	Flash  FlashConfig  `yaml:"flash"`
	Output OutputConfig `yaml:"output"`

	// Dir is the project directory and Path the project file. Both are
	// absolute.
	Dir  string `yaml:"-"`
	Path string `yaml:"-"`

	TargetInfo targets.TargetInfo `yaml:"-"`
}

type SPLConfig struct {
	// Path is the root of the Standard Peripheral Library, containing inc/
	// and src/. An empty path builds without the SPL.
	Path string `yaml:"path"`
	// Modules lists the driver modules to build, e.g. "gpio" or
	// "stm8s_tim4.c". All modules are built when empty.
	Modules []string `yaml:"modules"`
}

type DCEConfig struct {
	Enabled *bool    `yaml:"enabled"`
	Entry   string   `yaml:"entry"`
	Exclude []string `yaml:"exclude"`
	OptIRQ  bool     `yaml:"optIRQ"`
}

func (c DCEConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c DCEConfig) Options() dce.Options {
	return dce.Options{
		Entry:   c.Entry,
		Exclude: c.Exclude,
		OptIRQ:  c.OptIRQ,
	}
}

type BudgetConfig struct {
	// Flash and RAM override the catalog sizes of the target, in bytes.
	Flash int `yaml:"flash"`
	RAM   int `yaml:"ram"`
	// WarnPercent logs a warning when usage reaches this share of a budget.
	WarnPercent int `yaml:"warnPercent"`
}

type FlashConfig struct {
	Programmer string `yaml:"programmer"`
	// Part overrides the stm8flash part name of the target.
	Part   string `yaml:"part"`
	Unlock bool   `yaml:"unlock"`
	Verify bool   `yaml:"verify"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoadConfig reads the project file from dir, applies defaults and resolves
// the target part.
func LoadConfig(dir string) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, ConfigFile)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	} else if err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = dir
	cfg.Path = path
	if len(cfg.Name) == 0 {
		cfg.Name = filepath.Base(dir)
	}
	return cfg, nil
}

// ParseConfig decodes a project file. Dir and Path are left for the caller.
func ParseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Join(ErrConfigInvalid, err)
	}

	if len(cfg.Target) == 0 {
		return nil, errors.Join(ErrConfigInvalid, errors.New("missing target"))
	}
	target, err := targets.All().FindByChip(cfg.Target)
	if err != nil {
		return nil, errors.Join(ErrConfigInvalid, err)
	}
	if err := target.Validate(); err != nil {
		return nil, errors.Join(ErrConfigInvalid, err)
	}
	cfg.TargetInfo = target

	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{"src/*.c"}
	}
	if len(cfg.DCE.Entry) == 0 {
		cfg.DCE.Entry = dce.DefaultEntry
	}
	if len(cfg.Flash.Programmer) == 0 {
		cfg.Flash.Programmer = "stlinkv2"
	}
	if len(cfg.Flash.Part) == 0 {
		cfg.Flash.Part = target.Part
	}
	if len(cfg.Output.Dir) == 0 {
		cfg.Output.Dir = "build"
	}
	if cfg.Budget.Flash < 0 || cfg.Budget.RAM < 0 {
		return nil, errors.Join(ErrConfigInvalid, errors.New("negative budget"))
	}
	if cfg.Budget.WarnPercent < 0 || cfg.Budget.WarnPercent > 100 {
		return nil, errors.Join(ErrConfigInvalid, errors.New("warnPercent must be within 0..100"))
	}

	return &cfg, nil
}

// Limits returns the effective flash and RAM budgets in bytes.
func (c *Config) Limits() (flash, ram int) {
	flash, ram = c.TargetInfo.FlashSize, c.TargetInfo.RAMSize
	if c.Budget.Flash > 0 {
		flash = c.Budget.Flash
	}
	if c.Budget.RAM > 0 {
		ram = c.Budget.RAM
	}
	return
}

func (c *Config) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

func (c *Config) OutputDir() string {
	return c.abs(c.Output.Dir)
}

// SPLDir returns the absolute SPL root, or "" when the SPL is not used.
func (c *Config) SPLDir() string {
	if len(c.SPL.Path) == 0 {
		return ""
	}
	return c.abs(c.SPL.Path)
}

// splPrefix is the file name prefix of the SPL driver modules of a family.
func splPrefix(family string) string {
	switch strings.ToLower(family) {
	case "stm8l":
		return "stm8l15x_"
	default:
		return "stm8s_"
	}
}

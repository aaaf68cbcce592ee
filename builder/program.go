package builder

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
)

// Unit is a C translation unit of the image.
type Unit struct {
	Source string
	// Name is the base name shared by the unit's .asm, .d and .rel files.
	Name    string
	Library bool
}

// Program is the set of translation units built into one image.
type Program struct {
	config *Config
	Units  []Unit
}

func NewProgram(cfg *Config) (*Program, error) {
	prog := &Program{config: cfg}

	var sources []string
	for _, pattern := range cfg.Sources {
		matches, err := filepath.Glob(cfg.abs(pattern))
		if err != nil {
			return nil, fmt.Errorf("source pattern %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, match := range matches {
			if !slices.Contains(sources, match) {
				sources = append(sources, match)
			}
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSources, strings.Join(cfg.Sources, " "))
	}

	spl, err := cfg.splSources()
	if err != nil {
		return nil, err
	}

	// SPL modules keep their base names. User sources are renamed when two of
	// them, or one of them and an SPL module, would share object names.
	taken := map[string]bool{}
	for _, source := range spl {
		name := baseName(source)
		taken[name] = true
		prog.Units = append(prog.Units, Unit{Source: source, Name: name, Library: true})
	}

	var user []Unit
	count := map[string]int{}
	for _, source := range sources {
		count[baseName(source)]++
	}
	for _, source := range sources {
		name := baseName(source)
		if count[name] > 1 || taken[name] {
			name = hashedName(source)
		}
		taken[name] = true
		user = append(user, Unit{Source: source, Name: name})
	}

	// User code first so that the unit defining main leads the link.
	prog.Units = append(user, prog.Units...)
	return prog, nil
}

func baseName(source string) string {
	return strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
}

// hashedName disambiguates a source by the FNV hash of its directory.
func hashedName(source string) string {
	dir, file := filepath.Split(source)
	h := fnv.New32()
	h.Write([]byte(dir))
	return fmt.Sprintf("%s_%d", strings.TrimSuffix(file, filepath.Ext(file)), h.Sum32())
}

// cflags returns the preprocessor and compiler flags shared by all units.
func (p *Program) cflags() []string {
	cfg := p.config
	flags := append([]string{}, commonCFlags...)
	flags = append(flags, cfg.TargetInfo.DefineFlag())
	for _, define := range cfg.Defines {
		flags = append(flags, "-D"+define)
	}
	for _, dir := range cfg.Include {
		flags = append(flags, "-I"+cfg.abs(dir))
	}
	if dir := cfg.splIncludeDir(); len(dir) > 0 {
		flags = append(flags, "-I"+dir)
	}
	return append(flags, cfg.CFlags...)
}

// UserUnits returns the units that are not part of the SPL.
func (p *Program) UserUnits() []Unit {
	var result []Unit
	for _, u := range p.Units {
		if !u.Library {
			result = append(result, u)
		}
	}
	return result
}

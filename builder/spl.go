package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
)

// Flags passed to SDCC for every translation unit, SPL and user code alike.
var commonCFlags = []string{
	"-mstm8",
	"--opt-code-size",
}

// splSources returns the driver modules of the Standard Peripheral Library
// selected by the project, sorted by name.
func (c *Config) splSources() ([]string, error) {
	root := c.SPLDir()
	if len(root) == 0 {
		return nil, nil
	}
	srcDir := filepath.Join(root, "src")
	prefix := splPrefix(c.TargetInfo.Family)

	if len(c.SPL.Modules) == 0 {
		sources, err := filepath.Glob(filepath.Join(srcDir, prefix+"*.c"))
		if err != nil {
			return nil, err
		}
		if len(sources) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoSources, filepath.Join(srcDir, prefix+"*.c"))
		}
		slices.Sort(sources)
		return sources, nil
	}

	var sources []string
	for _, module := range c.SPL.Modules {
		name := module
		if !strings.HasSuffix(name, ".c") {
			name += ".c"
		}
		if !strings.HasPrefix(name, prefix) {
			name = prefix + name
		}
		source := filepath.Join(srcDir, name)
		if _, err := os.Stat(source); err != nil {
			return nil, fmt.Errorf("SPL module %s: %w", module, err)
		}
		if !slices.Contains(sources, source) {
			sources = append(sources, source)
		}
	}
	slices.Sort(sources)
	return sources, nil
}

// splIncludeDir returns the SPL header directory, or "" without SPL.
func (c *Config) splIncludeDir() string {
	if root := c.SPLDir(); len(root) > 0 {
		return filepath.Join(root, "inc")
	}
	return ""
}

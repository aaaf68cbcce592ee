package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// buildDirs is the layout of the output directory:
//
//	obj/  SDCC assembly and dependency files
//	dce/  assembly after dead code elimination
//	rel/  assembled relocatable objects
//	<name>.elf, <name>.ihx, linker map and listings
type buildDirs struct {
	root string
	obj  string
	dce  string
	rel  string
}

func stageBuildDir(root string) (buildDirs, error) {
	dirs := buildDirs{
		root: root,
		obj:  filepath.Join(root, "obj"),
		dce:  filepath.Join(root, "dce"),
		rel:  filepath.Join(root, "rel"),
	}

	for _, dir := range []string{dirs.obj, dirs.dce, dirs.rel} {
		if stat, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return buildDirs{}, err
			}
		} else if err != nil {
			return buildDirs{}, err
		} else if !stat.IsDir() {
			return buildDirs{}, fmt.Errorf("%s: %w", dir, os.ErrInvalid)
		}
	}

	// Stale DCE output from units that no longer exist must not be linked.
	stale, err := filepath.Glob(filepath.Join(dirs.dce, "*.asm"))
	if err != nil {
		return buildDirs{}, err
	}
	for _, fname := range stale {
		if err := os.Remove(fname); err != nil {
			return buildDirs{}, err
		}
	}

	return dirs, nil
}

// Clean removes the output directory of the project. Directories outside the
// project, and the project directory itself, are never removed.
func Clean(cfg *Config) error {
	out := filepath.Clean(cfg.OutputDir())
	rel, err := filepath.Rel(cfg.Dir, out)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrUnsafeClean, out)
	}
	return os.RemoveAll(out)
}

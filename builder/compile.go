package builder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
)

func (u Unit) asmFile(dirs buildDirs) string  { return filepath.Join(dirs.obj, u.Name+".asm") }
func (u Unit) depsFile(dirs buildDirs) string { return filepath.Join(dirs.obj, u.Name+".d") }

// compile translates every unit of the program to assembly, skipping units
// that are up to date.
func (b *builder) compile(ctx context.Context) error {
	units := b.prog.Units
	return runAll(ctx, b.opts.NumJobs, len(units), func(ctx context.Context, i int) error {
		u := units[i]
		if !b.opts.Force && b.upToDate(u) {
			glog.V(1).Infof("%s is up to date", u.Source)
			b.stats.skipped.Add(1)
			return nil
		}
		if err := b.compileUnit(ctx, u); err != nil {
			return err
		}
		b.stats.compiled.Add(1)
		return nil
	})
}

func (b *builder) compileUnit(ctx context.Context, u Unit) error {
	t0 := time.Now()
	cflags := b.prog.cflags()

	// The dependency file is only written once the unit compiled, so failed
	// units are retried on the next build.
	var deps bytes.Buffer
	args := append(append([]string{}, cflags...), "-MM", u.Source)
	if err := b.runner.Run(ctx, Command{Name: b.tc.CC, Args: args, Dir: b.cfg.Dir, Env: b.env.List(), Stdout: &deps}); err != nil {
		return err
	}

	asm := u.asmFile(b.dirs)
	args = append(append([]string{}, cflags...), "-S", "-o", asm, u.Source)
	if err := b.runner.Run(ctx, Command{Name: b.tc.CC, Args: args, Dir: b.cfg.Dir, Env: b.env.List()}); err != nil {
		os.Remove(asm)
		return err
	}

	if err := b.writeDeps(u, asm, &deps); err != nil {
		return err
	}

	glog.Infof("CC %s (%s)", relPath(b.cfg.Dir, u.Source), time.Since(t0).Round(time.Millisecond))
	return nil
}

// writeDeps records the compiler's rule for u against its assembly output,
// with inputs made absolute so the file does not depend on the working
// directory of a later build.
func (b *builder) writeDeps(u Unit, asm string, out *bytes.Buffer) error {
	deps, err := ParseDeps(u.Source, out)
	if err != nil {
		return err
	}
	deps.Output = asm
	for i, input := range deps.Inputs {
		if !filepath.IsAbs(input) {
			deps.Inputs[i] = filepath.Join(b.cfg.Dir, input)
		}
	}
	return os.WriteFile(u.depsFile(b.dirs), deps.Print(), 0644)
}

// upToDate reports whether the assembly of u is newer than the project file
// and every input listed in its dependency file.
func (b *builder) upToDate(u Unit) bool {
	asm, err := os.Stat(u.asmFile(b.dirs))
	if err != nil {
		return false
	}

	f, err := os.Open(u.depsFile(b.dirs))
	if err != nil {
		return false
	}
	defer f.Close()

	deps, err := ParseDeps(f.Name(), f)
	if err != nil {
		glog.Warningf("%v", err)
		return false
	}

	inputs := append([]string{b.cfg.Path, u.Source}, deps.Inputs...)
	for _, input := range inputs {
		if !filepath.IsAbs(input) {
			input = filepath.Join(b.cfg.Dir, input)
		}
		info, err := os.Stat(input)
		if err != nil || info.ModTime().After(asm.ModTime()) {
			return false
		}
	}
	return true
}

func relPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

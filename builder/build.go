package builder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"

	"omibyte.io/stm8kit/dce"
)

// Result describes the outputs of a successful build.
type Result struct {
	ELF   string
	IHX   string
	Usage Usage
	// DCE is nil when dead code elimination was disabled.
	DCE *dce.Result

	Compiled int
	UpToDate int
}

type builder struct {
	opts   Options
	cfg    *Config
	env    Env
	tc     Toolchain
	runner Runner
	prog   *Program
	dirs   buildDirs

	stats struct {
		compiled atomic.Int32
		skipped  atomic.Int32
	}
}

func newBuilder(opts Options) (*builder, error) {
	cfg, err := LoadConfig(opts.Dir)
	if err != nil {
		return nil, err
	}
	if len(opts.BuildDir) > 0 {
		cfg.Output.Dir = opts.BuildDir
	}
	if opts.Environment == nil {
		opts.Environment = Environment()
	}
	if opts.NumJobs < 1 {
		opts.NumJobs = runtime.NumCPU()
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{Stdout: opts.Stdout, Stderr: opts.Stderr}
	}

	b := &builder{
		opts:   opts,
		cfg:    cfg,
		env:    opts.Environment,
		runner: opts.Runner,
	}
	// Optional tools are looked up even when the compiler is missing, so
	// that flashing works without SDCC installed.
	b.tc, err = FindToolchain(b.env)
	if err != nil {
		b.tc.Size, _ = findTool(b.env, "SIZE", "stm8-size")
		b.tc.Flash, _ = findTool(b.env, "STM8FLASH", "stm8flash")
		return b, err
	}
	return b, nil
}

func (b *builder) imagePath() string {
	return filepath.Join(b.cfg.OutputDir(), b.cfg.Name+".ihx")
}

// Build runs the full pipeline for the project in opts.Dir: compile the SPL
// and user sources, eliminate dead code, assemble, link, check the memory
// budgets and optionally flash the image.
func Build(ctx context.Context, opts Options) (*Result, error) {
	b, err := newBuilder(opts)
	if err != nil {
		return nil, err
	}

	if !opts.SkipVersionCheck {
		if err := b.tc.CheckVersion(ctx, b.runner); err != nil {
			return nil, err
		}
		glog.V(1).Infof("using SDCC %s at %s", b.tc.Version, b.tc.CC)
	}

	if b.prog, err = NewProgram(b.cfg); err != nil {
		return nil, err
	}
	if b.dirs, err = stageBuildDir(b.cfg.OutputDir()); err != nil {
		return nil, err
	}

	glog.Infof("building %s for %s (%d units)", b.cfg.Name, b.cfg.TargetInfo.Chip, len(b.prog.Units))

	if err := b.compile(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		Compiled: int(b.stats.compiled.Load()),
		UpToDate: int(b.stats.skipped.Load()),
	}

	asmDir := b.dirs.obj
	lead := b.leadUnit()
	if b.cfg.DCE.IsEnabled() && !opts.NoDCE {
		if result.DCE, err = b.eliminate(); err != nil {
			return nil, err
		}
		asmDir = b.dirs.dce
		lead = strings.TrimSuffix(filepath.Base(result.DCE.Entry.Path), ".asm")
	}

	rels, err := b.assemble(ctx, asmDir)
	if err != nil {
		return nil, err
	}

	if result.ELF, result.IHX, err = b.link(ctx, linkOrder(rels, lead)); err != nil {
		return nil, err
	}

	if result.Usage, err = b.measure(ctx, result.ELF, result.IHX); err != nil {
		return nil, err
	}
	glog.Infof("%s: %s", b.cfg.TargetInfo.Chip, result.Usage)
	result.Usage.Warn(b.cfg.Budget.WarnPercent)
	if err := result.Usage.Check(); err != nil {
		return nil, err
	}

	if opts.Flash {
		if err := b.flash(ctx, result.IHX); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// leadUnit names the unit linked first when the entry function is not known
// from dead code elimination: a user unit called main, or the first user unit.
func (b *builder) leadUnit() string {
	user := b.prog.UserUnits()
	for _, u := range user {
		if u.Name == "main" {
			return u.Name
		}
	}
	if len(user) > 0 {
		return user[0].Name
	}
	return ""
}

func (b *builder) eliminate() (*dce.Result, error) {
	var inputs []string
	for _, u := range b.prog.Units {
		inputs = append(inputs, u.asmFile(b.dirs))
	}
	result, err := dce.Run(inputs, b.dirs.dce, b.cfg.DCE.Options())
	if err != nil {
		return nil, err
	}
	glog.Info(result.Summary())
	return result, nil
}

// Size measures an already linked image of the project and checks it
// against the budgets.
func Size(ctx context.Context, opts Options) (Usage, error) {
	// The compiler is not needed to measure an image.
	b, err := newBuilder(opts)
	if b == nil {
		return Usage{}, err
	}
	elf := filepath.Join(b.cfg.OutputDir(), b.cfg.Name+".elf")
	if _, err := os.Stat(elf); err != nil {
		elf = ""
	}
	usage, err := b.measure(ctx, elf, b.imagePath())
	if err != nil {
		return Usage{}, err
	}
	return usage, usage.Check()
}

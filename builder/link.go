package builder

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

// assemble turns the (possibly dead code eliminated) assembly of every unit
// into relocatable objects and returns their paths in unit order.
func (b *builder) assemble(ctx context.Context, asmDir string) ([]string, error) {
	units := b.prog.Units
	rels := make([]string, len(units))
	err := runAll(ctx, b.opts.NumJobs, len(units), func(ctx context.Context, i int) error {
		u := units[i]
		asm := filepath.Join(asmDir, u.Name+".asm")
		rel := filepath.Join(b.dirs.rel, u.Name+".rel")
		args := []string{"-plsgff", "-o", rel, asm}
		if err := b.runner.Run(ctx, Command{Name: b.tc.AS, Args: args, Dir: b.cfg.Dir, Env: b.env.List()}); err != nil {
			return err
		}
		glog.V(1).Infof("AS %s", relPath(b.cfg.Dir, asm))
		rels[i] = rel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// linkOrder moves the object of the unit named lead to the front; the linker
// names its outputs and places code after the first module it is given.
func linkOrder(rels []string, lead string) []string {
	ordered := append([]string{}, rels...)
	i := slices.IndexFunc(ordered, func(rel string) bool {
		return strings.TrimSuffix(filepath.Base(rel), ".rel") == lead
	})
	if i > 0 {
		ordered = append(append([]string{ordered[i]}, ordered[:i]...), ordered[i+1:]...)
	}
	return ordered
}

// link produces the ELF image and converts it to Intel HEX. Without objcopy
// the Intel HEX image is linked directly and no ELF is produced.
func (b *builder) link(ctx context.Context, rels []string) (elf, ihx string, err error) {
	base := filepath.Join(b.dirs.root, b.cfg.Name)
	ihx = base + ".ihx"

	linkArgs := func(format, out string) []string {
		args := []string{"-mstm8", format, "-o", out}
		args = append(args, b.cfg.LDFlags...)
		return append(args, rels...)
	}

	if len(b.tc.ObjCopy) == 0 {
		glog.Warning("stm8-objcopy not found, linking Intel HEX directly")
		if err = b.runner.Run(ctx, Command{Name: b.tc.CC, Args: linkArgs("--out-fmt-ihx", ihx), Dir: b.cfg.Dir, Env: b.env.List()}); err != nil {
			return "", "", err
		}
		glog.Infof("LD %s", relPath(b.cfg.Dir, ihx))
		return "", ihx, nil
	}

	elf = base + ".elf"
	if err = b.runner.Run(ctx, Command{Name: b.tc.CC, Args: linkArgs("--out-fmt-elf", elf), Dir: b.cfg.Dir, Env: b.env.List()}); err != nil {
		return "", "", err
	}
	glog.Infof("LD %s", relPath(b.cfg.Dir, elf))

	if err = b.runner.Run(ctx, Command{Name: b.tc.ObjCopy, Args: []string{"-O", "ihex", elf, ihx}, Dir: b.cfg.Dir, Env: b.env.List()}); err != nil {
		return "", "", err
	}
	glog.Infof("OBJCOPY %s", relPath(b.cfg.Dir, ihx))
	return elf, ihx, nil
}

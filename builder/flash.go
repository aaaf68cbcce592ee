package builder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/golang/glog"
)

// flashArgs returns the stm8flash invocations that write image to the part
// configured for the project: an optional readout protection unlock, the
// write itself and an optional verification pass.
func (c *Config) flashArgs(image string) [][]string {
	base := []string{"-c", c.Flash.Programmer, "-p", c.Flash.Part}
	var steps [][]string
	if c.Flash.Unlock {
		steps = append(steps, append(append([]string{}, base...), "-u"))
	}
	steps = append(steps, append(append([]string{}, base...), "-w", image))
	if c.Flash.Verify {
		steps = append(steps, append(append([]string{}, base...), "-v", image))
	}
	return steps
}

func (b *builder) flash(ctx context.Context, image string) error {
	if _, err := os.Stat(image); err != nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, image)
	}
	if len(b.tc.Flash) == 0 {
		return errors.Join(ErrToolNotFound, errors.New("stm8flash"))
	}

	for _, args := range b.cfg.flashArgs(image) {
		if err := b.runner.Run(ctx, Command{Name: b.tc.Flash, Args: args, Dir: b.cfg.Dir, Env: b.env.List()}); err != nil {
			return err
		}
	}
	glog.Infof("FLASH %s -> %s via %s", relPath(b.cfg.Dir, image), b.cfg.Flash.Part, b.cfg.Flash.Programmer)
	return nil
}

// Flash writes an already built image to the device. The image defaults to
// the Intel HEX output of the project.
func Flash(ctx context.Context, opts Options, image string) error {
	// The compiler is not needed to flash an image.
	b, err := newBuilder(opts)
	if b == nil {
		return err
	}
	if len(image) == 0 {
		image = b.imagePath()
	}
	return b.flash(ctx, image)
}

package builder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/marcinbor85/gohex"

	"omibyte.io/stm8kit/targets"
)

// Usage is the memory footprint of an image against the budgets of its
// target.
type Usage struct {
	Flash      int
	FlashLimit int

	RAM      int
	RAMLimit int
	// RAMKnown is false when the footprint was taken from an Intel HEX image,
	// which carries no .bss.
	RAMKnown bool

	// Other counts image bytes outside the flash window, e.g. EEPROM or
	// option bytes.
	Other int
}

func percent(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) * 100 / float64(limit)
}

func (u Usage) String() string {
	flash := fmt.Sprintf("flash %d/%d bytes (%.1f%%)", u.Flash, u.FlashLimit, percent(u.Flash, u.FlashLimit))
	ram := "RAM unknown"
	if u.RAMKnown {
		ram = fmt.Sprintf("RAM %d/%d bytes (%.1f%%)", u.RAM, u.RAMLimit, percent(u.RAM, u.RAMLimit))
	}
	s := flash + ", " + ram
	if u.Other > 0 {
		s += fmt.Sprintf(", %d bytes outside flash", u.Other)
	}
	return s
}

// Check fails when either budget is exceeded.
func (u Usage) Check() error {
	var errs []error
	if u.Flash > u.FlashLimit {
		errs = append(errs, fmt.Errorf("%w: %d bytes used, %d available", ErrFlashBudget, u.Flash, u.FlashLimit))
	}
	if u.RAMKnown && u.RAM > u.RAMLimit {
		errs = append(errs, fmt.Errorf("%w: %d bytes used, %d available", ErrRAMBudget, u.RAM, u.RAMLimit))
	}
	return errors.Join(errs...)
}

// Warn logs a warning for each budget used at or above pct percent.
func (u Usage) Warn(pct int) {
	if pct <= 0 {
		return
	}
	if p := percent(u.Flash, u.FlashLimit); p >= float64(pct) {
		glog.Warningf("flash usage at %.1f%% of budget", p)
	}
	if p := percent(u.RAM, u.RAMLimit); u.RAMKnown && p >= float64(pct) {
		glog.Warningf("RAM usage at %.1f%% of budget", p)
	}
}

// SectionSizes is one row of Berkeley style size(1) output.
type SectionSizes struct {
	Text int
	Data int
	BSS  int
}

// ParseSize parses the output of "stm8-size <elf>":
//
//	   text	   data	    bss	    dec	    hex	filename
//	   1234	     10	     20	   1264	    4f0	main.elf
func ParseSize(r io.Reader) (SectionSizes, error) {
	scanner := bufio.NewScanner(r)
	header := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "text" {
			header = true
			continue
		}
		if !header || len(fields) < 3 {
			continue
		}
		var values [3]int
		for i := range values {
			v, err := strconv.Atoi(fields[i])
			if err != nil {
				return SectionSizes{}, fmt.Errorf("size output: %w", err)
			}
			values[i] = v
		}
		return SectionSizes{Text: values[0], Data: values[1], BSS: values[2]}, nil
	}
	if err := scanner.Err(); err != nil {
		return SectionSizes{}, err
	}
	return SectionSizes{}, errors.New("size output: no size row found")
}

// IHXUsage counts the bytes of an Intel HEX image that fall into the flash
// window of target, and those that fall outside it.
func IHXUsage(r io.Reader, target targets.TargetInfo) (flash, other int, err error) {
	mem := gohex.NewMemory()
	if err = mem.ParseIntelHex(r); err != nil {
		return 0, 0, err
	}
	start, end := target.FlashStart, target.FlashEnd()
	for _, seg := range mem.GetDataSegments() {
		for i := range seg.Data {
			if addr := seg.Address + uint32(i); addr >= start && addr < end {
				flash++
			} else {
				other++
			}
		}
	}
	return flash, other, nil
}

// measure reports the footprint of the linked image. stm8-size is used when
// available, the Intel HEX image otherwise.
func (b *builder) measure(ctx context.Context, elf, ihx string) (Usage, error) {
	usage := Usage{}
	usage.FlashLimit, usage.RAMLimit = b.cfg.Limits()

	if len(b.tc.Size) > 0 && len(elf) > 0 {
		var out bytes.Buffer
		if err := b.runner.Run(ctx, Command{Name: b.tc.Size, Args: []string{elf}, Dir: b.cfg.Dir, Env: b.env.List(), Stdout: &out}); err != nil {
			return Usage{}, err
		}
		sizes, err := ParseSize(&out)
		if err != nil {
			return Usage{}, err
		}
		usage.Flash = sizes.Text + sizes.Data
		usage.RAM = sizes.Data + sizes.BSS
		usage.RAMKnown = true
		return usage, nil
	}

	f, err := os.Open(ihx)
	if err != nil {
		return Usage{}, err
	}
	defer f.Close()
	usage.Flash, usage.Other, err = IHXUsage(f, b.cfg.TargetInfo)
	if err != nil {
		return Usage{}, fmt.Errorf("%s: %w", ihx, err)
	}
	return usage, nil
}

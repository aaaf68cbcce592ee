package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MinSDCCVersion is the oldest SDCC release whose STM8 assembly output the
// dead code eliminator understands.
const MinSDCCVersion = "v4.2.0"

type Toolchain struct {
	CC string
	AS string

	// ObjCopy, Size and Flash are optional. Without ObjCopy the image is
	// linked straight to Intel HEX and without Size the budget check falls
	// back to the Intel HEX image.
	ObjCopy string
	Size    string
	Flash   string

	Version string
}

func FindToolchain(env Env) (Toolchain, error) {
	cc, err := findTool(env, "SDCC", "sdcc")
	if err != nil {
		return Toolchain{}, err
	}

	as, err := findTool(env, "SDAS", "sdasstm8")
	if err != nil {
		return Toolchain{}, err
	}

	// Optional tools.
	objcopy, _ := findTool(env, "OBJCOPY", "stm8-objcopy")
	size, _ := findTool(env, "SIZE", "stm8-size")
	flash, _ := findTool(env, "STM8FLASH", "stm8flash")

	return Toolchain{
		CC:      cc,
		AS:      as,
		ObjCopy: objcopy,
		Size:    size,
		Flash:   flash,
	}, nil
}

// findTool resolves an executable from its environment override, the
// stm8kit install prefix and finally PATH, in that order.
func findTool(env Env, key string, names ...string) (string, error) {
	if override := env.Value(key); len(override) > 0 {
		if strings.ContainsRune(override, os.PathSeparator) {
			return filepath.Abs(override)
		}
		names = []string{override}
	}

	for _, name := range names {
		candidate := filepath.Join(env.BinDir(), name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return candidate, nil
		}
		if fname, err := findExecutable(name); err == nil {
			return fname, nil
		}
	}
	return "", errors.Join(ErrToolNotFound, fmt.Errorf("%s", strings.Join(names, ", ")))
}

func findExecutable(cmd string) (string, error) {
	fname, err := exec.LookPath(cmd)
	if err == nil {
		fname, err = filepath.Abs(fname)
	}
	return fname, err
}

var versionPattern = regexp.MustCompile(`\b(\d+)\.(\d+)\.(\d+)\b`)

// CheckVersion asks SDCC for its version and port list and rejects releases
// older than MinSDCCVersion or builds lacking the stm8 port.
func (t *Toolchain) CheckVersion(ctx context.Context, runner Runner) error {
	var out bytes.Buffer
	if err := runner.Run(ctx, Command{Name: t.CC, Args: []string{"--version"}, Stdout: &out}); err != nil {
		return err
	}

	version, err := ParseSDCCVersion(out.String())
	if err != nil {
		return err
	}
	t.Version = version
	return nil
}

// ParseSDCCVersion extracts the semantic version from the banner printed by
// "sdcc --version", e.g.
//
//	SDCC : mcs51/z80/z180/r2k/r2ka/r3ka/sm83/tlcs90/ez80_z80/z80n/ds390/pic16/pic14/TININative/ds400/hc08/s08/stm8/pdk13/pdk14/pdk15/mos6502 4.2.0 #13081 (Linux)
func ParseSDCCVersion(banner string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(banner), "\n")

	m := versionPattern.FindStringSubmatch(line)
	if m == nil {
		return "", errors.Join(ErrUnsupportedVersion, fmt.Errorf("cannot parse %q", line))
	}
	version := fmt.Sprintf("v%s.%s.%s", m[1], m[2], m[3])
	if semver.Compare(version, MinSDCCVersion) < 0 {
		return "", errors.Join(ErrUnsupportedVersion, fmt.Errorf("found %s, need %s or newer", version, MinSDCCVersion))
	}

	if ports, _, ok := strings.Cut(line, " "+m[0]); ok {
		if i := strings.Index(ports, ":"); i >= 0 {
			ports = ports[i+1:]
		}
		found := false
		for _, port := range strings.Split(strings.TrimSpace(ports), "/") {
			if port == "stm8" {
				found = true
				break
			}
		}
		if !found {
			return "", ErrNoSTM8Port
		}
	}
	return version, nil
}

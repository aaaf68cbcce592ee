package builder

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"omibyte.io/stm8kit/targets"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("target: STM8S103F3\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TargetInfo.Chip != "stm8s103f3" {
		t.Errorf("target = %s", cfg.TargetInfo.Chip)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"src/*.c"}) {
		t.Errorf("sources = %v", cfg.Sources)
	}
	if !cfg.DCE.IsEnabled() {
		t.Error("DCE should be enabled by default")
	}
	if cfg.DCE.Entry != "_main" {
		t.Errorf("entry = %s", cfg.DCE.Entry)
	}
	if cfg.Flash.Programmer != "stlinkv2" || cfg.Flash.Part != "stm8s103f3" {
		t.Errorf("flash = %+v", cfg.Flash)
	}
	if cfg.Output.Dir != "build" {
		t.Errorf("output = %s", cfg.Output.Dir)
	}
	if flash, ram := cfg.Limits(); flash != 8192 || ram != 1024 {
		t.Errorf("Limits() = %d, %d", flash, ram)
	}
}

func TestParseConfig(t *testing.T) {
	src := `
name: blinky
target: stm8s105k4
sources: [app/*.c, board/*.c]
include: [inc]
defines: [F_CPU=16000000UL]
cflags: [--std-sdcc11]
spl:
  path: vendor/spl
  modules: [gpio, stm8s_clk.c]
dce:
  enabled: false
  entry: _start
  exclude: [_putchar]
  optIRQ: true
budget:
  flash: 12000
  warnPercent: 90
flash:
  programmer: stlink
  unlock: true
  verify: true
output:
  dir: out
`
	cfg, err := ParseConfig([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "blinky" || cfg.TargetInfo.Define != "STM8S105" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.DCE.IsEnabled() {
		t.Error("DCE should be disabled")
	}
	opts := cfg.DCE.Options()
	if opts.Entry != "_start" || !opts.OptIRQ || !reflect.DeepEqual(opts.Exclude, []string{"_putchar"}) {
		t.Errorf("DCE options = %+v", opts)
	}
	if flash, ram := cfg.Limits(); flash != 12000 || ram != 2048 {
		t.Errorf("Limits() = %d, %d", flash, ram)
	}
	if cfg.Flash.Programmer != "stlink" || !cfg.Flash.Unlock || !cfg.Flash.Verify {
		t.Errorf("flash = %+v", cfg.Flash)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{"missing target", "name: x\n", ErrConfigInvalid},
		{"unknown target", "target: atmega328p\n", targets.ErrTargetNotFound},
		{"malformed", "target: [\n", ErrConfigInvalid},
		{"negative budget", "target: stm8s103f3\nbudget:\n  ram: -1\n", ErrConfigInvalid},
		{"warn percent", "target: stm8s103f3\nbudget:\n  warnPercent: 120\n", ErrConfigInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tc.src)); !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blinky")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(dir); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("target: stm8s003f3\nspl:\n  path: ../spl\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "blinky" {
		t.Errorf("name = %s, want the directory name", cfg.Name)
	}
	if cfg.Path != filepath.Join(dir, ConfigFile) {
		t.Errorf("path = %s", cfg.Path)
	}
	if cfg.OutputDir() != filepath.Join(dir, "build") {
		t.Errorf("output dir = %s", cfg.OutputDir())
	}
	if cfg.SPLDir() != filepath.Join(filepath.Dir(dir), "spl") {
		t.Errorf("SPL dir = %s", cfg.SPLDir())
	}
}

package builder

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, dir, src string) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Dir = dir
	cfg.Path = filepath.Join(dir, ConfigFile)
	cfg.Name = filepath.Base(dir)
	return cfg
}

func TestNewProgram(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "src", "main.c"))
	touch(t, filepath.Join(dir, "src", "led.c"))
	touch(t, filepath.Join(dir, "drivers", "led.c"))
	touch(t, filepath.Join(dir, "drivers", "stm8s_gpio.c"))
	touch(t, filepath.Join(dir, "spl", "src", "stm8s_gpio.c"))
	touch(t, filepath.Join(dir, "spl", "src", "stm8s_clk.c"))
	touch(t, filepath.Join(dir, "spl", "src", "stm8l15x_gpio.c"))

	cfg := testConfig(t, dir, "target: stm8s103f3\nsources: [src/*.c, drivers/*.c, src/main.c]\nspl:\n  path: spl\n")
	prog, err := NewProgram(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var names []string
	for _, u := range prog.Units {
		names = append(names, u.Name)
	}
	want := []string{
		"led_" + hashSuffix(filepath.Join(dir, "src")+string(filepath.Separator)),
		"main",
		"led_" + hashSuffix(filepath.Join(dir, "drivers")+string(filepath.Separator)),
		"stm8s_gpio_" + hashSuffix(filepath.Join(dir, "drivers")+string(filepath.Separator)),
		"stm8s_clk",
		"stm8s_gpio",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("unit names = %v, want %v", names, want)
	}

	if n := len(prog.UserUnits()); n != 4 {
		t.Errorf("%d user units, want 4", n)
	}

	flags := prog.cflags()
	for _, flag := range []string{"-mstm8", "--opt-code-size", "-DSTM8S103", "-I" + filepath.Join(dir, "spl", "inc")} {
		found := false
		for _, f := range flags {
			if f == flag {
				found = true
			}
		}
		if !found {
			t.Errorf("cflags %v lack %s", flags, flag)
		}
	}
}

func TestNewProgramNoSources(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), "target: stm8s103f3\n")
	if _, err := NewProgram(cfg); !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
}

func TestSPLModules(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "spl", "src", "stm8s_gpio.c"))
	touch(t, filepath.Join(dir, "spl", "src", "stm8s_clk.c"))
	touch(t, filepath.Join(dir, "spl", "src", "stm8s_tim4.c"))

	cfg := testConfig(t, dir, "target: stm8s103f3\nspl:\n  path: spl\n  modules: [tim4, stm8s_gpio.c, gpio]\n")
	sources, err := cfg.splSources()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "spl", "src", "stm8s_gpio.c"),
		filepath.Join(dir, "spl", "src", "stm8s_tim4.c"),
	}
	if !reflect.DeepEqual(sources, want) {
		t.Errorf("sources = %v, want %v", sources, want)
	}

	cfg.SPL.Modules = []string{"uart1"}
	if _, err := cfg.splSources(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a missing module error, got %v", err)
	}
}

func hashSuffix(dir string) string {
	name := hashedName(filepath.Join(dir, "x.c"))
	return name[len("x_"):]
}

package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/exp/slices"
)

const (
	mainAsm = `	.module main
	.optsdcc -mstm8
	.globl _main
	.area DATA
	.area INITIALIZED
	.area CODE
;	src/main.c: 5: void main(void)
_main:
	call	_GPIO_Init
	ret
`
	gpioAsm = `	.module stm8s_gpio
	.optsdcc -mstm8
	.globl _GPIO_DeInit
	.globl _GPIO_Init
	.area CODE
_GPIO_DeInit:
	clr	0x5000
	ret
_GPIO_Init:
	ld	a, (0x03, sp)
	ld	0x5002, a
	ret
`
	testImage = ":048000008200800773\n:04800400AE500A81EF\n:00000001FF\n"
)

// fakeRunner stands in for the toolchain. It writes the outputs each tool
// would produce and records the invocations.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Command

	sizeOut string
}

func argAfter(args []string, flag string) string {
	if i := slices.Index(args, flag); i >= 0 && i+1 < len(args) {
		return args[i+1]
	}
	return ""
}

func (r *fakeRunner) Run(ctx context.Context, c Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	args := c.Args
	switch filepath.Base(c.Name) {
	case "sdcc":
		source := args[len(args)-1]
		switch {
		case slices.Contains(args, "--version"):
			fmt.Fprintln(c.Stdout, "SDCC : mcs51/z80/stm8/pdk14 4.2.0 #13081 (Linux)")
		case slices.Contains(args, "-MM"):
			header := "inc/board.h"
			if strings.HasPrefix(baseName(source), "stm8s_") {
				header = filepath.Join(filepath.Dir(filepath.Dir(source)), "inc", "stm8s.h")
			}
			fmt.Fprintf(c.Stdout, "%s.rel: %s \\\n  %s\n", baseName(source), source, header)
		case slices.Contains(args, "-S"):
			asm := gpioAsm
			if baseName(source) == "main" {
				asm = mainAsm
			}
			return os.WriteFile(argAfter(args, "-o"), []byte(asm), 0644)
		default:
			out := argAfter(args, "-o")
			data := "ELF"
			if strings.HasSuffix(out, ".ihx") {
				data = testImage
			}
			return os.WriteFile(out, []byte(data), 0644)
		}
	case "sdasstm8":
		return os.WriteFile(argAfter(args, "-o"), []byte("XL3\n"), 0644)
	case "stm8-objcopy":
		return os.WriteFile(args[len(args)-1], []byte(testImage), 0644)
	case "stm8-size":
		fmt.Fprint(c.Stdout, r.sizeOut)
	case "stm8flash":
	default:
		return errors.Join(ErrToolFailed, fmt.Errorf("unexpected tool %s", c.Name))
	}
	return nil
}

func (r *fakeRunner) find(fn func(c Command) bool) []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Command
	for _, c := range r.calls {
		if fn(c) {
			result = append(result, c)
		}
	}
	return result
}

func (r *fakeRunner) tool(name string) []Command {
	return r.find(func(c Command) bool { return filepath.Base(c.Name) == name })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// newProject lays out a blinky project using the GPIO driver of the SPL.
func newProject(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFile), "name: blinky\ntarget: stm8s103f3\ninclude: [inc]\nspl:\n  path: spl\n  modules: [gpio]\n"+extra)
	writeFile(t, filepath.Join(dir, "src", "main.c"), "#include \"board.h\"\nvoid main(void) { GPIO_Init(); }\n")
	writeFile(t, filepath.Join(dir, "inc", "board.h"), "#include \"stm8s.h\"\n")
	writeFile(t, filepath.Join(dir, "spl", "inc", "stm8s.h"), "")
	writeFile(t, filepath.Join(dir, "spl", "src", "stm8s_gpio.c"), "void GPIO_DeInit(void) {}\nvoid GPIO_Init(void) {}\n")

	// Make the sources older than anything the build produces.
	past := time.Now().Add(-time.Hour)
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			os.Chtimes(path, past, past)
		}
		return nil
	})
	return dir
}

func testEnv(t *testing.T, size bool) Env {
	env := Env{
		"STM8KITROOT": t.TempDir(),
		"SDCC":        "/opt/stm8/bin/sdcc",
		"SDAS":        "/opt/stm8/bin/sdasstm8",
		"OBJCOPY":     "/opt/stm8/bin/stm8-objcopy",
		"SIZE":        "/opt/stm8/bin/stm8-size",
		"STM8FLASH":   "/opt/stm8/bin/stm8flash",
	}
	if !size {
		env["OBJCOPY"] = "stm8-objcopy-not-installed"
		env["SIZE"] = "stm8-size-not-installed"
	}
	return env
}

const sizeOutput = "   text\t   data\t    bss\t    dec\t    hex\tfilename\n" +
	"   1200\t     10\t     40\t   1250\t    4e2\tblinky.elf\n"

func TestBuild(t *testing.T) {
	dir := newProject(t, "")
	runner := &fakeRunner{sizeOut: sizeOutput}
	opts := Options{Dir: dir, Environment: testEnv(t, true), NumJobs: 2, Runner: runner}

	result, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	build := filepath.Join(dir, "build")
	if result.ELF != filepath.Join(build, "blinky.elf") || result.IHX != filepath.Join(build, "blinky.ihx") {
		t.Errorf("outputs = %s, %s", result.ELF, result.IHX)
	}
	if result.Compiled != 2 || result.UpToDate != 0 {
		t.Errorf("compiled %d, up to date %d", result.Compiled, result.UpToDate)
	}
	if want := (Usage{Flash: 1210, FlashLimit: 8192, RAM: 50, RAMLimit: 1024, RAMKnown: true}); result.Usage != want {
		t.Errorf("usage = %+v, want %+v", result.Usage, want)
	}

	if result.DCE == nil || len(result.DCE.Removed) != 1 || result.DCE.Removed[0].Name != "_GPIO_DeInit" || result.DCE.Total != 3 {
		t.Fatalf("unexpected DCE result %+v", result.DCE)
	}
	out, err := os.ReadFile(filepath.Join(build, "dce", "stm8s_gpio.asm"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{";\t.globl _GPIO_DeInit\n", ";_GPIO_DeInit:\n", ";\tclr\t0x5000\n", "\n_GPIO_Init:\n"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("DCE output lacks %q:\n%s", want, out)
		}
	}
	if in, _ := os.ReadFile(filepath.Join(build, "obj", "stm8s_gpio.asm")); string(in) != gpioAsm {
		t.Error("compiler output was modified")
	}

	f, err := os.Open(filepath.Join(build, "obj", "main.d"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	deps, err := ParseDeps(f.Name(), f)
	if err != nil {
		t.Fatal(err)
	}
	if deps.Output != filepath.Join(build, "obj", "main.asm") {
		t.Errorf("dependency rule output = %s", deps.Output)
	}
	if !slices.Contains(deps.Inputs, filepath.Join(dir, "inc", "board.h")) {
		t.Errorf("dependency inputs %v lack the absolute board.h", deps.Inputs)
	}

	for _, c := range runner.tool("sdasstm8") {
		if asm := c.Args[len(c.Args)-1]; filepath.Dir(asm) != filepath.Join(build, "dce") {
			t.Errorf("assembled %s instead of the DCE output", asm)
		}
	}

	links := runner.find(func(c Command) bool { return slices.Contains(c.Args, "--out-fmt-elf") })
	if len(links) != 1 {
		t.Fatalf("%d link commands", len(links))
	}
	rels := links[0].Args[len(links[0].Args)-2:]
	if want := []string{filepath.Join(build, "rel", "main.rel"), filepath.Join(build, "rel", "stm8s_gpio.rel")}; !reflect.DeepEqual(rels, want) {
		t.Errorf("link order = %v, want %v", rels, want)
	}

	for _, c := range runner.find(func(c Command) bool { return slices.Contains(c.Args, "-S") }) {
		for _, flag := range []string{"-mstm8", "--opt-code-size", "-DSTM8S103", "-I" + filepath.Join(dir, "inc"), "-I" + filepath.Join(dir, "spl", "inc")} {
			if !slices.Contains(c.Args, flag) {
				t.Errorf("%s lacks %s", c, flag)
			}
		}
	}

	if n := len(runner.tool("stm8flash")); n != 0 {
		t.Errorf("flashed %d times without --flash", n)
	}
}

func TestBuildIncremental(t *testing.T) {
	dir := newProject(t, "")
	opts := Options{Dir: dir, Environment: testEnv(t, true), Runner: &fakeRunner{sizeOut: sizeOutput}}

	if _, err := Build(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	result, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Compiled != 0 || result.UpToDate != 2 {
		t.Errorf("second build compiled %d, up to date %d", result.Compiled, result.UpToDate)
	}
	if _, err := os.Stat(filepath.Join(dir, "build", "dce", "main.asm")); err != nil {
		t.Error("DCE output missing after an incremental build")
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "inc", "board.h"), future, future); err != nil {
		t.Fatal(err)
	}
	result, err = Build(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Compiled != 1 || result.UpToDate != 1 {
		t.Errorf("build after a header change compiled %d, up to date %d", result.Compiled, result.UpToDate)
	}

	opts.Force = true
	if result, err = Build(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if result.Compiled != 2 {
		t.Errorf("forced build compiled %d units", result.Compiled)
	}
}

func TestBuildWithoutDCE(t *testing.T) {
	dir := newProject(t, "")
	runner := &fakeRunner{sizeOut: sizeOutput}
	opts := Options{Dir: dir, Environment: testEnv(t, true), Runner: runner, NoDCE: true}

	result, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.DCE != nil {
		t.Error("DCE ran with NoDCE set")
	}
	for _, c := range runner.tool("sdasstm8") {
		if asm := c.Args[len(c.Args)-1]; filepath.Dir(asm) != filepath.Join(dir, "build", "obj") {
			t.Errorf("assembled %s instead of the compiler output", asm)
		}
	}
}

func TestBuildWithoutBinutils(t *testing.T) {
	dir := newProject(t, "")
	runner := &fakeRunner{}
	opts := Options{Dir: dir, Environment: testEnv(t, false), Runner: runner}

	result, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.ELF != "" {
		t.Errorf("ELF = %s without objcopy", result.ELF)
	}
	if len(runner.find(func(c Command) bool { return slices.Contains(c.Args, "--out-fmt-ihx") })) != 1 {
		t.Error("image was not linked to Intel HEX directly")
	}
	if want := (Usage{Flash: 8, FlashLimit: 8192, RAMLimit: 1024}); result.Usage != want {
		t.Errorf("usage = %+v, want %+v", result.Usage, want)
	}
}

func TestBuildBudget(t *testing.T) {
	dir := newProject(t, "budget:\n  flash: 1000\n")
	opts := Options{Dir: dir, Environment: testEnv(t, true), Runner: &fakeRunner{sizeOut: sizeOutput}}

	if _, err := Build(context.Background(), opts); !errors.Is(err, ErrFlashBudget) {
		t.Errorf("expected ErrFlashBudget, got %v", err)
	}
}

func TestBuildCompileError(t *testing.T) {
	dir := newProject(t, "")
	failure := errors.Join(ErrToolFailed, errors.New("sdcc: exit status 1"))
	runner := &failingRunner{fakeRunner: &fakeRunner{}, fail: func(c Command) bool {
		return slices.Contains(c.Args, "-S") && baseName(c.Args[len(c.Args)-1]) == "main"
	}, err: failure}
	opts := Options{Dir: dir, Environment: testEnv(t, true), Runner: runner}

	if _, err := Build(context.Background(), opts); !errors.Is(err, ErrToolFailed) {
		t.Errorf("expected ErrToolFailed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "build", "obj", "main.d")); !errors.Is(err, os.ErrNotExist) {
		t.Error("dependency file written for a failed unit")
	}
}

type failingRunner struct {
	*fakeRunner
	fail func(c Command) bool
	err  error
}

func (r *failingRunner) Run(ctx context.Context, c Command) error {
	if r.fail(c) {
		return r.err
	}
	return r.fakeRunner.Run(ctx, c)
}

func TestBuildAndFlash(t *testing.T) {
	dir := newProject(t, "flash:\n  unlock: true\n  verify: true\n")
	runner := &fakeRunner{sizeOut: sizeOutput}
	opts := Options{Dir: dir, Environment: testEnv(t, true), Runner: runner, Flash: true}

	result, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	var got [][]string
	for _, c := range runner.tool("stm8flash") {
		got = append(got, c.Args)
	}
	base := []string{"-c", "stlinkv2", "-p", "stm8s103f3"}
	want := [][]string{
		append(append([]string{}, base...), "-u"),
		append(append([]string{}, base...), "-w", result.IHX),
		append(append([]string{}, base...), "-v", result.IHX),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stm8flash calls = %v, want %v", got, want)
	}
}

func TestFlashMissingImage(t *testing.T) {
	dir := newProject(t, "")
	opts := Options{Dir: dir, Environment: testEnv(t, true), Runner: &fakeRunner{}}
	if err := Flash(context.Background(), opts, ""); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}

func TestSize(t *testing.T) {
	dir := newProject(t, "")
	writeFile(t, filepath.Join(dir, "build", "blinky.ihx"), testImage)
	opts := Options{Dir: dir, Environment: testEnv(t, false), Runner: &fakeRunner{}}

	usage, err := Size(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.Flash != 8 || usage.RAMKnown {
		t.Errorf("usage = %+v", usage)
	}
}

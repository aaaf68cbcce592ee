package builder

import "io"

type Options struct {
	// Dir is the project directory holding stm8kit.yaml.
	Dir string
	// BuildDir overrides the output directory of the project file.
	BuildDir    string
	Environment Env
	NumJobs     int

	// Force recompiles units that are up to date.
	Force bool
	// NoDCE links the compiler output without dead code elimination.
	NoDCE bool
	// Flash writes the image to the device after a successful build.
	Flash bool
	// SkipVersionCheck accepts any SDCC release.
	SkipVersionCheck bool

	// Runner executes toolchain commands. Child processes are used when nil.
	Runner Runner
	Stdout io.Writer
	Stderr io.Writer
}

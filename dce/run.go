package dce

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
)

func Load(inputs []string) ([]*File, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	seen := map[string]string{}
	var files []*File
	for _, input := range inputs {
		base := filepath.Base(input)
		if prev, ok := seen[base]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateInput, prev, input)
		}
		seen[base] = input

		if glog.V(2) {
			glog.Infof("parsing file %s", input)
		}
		file, err := ParseFile(input)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// Run eliminates dead code from inputs and writes the results under
// outputDir using the input base names. The inputs are left untouched.
func Run(inputs []string, outputDir string, opts Options) (*Result, error) {
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrOutputDir, outputDir)
	}

	files, err := Load(inputs)
	if err != nil {
		return nil, err
	}

	prog := NewProgram(files)
	for _, w := range prog.Warnings {
		glog.Warning(w)
	}

	result, err := prog.Eliminate(opts)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		out := filepath.Join(outputDir, filepath.Base(file.Path))
		if err := os.WriteFile(out, file.Bytes(), 0644); err != nil {
			return nil, errors.Join(fmt.Errorf("writing %s", out), err)
		}
	}

	return result, nil
}

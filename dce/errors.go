package dce

import "errors"

var (
	ErrEntryNotFound  = errors.New("entry label not found")
	ErrOutputDir      = errors.New("output directory does not exist")
	ErrDuplicateInput = errors.New("duplicate input file name")
	ErrNoInput        = errors.New("no assembly files given")
)

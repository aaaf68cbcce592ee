package builder

import "errors"

var (
	ErrConfigNotFound     = errors.New("project file not found")
	ErrConfigInvalid      = errors.New("invalid project file")
	ErrToolNotFound       = errors.New("toolchain executable not found")
	ErrToolFailed         = errors.New("toolchain command failed")
	ErrUnsupportedVersion = errors.New("unsupported SDCC version")
	ErrNoSTM8Port         = errors.New("SDCC was built without the stm8 port")
	ErrNoSources          = errors.New("no source files matched")
	ErrInvalidDeps        = errors.New("malformed dependency file")
	ErrFlashBudget        = errors.New("image exceeds flash budget")
	ErrRAMBudget          = errors.New("image exceeds RAM budget")
	ErrImageNotFound      = errors.New("image not found")
	ErrUnsafeClean        = errors.New("refusing to remove output directory")
)

package toolchain

import "errors"

var (
	ErrManifestInvalid    = errors.New("invalid component manifest")
	ErrUnknownComponent   = errors.New("unknown component")
	ErrComponentCycle     = errors.New("component dependency cycle")
	ErrChecksum           = errors.New("checksum mismatch")
	ErrDownload           = errors.New("download failed")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrUnsafeArchivePath  = errors.New("archive entry escapes the destination")
)

package toolchain

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
)

type compression int

const (
	gzipCompression compression = iota
	bzip2Compression
)

func archiveFormat(fname string) (compression, error) {
	switch {
	case strings.HasSuffix(fname, ".tar.gz"), strings.HasSuffix(fname, ".tgz"):
		return gzipCompression, nil
	case strings.HasSuffix(fname, ".tar.bz2"):
		return bzip2Compression, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(fname))
}

// within reports whether target is dest or lies below it.
func within(dest, target string) bool {
	rel, err := filepath.Rel(dest, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePath walks rel from base one element at a time the way the
// kernel would, following symlinks that already exist on disk. The final
// element is only followed when leaf is set.
func resolvePath(base, rel string, leaf bool) string {
	var parts []string
	for _, p := range strings.Split(filepath.ToSlash(rel), "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	cur := base
	for i, p := range parts {
		if p == ".." {
			cur = filepath.Dir(cur)
			continue
		}
		cur = filepath.Join(cur, p)
		if i == len(parts)-1 && !leaf {
			break
		}
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			cur = real
		}
	}
	return cur
}

// safeLink reports whether a symlink created in dir with the given value
// stays inside root. Parent references are only accepted as a leading
// prefix, since a later entry could turn an earlier element into a link.
func safeLink(root, dir, link string) bool {
	link = filepath.FromSlash(link)
	if filepath.IsAbs(link) {
		return false
	}
	named := false
	for _, p := range strings.Split(filepath.ToSlash(link), "/") {
		switch p {
		case "", ".":
		case "..":
			if named {
				return false
			}
		default:
			named = true
		}
	}
	return within(root, resolvePath(dir, link, true))
}

// Extract unpacks a compressed tarball into dest. Entries that would land
// outside dest, including through links, are rejected.
func Extract(archive, dest string) error {
	format, err := archiveFormat(archive)
	if err != nil {
		return err
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case gzipCompression:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", archive, err)
		}
		defer gz.Close()
		r = gz
	case bzip2Compression:
		r = bzip2.NewReader(f)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	if dest, err = filepath.Abs(dest); err != nil {
		return err
	}
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, hdr.Name)
		} else if err != nil {
			return fmt.Errorf("%s: %w", archive, err)
		}

		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, hdr.Name)
		}
		// Resolve through links already on disk so that a chain of
		// in-tree symlinks cannot carry later entries outside root.
		target := resolvePath(root, name, false)
		if (target == root && hdr.Typeflag != tar.TypeDir) || !within(root, target) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if !safeLink(root, filepath.Dir(target), hdr.Linkname) {
				return fmt.Errorf("%w: %s -> %s", ErrUnsafeArchivePath, hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			source := resolvePath(root, filepath.FromSlash(hdr.Linkname), true)
			if filepath.IsAbs(filepath.FromSlash(hdr.Linkname)) || !within(root, source) {
				return fmt.Errorf("%w: %s -> %s", ErrUnsafeArchivePath, hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return err
			}
		default:
			glog.V(2).Infof("skipping %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	// Replace rather than follow whatever is already at target.
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

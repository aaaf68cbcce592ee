// Package toolchain fetches and builds the STM8 toolchain components (SDCC,
// the STM8 binutils and stm8flash) into the stm8kit install prefix.
package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"omibyte.io/stm8kit/builder"
)

type Installer struct {
	// Prefix is the install root, usually STM8KITROOT.
	Prefix string
	// Cache holds downloaded archives and unpacked sources.
	Cache string
	Jobs  int
	Env   builder.Env

	Runner builder.Runner
	Client *http.Client
}

// NewInstaller returns an installer for the prefix and cache of env.
func NewInstaller(env builder.Env) *Installer {
	return &Installer{
		Prefix: env.Value("STM8KITROOT"),
		Cache:  env.Value("STM8KITCACHE"),
		Env:    env,
	}
}

func (in *Installer) jobs() int {
	if in.Jobs < 1 {
		return runtime.NumCPU()
	}
	return in.Jobs
}

func (in *Installer) runner() builder.Runner {
	if in.Runner == nil {
		return builder.ExecRunner{}
	}
	return in.Runner
}

func (in *Installer) client() *http.Client {
	if in.Client == nil {
		return http.DefaultClient
	}
	return in.Client
}

// SourceDir is where the sources of c are unpacked or cloned to.
func (in *Installer) SourceDir(c *Component) string {
	return filepath.Join(in.Cache, "src", c.SourceName())
}

// Fetch downloads and unpacks an archive component, or clones a git
// component, and returns the source directory. Archives already in the
// cache are reused when their checksum matches, and existing clones are
// left alone.
func (in *Installer) Fetch(ctx context.Context, c *Component) (string, error) {
	srcDir := in.SourceDir(c)
	switch {
	case c.Archive != nil:
		fname, err := in.download(ctx, c.Archive)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.Name, err)
		}
		if err := os.RemoveAll(srcDir); err != nil {
			return "", err
		}
		if err := Extract(fname, srcDir); err != nil {
			return "", fmt.Errorf("%s: %w", c.Name, err)
		}
		glog.Infof("unpacked %s into %s", filepath.Base(fname), srcDir)
	case c.Git != nil:
		if _, err := os.Stat(filepath.Join(srcDir, ".git")); err == nil {
			glog.Infof("%s already cloned in %s", c.Name, srcDir)
			return srcDir, nil
		}
		if err := os.MkdirAll(filepath.Dir(srcDir), 0755); err != nil {
			return "", err
		}
		args := []string{"clone", "--depth", "1"}
		if len(c.Git.Ref) > 0 {
			args = append(args, "--branch", c.Git.Ref)
		}
		args = append(args, c.Git.URL, srcDir)
		if err := in.runner().Run(ctx, builder.Command{Name: "git", Args: args, Env: in.Env.List()}); err != nil {
			return "", fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return srcDir, nil
}

func fileChecksum(fname string) (string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (in *Installer) download(ctx context.Context, a *Archive) (string, error) {
	if err := os.MkdirAll(in.Cache, 0755); err != nil {
		return "", err
	}
	fname := filepath.Join(in.Cache, a.FileName())
	want := strings.ToLower(a.SHA256)

	if sum, err := fileChecksum(fname); err == nil {
		if len(want) == 0 || sum == want {
			glog.Infof("using cached %s", fname)
			return fname, nil
		}
		glog.Warningf("cached %s has checksum %s, downloading again", fname, sum)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", err
	}
	t0 := time.Now()
	resp, err := in.client().Do(req)
	if err != nil {
		return "", errors.Join(ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Join(ErrDownload, fmt.Errorf("%s: %s", a.URL, resp.Status))
	}

	// Download next to the final name so a partial file is never mistaken
	// for a cached archive.
	part := fname + ".part"
	f, err := os.Create(part)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return "", errors.Join(ErrDownload, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if len(want) > 0 && sum != want {
		os.Remove(part)
		return "", fmt.Errorf("%w: %s is %s, want %s", ErrChecksum, a.FileName(), sum, want)
	}
	if len(want) == 0 {
		glog.Warningf("%s has no checksum in the manifest, got %s", a.FileName(), sum)
	}
	if err := os.Rename(part, fname); err != nil {
		return "", err
	}
	glog.Infof("downloaded %s (%d bytes, %s)", a.FileName(), n, time.Since(t0).Round(time.Millisecond))
	return fname, nil
}

// Steps returns the build commands of c with placeholders expanded.
func (in *Installer) Steps(c *Component) [][]string {
	steps := c.Steps
	if len(steps) == 0 {
		configure := append([]string{"./configure", "--prefix={prefix}"}, c.Configure...)
		build := append([]string{"make", "-j{jobs}"}, c.Make...)
		install := c.Install
		if len(install) == 0 {
			install = []string{"make", "install"}
		}
		steps = [][]string{configure, build, install}
	}

	replacer := strings.NewReplacer(
		"{prefix}", in.Prefix,
		"{jobs}", strconv.Itoa(in.jobs()),
		"{cache}", in.Cache,
	)
	result := make([][]string, len(steps))
	for i, step := range steps {
		result[i] = make([]string, len(step))
		for j, arg := range step {
			result[i][j] = replacer.Replace(arg)
		}
	}
	return result
}

// Build runs the build steps of c in its source directory.
func (in *Installer) Build(ctx context.Context, c *Component, srcDir string) error {
	dir := srcDir
	if len(c.Dir) > 0 {
		dir = filepath.Join(srcDir, c.Dir)
	}
	for _, step := range in.Steps(c) {
		if err := ctx.Err(); err != nil {
			return err
		}
		glog.Infof("%s: %s", c.Name, strings.Join(step, " "))
		cmd := builder.Command{Name: step[0], Args: step[1:], Dir: dir, Env: in.Env.List()}
		if err := in.runner().Run(ctx, cmd); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

// Install fetches and builds components in order.
func (in *Installer) Install(ctx context.Context, components []*Component) error {
	for _, c := range components {
		if err := ctx.Err(); err != nil {
			return err
		}
		t0 := time.Now()
		srcDir, err := in.Fetch(ctx, c)
		if err != nil {
			return err
		}
		if err := in.Build(ctx, c, srcDir); err != nil {
			return err
		}
		glog.Infof("installed %s %s into %s (%s)", c.Name, c.Version, in.Prefix, time.Since(t0).Round(time.Second))
	}
	return nil
}

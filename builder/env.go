package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Env map[string]string

func Environment() Env {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	// Get the user cache directory
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Attempt to use the tmp dir
		cacheDir = os.TempDir()
	}

	root := getenv("STM8KITROOT", filepath.Join(home, ".local", "stm8kit"))

	return map[string]string{
		"STM8KITROOT":  root,
		"STM8KITCACHE": getenv("STM8KITCACHE", filepath.Join(cacheDir, "stm8kit")),

		"SDCC":      getenv("SDCC", ""),
		"SDAS":      getenv("SDAS", ""),
		"OBJCOPY":   getenv("OBJCOPY", ""),
		"SIZE":      getenv("SIZE", ""),
		"STM8FLASH": getenv("STM8FLASH", ""),

		// Toolchain components installed by stm8kit take precedence.
		"PATH": filepath.Join(root, "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
}

func (e Env) Print(w io.Writer) {
	keys := maps.Keys(e)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%q\n", k, e[k])
	}
}

func (e Env) Value(key string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return ""
}

// BinDir is the directory toolchain components are installed into.
func (e Env) BinDir() string {
	return filepath.Join(e.Value("STM8KITROOT"), "bin")
}

// List returns the environment in "key=value" form, merged over the process
// environment, for use with exec.Cmd.
func (e Env) List() []string {
	result := os.Environ()
	keys := maps.Keys(e)
	slices.Sort(keys)
	for _, key := range keys {
		if value := e[key]; len(value) > 0 {
			result = append(result, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return result
}

func getenv(key, _default string) (value string) {
	value = os.Getenv(key)
	if len(value) == 0 {
		value = _default
	}
	return value
}

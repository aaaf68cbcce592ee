package toolchain

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
	"gopkg.in/yaml.v3"
)

//go:embed components.yaml
var defaultManifest []byte

type Archive struct {
	URL string `yaml:"url"`
	// File names the download in the cache. Defaults to the last element of
	// the URL path.
	File   string `yaml:"file"`
	SHA256 string `yaml:"sha256"`
}

func (a *Archive) FileName() string {
	if len(a.File) > 0 {
		return a.File
	}
	u := strings.TrimSuffix(a.URL, "/")
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

type Git struct {
	URL string `yaml:"url"`
	Ref string `yaml:"ref"`
}

type Component struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Archive     *Archive `yaml:"archive"`
	Git         *Git     `yaml:"git"`

	// Dir is the directory within the source tree the build runs in.
	Dir string `yaml:"dir"`

	Configure []string `yaml:"configure"`
	Make      []string `yaml:"make"`
	Install   []string `yaml:"install"`
	// Steps replace the configure, make and install sequence.
	Steps [][]string `yaml:"steps"`

	After []string `yaml:"after"`
}

// SourceName is the directory name the component is unpacked or cloned to.
func (c *Component) SourceName() string {
	if len(c.Version) == 0 {
		return c.Name
	}
	return c.Name + "-" + c.Version
}

func (c *Component) validate() error {
	if len(c.Name) == 0 {
		return errors.New("component without a name")
	}
	switch {
	case c.Archive != nil && c.Git != nil:
		return fmt.Errorf("%s: both archive and git sources", c.Name)
	case c.Archive != nil:
		if len(c.Archive.URL) == 0 {
			return fmt.Errorf("%s: archive without url", c.Name)
		}
		if _, err := archiveFormat(c.Archive.FileName()); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	case c.Git != nil:
		if len(c.Git.URL) == 0 {
			return fmt.Errorf("%s: git source without url", c.Name)
		}
	default:
		return fmt.Errorf("%s: no source", c.Name)
	}
	return nil
}

type Manifest struct {
	Components []*Component `yaml:"components"`
}

// DefaultManifest returns the embedded component manifest.
func DefaultManifest() *Manifest {
	m, err := ParseManifest(defaultManifest)
	if err != nil {
		panic(err)
	}
	return m
}

// LoadManifest reads a manifest file, or returns the embedded manifest when
// fname is empty.
func LoadManifest(fname string) (*Manifest, error) {
	if len(fname) == 0 {
		return ParseManifest(defaultManifest)
	}
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return m, nil
}

func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, errors.Join(ErrManifestInvalid, err)
	}

	var names []string
	for _, c := range m.Components {
		if err := c.validate(); err != nil {
			return nil, errors.Join(ErrManifestInvalid, err)
		}
		if slices.Contains(names, c.Name) {
			return nil, errors.Join(ErrManifestInvalid, fmt.Errorf("duplicate component %s", c.Name))
		}
		names = append(names, c.Name)
	}
	for _, c := range m.Components {
		for _, dep := range c.After {
			if dep == c.Name {
				return nil, errors.Join(ErrManifestInvalid, fmt.Errorf("%w: %s is installed after itself", ErrComponentCycle, c.Name))
			}
			if !slices.Contains(names, dep) {
				return nil, errors.Join(ErrManifestInvalid, fmt.Errorf("%s: %w: %s", c.Name, ErrUnknownComponent, dep))
			}
		}
	}
	return &m, nil
}

func (m *Manifest) Find(name string) (*Component, error) {
	for _, c := range m.Components {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
}

type componentNode struct {
	id        int64
	component *Component
}

func (n componentNode) ID() int64 { return n.id }

// Order returns the named components, and every component they must be
// installed after, in installation order. All components are returned when
// no names are given.
func (m *Manifest) Order(names ...string) ([]*Component, error) {
	if len(names) == 0 {
		for _, c := range m.Components {
			names = append(names, c.Name)
		}
	}

	g := multi.NewDirectedGraph()
	nodes := map[string]componentNode{}
	var makeNode func(name string) (componentNode, error)
	makeNode = func(name string) (componentNode, error) {
		if n, ok := nodes[name]; ok {
			return n, nil
		}
		c, err := m.Find(name)
		if err != nil {
			return componentNode{}, err
		}
		n := componentNode{id: int64(slices.Index(m.Components, c)), component: c}
		nodes[name] = n
		g.AddNode(n)
		for _, dep := range c.After {
			depNode, err := makeNode(dep)
			if err != nil {
				return componentNode{}, err
			}
			g.SetLine(g.NewLine(depNode, n))
		}
		return n, nil
	}
	for _, name := range names {
		if _, err := makeNode(name); err != nil {
			return nil, err
		}
	}

	// Visiting in reverse manifest order keeps independent components in
	// manifest order.
	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		slices.SortFunc(nodes, func(a, b graph.Node) bool { return a.ID() > b.ID() })
	})
	if err != nil {
		return nil, errors.Join(ErrComponentCycle, err)
	}

	result := make([]*Component, len(sorted))
	for i, n := range sorted {
		result[i] = n.(componentNode).component
	}
	return result, nil
}

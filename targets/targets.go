package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrInvalidTarget  = errors.New("invalid target description")
)

func All() Targets {
	return targets
}

type Targets []TargetInfo
type TargetInfo struct {
	Chip       string   `yaml:"chip"`
	Family     string   `yaml:"family"`
	Define     string   `yaml:"define"`
	FlashSize  int      `yaml:"flashSize"`
	RAMSize    int      `yaml:"ramSize"`
	EEPROMSize int      `yaml:"eepromSize"`
	FlashStart uint32   `yaml:"flashStart"`
	RAMStart   uint32   `yaml:"ramStart"`
	Part       string   `yaml:"part"`
	Tags       []string `yaml:"tags"`
}

// FlashEnd returns the first address past the program memory window.
func (t TargetInfo) FlashEnd() uint32 {
	return t.FlashStart + uint32(t.FlashSize)
}

// DefineFlag formats the family macro as a compiler switch.
func (t TargetInfo) DefineFlag() string {
	return "-D" + t.Define
}

func (t TargetInfo) Validate() error {
	switch {
	case len(t.Chip) == 0:
		return errors.Join(ErrInvalidTarget, errors.New("missing chip name"))
	case len(t.Define) == 0:
		return errors.Join(ErrInvalidTarget, fmt.Errorf("%s: missing family define", t.Chip))
	case t.FlashSize <= 0:
		return errors.Join(ErrInvalidTarget, fmt.Errorf("%s: flash size must be positive", t.Chip))
	case t.RAMSize <= 0:
		return errors.Join(ErrInvalidTarget, fmt.Errorf("%s: RAM size must be positive", t.Chip))
	}
	return nil
}

func (t Targets) FindByChip(name string) (TargetInfo, error) {
	name = strings.ToLower(name)
	for _, target := range t {
		if target.Chip == name {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
}

func (t Targets) FindByFamily(define string) (TargetInfo, error) {
	define = strings.ToUpper(define)
	for _, target := range t {
		if target.Define == define {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: no part with family %s", ErrTargetNotFound, define)
}

// Tagged returns every target carrying the tag.
func (t Targets) Tagged(tag string) Targets {
	var result Targets
	for _, target := range t {
		if slices.Contains(target.Tags, tag) {
			result = append(result, target)
		}
	}
	return result
}

func init() {
	var t struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(rawTargets, &t); err != nil {
		panic(err)
	}

	targets = t.Elements
}

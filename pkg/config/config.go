package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rhmodding/deckompiler/pkg/c00"
	"github.com/rhmodding/deckompiler/pkg/common/log"
	"github.com/rhmodding/deckompiler/pkg/fileio"
	"github.com/rhmodding/deckompiler/pkg/tickflow"
)

const CurrentConfigVersion = 1

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrConfigNotFound = errors.New("config file not found")
)

type SyncMode int

const (
	SyncNone SyncMode = iota
	SyncImmediate
)

func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("sync(%d)", int(m))
	}
}

// MarshalYAML writes the mode by name
func (m SyncMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// MarshalText writes the mode by name in JSON output
func (m SyncMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalYAML reads the mode by name
func (m *SyncMode) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "none", "false":
		*m = SyncNone
	case "immediate", "true":
		*m = SyncImmediate
	default:
		return fmt.Errorf("%w: unknown sync mode %q", ErrInvalidConfig, value.Value)
	}
	return nil
}

// AnnotationConfig maps annotation tags to argument kinds
type AnnotationConfig struct {
	PointerTags []int `yaml:"pointer_tags" json:"pointer_tags"`
	StringTags  []int `yaml:"string_tags" json:"string_tags"`
}

// OutputConfig controls how output files are written
type OutputConfig struct {
	Sync SyncMode `yaml:"sync" json:"sync"`
}

// ArchiveConfig holds the defaults of the unpack command
type ArchiveConfig struct {
	Variant string `yaml:"variant" json:"variant"`
	// BaseOffset overrides the variant's base when set. Integer literal.
	BaseOffset string `yaml:"base_offset,omitempty" json:"base_offset,omitempty"`
	NamesFile  string `yaml:"names_file,omitempty" json:"names_file,omitempty"`
}

type Config struct {
	Version  int    `yaml:"version" json:"version"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	Annotation AnnotationConfig `yaml:"annotation" json:"annotation"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Archive    ArchiveConfig    `yaml:"archive" json:"archive"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig() *Config {
	return &Config{
		Version:  CurrentConfigVersion,
		LogLevel: "info",

		Annotation: AnnotationConfig{
			PointerTags: []int{int(tickflow.TagLabel)},
			StringTags:  []int{int(tickflow.TagUnicode), int(tickflow.TagASCII)},
		},

		Output: OutputConfig{
			Sync: SyncImmediate,
		},

		Archive: ArchiveConfig{
			Variant: string(c00.RHMPatch),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[int]string)
	for _, set := range []struct {
		name string
		tags []int
	}{
		{"pointer", c.Annotation.PointerTags},
		{"string", c.Annotation.StringTags},
	} {
		for _, tag := range set.tags {
			if tag < 0 || tag > 0xFF {
				return fmt.Errorf("%w: annotation tag %d does not fit in a byte", ErrInvalidConfig, tag)
			}
			if other, ok := seen[tag]; ok && other != set.name {
				return fmt.Errorf("%w: annotation tag %d is both a %s and a %s tag", ErrInvalidConfig, tag, other, set.name)
			}
			seen[tag] = set.name
		}
	}
	if len(c.Annotation.StringTags) == 0 && len(c.Annotation.PointerTags) == 0 {
		return fmt.Errorf("%w: no annotation tags configured", ErrInvalidConfig)
	}

	if c.Output.Sync != SyncNone && c.Output.Sync != SyncImmediate {
		return fmt.Errorf("%w: invalid sync mode %d", ErrInvalidConfig, c.Output.Sync)
	}

	if _, err := c00.ParseVariant(c.Archive.Variant); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Archive.BaseOffset != "" {
		if _, err := c00.ParseOffset(c.Archive.BaseOffset); err != nil {
			return fmt.Errorf("%w: base_offset: %v", ErrInvalidConfig, err)
		}
	}

	return nil
}

// TagMapping returns the annotation tag mapping used by the decoder
func (c *Config) TagMapping() tickflow.TagMapping {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := tickflow.TagMapping{
		Pointer: make([]uint8, 0, len(c.Annotation.PointerTags)),
		String:  make([]uint8, 0, len(c.Annotation.StringTags)),
	}
	for _, t := range c.Annotation.PointerTags {
		m.Pointer = append(m.Pointer, uint8(t))
	}
	for _, t := range c.Annotation.StringTags {
		m.String = append(m.String, uint8(t))
	}
	return m
}

// Level returns the configured log level
func (c *Config) Level() log.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// BaseOffset returns the archive threshold: the explicit base_offset when
// set, otherwise the variant's base.
func (c *Config) BaseOffset() (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Archive.BaseOffset != "" {
		return c00.ParseOffset(c.Archive.BaseOffset)
	}
	v, err := c00.ParseVariant(c.Archive.Variant)
	if err != nil {
		return 0, err
	}
	return v.BaseOffset(), nil
}

// SyncOutput reports whether output files are flushed before the rename
func (c *Config) SyncOutput() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Output.Sync == SyncImmediate
}

// LoadConfig reads a YAML config file over the defaults. Environment
// variables in the file are expanded before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := fileio.WriteBytesAtomic(path, data, c.SyncOutput()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

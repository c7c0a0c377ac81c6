package confloader

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "SESSFILE_"

// envLevelSep separates nesting levels in environment variable names.
const envLevelSep = "__"

// Source names reported by Sources.
const (
	SourceFile      = "file"
	SourceEnv       = "env"
	SourceOverrides = "overrides"
)

// Loader merges configuration layers into a struct with koanf tags.
// Later layers win: values already in the target, the YAML file,
// environment variables, then overrides.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
	sources   []string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path. Empty means none.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets the top layer, keyed by dotted path such as
// "sweep.interval". Command-line flags end up here.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every layer and unmarshals the result into target. Fields
// no layer mentions keep their current value, so target is normally
// pre-filled with defaults.
func (l *Loader) Load(target any) error {
	l.k = koanf.New(".")
	l.sources = l.sources[:0]

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load file %s: %w", l.filePath, err)
		}
		l.sources = append(l.sources, SourceFile)
	}

	envK := koanf.New(".")
	if err := envK.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if len(envK.Keys()) > 0 {
		if err := l.k.Merge(envK); err != nil {
			return fmt.Errorf("merge env: %w", err)
		}
		l.sources = append(l.sources, SourceEnv)
	}

	if len(l.overrides) > 0 {
		if err := l.k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
		l.sources = append(l.sources, SourceOverrides)
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// envKey maps SESSFILE_STORE__TEMP_MAX_AGE to store.temp_max_age.
func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, envLevelSep, ".")
}

// FilePath returns the configuration file, if any.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Sources lists the layers that contributed to the last Load, lowest
// first.
func (l *Loader) Sources() []string {
	return append([]string(nil), l.sources...)
}

// String returns a loaded value as a string.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Duration returns a loaded value as a duration.
func (l *Loader) Duration(key string) time.Duration {
	return l.k.Duration(key)
}

// Bool returns a loaded value as a bool.
func (l *Loader) Bool(key string) bool {
	return l.k.Bool(key)
}

// Keys returns every loaded key, flattened.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

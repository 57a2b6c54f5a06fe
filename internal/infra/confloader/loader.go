package confloader

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "PREVIEWSHARE_"

const envLevelSeparator = "__"

const tagName = "koanf"

// Loader reads the configuration file and the environment into a struct.
// A Loader may be reused; every Load starts from scratch.
type Loader struct {
	envPrefix string
	filePath  string
	strict    bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithStrict rejects unknown keys in the configuration file.
func WithStrict() Option {
	return func(l *Loader) { l.strict = true }
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load merges the file and the environment into target, which must be a
// pointer to a struct. Fields present in neither keep their value.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.filePath != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
		if l.strict {
			if err := checkUnknown(fk, target); err != nil {
				return fmt.Errorf("config file %s: %w", l.filePath, err)
			}
		}
		if err := k.Merge(fk); err != nil {
			return fmt.Errorf("merge config file: %w", err)
		}
	}

	prefix := l.envPrefix
	provider := env.Provider(prefix, ".", func(s string) string {
		return EnvKey(prefix, s)
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: tagName}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// EnvKey converts an environment variable name into a koanf key path.
func EnvKey(prefix, name string) string {
	name = strings.TrimPrefix(name, prefix)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, envLevelSeparator, ".")
}

// checkUnknown decodes k into a scratch value of target's type and fails
// on keys no field consumes.
func checkUnknown(k *koanf.Koanf, target any) error {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Pointer {
		return fmt.Errorf("target must be a pointer, got %T", target)
	}
	scratch := reflect.New(t.Elem()).Interface()

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Metadata:         &md,
		Result:           scratch,
		TagName:          tagName,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(k.Raw()); err != nil {
		return err
	}
	if len(md.Unused) > 0 {
		return fmt.Errorf("unknown keys: %s", strings.Join(md.Unused, ", "))
	}
	return nil
}

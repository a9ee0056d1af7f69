package figcn

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes environment variables that override configuration. A
// single underscore separates nesting levels and a double underscore stands
// for a literal one, so FIGCN_GATE_PATH__PREFIX sets gate.path_prefix.
const EnvPrefix = "FIGCN_"

// Config is the proxy process configuration.
type Config struct {
	Listen     string      `koanf:"listen" validate:"required"`
	Upstream   string      `koanf:"upstream" validate:"omitempty,url"`
	Admin      string      `koanf:"admin"`
	Tag        string      `koanf:"tag" validate:"required"`
	Verbosity  string      `koanf:"verbosity" validate:"oneof=silent verbose"`
	Gate       GateConfig  `koanf:"gate"`
	Rules      RulesConfig `koanf:"rules"`
	AllowHosts []string    `koanf:"allow_hosts"`
}

// GateConfig selects the requests considered for rewriting.
type GateConfig struct {
	Host       string `koanf:"host" validate:"required"`
	PathPrefix string `koanf:"path_prefix"`
}

// RulesConfig selects the rule source.
type RulesConfig struct {
	Source string `koanf:"source" validate:"oneof=inline external"`
	File   string `koanf:"file"`
	Watch  bool   `koanf:"watch"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Listen:    "127.0.0.1:8080",
		Admin:     "127.0.0.1:8081",
		Tag:       DefaultTag,
		Verbosity: string(Silent),
		Gate: GateConfig{
			Host:       DefaultGateHost,
			PathPrefix: DefaultGatePrefix,
		},
		Rules: RulesConfig{
			Source: string(SourceExternal),
			File:   "rules.yaml",
		},
	}
}

// LoadConfig builds the configuration from, in increasing precedence, the
// defaults, the YAML file at path (if path is not empty), FIGCN_ environment
// variables and overrides, which is keyed by dotted configuration keys.
func LoadConfig(path string, overrides map[string]interface{}) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "could not load defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "could not read config file %v", path)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "could not parse config file %v", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "could not load environment")
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, errors.Wrap(err, "could not apply overrides")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "could not decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(key, val string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", `\:\`)
	key = strings.ReplaceAll(key, "_", ".")
	key = strings.ReplaceAll(key, `\:\`, "_")
	if key == "allow_hosts" {
		return key, strings.Split(val, ",")
	}
	return key, val
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.Rules.Watch && c.Rules.Source != string(SourceExternal) {
		return errors.New("invalid configuration: rules.watch requires rules.source external")
	}
	return nil
}

// Source returns the rule source described by the configuration.
func (c Config) Source() Source {
	return Source{Kind: SourceKind(c.Rules.Source), Path: c.Rules.File}
}

// InterceptorOptions returns the Interceptor options described by the
// configuration.
func (c Config) InterceptorOptions() Options {
	return Options{
		Tag:        c.Tag,
		Verbosity:  Verbosity(c.Verbosity),
		Gate:       Gate{Host: c.Gate.Host, PathPrefix: c.Gate.PathPrefix},
		AllowHosts: c.AllowHosts,
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/datacendia/council/internal/types"
	"github.com/datacendia/council/internal/util"
)

// EnvPrefix is the prefix of environment overrides, e.g. COUNCIL_LLM_BASE_URL.
const EnvPrefix = "COUNCIL"

// envKeys are the settings that may be overridden from the environment
// without appearing in the config file.
var envKeys = []string{
	"llm.provider",
	"llm.base_url",
	"llm.timeout",
	"server.address",
	"database.path",
	"logging.level",
	"logging.format",
	"tracing.enabled",
	"tracing.endpoint",
	"agents.catalog_path",
	"council.default_locale",
}

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	if validator == nil {
		validator = NewValidator()
	}
	return &viperConfigLoader{
		validator: validator,
	}
}

// Load reads the file at path over the defaults. ${VAR} references in
// string values are expanded and COUNCIL_* variables override file values.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	return l.decode(v, DefaultConfigFor(homeFor(path)))
}

// LoadWithDefaults loads path when it exists and the defaults otherwise.
// Environment overrides apply in both cases.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return l.decode(newViper(), DefaultConfigFor(homeFor(path)))
	}
	return l.Load(path)
}

func (l *viperConfigLoader) decode(v *viper.Viper, cfg *Config) (*Config, error) {
	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok {
			v.Set(key, interpolateString(s))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}

	if err := resolvePaths(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to resolve config paths", err)
	}

	if err := l.validator.Validate(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// homeFor treats the directory of the config file as the home directory,
// so a relocated config keeps its data next to it.
func homeFor(path string) string {
	if path == "" {
		return DefaultHomeDir()
	}
	return filepath.Dir(path)
}

// resolvePaths expands ~ in path settings and anchors relative ones at
// the home directory.
func resolvePaths(cfg *Config) error {
	home, err := util.ExpandPath(cfg.Core.HomeDir)
	if err != nil {
		return err
	}
	cfg.Core.HomeDir = home

	paths := []*string{&cfg.Core.DataDir, &cfg.Agents.CatalogPath, &cfg.Tracing.TLSCertFile}
	if cfg.Database.Path != ":memory:" {
		paths = append(paths, &cfg.Database.Path)
	}
	for _, p := range paths {
		resolved, err := util.ResolvePath(home, *p)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", *p, err)
		}
		*p = resolved
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables are left as written.
func interpolateString(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}

// Write saves cfg as YAML at path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return types.NewError(types.CONFIG_LOAD_FAILED, fmt.Sprintf("config file %s already exists", path))
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return types.WrapError(types.CONFIG_PARSE_FAILED, "failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to write config file", err)
	}
	return nil
}

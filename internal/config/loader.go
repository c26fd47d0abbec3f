package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix is the prefix for environment overrides. A double underscore
// separates nesting levels: TIDEMARK_LINEAGE__URL sets lineage.url.
const envPrefix = "TIDEMARK_"

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"app":          "app_name",
	"project-root": "project_root",
	"governance":   "governance_file",
	"lineage-url":  "lineage.url",
	"namespace":    "lineage.namespace",
	"no-lineage":   "lineage.disabled",
	"verbose":      "verbose",
}

// Load builds the configuration from defaults, an optional YAML file,
// TIDEMARK_* environment variables and CLI flags, in ascending precedence.
// An explicit path that does not exist is an error; the default file names
// are optional.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	applyDerivedDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerivedDefaults fills defaults that depend on other fields.
func applyDerivedDefaults(cfg *Config) {
	if cfg.Ingest.ProjectDir == "" {
		cfg.Ingest.ProjectDir = filepath.Join(cfg.ProjectRoot, "meltano")
	}
	if cfg.Transform.ProjectDir == "" {
		cfg.Transform.ProjectDir = filepath.Join(cfg.ProjectRoot, "dbt")
	}
	if len(cfg.Transform.Layers) == 0 {
		cfg.Transform.Layers = []LayerConfig{
			{Name: "staging"},
			{Name: "silver"},
			{Name: "gold"},
		}
	}
	if cfg.Transform.ProfilesDir == "" {
		cfg.Transform.ProfilesDir = cfg.Transform.ProjectDir
	}
}

func envToKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// findConfigFile returns the default config file present in the working
// directory, or empty when none exists.
func findConfigFile() string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

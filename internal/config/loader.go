package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "TRIALSCOPE"

// legacyEnv maps config keys to the bare variable names used by older
// deployments' .env files. The prefixed name always takes precedence.
var legacyEnv = map[string]string{
	"database.host":     "db_host",
	"database.port":     "db_port",
	"database.user":     "db_userid",
	"database.password": "db_password",
	"llm.username":      "username",
	"llm.password":      "password",
	"ncbi.api_key":      "NCBI_API_KEY",
	"ncbi.email":        "NCBI_EMAIL",
}

// newViper builds a Viper instance with YAML file type, the TRIALSCOPE_ env
// prefix and a "." → "_" key replacer. Every known key is bound explicitly so
// that Unmarshal sees env-only values.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		names := []string{key, envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		_ = v.BindEnv(names...)
	}
	return v
}

// configKeys walks mapstructure tags and returns dotted leaf keys.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// LoadDotEnv loads KEY=value pairs from the given .env files (".env" when none
// are given) into the process environment. Existing variables are not
// overridden and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: failed to load %q: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at configPath, merges TRIALSCOPE_* and legacy
// environment overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from environment variables only.
//
//	TRIALSCOPE_<SECTION>_<FIELD>   e.g.  TRIALSCOPE_CHEMBL_RPS, TRIALSCOPE_DATABASE_HOST
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadAuto loads configPath when non-empty and from the environment otherwise.
func LoadAuto(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config on
// every write event. Changes that fail to parse or validate are passed to
// onError (when non-nil) and onChange is skipped.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load that panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

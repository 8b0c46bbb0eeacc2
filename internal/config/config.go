// Package config owns the persisted defaults document and the resolution of
// per-invocation parameters from it. The document is the only durable state
// the client keeps; it is written exclusively by the `config --set` operation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config is the persisted defaults document, stored as JSON at
// ~/.acestep/config.json. Generation defaults use pointer fields so that an
// absent key is distinguishable from an explicit zero and falls through to
// the hard defaults during Resolve.
type Config struct {
	APIURL     string             `json:"api_url,omitempty" mapstructure:"api_url"`
	APIKey     string             `json:"api_key,omitempty" mapstructure:"api_key"`
	Generation GenerationDefaults `json:"generation" mapstructure:"generation"`
}

// GenerationDefaults holds the user-persisted generation scalars.
type GenerationDefaults struct {
	Thinking       *bool  `json:"thinking,omitempty" mapstructure:"thinking"`
	UseFormat      *bool  `json:"use_format,omitempty" mapstructure:"use_format"`
	UseCotCaption  *bool  `json:"use_cot_caption,omitempty" mapstructure:"use_cot_caption"`
	UseCotLanguage *bool  `json:"use_cot_language,omitempty" mapstructure:"use_cot_language"`
	BatchSize      int    `json:"batch_size,omitempty" mapstructure:"batch_size"`
	AudioFormat    string `json:"audio_format,omitempty" mapstructure:"audio_format"`
	VocalLanguage  string `json:"vocal_language,omitempty" mapstructure:"vocal_language"`
}

// LoadError reports a config document that exists but cannot be parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Dir returns the configuration root, ~/.acestep.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".acestep"
	}
	return filepath.Join(home, ".acestep")
}

// DefaultPath returns the default location of the persisted document.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// OutputRoot returns the default artifact directory, a sibling of the
// configuration root.
func OutputRoot() string {
	return filepath.Join(filepath.Dir(Dir()), "acestep_output")
}

// Load reads the persisted document at path. A missing file is not an error
// and yields an empty Config (everything falls through to the hard defaults);
// a file that exists but does not parse yields a *LoadError.
//
// ACESTEP_API_URL and ACESTEP_API_KEY are bound as fallbacks for the
// document's api_url/api_key keys, so they sit in the persisted tier and are
// still overridden by explicit flags.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadDocument reads the persisted document without the environment
// fallbacks. The set path uses it so that values sourced from the
// environment never leak into the saved file.
func LoadDocument(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, bindEnv bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if bindEnv {
		_ = v.BindEnv("api_url", "ACESTEP_API_URL")
		_ = v.BindEnv("api_key", "ACESTEP_API_KEY")
	}

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := &Config{}
			cfg.APIURL = v.GetString("api_url")
			cfg.APIKey = v.GetString("api_key")
			return cfg, nil
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Save writes the document atomically: marshal to a temporary file in the
// same directory, then rename over the final path. Used only by `config --set`.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString()[:8])
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// SettableKeys lists the flat keys accepted by Set.
var SettableKeys = []string{
	"api_url",
	"api_key",
	"thinking",
	"use_format",
	"use_cot_caption",
	"use_cot_language",
	"batch_size",
	"audio_format",
	"vocal_language",
}

// ValidAudioFormats are the container formats the service can encode.
var ValidAudioFormats = []string{"mp3", "wav", "flac"}

// Set applies one key/value pair to cfg, coercing value to the key's type.
// Unknown keys and uncoercible values are errors.
func Set(cfg *Config, key, value string) error {
	parseBool := func() (*bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("set %s: %q is not a boolean", key, value)
		}
		return &b, nil
	}

	switch key {
	case "api_url":
		cfg.APIURL = value
	case "api_key":
		cfg.APIKey = value
	case "thinking":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Generation.Thinking = b
	case "use_format":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Generation.UseFormat = b
	case "use_cot_caption":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Generation.UseCotCaption = b
	case "use_cot_language":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Generation.UseCotLanguage = b
	case "batch_size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("set batch_size: %q is not a positive integer", value)
		}
		cfg.Generation.BatchSize = n
	case "audio_format":
		if !slices.Contains(ValidAudioFormats, value) {
			return fmt.Errorf("set audio_format: %q is not one of %s", value, strings.Join(ValidAudioFormats, ", "))
		}
		cfg.Generation.AudioFormat = value
	case "vocal_language":
		cfg.Generation.VocalLanguage = value
	default:
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(SettableKeys, ", "))
	}
	return nil
}

// Package config loads and saves the application configuration. General settings live in
// config.yaml, the API key lives in a separate env file readable only by the user.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cosmicshuai/prompt-enhancer/pkg/helpers"
	"github.com/cosmicshuai/prompt-enhancer/pkg/steps/ai/settings"
	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys as they appear in config.yaml. Environment variables are the upper-cased key with
// the PROMPT_ENHANCER_ prefix.
const (
	KeyModel         = "model"
	KeyMaxTokens     = "max_tokens"
	KeyBaseURL       = "base_url"
	KeyTemplateStore = "template_store"
	KeyTimeout       = "timeout"
)

const (
	EnvPrefix    = "PROMPT_ENHANCER"
	APIKeyEnvVar = "ANTHROPIC_API_KEY"
	UserAgent    = "prompt-enhancer"

	StoreJSON   = "json"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config is the resolved configuration.
type Config struct {
	Paths    Paths
	Settings *settings.Settings
	// TemplateStore selects the template backend: json, sqlite or memory.
	TemplateStore string
	// APIKeySource tells where the key came from: env-file, environment, or empty.
	APIKeySource string
}

// generalFile is the on-disk shape of config.yaml.
type generalFile struct {
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	BaseURL        string `yaml:"base_url,omitempty"`
	TemplateStore  string `yaml:"template_store,omitempty"`
	TimeoutSeconds int    `yaml:"timeout,omitempty"`
}

type envFile struct {
	APIKey string `kv:"ANTHROPIC_API_KEY,optional"`
}

// NewViper returns a viper instance reading paths.ConfigFile and PROMPT_ENHANCER_* variables.
func NewViper(paths Paths) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(paths.ConfigFile)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyModel, settings.DefaultModel)
	v.SetDefault(KeyMaxTokens, settings.DefaultMaxTokens)
	v.SetDefault(KeyBaseURL, settings.DefaultBaseURL)
	v.SetDefault(KeyTemplateStore, StoreJSON)
	v.SetDefault(KeyTimeout, 120)
	return v
}

// Load reads the configuration for paths.
func Load(paths Paths) (*Config, error) {
	return LoadWithViper(paths, NewViper(paths))
}

// LoadWithViper reads through v, so flags bound to v take precedence over the file and
// the environment.
// A missing config file is not an error.
func LoadWithViper(paths Paths, v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, errors.Wrapf(err, "could not read %s", paths.ConfigFile)
		}
		log.Debug().Str("config", paths.ConfigFile).Msg("No config file, using defaults")
	}

	s := settings.NewSettings()
	s.Model = strings.TrimSpace(v.GetString(KeyModel))
	s.MaxTokens = v.GetInt(KeyMaxTokens)
	s.BaseURL = strings.TrimSpace(v.GetString(KeyBaseURL))
	if timeout := v.GetInt(KeyTimeout); timeout > 0 {
		d := time.Duration(timeout) * time.Second
		s.Client.TimeoutSeconds = &timeout
		s.Client.Timeout = &d
	}
	ua := UserAgent
	s.Client.UserAgent = &ua
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in %s", paths.ConfigFile)
	}

	ret := &Config{
		Paths:         paths,
		Settings:      s,
		TemplateStore: v.GetString(KeyTemplateStore),
	}

	key, source, err := LoadAPIKey(paths)
	if err != nil {
		return nil, err
	}
	ret.Settings.APIKey = key
	ret.APIKeySource = source

	log.Debug().
		Str("model", s.Model).
		Int("max_tokens", s.MaxTokens).
		Str("template_store", ret.TemplateStore).
		Str("api_key_source", source).
		Msg("Loaded configuration")
	return ret, nil
}

func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// LoadAPIKey reads ANTHROPIC_API_KEY from the env file, then from the environment.
func LoadAPIKey(paths Paths) (string, string, error) {
	data, err := os.ReadFile(paths.EnvFile)
	switch {
	case err == nil:
		var f envFile
		if err := helpers.FillStructFromKV(helpers.ParseKV(string(data), "="), &f); err != nil {
			return "", "", errors.Wrapf(err, "could not parse %s", paths.EnvFile)
		}
		if key := strings.TrimSpace(f.APIKey); key != "" {
			return key, "env-file", nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", "", errors.Wrapf(err, "could not read %s", paths.EnvFile)
	}

	if key := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); key != "" {
		return key, "environment", nil
	}
	return "", "", nil
}

// SaveGeneral writes the non-secret settings to config.yaml. The env file is not touched.
func SaveGeneral(c *Config) error {
	if c == nil || c.Settings == nil {
		return errors.New("config is nil")
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	f := generalFile{
		Model:         c.Settings.Model,
		MaxTokens:     c.Settings.MaxTokens,
		TemplateStore: c.TemplateStore,
	}
	if c.Settings.BaseURL != settings.DefaultBaseURL {
		f.BaseURL = c.Settings.BaseURL
	}
	if c.Settings.Client != nil && c.Settings.Client.TimeoutSeconds != nil {
		f.TimeoutSeconds = *c.Settings.Client.TimeoutSeconds
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return errors.Wrap(err, "could not marshal config")
	}
	if err := os.MkdirAll(c.Paths.Dir, 0o700); err != nil {
		return errors.Wrapf(err, "could not create %s", c.Paths.Dir)
	}
	if err := writeFileAtomic(c.Paths.ConfigFile, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("config", c.Paths.ConfigFile).Msg("Saved configuration")
	return nil
}

// SaveAPIKey writes key to the env file with mode 0600. config.yaml is not touched.
func SaveAPIKey(paths Paths, key string) error {
	key = strings.TrimSpace(key)
	if strings.ContainsAny(key, "'\n") {
		return errors.New("API key contains invalid characters")
	}
	if err := os.MkdirAll(paths.Dir, 0o700); err != nil {
		return errors.Wrapf(err, "could not create %s", paths.Dir)
	}
	data := []byte(APIKeyEnvVar + "='" + key + "'\n")
	if err := writeFileAtomic(paths.EnvFile, data, 0o600); err != nil {
		return err
	}
	// an existing file keeps its mode through rename, so enforce it
	if err := os.Chmod(paths.EnvFile, 0o600); err != nil {
		return errors.Wrapf(err, "could not chmod %s", paths.EnvFile)
	}
	log.Info().Str("env_file", paths.EnvFile).Msg("Saved API key")
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return errors.Wrapf(err, "could not write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "could not replace %s", path)
	}
	return nil
}

// OpenTemplateStore opens the backend selected by TemplateStore.
func (c *Config) OpenTemplateStore() (templates.Store, error) {
	switch c.TemplateStore {
	case "", StoreJSON:
		s, err := templates.NewJSONDirTemplateStore(c.Paths.TemplatesDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreSQLite:
		if err := os.MkdirAll(c.Paths.Dir, 0o700); err != nil {
			return nil, errors.Wrapf(err, "could not create %s", c.Paths.Dir)
		}
		dsn, err := templates.SQLiteTemplateDSNForFile(c.Paths.TemplatesDB)
		if err != nil {
			return nil, err
		}
		s, err := templates.NewSQLiteTemplateStore(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreMemory:
		return templates.NewInMemoryTemplateStore(), nil
	default:
		return nil, errors.Errorf("unknown template store %q (expected %s, %s or %s)", c.TemplateStore, StoreJSON, StoreSQLite, StoreMemory)
	}
}

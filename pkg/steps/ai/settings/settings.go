// Package settings holds the generation settings handed to sessions and wizard controllers.
// Values are passed explicitly; nothing in the core reads global configuration.
package settings

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens = 4096
	DefaultBaseURL   = "https://api.anthropic.com"

	// ValidationModel is the cheap model used to check an API key.
	ValidationModel = "claude-haiku-4-5-20251001"
)

// KnownModels lists the models offered by the CLI.
var KnownModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-haiku-4-5-20251001",
	"claude-opus-4-6",
}

var ErrMissingAPIKey = errors.New("no API key configured")

type Settings struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	BaseURL   string `yaml:"base_url,omitempty"`
	// APIKey is never serialized with the general settings.
	APIKey string          `yaml:"-" json:"-"`
	Client *ClientSettings `yaml:"client,omitempty"`
	// AllowInsecureBaseURL permits http and local network base URLs.
	AllowInsecureBaseURL bool `yaml:"-"`
}

func NewSettings() *Settings {
	return &Settings{
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		BaseURL:   DefaultBaseURL,
		Client:    NewClientSettings(),
	}
}

func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	ret := *s
	ret.Client = s.Client.Clone()
	return &ret
}

// WithAPIKey returns a copy carrying key.
func (s *Settings) WithAPIKey(key string) *Settings {
	ret := s.Clone()
	ret.APIKey = key
	return ret
}

func (s *Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Validate checks the values a request needs. The API key is checked separately, since a
// missing key is only fatal once a request is made.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("model must not be empty")
	}
	if s.MaxTokens <= 0 {
		return errors.Errorf("max tokens must be positive, got %d", s.MaxTokens)
	}
	return nil
}

// IsKnownModel reports whether model is one of KnownModels.
func IsKnownModel(model string) bool {
	for _, m := range KnownModels {
		if m == model {
			return true
		}
	}
	return false
}

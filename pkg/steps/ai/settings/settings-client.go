package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

// ClientSettings configures the HTTP transport used for completion requests.
type ClientSettings struct {
	Timeout        *time.Duration `yaml:"-"`
	TimeoutSeconds *int           `yaml:"timeout,omitempty"`
	UserAgent      *string        `yaml:"user_agent,omitempty"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML overrides YAML parsing to convert the timeout from seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		TimeoutSeconds *int    `yaml:"timeout,omitempty"`
		UserAgent      *string `yaml:"user_agent,omitempty"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	cs.TimeoutSeconds = aux.TimeoutSeconds
	cs.UserAgent = aux.UserAgent
	if aux.TimeoutSeconds != nil {
		t := time.Duration(*aux.TimeoutSeconds) * time.Second
		cs.Timeout = &t
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	if cs == nil {
		return nil
	}
	httpClient := cs.HTTPClient
	cs_ := clone.Clone(&ClientSettings{
		Timeout:        cs.Timeout,
		TimeoutSeconds: cs.TimeoutSeconds,
		UserAgent:      cs.UserAgent,
	}).(*ClientSettings)
	// the http client is shared, it holds connection pools
	cs_.HTTPClient = httpClient
	return cs_
}

// NewHTTPClient returns the configured client, or a fresh one honoring Timeout.
func (cs *ClientSettings) NewHTTPClient() *http.Client {
	if cs == nil {
		return &http.Client{}
	}
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	c := &http.Client{}
	if cs.Timeout != nil {
		c.Timeout = *cs.Timeout
	}
	return c
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 120 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
		TimeoutSeconds: func() *int {
			i := int(defaultTimeout.Seconds())
			return &i
		}(),
	}
}

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		opts    BaseURLOptions
		wantErr bool
	}{
		{name: "anthropic default", url: "https://api.anthropic.com"},
		{name: "http rejected", url: "http://api.anthropic.com", wantErr: true},
		{name: "http allowed", url: "http://proxy.example.com", opts: BaseURLOptions{AllowHTTP: true}},
		{name: "unsupported scheme", url: "ftp://api.anthropic.com", wantErr: true},
		{name: "missing host", url: "https://", wantErr: true},
		{name: "localhost rejected", url: "https://localhost:8443", wantErr: true},
		{name: "loopback rejected", url: "https://127.0.0.1:8443", wantErr: true},
		{name: "private rejected", url: "https://10.1.2.3", wantErr: true},
		{
			name: "loopback allowed for local networks",
			url:  "http://127.0.0.1:8080",
			opts: BaseURLOptions{AllowHTTP: true, AllowLocalNetworks: true},
		},
		{name: "zoned ipv6 rejected", url: "https://[fe80::1%25eth0]/", wantErr: true},
		{name: "unspecified rejected", url: "https://0.0.0.0", opts: BaseURLOptions{AllowLocalNetworks: true}, wantErr: true},
		{name: "path prefix", url: "https://gateway.example.com/anthropic"},
		{name: "credentials rejected", url: "https://user:pw@api.anthropic.com", wantErr: true},
		{name: "query rejected", url: "https://api.anthropic.com?x=1", wantErr: true},
		{name: "mapped loopback rejected", url: "https://[::ffff:127.0.0.1]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.url, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

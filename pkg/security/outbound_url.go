package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// BaseURLOptions relaxes ValidateBaseURL for proxies and local test servers.
type BaseURLOptions struct {
	AllowHTTP          bool
	AllowLocalNetworks bool
}

// ValidateBaseURL checks a provider base URL before the API key is sent to it. The URL
// must be an https origin with an optional path prefix. Credentials, query strings and
// fragments are rejected, as are local-network hosts unless opts allow them. IP literals
// are checked without DNS lookups.
func ValidateBaseURL(rawURL string, opts BaseURLOptions) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid base URL")
	}

	if u.Scheme != "https" && !(u.Scheme == "http" && opts.AllowHTTP) {
		return errors.Errorf("base URL scheme %q is not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.New("base URL must not carry credentials")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return errors.New("base URL must not have a query or fragment")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.New("base URL has no host")
	}
	if opts.AllowLocalNetworks {
		return checkAddr(host, true)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return errors.Errorf("local host %q is not allowed", host)
	}
	return checkAddr(host, false)
}

func checkAddr(host string, allowLocal bool) error {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		// not an IP literal
		return nil
	}
	if addr.Zone() != "" && !allowLocal {
		return errors.Errorf("zoned address %q is not allowed", host)
	}
	addr = addr.Unmap()
	switch {
	case addr.IsUnspecified(), addr.IsMulticast():
		return errors.Errorf("address %q is not allowed", host)
	case allowLocal:
		return nil
	case addr.IsLoopback(), addr.IsPrivate(), addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return errors.Errorf("local network address %q is not allowed", host)
	}
	return nil
}

// Package safeurl normalizes and validates submitted URLs before anything in
// the pipeline touches the network. Validation covers scheme and port rules,
// DNS resolution, and rejection of private or reserved address space.
package safeurl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ValidationError describes why a URL was rejected. Kind is a stable,
// machine-readable code.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation error kinds.
const (
	KindMalformed    = "malformed"
	KindScheme       = "unsupported_scheme"
	KindPort         = "unsupported_port"
	KindUnresolvable = "unresolvable_host"
	KindPrivate      = "private_address"
)

// SafeURL is a normalized URL that passed validation.
type SafeURL struct {
	// Href is the full normalized URL.
	Href string
	// Hostname is the lowercased host without port.
	Hostname string
	// Origin is scheme://host, with default ports stripped.
	Origin string
}

// Resolver resolves a hostname to IP addresses. net.Resolver satisfies it;
// tests inject a stub.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Validator validates and normalizes URLs.
type Validator struct {
	resolver Resolver
}

// New returns a Validator using the default system resolver.
func New() *Validator {
	return &Validator{resolver: net.DefaultResolver}
}

// NewWithResolver returns a Validator using the given resolver.
func NewWithResolver(r Resolver) *Validator {
	return &Validator{resolver: r}
}

// blockedPrefixes is the private and reserved address space the pipeline
// refuses to talk to.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Validate parses, normalizes, and safety-checks a raw URL. The returned
// error, when non-nil, is always a *ValidationError.
func (v *Validator) Validate(ctx context.Context, raw string) (*SafeURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ValidationError{Kind: KindMalformed, Message: "URL is empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ValidationError{Kind: KindMalformed, Message: fmt.Sprintf("URL is malformed: %v", err)}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &ValidationError{Kind: KindScheme, Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, &ValidationError{Kind: KindMalformed, Message: "URL has no host"}
	}

	port := u.Port()
	switch port {
	case "", "80", "443":
	default:
		return nil, &ValidationError{Kind: KindPort, Message: fmt.Sprintf("unsupported port %q", port)}
	}

	// Strip default ports so equivalent URLs normalize identically.
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		u.Host = host
	} else if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	// url.Values.Encode sorts keys, giving a canonical query string.
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	if err := v.checkAddress(ctx, host); err != nil {
		return nil, err
	}

	return &SafeURL{
		Href:     u.String(),
		Hostname: host,
		Origin:   scheme + "://" + u.Host,
	}, nil
}

// checkAddress resolves host and rejects it if any resolved address falls in
// blocked space. Literal IPs are checked directly without a lookup.
func (v *Validator) checkAddress(ctx context.Context, host string) error {
	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlocked(addr) {
			return &ValidationError{Kind: KindPrivate, Message: fmt.Sprintf("address %s is in a private or reserved range", addr)}
		}
		return nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return &ValidationError{Kind: KindUnresolvable, Message: fmt.Sprintf("host %q did not resolve: %v", host, err)}
	}
	if len(addrs) == 0 {
		return &ValidationError{Kind: KindUnresolvable, Message: fmt.Sprintf("host %q resolved to no addresses", host)}
	}

	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		if isBlocked(addr) {
			return &ValidationError{Kind: KindPrivate, Message: fmt.Sprintf("host %q resolves to private or reserved address %s", host, addr)}
		}
	}

	return nil
}

// isBlocked reports whether addr falls in a blocked prefix. IPv4-mapped IPv6
// addresses are unwrapped first so ::ffff:10.0.0.1 matches the IPv4 table.
func isBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Hash returns the hex-encoded SHA-256 of href, used as the stable page key
// in artifact storage.
func Hash(href string) string {
	sum := sha256.Sum256([]byte(href))
	return hex.EncodeToString(sum[:])
}

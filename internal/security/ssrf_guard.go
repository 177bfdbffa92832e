// Package security provides the application's SSRF and content
// sanitization defenses.
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService validates and guards outbound requests, used both
// when a feed is registered and when it is later fetched.
type SSRFGuardService interface {
	// NewSafeClient builds an HTTP client that blocks requests to
	// private, loopback, link-local, and metadata IPs via safeurl,
	// including DNS-rebinding protection at dial time.
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// ValidateURL performs a static, pre-DNS check on scheme, host,
	// and literal IP address, rejecting unsafe URLs up front.
	ValidateURL(rawURL string) error
}

// allowedSchemes lists the URL schemes SSRF validation permits.
var allowedSchemes = []string{"http", "https"}

// blockedNetworks is parsed once at init and used by ValidateURL.
// DNS-rebinding is handled separately by safeurl's dialer-level check
// in NewSafeClient, which validates the resolved IP, not just the
// hostname.
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// private address space (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// loopback (RFC 1122)
		"127.0.0.0/8",
		// link-local (RFC 3927), includes the cloud metadata IP 169.254.169.254
		"169.254.0.0/16",
		// current network
		"0.0.0.0/8",
		// IPv6 loopback
		"::1/128",
		// IPv6 link-local
		"fe80::/10",
		// IPv6 unique local
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// ssrfGuard implements SSRFGuardService.
type ssrfGuard struct{}

// NewSSRFGuard builds an SSRFGuardService.
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient returns an HTTP client that blocks private, loopback,
// link-local, and metadata-IP targets, with DNS-rebinding protection
// applied at the net.Dialer level since safeurl validates the
// resolved IP, not just the hostname.
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateURL performs the static pre-flight check before a feed
// registration or fetch is attempted.
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	ip := net.ParseIP(host)
	if ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

var blockedHostnames = []string{
	"localhost",
}

func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}

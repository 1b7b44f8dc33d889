// Package urlguard implements C1: canonicalization plus SSRF-safe
// validation of URLs before anything is fetched.
package urlguard

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/model"
)

// blockedPorts are well-known ports for non-web services the crawler must
// never be used to probe, per spec.md §4.1.
var blockedPorts = map[string]bool{
	"22": true, "23": true, "25": true, "53": true, "135": true, "139": true,
	"445": true, "1433": true, "3306": true, "5432": true, "6379": true, "27017": true,
}

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"100.100.100.200":          true,
	"metadata.google.internal": true,
}

// Resolver resolves a host to its IP addresses. Production code uses
// net.DefaultResolver; tests substitute a fake so SSRF blocking can be
// proven without a real network stack (spec.md S2: "No network connection
// attempted").
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates canonicalized URLs against the SSRF policy.
type Guard struct {
	resolver     Resolver
	blockPrivate bool
	blockedHosts map[string]bool
	extraPorts   map[string]bool
}

// New builds a Guard from the SSRF configuration section.
func New(cfg config.SSRFConfig, resolver Resolver) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	blocked := make(map[string]bool, len(cfg.ExtraBlockedHosts))
	for _, h := range cfg.ExtraBlockedHosts {
		blocked[strings.ToLower(h)] = true
	}
	extraPorts := make(map[string]bool, len(cfg.ExtraBlockedPorts))
	for _, p := range cfg.ExtraBlockedPorts {
		extraPorts[strconv.Itoa(p)] = true
	}
	return &Guard{
		resolver:     resolver,
		blockPrivate: cfg.BlockPrivate,
		blockedHosts: blocked,
		extraPorts:   extraPorts,
	}
}

// Canonicalize wraps model.Canonicalize so callers only depend on this
// package for the full guard pipeline.
func Canonicalize(raw string) (model.CanonicalURL, error) {
	return model.Canonicalize(raw)
}

// Validate rejects non-http(s) schemes, blocklisted hosts/ports, and any
// URL whose host resolves to a private, loopback, link-local or
// cloud-metadata address. Every resolved IP is checked — admitting a URL
// requires ALL resolved addresses to be safe.
func (g *Guard) Validate(ctx context.Context, u model.CanonicalURL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.Guard(model.ReasonScheme, "scheme %q is not http(s)", u.Scheme)
	}

	host := strings.ToLower(u.Host)
	if metadataHosts[host] {
		return model.Guard(model.ReasonMetadataHost, "host %q is a cloud metadata endpoint", host)
	}
	if g.blockedHosts[host] {
		return model.Guard(model.ReasonBlockedHost, "host %q is blocklisted", host)
	}

	port := u.Port
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if blockedPorts[port] || g.extraPorts[port] {
		return model.Guard(model.ReasonBlockedPort, "port %s is blocked", port)
	}

	if ip := net.ParseIP(host); ip != nil {
		if g.blockPrivate && isUnsafeIP(ip) {
			return model.Guard(model.ReasonPrivateAddress, "literal address %s is private/loopback/link-local", host)
		}
		return nil
	}

	if !g.blockPrivate {
		return nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return model.Guard(model.ReasonResolveFailed, "could not resolve host %q: %v", host, err)
	}
	for _, a := range addrs {
		if isUnsafeIP(a.IP) {
			return model.Guard(model.ReasonPrivateAddress, "host %q resolves to private/loopback/link-local address %s", host, a.IP)
		}
	}
	return nil
}

// isUnsafeIP reports whether ip is loopback, link-local, private, or a
// well-known cloud metadata literal.
func isUnsafeIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() {
		return true
	}
	if ip.String() == "169.254.169.254" || ip.String() == "100.100.100.200" {
		return true
	}
	return false
}

// CanonicalizeAndValidate is the common call path: canonicalize, then
// validate against SSRF policy. Redirect-following callers MUST call this
// again for every hop's target (spec.md §4.1).
func (g *Guard) CanonicalizeAndValidate(ctx context.Context, raw string) (model.CanonicalURL, error) {
	u, err := model.Canonicalize(raw)
	if err != nil {
		return model.CanonicalURL{}, err
	}
	if err := g.Validate(ctx, u); err != nil {
		return model.CanonicalURL{}, err
	}
	return u, nil
}

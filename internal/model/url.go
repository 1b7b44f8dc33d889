package model

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalURL is the normalized form produced by the URL Guard: lowercased
// host, resolved path, sorted query, no fragment, no credentials.
type CanonicalURL struct {
	Scheme string
	Host   string // lowercased, punycoded
	Port   string // empty means scheme default
	Path   string
	Query  string // sorted, re-encoded query string (no leading '?')
}

// String renders the canonical form back to a URL string.
func (c CanonicalURL) String() string {
	var b strings.Builder
	b.WriteString(c.Scheme)
	b.WriteString("://")
	b.WriteString(c.Host)
	if c.Port != "" {
		b.WriteString(":")
		b.WriteString(c.Port)
	}
	if c.Path == "" {
		b.WriteString("/")
	} else {
		b.WriteString(c.Path)
	}
	if c.Query != "" {
		b.WriteString("?")
		b.WriteString(c.Query)
	}
	return b.String()
}

// Canonicalize normalizes a raw URL string per the Canonical URL invariants:
// lowercase host, resolved path, sorted query keys, dropped fragment, no
// embedded credentials. It does not perform DNS resolution or policy
// checks — that is Validate's job.
func Canonicalize(raw string) (CanonicalURL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return CanonicalURL{}, New(KindInvalidArgument, "cannot parse url: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return CanonicalURL{}, New(KindInvalidArgument, "url missing scheme or host")
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	host, err = toASCIIHost(host)
	if err != nil {
		return CanonicalURL{}, New(KindInvalidArgument, "invalid host: %v", err)
	}

	port := u.Port()
	if port != "" && isDefaultPort(scheme, port) {
		port = ""
	}

	path := resolveDotSegments(u.EscapedPath())
	if path == "" {
		path = "/"
	}

	query := sortedQuery(u.Query())

	return CanonicalURL{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   path,
		Query:  query,
	}, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// toASCIIHost punycodes an internationalized host per spec.md's canonical
// URL invariants. IP literals (net/url's Hostname already strips IPv6
// brackets) pass through unconverted.
func toASCIIHost(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	return idna.Lookup.ToASCII(host)
}

func resolveDotSegments(p string) string {
	if p == "" {
		return "/"
	}
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != "" {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	joined := strings.Join(out, "/")
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

func sortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for j, v := range vals {
			if i > 0 || j > 0 {
				b.WriteString("&")
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

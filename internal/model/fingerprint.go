package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint is the stable cache/dedup key: a hash of
// (method, canonical_url, body_hash, vary_hash), truncated to 128 bits.
type Fingerprint string

// NewFingerprint computes a Fingerprint from a request shape. bodyHash may
// be empty for bodyless requests (GET/HEAD); varyHeaders are the request
// header values the response declared itself sensitive to via its own
// previous Vary header, sorted by header name for stability.
func NewFingerprint(method string, u CanonicalURL, bodyHash string, varyHeaders map[string]string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(u.String()))
	h.Write([]byte{0})
	h.Write([]byte(bodyHash))
	h.Write([]byte{0})
	h.Write([]byte(varyHash(varyHeaders)))
	sum := h.Sum(nil)
	// Truncate to 128 bits (16 bytes) per the spec's "stable 128-bit hash".
	return Fingerprint(hex.EncodeToString(sum[:16]))
}

func varyHash(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strings.ToLower(k))
		b.WriteString("=")
		b.WriteString(headers[k])
		b.WriteString(";")
	}
	return b.String()
}

// ShardPrefixes splits a fingerprint into two 2-character directory shard
// components, matching the {root}/cache/{xx}/{yy}/{fingerprint}.cache and
// {root}/snapshots/{xx}/{yy}/{id}.snap layouts from the persistent layout
// contract.
func ShardPrefixes(id string) (first2, next2 string) {
	if len(id) < 4 {
		id = (id + "0000")[:4]
	}
	return id[0:2], id[2:4]
}

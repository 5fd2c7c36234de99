// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package fingerprint derives stable device identifiers and an initial risk
estimate from client-supplied signals.

It is the leaf of the security engine: pure functions, no state, no I/O.
Given the same [ClientContext] it always produces the same output, and it
never fails — missing headers degrade the result instead of erroring.

# Variants

Three fingerprint digests are produced per client:

  - basic: raw user-agent + accept-language + accept-encoding. Kept for
    backward compatibility with records written before normalization existed.
  - enhanced: normalized browser/OS family + primary language + normalized
    encoding + client address (omitted for private/loopback ranges).
  - security: the enhanced components plus a fixed subset of
    security-relevant headers.

All digests are lowercase hex SHA-256, truncated to 32 characters. The
standalone device fingerprint used by trust records keeps the full 64.
*/
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// # Digest Shape

const (
	// variantDigestLength is the truncated hex length of the three variants.
	variantDigestLength = 32

	// deviceDigestLength is the full hex length of the standalone device
	// fingerprint stored on trust records.
	deviceDigestLength = 64
)

// Fingerprint bundles every digest variant computed for one client context.
type Fingerprint struct {
	// Basic is the digest of the raw header triple (32 hex chars).
	Basic string `json:"basic"`
	// Enhanced is the digest of the normalized components (32 hex chars).
	Enhanced string `json:"enhanced"`
	// Security is the enhanced digest extended with security headers (32 hex chars).
	Security string `json:"security"`
	// Device is the full-length digest keyed into trust records (64 hex chars).
	Device string `json:"device"`
	// Profile is the classified user agent the digests were built from.
	Profile UserAgentProfile `json:"-"`
}

// Derive computes all fingerprint variants for the given client context.
//
// Deterministic and side-effect free; never fails. Empty components hash as
// empty strings so a header-less client still gets a stable identity.
func Derive(clientContext ClientContext) Fingerprint {
	profile := ClassifyUserAgent(clientContext.UserAgent)

	basicComponents := []string{
		clientContext.UserAgent,
		clientContext.AcceptLanguage,
		clientContext.AcceptEncoding,
	}

	enhancedComponents := []string{
		profile.Browser,
		profile.OS,
		primaryLanguage(clientContext.AcceptLanguage),
		normalizeEncoding(clientContext.AcceptEncoding),
	}
	// NAT peers would all collide onto the gateway address, so private
	// ranges are left out of the digest entirely.
	if clientContext.IPAddress != "" && !isPrivateOrLoopback(clientContext.IPAddress) {
		enhancedComponents = append(enhancedComponents, clientContext.IPAddress)
	}

	securityComponents := append(
		append([]string{}, enhancedComponents...),
		sortedSecurityHeaders(clientContext.SecurityHeaders)...,
	)

	return Fingerprint{
		Basic:    digest(basicComponents, variantDigestLength),
		Enhanced: digest(enhancedComponents, variantDigestLength),
		Security: digest(securityComponents, variantDigestLength),
		Device:   digest(securityComponents, deviceDigestLength),
		Profile:  profile,
	}
}

// digest hashes pipe-joined components to lowercase hex of the given length.
func digest(components []string, length int) string {
	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])[:length]
}

// primaryLanguage extracts the highest-priority BCP-47 base language from an
// Accept-Language header. Returns "unknown" when nothing parses.
func primaryLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "unknown"
	}

	base, confidence := tags[0].Base()
	if confidence == language.No {
		return "unknown"
	}
	return strings.ToLower(base.String())
}

// normalizeEncoding canonicalizes an Accept-Encoding header: lowercase,
// quality values stripped, entries sorted so ordering differences between
// otherwise identical clients don't split fingerprints.
func normalizeEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return "unknown"
	}

	parts := strings.Split(strings.ToLower(acceptEncoding), ",")
	encodings := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(strings.Split(part, ";")[0])
		if name != "" {
			encodings = append(encodings, name)
		}
	}

	sort.Strings(encodings)
	return strings.Join(encodings, ",")
}

// sortedSecurityHeaders flattens the security header map in digest order.
func sortedSecurityHeaders(headers map[string]string) []string {
	flattened := make([]string, 0, len(securityHeaderNames))
	for _, name := range securityHeaderNames {
		if value, ok := headers[name]; ok {
			flattened = append(flattened, name+"="+value)
		}
	}
	return flattened
}

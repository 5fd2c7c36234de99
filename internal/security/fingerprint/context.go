// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package fingerprint

import (
	"net"
	"net/http"
	"strings"
)

// # Client Context

// ClientContext carries the client-supplied signals the analyzer consumes.
//
// It is a plain value assembled by the transport layer; the analyzer itself
// never touches an [*http.Request]. All fields may be empty — every
// derivation degrades gracefully rather than failing.
type ClientContext struct {
	// UserAgent is the raw User-Agent header value.
	UserAgent string
	// AcceptLanguage is the raw Accept-Language header value.
	AcceptLanguage string
	// AcceptEncoding is the raw Accept-Encoding header value.
	AcceptEncoding string
	// SecurityHeaders holds the security-relevant header subset
	// (client hints, fetch metadata), keyed by canonical lowercase name.
	SecurityHeaders map[string]string
	// IPAddress is the resolved client network address.
	IPAddress string
}

// securityHeaderNames is the fixed subset of headers folded into the
// security fingerprint variant, in digest order.
var securityHeaderNames = []string{
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
	"dnt",
}

// proxyHeaderPrecedence is the ordered list of trusted proxy headers checked
// when resolving the client address. The first syntactically valid address
// wins; the raw connection peer is the fallback.
var proxyHeaderPrecedence = []string{
	"CF-Connecting-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	"X-Client-IP",
	"X-Cluster-Client-IP",
}

// FromRequest assembles a [ClientContext] from an inbound HTTP request.
//
// This is the transport-side extractor: it resolves the client address
// through the proxy-header precedence list and snapshots the header subset
// the analyzer cares about.
func FromRequest(request *http.Request) ClientContext {
	securityHeaders := make(map[string]string, len(securityHeaderNames))
	for _, name := range securityHeaderNames {
		if value := request.Header.Get(name); value != "" {
			securityHeaders[name] = value
		}
	}

	return ClientContext{
		UserAgent:       request.Header.Get("User-Agent"),
		AcceptLanguage:  request.Header.Get("Accept-Language"),
		AcceptEncoding:  request.Header.Get("Accept-Encoding"),
		SecurityHeaders: securityHeaders,
		IPAddress:       ResolveClientIP(request),
	}
}

// ResolveClientIP extracts the client network address from a request.
//
// # Precedence
//
// Trusted proxy headers are consulted in a fixed order; the first value that
// parses as an IP address wins. X-Forwarded-For may carry a comma-separated
// chain, in which case the first (client-most) entry is used. When no header
// yields a valid address, the connection peer is returned.
func ResolveClientIP(request *http.Request) string {
	for _, header := range proxyHeaderPrecedence {
		value := request.Header.Get(header)
		if value == "" {
			continue
		}

		// X-Forwarded-For: client, proxy1, proxy2
		candidate := strings.TrimSpace(strings.Split(value, ",")[0])
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}

// isPrivateOrLoopback reports whether an address sits in a private, loopback,
// or link-local range. Such addresses are omitted from the enhanced digest so
// clients behind the same NAT don't collide onto one fingerprint.
func isPrivateOrLoopback(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package fingerprint

import (
	"net"
	"strings"
)

// # Device Risk Pre-Score
//
// Additive rule weights producing a 0-100 device-level risk signal. This is
// distinct from the history-based trust score: it judges only what the
// current request looks like, before any history exists. The weights are
// uncalibrated operational defaults, not tuned thresholds.

const (
	riskMissingOrBotUserAgent = 40
	riskMissingLanguage       = 25
	riskMissingEncoding       = 20
	riskAutomationTooling     = 50
	riskUnknownOrLoopbackIP   = 15
	riskVPNKeyword            = 30

	// RiskCeiling caps the additive pre-score.
	RiskCeiling = 100
)

// vpnIndicators are substrings suggesting VPN/proxy/relay infrastructure.
var vpnIndicators = []string{"vpn", "proxy", "tor", "tunnel", "anonymizer", "relay"}

// RiskScore computes the additive device risk pre-score for a client context.
//
// Each matched rule adds its weight; the sum is capped at [RiskCeiling].
// Deterministic, no side effects.
func RiskScore(clientContext ClientContext) int {
	profile := ClassifyUserAgent(clientContext.UserAgent)
	score := 0

	if clientContext.UserAgent == "" || profile.Bot {
		score += riskMissingOrBotUserAgent
	}
	if clientContext.AcceptLanguage == "" {
		score += riskMissingLanguage
	}
	if clientContext.AcceptEncoding == "" {
		score += riskMissingEncoding
	}
	if profile.Automation {
		score += riskAutomationTooling
	}
	if isUnknownOrLoopback(clientContext.IPAddress) {
		score += riskUnknownOrLoopbackIP
	}
	if matchesVPNKeyword(clientContext) {
		score += riskVPNKeyword
	}

	if score > RiskCeiling {
		return RiskCeiling
	}
	return score
}

// isUnknownOrLoopback reports whether the address is missing, unparseable,
// or loopback. Ordinary private NAT ranges are deliberately not penalized —
// they describe most legitimate office and home traffic.
func isUnknownOrLoopback(address string) bool {
	if address == "" {
		return true
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return true
	}
	return ip.IsLoopback() || ip.IsUnspecified()
}

// matchesVPNKeyword scans every supplied header value for VPN/proxy keywords.
func matchesVPNKeyword(clientContext ClientContext) bool {
	haystacks := []string{
		strings.ToLower(clientContext.UserAgent),
		strings.ToLower(clientContext.AcceptLanguage),
		strings.ToLower(clientContext.AcceptEncoding),
	}
	for _, value := range clientContext.SecurityHeaders {
		haystacks = append(haystacks, strings.ToLower(value))
	}

	for _, haystack := range haystacks {
		if containsAny(haystack, vpnIndicators) {
			return true
		}
	}
	return false
}

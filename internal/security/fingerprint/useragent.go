// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package fingerprint

import "strings"

// # User-Agent Classification

// DeviceClass is the coarse hardware category inferred from the user agent.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceBot     DeviceClass = "bot"
	DeviceUnknown DeviceClass = "unknown"
)

// UserAgentProfile is the result of classifying a raw User-Agent string.
type UserAgentProfile struct {
	// Browser is the browser family in lowercase (e.g. "chrome").
	Browser string
	// OS is the operating-system family in lowercase (e.g. "windows").
	OS string
	// Device is the inferred device class.
	Device DeviceClass
	// Bot reports whether the agent matched a bot/crawler indicator.
	Bot bool
	// Automation reports whether the agent matched a browser-automation tool.
	Automation bool
}

// botIndicators are substrings marking crawlers, scripts, and HTTP clients.
var botIndicators = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget",
	"python", "java/", "go-http-client", "okhttp", "httpclient",
}

// automationIndicators are substrings marking browser-automation frameworks.
var automationIndicators = []string{
	"selenium", "webdriver", "puppeteer", "playwright",
	"phantomjs", "headless", "cypress",
}

// ClassifyUserAgent derives a [UserAgentProfile] from a raw User-Agent value.
//
// Pattern tables only, no external parsing dependency: the goal is a stable
// family name for fingerprinting, not full UA fidelity. Ordering matters —
// Chrome-derived agents embed "Safari", and Edge embeds "Chrome".
func ClassifyUserAgent(rawUserAgent string) UserAgentProfile {
	if rawUserAgent == "" {
		return UserAgentProfile{Browser: "unknown", OS: "unknown", Device: DeviceUnknown}
	}

	lowered := strings.ToLower(rawUserAgent)
	profile := UserAgentProfile{
		Bot:        containsAny(lowered, botIndicators),
		Automation: containsAny(lowered, automationIndicators),
	}

	// Browser family
	switch {
	case strings.Contains(lowered, "edg/") || strings.Contains(lowered, "edge/"):
		profile.Browser = "edge"
	case strings.Contains(lowered, "opr/") || strings.Contains(lowered, "opera"):
		profile.Browser = "opera"
	case strings.Contains(lowered, "chrome/"):
		profile.Browser = "chrome"
	case strings.Contains(lowered, "firefox/"):
		profile.Browser = "firefox"
	case strings.Contains(lowered, "safari/"):
		profile.Browser = "safari"
	default:
		profile.Browser = "unknown"
	}

	// OS family
	switch {
	case strings.Contains(lowered, "windows"):
		profile.OS = "windows"
	case strings.Contains(lowered, "iphone") || strings.Contains(lowered, "ipad") || strings.Contains(lowered, "ios"):
		profile.OS = "ios"
	case strings.Contains(lowered, "mac os x") || strings.Contains(lowered, "macintosh"):
		profile.OS = "macos"
	case strings.Contains(lowered, "android"):
		profile.OS = "android"
	case strings.Contains(lowered, "linux"):
		profile.OS = "linux"
	default:
		profile.OS = "unknown"
	}

	// Device class
	switch {
	case profile.Bot || profile.Automation:
		profile.Device = DeviceBot
	case strings.Contains(lowered, "ipad") || strings.Contains(lowered, "tablet"):
		profile.Device = DeviceTablet
	case strings.Contains(lowered, "mobile") || strings.Contains(lowered, "iphone") || profile.OS == "android":
		profile.Device = DeviceMobile
	case profile.OS == "unknown" && profile.Browser == "unknown":
		profile.Device = DeviceUnknown
	default:
		profile.Device = DeviceDesktop
	}

	return profile
}

// containsAny reports whether value contains any of the given substrings.
func containsAny(value string, substrings []string) bool {
	for _, candidate := range substrings {
		if strings.Contains(value, candidate) {
			return true
		}
	}
	return false
}

// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package trust computes device trust and risk scores from historical behavior
counters.

Pure functions over a [Counters] value: no state, no I/O, no clock of its
own — callers pass the evaluation time explicitly so scoring is reproducible
in tests.

# Model

The trust score is a weighted sum of five sub-scores, each normalized to
[0,1] before weighting:

  - device age       (0.15): linear ramp, 0 days -> 0, >= 90 days -> 1
  - usage frequency  (0.25): sessions per day, 2/day saturates at 1
  - login success    (0.30): successes/(successes+failures), penalized by
    the suspicious-activity ratio; 0.5 before any attempt
  - verification     (0.20): passed/(passed+failed), 1.2x once >= 3 passed;
    0.3 before any challenge
  - location         (0.10): stored consistency score / 100

The weights are uncalibrated operational defaults.
*/
package trust

import "time"

// # Counters

// Counters is the per-(identity, fingerprint) behavior history a device has
// accumulated. It is the scoring input; the devicetrust package owns the
// durable record it is loaded from.
type Counters struct {
	// FirstSeenAt is when the fingerprint was first observed.
	FirstSeenAt time.Time
	// TotalSessions counts every session created for this device.
	TotalSessions int
	// SuccessfulLogins counts completed credential checks.
	SuccessfulLogins int
	// FailedAttempts counts rejected credential checks.
	FailedAttempts int
	// SuspiciousActivities counts flagged anomalies (IP drift, abuse).
	SuspiciousActivities int
	// ChallengesPassed counts successful verification challenges.
	ChallengesPassed int
	// ChallengesFailed counts failed verification challenges.
	ChallengesFailed int
	// LocationConsistency is the stored 0-100 geo-consistency score.
	LocationConsistency int
}

// Level is the categorical band a trust score falls into.
type Level string

const (
	LevelUntrusted Level = "untrusted" // 0-19
	LevelLow       Level = "low"       // 20-39
	LevelMedium    Level = "medium"    // 40-69
	LevelHigh      Level = "high"      // 70-89
	LevelVerified  Level = "verified"  // 90-100
)

// # Sub-score Weights

const (
	weightAge          = 0.15
	weightUsage        = 0.25
	weightSuccess      = 0.30
	weightVerification = 0.20
	weightLocation     = 0.10

	// ageSaturationDays is where the age ramp reaches 1.
	ageSaturationDays = 90.0

	// usageSaturationPerDay is the session rate that saturates usage at 1.
	usageSaturationPerDay = 2.0

	// successDefault applies before any login attempt exists.
	successDefault = 0.5

	// verificationDefault applies before any challenge was attempted.
	verificationDefault = 0.3

	// verificationBonus multiplies the verification sub-score once the
	// device has passed at least verificationBonusThreshold challenges.
	verificationBonus          = 1.2
	verificationBonusThreshold = 3

	// suspiciousPenaltyCeiling is the maximum deduction applied to the
	// success sub-score, scaled by the suspicious-activity ratio.
	suspiciousPenaltyCeiling = 0.5
)

// Score computes the 0-100 trust score for the given counters at time now.
func Score(counters Counters, now time.Time) int {
	weighted := weightAge*ageSubScore(counters, now) +
		weightUsage*usageSubScore(counters, now) +
		weightSuccess*successSubScore(counters) +
		weightVerification*verificationSubScore(counters) +
		weightLocation*locationSubScore(counters)

	score := int(weighted * 100)
	return clamp(score, 0, 100)
}

// LevelFor maps a trust score onto its categorical band. Boundary values
// belong to the lower band's inclusive upper bound.
func LevelFor(score int) Level {
	switch {
	case score >= 90:
		return LevelVerified
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	case score >= 20:
		return LevelLow
	default:
		return LevelUntrusted
	}
}

// RiskScore derives the 0-100 risk score from the trust score plus anomaly
// adjustments: +10 once suspicious activity exceeds 3 events, +15 once
// failures outnumber successes.
func RiskScore(counters Counters, now time.Time) int {
	risk := 100 - Score(counters, now)

	if counters.SuspiciousActivities > 3 {
		risk += 10
	}
	if counters.FailedAttempts > counters.SuccessfulLogins {
		risk += 15
	}

	return clamp(risk, 0, 100)
}

// RequiresVerification reports whether the device must pass an additional
// verification challenge. Any single condition is sufficient: trust below
// 40, more than 2 suspicious activities, or failures exceeding successes.
func RequiresVerification(counters Counters, now time.Time) bool {
	return Score(counters, now) < 40 ||
		counters.SuspiciousActivities > 2 ||
		counters.FailedAttempts > counters.SuccessfulLogins
}

// # Sub-scores

func ageSubScore(counters Counters, now time.Time) float64 {
	if counters.FirstSeenAt.IsZero() || !now.After(counters.FirstSeenAt) {
		return 0
	}
	days := now.Sub(counters.FirstSeenAt).Hours() / 24
	if days >= ageSaturationDays {
		return 1
	}
	return days / ageSaturationDays
}

func usageSubScore(counters Counters, now time.Time) float64 {
	if counters.FirstSeenAt.IsZero() || counters.TotalSessions == 0 {
		return 0
	}

	days := now.Sub(counters.FirstSeenAt).Hours() / 24
	if days < 1 {
		days = 1
	}

	perDay := float64(counters.TotalSessions) / days
	if perDay >= usageSaturationPerDay {
		return 1
	}
	return perDay / usageSaturationPerDay
}

func successSubScore(counters Counters) float64 {
	attempts := counters.SuccessfulLogins + counters.FailedAttempts
	if attempts == 0 {
		return successDefault
	}

	rate := float64(counters.SuccessfulLogins) / float64(attempts)

	// Suspicious activity erodes the success rate proportionally, up to
	// half the sub-score.
	suspiciousRatio := float64(counters.SuspiciousActivities) / float64(attempts)
	if suspiciousRatio > 1 {
		suspiciousRatio = 1
	}
	rate -= suspiciousPenaltyCeiling * suspiciousRatio

	if rate < 0 {
		return 0
	}
	return rate
}

func verificationSubScore(counters Counters) float64 {
	challenges := counters.ChallengesPassed + counters.ChallengesFailed
	if challenges == 0 {
		return verificationDefault
	}

	rate := float64(counters.ChallengesPassed) / float64(challenges)
	if counters.ChallengesPassed >= verificationBonusThreshold {
		rate *= verificationBonus
	}

	if rate > 1 {
		return 1
	}
	return rate
}

func locationSubScore(counters Counters) float64 {
	return float64(clamp(counters.LocationConsistency, 0, 100)) / 100
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

// Package sec provides cryptographic primitives and the authenticated
// principal type shared across transport and domain layers.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, role hierarchy)
// from the domain logic. Token signing itself lives in the security token
// manager; sec only defines what an authenticated request carries.
package sec

// AuthClaims represents the authenticated principal attached to a request
// context after the bearer token and its session have been verified.
//
// # Why resolve the role here?
//
// Access tokens carry only the subject and session identifiers. The role is
// resolved from the (cached) identity record at authentication time, so a
// role change takes effect on the next request rather than at token expiry.
type AuthClaims struct {
	// UserID is the account identifier (JWT "sub").
	UserID string `json:"uid"`
	// Username is the resolved account username.
	Username string `json:"unm"`
	// Role is the resolved authorization level.
	Role string `json:"rol"`
	// SessionID is the active session identifier (JWT "sid").
	SessionID string `json:"sid"`
}

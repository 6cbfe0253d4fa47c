package classify

import "strings"

// AlreadySignedUpMarker is the exact substring the target service puts in its
// 400 response when a student signs up twice. Repeated signups across load
// test runs are expected, so that response must not count against the SLA.
// The match is intentionally on the service's literal phrasing.
const AlreadySignedUpMarker = "already signed up"

// Kind is the category of endpoint being classified.
type Kind int

const (
	// KindCatalog is a plain read endpoint, success is 2xx only.
	KindCatalog Kind = iota
	// KindSignup applies the business rule for duplicate signups.
	KindSignup
)

// KindForEndpoint infers the endpoint kind from its logical name. Signup-style
// endpoints get the business-aware success definition.
func KindForEndpoint(endpoint string) Kind {
	if strings.Contains(endpoint, "signup") {
		return KindSignup
	}
	return KindCatalog
}

// Classify decides whether a completed HTTP call counts as a business success.
// It never runs for transport failures; those are recorded with status 0 by
// the session before classification applies.
func Classify(kind Kind, status int, body string) bool {
	if status >= 200 && status < 300 {
		return true
	}
	if kind == KindSignup && status == 400 && strings.Contains(body, AlreadySignedUpMarker) {
		return true
	}
	return false
}

package stats

// Record is one attempted operation from a simulated session. Records are
// created by the session immediately after a call completes or fails and are
// immutable afterwards.
type Record struct {
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`

	// HTTPStatus is 0 when the call failed before a response arrived
	// (connection error, timeout).
	HTTPStatus int `json:"http_status"`

	// ResponseTime is the wall-clock duration of the single call in seconds,
	// measured regardless of outcome.
	ResponseTime float64 `json:"response_time_seconds"`

	// BusinessSuccess is the classifier's verdict. Distinct from a plain
	// 2xx check: a duplicate-signup 400 is a business success.
	BusinessSuccess bool `json:"is_business_success"`

	// Error is set on transport failure or a non-success HTTP status.
	Error string `json:"error,omitempty"`
}

// Success applies the combined success rule used for SLA comparison:
// either a 2xx status or a business success.
func (r Record) Success() bool {
	return (r.HTTPStatus >= 200 && r.HTTPStatus < 300) || r.BusinessSuccess
}

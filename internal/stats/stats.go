package stats

import (
	"sort"

	"peakload/internal/classify"
)

// PercentileUnavailable is reported when the sample size is below the gate
// for that percentile. A single-sample "p99" is noise, not a statistic.
const PercentileUnavailable = -1

// Minimum sample sizes before a percentile is reported.
const (
	MinSamplesP50 = 2
	MinSamplesP95 = 20
	MinSamplesP99 = 100
)

// EndpointStats summarises all records for one logical endpoint within a run.
type EndpointStats struct {
	RequestCount        int     `json:"request_count"`
	HTTPSuccessRate     float64 `json:"http_success_rate"`
	BusinessSuccessRate float64 `json:"business_success_rate"`
	ErrorCount          int     `json:"error_count"`
	MinResponseTime     float64 `json:"min_response_time"`
	AvgResponseTime     float64 `json:"avg_response_time"`
	MaxResponseTime     float64 `json:"max_response_time"`

	// Percentiles are PercentileUnavailable (-1) below their sample gate.
	P50ResponseTime float64 `json:"p50_response_time"`
	P95ResponseTime float64 `json:"p95_response_time"`
	P99ResponseTime float64 `json:"p99_response_time"`
}

// RunStats is the summary of one complete load-test run.
type RunStats struct {
	TestDuration       float64                  `json:"test_duration_seconds"`
	TotalRequests      int                      `json:"total_requests"`
	RequestsPerSecond  float64                  `json:"requests_per_second"`
	ConcurrentUsers    int                      `json:"concurrent_users"`
	OverallSuccessRate float64                  `json:"overall_success_rate"`
	Endpoints          map[string]EndpointStats `json:"endpoints"`
}

// Aggregate groups records by endpoint and computes the run summary.
// It never fails: empty inputs and zero durations produce zero values so the
// throughput search always gets a usable RunStats back.
func Aggregate(records []Record, totalDuration float64, numSessions int) *RunStats {
	rs := &RunStats{
		TestDuration:    totalDuration,
		TotalRequests:   len(records),
		ConcurrentUsers: numSessions,
		Endpoints:       make(map[string]EndpointStats),
	}

	if totalDuration > 0 {
		rs.RequestsPerSecond = float64(len(records)) / totalDuration
	}

	successCount := 0
	groups := make(map[string][]Record)
	for _, r := range records {
		if r.Success() {
			successCount++
		}
		groups[r.Endpoint] = append(groups[r.Endpoint], r)
	}
	if len(records) > 0 {
		rs.OverallSuccessRate = float64(successCount) / float64(len(records))
	}

	for endpoint, group := range groups {
		rs.Endpoints[endpoint] = aggregateEndpoint(endpoint, group)
	}

	return rs
}

func aggregateEndpoint(endpoint string, group []Record) EndpointStats {
	es := EndpointStats{RequestCount: len(group)}

	times := make([]float64, 0, len(group))
	httpSuccess := 0
	businessSuccess := 0
	sum := 0.0

	for _, r := range group {
		times = append(times, r.ResponseTime)
		sum += r.ResponseTime
		if r.HTTPStatus >= 200 && r.HTTPStatus < 300 {
			httpSuccess++
		}
		if r.BusinessSuccess {
			businessSuccess++
		}
	}

	// Signup-style endpoints are judged by the business rule, everything
	// else by plain HTTP status.
	combined := httpSuccess
	if classify.KindForEndpoint(endpoint) == classify.KindSignup {
		combined = businessSuccess
	}
	es.ErrorCount = len(group) - combined

	if len(group) > 0 {
		es.HTTPSuccessRate = float64(httpSuccess) / float64(len(group))
		es.BusinessSuccessRate = float64(combined) / float64(len(group))
		es.AvgResponseTime = sum / float64(len(group))
	}

	sort.Float64s(times)
	if len(times) > 0 {
		es.MinResponseTime = times[0]
		es.MaxResponseTime = times[len(times)-1]
	}

	es.P50ResponseTime = percentile(times, 0.50, MinSamplesP50)
	es.P95ResponseTime = percentile(times, 0.95, MinSamplesP95)
	es.P99ResponseTime = percentile(times, 0.99, MinSamplesP99)

	return es
}

// percentile reads the value at floor(n*q) from an ascending-sorted slice,
// or PercentileUnavailable when the sample size is below minSamples.
func percentile(sorted []float64, q float64, minSamples int) float64 {
	if len(sorted) < minSamples {
		return PercentileUnavailable
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

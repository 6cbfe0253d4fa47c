package stats

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogRecord(userID int, status int, rt float64) Record {
	r := Record{
		UserID:       userID,
		Endpoint:     "/activities",
		HTTPStatus:   status,
		ResponseTime: rt,
	}
	if status >= 200 && status < 300 {
		r.BusinessSuccess = true
	}
	return r
}

func signupRecord(userID int, status int, rt float64, businessSuccess bool) Record {
	return Record{
		UserID:          userID,
		Endpoint:        "/activities/{name}/signup",
		HTTPStatus:      status,
		ResponseTime:    rt,
		BusinessSuccess: businessSuccess,
	}
}

func TestAggregateEmpty(t *testing.T) {
	rs := Aggregate(nil, 0, 0)
	require.NotNil(t, rs)
	assert.Equal(t, 0, rs.TotalRequests)
	assert.Equal(t, 0.0, rs.RequestsPerSecond)
	assert.Equal(t, 0.0, rs.OverallSuccessRate)
	assert.Empty(t, rs.Endpoints)
}

func TestAggregateZeroDuration(t *testing.T) {
	rs := Aggregate([]Record{catalogRecord(0, 200, 0.01)}, 0, 1)
	assert.Equal(t, 0.0, rs.RequestsPerSecond)
	assert.Equal(t, 1, rs.TotalRequests)
}

func TestErrorCountPlusSuccessEqualsRequests(t *testing.T) {
	records := []Record{
		catalogRecord(0, 200, 0.010),
		catalogRecord(1, 500, 0.050),
		catalogRecord(2, 200, 0.020),
		signupRecord(0, 200, 0.030, true),
		signupRecord(1, 400, 0.040, true),  // duplicate signup, business success
		signupRecord(2, 400, 0.040, false), // genuine failure
		signupRecord(3, 0, 1.500, false),   // transport failure
	}

	rs := Aggregate(records, 2.0, 4)

	catalog := rs.Endpoints["/activities"]
	assert.Equal(t, 3, catalog.RequestCount)
	assert.Equal(t, 1, catalog.ErrorCount)

	signup := rs.Endpoints["/activities/{name}/signup"]
	assert.Equal(t, 4, signup.RequestCount)
	// Signup endpoints are judged by the business rule: 2 of 4 succeeded.
	assert.Equal(t, 2, signup.ErrorCount)

	// success + errors == requests under each group's own success rule
	for name, es := range rs.Endpoints {
		successes := int(es.BusinessSuccessRate*float64(es.RequestCount) + 0.5)
		assert.Equal(t, es.RequestCount, successes+es.ErrorCount, "endpoint %s", name)
	}

	// overall: 5 of 7 pass the combined rule
	assert.InDelta(t, 5.0/7.0, rs.OverallSuccessRate, 1e-9)
	assert.InDelta(t, 3.5, rs.RequestsPerSecond, 1e-9)
}

func TestMinAvgMaxOrdering(t *testing.T) {
	records := []Record{
		catalogRecord(0, 200, 0.030),
		catalogRecord(1, 200, 0.010),
		catalogRecord(2, 200, 0.080),
	}

	es := Aggregate(records, 1.0, 3).Endpoints["/activities"]
	assert.Equal(t, 0.010, es.MinResponseTime)
	assert.Equal(t, 0.080, es.MaxResponseTime)
	assert.True(t, es.MinResponseTime <= es.AvgResponseTime)
	assert.True(t, es.AvgResponseTime <= es.MaxResponseTime)
	assert.InDelta(t, 0.040, es.AvgResponseTime, 1e-9)
}

func TestPercentileGating(t *testing.T) {
	build := func(n int) []Record {
		records := make([]Record, 0, n)
		for i := 0; i < n; i++ {
			records = append(records, catalogRecord(i, 200, float64(i+1)*0.001))
		}
		return records
	}

	cases := []struct {
		samples                      int
		p50Avail, p95Avail, p99Avail bool
	}{
		{1, false, false, false},
		{10, true, false, false},
		{25, true, true, false},
		{150, true, true, true},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%d samples", c.samples), func(t *testing.T) {
			es := Aggregate(build(c.samples), 1.0, 1).Endpoints["/activities"]
			assert.Equal(t, c.p50Avail, es.P50ResponseTime != PercentileUnavailable, "p50")
			assert.Equal(t, c.p95Avail, es.P95ResponseTime != PercentileUnavailable, "p95")
			assert.Equal(t, c.p99Avail, es.P99ResponseTime != PercentileUnavailable, "p99")
		})
	}
}

func TestPercentileIndexing(t *testing.T) {
	// 100 samples 0.001..0.100: index floor(100*q)
	records := make([]Record, 0, 100)
	for i := 0; i < 100; i++ {
		records = append(records, catalogRecord(i, 200, float64(i+1)*0.001))
	}
	es := Aggregate(records, 1.0, 1).Endpoints["/activities"]
	assert.InDelta(t, 0.051, es.P50ResponseTime, 1e-9)
	assert.InDelta(t, 0.096, es.P95ResponseTime, 1e-9)
	assert.InDelta(t, 0.100, es.P99ResponseTime, 1e-9)
}

func TestAggregateIdempotent(t *testing.T) {
	records := []Record{
		catalogRecord(0, 200, 0.010),
		catalogRecord(1, 503, 0.900),
		signupRecord(0, 400, 0.040, true),
		signupRecord(1, 0, 2.000, false),
	}

	a, err := json.Marshal(Aggregate(records, 3.0, 2))
	require.NoError(t, err)
	b, err := json.Marshal(Aggregate(records, 3.0, 2))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestLiveCounters(t *testing.T) {
	l := NewLive()
	l.Add(catalogRecord(0, 200, 0.010))
	l.Add(signupRecord(0, 400, 0.020, true))
	l.Add(signupRecord(1, 500, 0.030, false))
	l.Add(signupRecord(2, 0, 1.000, false))

	assert.Equal(t, uint64(4), l.Requests)
	assert.Equal(t, uint64(2), l.Success)
	assert.Equal(t, uint64(2), l.Fail)
	assert.InDelta(t, 0.5, l.ErrorRate(), 1e-9)
	assert.Equal(t, int64(4), l.Latency.TotalCount())
}

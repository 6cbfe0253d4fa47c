package driver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakload/internal/session"
	"peakload/internal/target"
)

func TestRunAgainstActivitiesAPI(t *testing.T) {
	srv := httptest.NewServer(target.NewServer(target.ServerConfig{}).Handler())
	defer srv.Close()

	client := session.NewClient(srv.URL, 5*time.Second)
	client.WarmCatalog(context.Background())

	rs, err := New(client.Run, nil).Run(context.Background(), 8, 0)
	require.NoError(t, err)

	assert.Equal(t, 16, rs.TotalRequests)
	assert.Equal(t, 8, rs.ConcurrentUsers)
	assert.Equal(t, 1.0, rs.OverallSuccessRate)

	catalog, ok := rs.Endpoints[session.EndpointCatalog]
	require.True(t, ok)
	assert.Equal(t, 8, catalog.RequestCount)
	assert.Equal(t, 0, catalog.ErrorCount)

	signup, ok := rs.Endpoints[session.EndpointSignup]
	require.True(t, ok)
	assert.Equal(t, 8, signup.RequestCount)
	assert.Equal(t, 0, signup.ErrorCount)
	assert.True(t, signup.MinResponseTime <= signup.AvgResponseTime)
	assert.True(t, signup.AvgResponseTime <= signup.MaxResponseTime)
}

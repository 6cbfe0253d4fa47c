package target

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	srv := httptest.NewServer(NewServer(ServerConfig{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/activities")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var catalog map[string]Activity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&catalog))
	assert.Contains(t, catalog, "Chess Club")
	assert.NotEmpty(t, catalog["Chess Club"].Description)
}

func TestSignupFlow(t *testing.T) {
	srv := httptest.NewServer(NewServer(ServerConfig{}).Handler())
	defer srv.Close()

	signup := func(activity, email string) (int, string) {
		resp, err := http.Post(
			srv.URL+"/activities/"+activity+"/signup?email="+email, "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, _ := signup("Chess%20Club", "a@mergington.edu")
	assert.Equal(t, http.StatusOK, status)

	status, body := signup("Chess%20Club", "a@mergington.edu")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.True(t, strings.Contains(body, "already signed up"), "body: %s", body)

	status, body = signup("Knitting", "a@mergington.edu")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Activity not found")

	status, body = signup("Chess%20Club", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Email is required")
}

func TestLoadShedding(t *testing.T) {
	s := NewServer(ServerConfig{MaxInflight: 1})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// Hold one slot via the gauge directly, then any request sheds.
	require.False(t, s.shedding())
	defer s.release()

	resp, err := http.Get(srv.URL + "/activities")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

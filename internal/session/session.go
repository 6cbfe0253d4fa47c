package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"peakload/internal/classify"
	"peakload/internal/stats"
)

// Logical endpoint names used for grouping. The signup label is templated so
// every activity's signup lands in one group.
const (
	EndpointCatalog = "/activities"
	EndpointSignup  = "/activities/{name}/signup"
)

// FallbackActivity is used when no catalog response has been seen yet.
const FallbackActivity = "Chess Club"

// Client drives simulated user sessions against one target service. All
// sessions of a run (and of consecutive runs) share the client, its tuned
// transport and its catalog cache.
type Client struct {
	BaseURL string

	http  *http.Client
	runID string

	// Catalog of available activities, populated by the first successful
	// catalog fetch. Racing writers all compute the same value, so losing
	// the check-then-populate race is harmless.
	mu         sync.Mutex
	activities []string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
		runID: uuid.New().String()[:8],
	}
}

// RunID distinguishes this tool invocation's signup identities from earlier
// runs against the same service.
func (c *Client) RunID() string { return c.runID }

// Activities returns the cached catalog, or nil before the first successful
// fetch.
func (c *Client) Activities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activities
}

func (c *Client) storeActivities(names []string) {
	if len(names) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.activities) == 0 {
		c.activities = names
	}
}

// WarmCatalog primes the activity cache before a run starts, mirroring a
// user-zero fetch. Failure is not fatal; sessions fall back to
// FallbackActivity.
func (c *Client) WarmCatalog(ctx context.Context) {
	c.fetchCatalog(ctx, 0)
}

// Run simulates one complete user session: view the catalog, then sign up
// for an activity. It always returns exactly two records; transport failures
// are recorded, never raised.
func (c *Client) Run(ctx context.Context, userID int) []stats.Record {
	view := c.fetchCatalog(ctx, userID)
	signup := c.signup(ctx, userID)
	return []stats.Record{view, signup}
}

func (c *Client) fetchCatalog(ctx context.Context, userID int) stats.Record {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/activities", nil)
	if err != nil {
		return failedRecord(userID, EndpointCatalog, start, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return failedRecord(userID, EndpointCatalog, start, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	if readErr != nil {
		return failedRecord(userID, EndpointCatalog, start, readErr)
	}

	if resp.StatusCode == http.StatusOK {
		var catalog map[string]json.RawMessage
		if err := json.Unmarshal(body, &catalog); err == nil {
			names := make([]string, 0, len(catalog))
			for name := range catalog {
				names = append(names, name)
			}
			c.storeActivities(names)
		}
	}

	r := stats.Record{
		UserID:          userID,
		Endpoint:        EndpointCatalog,
		HTTPStatus:      resp.StatusCode,
		ResponseTime:    elapsed.Seconds(),
		BusinessSuccess: classify.Classify(classify.KindCatalog, resp.StatusCode, string(body)),
	}
	if !r.BusinessSuccess {
		r.Error = fmt.Sprintf("failed with status %d", resp.StatusCode)
	}
	return r
}

func (c *Client) signup(ctx context.Context, userID int) stats.Record {
	start := time.Now()

	activity := c.pickActivity(userID)
	email := fmt.Sprintf("loadtest%d_%s@mergington.edu", userID, c.runID)
	target := fmt.Sprintf("%s/activities/%s/signup?email=%s",
		c.BaseURL, url.PathEscape(activity), url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return failedRecord(userID, EndpointSignup, start, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return failedRecord(userID, EndpointSignup, start, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	if readErr != nil {
		return failedRecord(userID, EndpointSignup, start, readErr)
	}

	r := stats.Record{
		UserID:          userID,
		Endpoint:        EndpointSignup,
		HTTPStatus:      resp.StatusCode,
		ResponseTime:    elapsed.Seconds(),
		BusinessSuccess: classify.Classify(classify.KindSignup, resp.StatusCode, string(body)),
	}
	if !r.BusinessSuccess {
		r.Error = fmt.Sprintf("failed with status %d", resp.StatusCode)
	}
	return r
}

// pickActivity spreads sessions across the catalog deterministically.
func (c *Client) pickActivity(userID int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.activities) == 0 {
		return FallbackActivity
	}
	return c.activities[userID%len(c.activities)]
}

func failedRecord(userID int, endpoint string, start time.Time, err error) stats.Record {
	return stats.Record{
		UserID:       userID,
		Endpoint:     endpoint,
		HTTPStatus:   0,
		ResponseTime: time.Since(start).Seconds(),
		Error:        err.Error(),
	}
}

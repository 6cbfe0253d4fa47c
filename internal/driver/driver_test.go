package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakload/internal/stats"
)

func okSession(status int) SessionFunc {
	return func(ctx context.Context, userID int) []stats.Record {
		success := status >= 200 && status < 300
		return []stats.Record{
			{UserID: userID, Endpoint: "/activities", HTTPStatus: status, ResponseTime: 0.001, BusinessSuccess: success},
			{UserID: userID, Endpoint: "/activities/{name}/signup", HTTPStatus: status, ResponseTime: 0.002, BusinessSuccess: success},
		}
	}
}

func TestRampDelay(t *testing.T) {
	cases := []struct {
		i, n   int
		rampUp time.Duration
		want   time.Duration
	}{
		{0, 5, 4 * time.Second, 0},
		{2, 5, 4 * time.Second, 2 * time.Second},
		{4, 5, 4 * time.Second, 4 * time.Second},
		{3, 1, 4 * time.Second, 0},
		{3, 5, 0, 0},
	}

	for _, c := range cases {
		if got := rampDelay(c.i, c.n, c.rampUp); got != c.want {
			t.Errorf("rampDelay(%d, %d, %s) = %s, want %s", c.i, c.n, c.rampUp, got, c.want)
		}
	}
}

func TestRunCollectsAllRecords(t *testing.T) {
	d := New(okSession(200), nil)

	rs, err := d.Run(context.Background(), 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 20, rs.TotalRequests)
	assert.Equal(t, 10, rs.ConcurrentUsers)
	assert.Equal(t, 1.0, rs.OverallSuccessRate)
	assert.Len(t, rs.Endpoints, 2)
	assert.Greater(t, rs.RequestsPerSecond, 0.0)
}

func TestFailingSessionDoesNotBlockOthers(t *testing.T) {
	failing := okSession(200)
	run := func(ctx context.Context, userID int) []stats.Record {
		if userID == 13 {
			return []stats.Record{
				{UserID: userID, Endpoint: "/activities", HTTPStatus: 0, ResponseTime: 0.5, Error: errors.New("connection refused").Error()},
				{UserID: userID, Endpoint: "/activities/{name}/signup", HTTPStatus: 0, ResponseTime: 0.5, Error: "connection refused"},
			}
		}
		return failing(ctx, userID)
	}

	rs, err := New(run, nil).Run(context.Background(), 20, 0)
	require.NoError(t, err)

	// 2 records per session, the failing one included
	assert.Equal(t, 40, rs.TotalRequests)
	assert.InDelta(t, 38.0/40.0, rs.OverallSuccessRate, 1e-9)
}

func TestRunValidatesConfig(t *testing.T) {
	d := New(okSession(200), nil)

	_, err := d.Run(context.Background(), 0, 0)
	assert.Error(t, err)

	_, err = d.Run(context.Background(), -5, 0)
	assert.Error(t, err)

	_, err = d.Run(context.Background(), 1, -time.Second)
	assert.Error(t, err)
}

func TestRampUpStaggersStarts(t *testing.T) {
	var mu sync.Mutex
	startTimes := make(map[int]time.Time)

	run := func(ctx context.Context, userID int) []stats.Record {
		mu.Lock()
		startTimes[userID] = time.Now()
		mu.Unlock()
		return okSession(200)(ctx, userID)
	}

	begin := time.Now()
	_, err := New(run, nil).Run(context.Background(), 5, 400*time.Millisecond)
	require.NoError(t, err)

	// Session 0 starts immediately, session 4 roughly a ramp-up later.
	assert.Less(t, startTimes[0].Sub(begin), 150*time.Millisecond)
	assert.GreaterOrEqual(t, startTimes[4].Sub(begin), 350*time.Millisecond)
	assert.True(t, startTimes[2].After(startTimes[0]))
	assert.True(t, startTimes[4].After(startTimes[2]))
}

func TestSnapshotsArePushed(t *testing.T) {
	updates := make(SnapshotChan, 100)
	slow := func(ctx context.Context, userID int) []stats.Record {
		time.Sleep(300 * time.Millisecond)
		return okSession(200)(ctx, userID)
	}

	_, err := New(slow, updates).Run(context.Background(), 2, 0)
	require.NoError(t, err)

	select {
	case s := <-updates:
		assert.GreaterOrEqual(t, s.Active+int64(s.Requests), int64(0))
	default:
		t.Fatal("expected at least one snapshot during the run")
	}
}

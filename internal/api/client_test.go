package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bottleneck/internal/db"
	"github.com/banshee-data/bottleneck/internal/httputil"
	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/version"
)

func TestClientAgainstServer(t *testing.T) {
	archive, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	r := newRunner(t, scenario.Real, nil)
	start(t, r)
	ts := httptest.NewServer(NewServer(r, "kmph", WithArchive(archive)).ServeMux())
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	resp, err := c.Control(ctx, runner.ActionStep, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.Tick)

	_, err = c.Control(ctx, runner.ActionTimeScale, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, r.Config().TimeScale)

	snap, err := c.Snapshot(ctx, "mph")
	require.NoError(t, err)
	assert.Equal(t, "mph", snap.Units)
	assert.Equal(t, uint64(1), snap.Tick)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, version.Version, v.Version)

	sum, err := c.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "real", sum.Scenario)

	id, err := c.Archive(ctx)
	require.NoError(t, err)
	assert.Equal(t, r.ID(), id)

	_, err = c.Snapshot(ctx, "furlongs")
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Message, "units")
}

func TestClientWithMock(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"action":"time_scale","tick":7,"paused":true}`).
		AddResponse(http.StatusServiceUnavailable, `{"error":"runner is not running"}`).
		AddResponse(http.StatusBadGateway, `<html>`).
		AddErrorResponse(errors.New("connection refused"))
	c := &Client{BaseURL: "http://sim.local", HTTP: mock}
	ctx := context.Background()

	resp, err := c.Control(ctx, runner.ActionTimeScale, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), resp.Tick)

	_, err = c.Control(ctx, runner.ActionPause, 0)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "runner is not running", se.Message)

	_, err = c.Version(ctx)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), se.Message)

	_, err = c.Snapshot(ctx, "")
	assert.ErrorContains(t, err, "connection refused")

	reqs := mock.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "http://sim.local/api/control", reqs[0].URL)
	assert.Equal(t, "action=time_scale&value=4", reqs[0].Body)
	assert.Equal(t, "application/x-www-form-urlencoded", reqs[0].Header.Get("Content-Type"))
	assert.Equal(t, "action=pause", reqs[1].Body)
	assert.Equal(t, "http://sim.local/api/snapshot", reqs[3].URL)
}

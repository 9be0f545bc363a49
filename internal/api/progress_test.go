package api_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/internal/api"
	"github.com/campaignhq/campaignhq/internal/api/apitest"
	"github.com/campaignhq/campaignhq/pkg/core"
)

func TestDialProgress_SnapshotThenUpdates(t *testing.T) {
	srv := apitest.NewServer(t)
	c := newClient(t, srv, apitest.Token)
	srv.AddExecution(core.Execution{ID: 9, Status: core.ExecutionQueued, Total: 4})

	conn, err := c.DialProgress(context.Background(), 9)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	first, err := conn.Read()
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionQueued, first.Status)
	assert.Equal(t, 4, first.Total)

	require.Eventually(t, func() bool { return srv.Subscribers(9) == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.Push(9, core.Progress{Status: core.ExecutionRunning, Processed: 2, Total: 4, Success: 2})

	next, err := conn.Read()
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionRunning, next.Status)
	assert.Equal(t, 2, next.Processed)
	assert.InDelta(t, 50.0, next.Percent(), 0.001)
}

func TestDialProgress_Heartbeat(t *testing.T) {
	srv := apitest.NewServer(t)
	c := newClient(t, srv, apitest.Token)
	srv.AddExecution(core.Execution{ID: 1, Status: core.ExecutionRunning})

	conn, err := c.DialProgress(context.Background(), 1)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.Heartbeat())
	require.NoError(t, conn.Heartbeat())
	assert.Eventually(t, func() bool { return srv.Heartbeats() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestDialProgress_Rejected(t *testing.T) {
	srv := apitest.NewServer(t)

	t.Run("bad token is refused before upgrade", func(t *testing.T) {
		c := newClient(t, srv, "expired")
		_, err := c.DialProgress(context.Background(), 1)
		assert.ErrorIs(t, err, api.ErrStreamRejected)
	})

	t.Run("no token", func(t *testing.T) {
		c := newClient(t, srv, "")
		_, err := c.DialProgress(context.Background(), 1)
		assert.ErrorIs(t, err, api.ErrNotAuthenticated)
	})

	t.Run("unknown execution closes with policy violation", func(t *testing.T) {
		c := newClient(t, srv, apitest.Token)
		conn, err := c.DialProgress(context.Background(), 404)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		_, err = conn.Read()
		assert.ErrorIs(t, err, api.ErrStreamRejected)
	})
}

func TestProgressConn_CloseIsIdempotent(t *testing.T) {
	srv := apitest.NewServer(t)
	c := newClient(t, srv, apitest.Token)
	srv.AddExecution(core.Execution{ID: 2, Status: core.ExecutionRunning})

	conn, err := c.DialProgress(context.Background(), 2)
	require.NoError(t, err)
	_, err = conn.Read()
	require.NoError(t, err)

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.Subscribers(2) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressConn_ServerShutdown(t *testing.T) {
	srv := apitest.NewServer(t)
	c := newClient(t, srv, apitest.Token)
	srv.AddExecution(core.Execution{ID: 3, Status: core.ExecutionRunning})

	conn, err := c.DialProgress(context.Background(), 3)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = conn.Read()
	require.NoError(t, err)

	srv.Close()
	_, err = conn.Read()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF, "abrupt shutdown is not a normal close")
}

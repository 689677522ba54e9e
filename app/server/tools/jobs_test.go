package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmon/watchmon/pkg/scan"
)

func TestJobProgressIsMonotonic(t *testing.T) {
	jobs := NewJobs()
	job := jobs.Start("get_top_dapps", nil)

	job.Progress(5, 100)
	job.Progress(3, 100)
	job.Progress(7, 100)

	snap := jobs.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(7), snap[0].Done)
	assert.Equal(t, int64(100), snap[0].Total)
}

func TestJobsSnapshotOldestFirst(t *testing.T) {
	jobs := NewJobs()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	jobs.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	a := jobs.Start("get_contract_details", json.RawMessage(`{"address":"0xa"}`))
	b := jobs.Start("get_top_dapps", nil)
	assert.NotEqual(t, a.ID, b.ID)

	snap := jobs.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, a.ID, snap[0].ID)
	assert.Equal(t, b.ID, snap[1].ID)
	assert.InDelta(t, 2.0, snap[0].ElapsedSec, 1e-9)

	jobs.Finish(a.ID)
	assert.Equal(t, 1, jobs.Len())
}

func TestJobReceivesScanProgress(t *testing.T) {
	jobs := NewJobs()
	job := jobs.Start("get_dapp_transactions_count", nil)

	ctx := scan.WithProgress(context.Background(), job.Progress)
	_, err := scan.Schedule(ctx, 4, scan.Heights(0, 10), func(context.Context, uint64) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)

	snap := jobs.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(10), snap[0].Done)
	assert.Equal(t, int64(10), snap[0].Total)
}

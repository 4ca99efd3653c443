package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"pvyield/internal/pvwatts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	calls atomic.Int32
	err   error
}

func (e *countingEngine) Simulate(_ context.Context, req pvwatts.Request) (*pvwatts.Response, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	monthly := make([]float64, 12)
	for i := range monthly {
		monthly[i] = req.SystemCapacity * 100
	}
	return &pvwatts.Response{
		Version:     "8.2.1",
		StationInfo: pvwatts.StationInfo{City: "Denver", Location: "TMY-0-725650"},
		Outputs: pvwatts.Outputs{
			ACAnnual:   req.SystemCapacity * 1200,
			ACMonthly:  monthly,
			DCMonthly:  monthly,
			POAMonthly: monthly,
		},
	}, nil
}

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRequest() pvwatts.Request {
	return pvwatts.Request{
		SystemCapacity: 10.4878,
		ModuleType:     1,
		Losses:         14.08,
		ArrayType:      1,
		Tilt:           20,
		Azimuth:        180,
		Latitude:       39.74,
		Longitude:      -105.17,
	}
}

func TestRequestKey(t *testing.T) {
	a := testRequest()
	b := testRequest()
	assert.Equal(t, RequestKey(a), RequestKey(b))
	assert.Len(t, RequestKey(a), 64)

	b.Tilt = 25
	assert.NotEqual(t, RequestKey(a), RequestKey(b))
}

func TestCachedEngine_ServesRepeatedRequests(t *testing.T) {
	db := openTestDatabase(t)
	next := &countingEngine{}
	engine := NewCachedEngine(next, db, time.Hour, nil)

	first, err := engine.Simulate(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := engine.Simulate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first.Outputs.ACMonthly, second.Outputs.ACMonthly)
	assert.Equal(t, "TMY-0-725650", second.StationInfo.Location)

	other := testRequest()
	other.Azimuth = 90
	_, err = engine.Simulate(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)
}

func TestCachedEngine_ExpiredEntriesAreRefetched(t *testing.T) {
	db := openTestDatabase(t)
	next := &countingEngine{}
	engine := NewCachedEngine(next, db, time.Hour, nil)

	now := time.Now()
	engine.now = func() time.Time { return now.Add(-2 * time.Hour) }
	_, err := engine.Simulate(context.Background(), testRequest())
	require.NoError(t, err)

	engine.now = func() time.Time { return now }
	_, err = engine.Simulate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries, "refetch replaces the stale entry")
}

func TestCachedEngine_ErrorsAreNotCached(t *testing.T) {
	db := openTestDatabase(t)
	next := &countingEngine{err: &pvwatts.EngineError{Kind: pvwatts.KindEngine, Message: "invalid tilt"}}
	engine := NewCachedEngine(next, db, time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, err := engine.Simulate(context.Background(), testRequest())
		var engineErr *pvwatts.EngineError
		require.True(t, errors.As(err, &engineErr))
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedEngine_FallsThroughWhenDatabaseFails(t *testing.T) {
	db := openTestDatabase(t)
	next := &countingEngine{}
	engine := NewCachedEngine(next, db, time.Hour, nil)
	require.NoError(t, db.Close())

	resp, err := engine.Simulate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestDatabase_CleanExpired(t *testing.T) {
	db := openTestDatabase(t)

	require.NoError(t, db.SaveResponse(&EngineResponse{RequestKey: "old", Payload: []byte("{}"), FetchedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, db.SaveResponse(&EngineResponse{RequestKey: "fresh", Payload: []byte("{}"), FetchedAt: time.Now()}))

	removed, err := db.CleanExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = db.GetResponse("old", time.Time{})
	assert.ErrorIs(t, err, ErrNotFound)
	entry, err := db.GetResponse("fresh", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", entry.RequestKey)
}

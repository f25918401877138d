package syncqueue_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-app-sub019/client/api"
	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/client/syncqueue"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
	"github.com/simonmuehling/educafric-app-sub019/testutil/apitest"
)

var ctxBg = context.Background()

type testEnv struct {
	srv   *apitest.Server
	store *offlinedb.DB
	mgr   *syncqueue.Manager
}

func setup(t *testing.T) *testEnv {
	srv := apitest.New(t)
	store, err := offlinedb.Open(filepath.Join(t.TempDir(), "offline.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client := api.New(srv.URL, srv.Token)
	return &testEnv{
		srv:   srv,
		store: store,
		mgr:   syncqueue.NewManager(store, client, testutil.NewLogger()),
	}
}

// createLocal mimics an optimistic create: a local only row plus its queue item.
func (env *testEnv) createLocal(t *testing.T, module string, data academic.Data) string {
	tempID := "temp_" + uuid.New().String()
	require.NoError(t, env.store.PutRecord(ctxBg, module, offlinedb.Record{
		ID:           tempID,
		SchoolID:     env.srv.School.ID,
		Data:         data,
		LastModified: core.Millis(core.NowUTC()),
		SyncStatus:   offlinedb.StatusPending,
		LocalOnly:    true,
	}))
	_, err := env.mgr.Enqueue(ctxBg, module, offlinedb.OpCreate, data, tempID, tempID)
	require.NoError(t, err)
	return tempID
}

func (env *testEnv) serverRecords(t *testing.T, module string) []academic.Record {
	recs, err := env.srv.Records.List(ctxBg, env.srv.School.ID, module, 0)
	require.NoError(t, err)
	return recs
}

func setNow(t *testing.T, now time.Time) {
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute},
		{50, 5 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, syncqueue.Backoff(tt.attempts), "Backoff(%d)", tt.attempts)
	}
}

func TestManager_ProcessQueue_fifo(t *testing.T) {
	env := setup(t)
	mod := academic.ModuleStudents

	tempID := env.createLocal(t, mod, academic.Data{"firstName": "Awa", "lastName": "Ndiaye"})
	// a local edit made before the create reached the server
	_, err := env.mgr.Enqueue(ctxBg, mod, offlinedb.OpUpdate, academic.Data{"className": "6e A"}, tempID, "")
	require.NoError(t, err)
	other := env.createLocal(t, mod, academic.Data{"firstName": "Jean", "lastName": "Mbarga"})

	res, err := env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Result{Processed: 3}, res)

	recs := env.serverRecords(t, mod)
	require.Len(t, recs, 2)
	byTemp := make(map[string]academic.Record)
	for _, rec := range recs {
		byTemp[rec.ClientTempID] = rec
	}
	require.Contains(t, byTemp, tempID)
	require.Contains(t, byTemp, other)
	srvID := byTemp[tempID].ID
	assert.Equal(t, "6e A", byTemp[tempID].Data.String("className"))
	assert.Equal(t, []string{"POST /api/students", "PATCH /api/students/" + srvID, "POST /api/students"}, env.srv.Requests())

	// local rows now live under the server ids
	local, err := env.store.ListRecords(ctxBg, mod, env.srv.School.ID)
	require.NoError(t, err)
	require.Len(t, local, 2)
	for _, rec := range local {
		assert.Equal(t, offlinedb.StatusSynced, rec.SyncStatus)
		assert.False(t, rec.LocalOnly)
	}
	synced, err := env.store.GetRecord(ctxBg, mod, srvID)
	require.NoError(t, err)
	assert.Equal(t, "6e A", synced.Data.String("className"))
	_, err = env.store.GetRecord(ctxBg, mod, tempID)
	assert.Equal(t, offlinedb.ErrNotFound, err)
}

func TestManager_ProcessQueue_failures(t *testing.T) {
	env := setup(t)
	mod := academic.ModuleClasses
	start := time.Now()
	setNow(t, start)

	first := env.createLocal(t, mod, academic.Data{"name": "6e A", "level": "6e"})
	_, err := env.mgr.Enqueue(ctxBg, mod, offlinedb.OpUpdate, academic.Data{"section": "bilingue"}, first, "")
	require.NoError(t, err)
	env.createLocal(t, mod, academic.Data{"name": "5e B", "level": "5e"})

	// the first create fails: its update waits, the other entity goes through
	env.srv.FailNext(http.StatusInternalServerError)
	res, err := env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Result{Processed: 1, Failed: 1, Skipped: 1, Remaining: 2}, res)

	items, err := env.mgr.Pending(ctxBg)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Attempts)
	assert.Contains(t, items[0].LastError, "injected failure")
	assert.Equal(t, core.Millis(start.Add(syncqueue.BaseBackoff)), items[0].NextAttemptAt)

	local, err := env.store.GetRecord(ctxBg, mod, first)
	require.NoError(t, err)
	assert.True(t, local.Pending(), "a failed item leaves its row pending")

	// still backing off
	res, err = env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Result{Skipped: 2, Remaining: 2}, res)

	setNow(t, start.Add(3*time.Second))
	res, err = env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Result{Processed: 2}, res)
	assert.Len(t, env.serverRecords(t, mod), 2)
}

func TestManager_ProcessQueue_unauthorized(t *testing.T) {
	env := setup(t)
	env.createLocal(t, academic.ModuleTeachers, academic.Data{"firstName": "Marie", "lastName": "Curie"})
	env.createLocal(t, academic.ModuleTeachers, academic.Data{"firstName": "Ali", "lastName": "Baba"})

	env.srv.FailNext(http.StatusUnauthorized)
	res, err := env.mgr.ProcessQueue(ctxBg)
	assert.Equal(t, syncqueue.ErrUnauthorized, err)
	assert.Equal(t, syncqueue.Result{Remaining: 2}, res)
	assert.Len(t, env.srv.Requests(), 1, "the pass stops at the first 401")

	items, err := env.mgr.Pending(ctxBg)
	require.NoError(t, err)
	assert.Zero(t, items[0].Attempts)
}

func TestManager_ProcessQueue_offline(t *testing.T) {
	env := setup(t)
	mod := academic.ModuleStudents
	tempID := env.createLocal(t, mod, academic.Data{"firstName": "Awa", "lastName": "Ndiaye"})

	env.srv.SetOffline(true)
	res, err := env.mgr.ProcessQueue(ctxBg)
	assert.Equal(t, syncqueue.ErrOffline, errors.Cause(err))
	assert.Equal(t, syncqueue.Result{Remaining: 1}, res)

	local, err := env.store.GetRecord(ctxBg, mod, tempID)
	require.NoError(t, err)
	assert.True(t, local.LocalOnly)

	env.srv.SetOffline(false)
	res, err = env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Result{Processed: 1}, res)
}

func TestManager_ProcessQueue_replayedCreate(t *testing.T) {
	env := setup(t)
	mod := academic.ModuleClasses
	tempID := env.createLocal(t, mod, academic.Data{"name": "Tle C", "level": "Tle"})

	// the server got the create but the answer was lost
	rec, created, err := env.srv.Records.Create(ctxBg, env.srv.School.ID, mod, academic.Data{"name": "Tle C", "level": "Tle"}, tempID)
	require.NoError(t, err)
	require.True(t, created)

	res, err := env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	recs := env.serverRecords(t, mod)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
	local, err := env.store.GetRecord(ctxBg, mod, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, offlinedb.StatusSynced, local.SyncStatus)
}

func TestManager_ProcessQueue_deleteUnknown(t *testing.T) {
	env := setup(t)
	_, err := env.mgr.Enqueue(ctxBg, academic.ModuleStudents, offlinedb.OpDelete, nil, uuid.New().String(), "")
	require.NoError(t, err)

	res, err := env.mgr.ProcessQueue(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Result{Processed: 1}, res)
}

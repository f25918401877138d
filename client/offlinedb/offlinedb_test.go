package offlinedb

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

var ctxBg = context.Background()

func openTestDB(t *testing.T) *DB {
	db, err := Open(filepath.Join(t.TempDir(), "offline.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.sqlite")
	db, err := Open(path)
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.db.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)
	require.NoError(t, db.PutRecord(ctxBg, academic.ModuleClasses, Record{ID: "c1", SchoolID: "s1", SyncStatus: StatusSynced}))
	require.NoError(t, db.Close())

	// reopening keeps the data and does not re-run migrations
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	rec, err := db.GetRecord(ctxBg, academic.ModuleClasses, "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", rec.SchoolID)
}

func TestDB_records(t *testing.T) {
	db := openTestDB(t)
	mod := academic.ModuleStudents

	_, err := db.ListRecords(ctxBg, "lol", "s1")
	assert.Equal(t, ErrUnknownModule, err)
	assert.Equal(t, ErrUnknownModule, db.PutRecord(ctxBg, "lol", Record{ID: "x"}))

	err = db.PutRecord(ctxBg, mod, Record{ID: "x", SchoolID: "s1", SyncStatus: StatusSynced, LocalOnly: true})
	assert.Equal(t, ErrInvalidRecord, err)
	assert.Error(t, db.PutRecord(ctxBg, mod, Record{ID: "x", SchoolID: "s1", SyncStatus: "lol"}))

	recs := []Record{
		{ID: "temp_1", SchoolID: "s1", Data: academic.Data{"firstName": "Awa"}, LastModified: 3, SyncStatus: StatusPending, LocalOnly: true},
		{ID: "srv_1", SchoolID: "s1", Data: academic.Data{"firstName": "Jean"}, LastModified: 1, SyncStatus: StatusSynced},
		{ID: "srv_2", SchoolID: "s1", Data: academic.Data{"firstName": "Paul"}, LastModified: 2, SyncStatus: StatusPending},
		{ID: "srv_3", SchoolID: "s2", Data: academic.Data{"firstName": "Marie"}, LastModified: 1, SyncStatus: StatusSynced},
	}
	for _, rec := range recs {
		require.NoError(t, db.PutRecord(ctxBg, mod, rec))
	}

	got, err := db.ListRecords(ctxBg, mod, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"srv_1", "srv_2", "temp_1"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "Awa", got[2].Data.String("firstName"))
	assert.True(t, got[2].LocalOnly)

	_, err = db.GetRecord(ctxBg, mod, "lol")
	assert.Equal(t, ErrNotFound, err)

	t.Run("ReplaceSynced keeps pending rows", func(t *testing.T) {
		err := db.ReplaceSynced(ctxBg, mod, "s1", []Record{
			{ID: "srv_2", Data: academic.Data{"firstName": "Paul (server)"}, LastModified: 5},
			{ID: "srv_4", Data: academic.Data{"firstName": "Ali"}, LastModified: 6},
		})
		require.NoError(t, err)

		got, err := db.ListRecords(ctxBg, mod, "s1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		byID := make(map[string]Record)
		for _, rec := range got {
			byID[rec.ID] = rec
		}
		assert.NotContains(t, byID, "srv_1")
		assert.Equal(t, "Paul", byID["srv_2"].Data.String("firstName"))
		assert.True(t, byID["srv_2"].Pending())
		assert.Equal(t, StatusSynced, byID["srv_4"].SyncStatus)
		assert.True(t, byID["temp_1"].LocalOnly)

		// other schools are untouched
		other, err := db.ListRecords(ctxBg, mod, "s2")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("RenameRecord", func(t *testing.T) {
		err := db.RenameRecord(ctxBg, mod, "temp_1", Record{
			ID: "srv_5", SchoolID: "s1", Data: academic.Data{"firstName": "Awa"}, LastModified: 7, SyncStatus: StatusSynced,
		})
		require.NoError(t, err)
		_, err = db.GetRecord(ctxBg, mod, "temp_1")
		assert.Equal(t, ErrNotFound, err)
		rec, err := db.GetRecord(ctxBg, mod, "srv_5")
		require.NoError(t, err)
		assert.False(t, rec.LocalOnly)
		assert.Equal(t, StatusSynced, rec.SyncStatus)
	})

	t.Run("DeleteRecord", func(t *testing.T) {
		require.NoError(t, db.DeleteRecord(ctxBg, mod, "srv_5"))
		_, err := db.GetRecord(ctxBg, mod, "srv_5")
		assert.Equal(t, ErrNotFound, err)
	})
}

func TestDB_queue(t *testing.T) {
	db := openTestDB(t)
	mod := academic.ModuleClasses

	_, err := db.Enqueue(ctxBg, QueueItem{Module: "lol", Operation: OpCreate})
	assert.Equal(t, ErrUnknownModule, err)
	_, err = db.Enqueue(ctxBg, QueueItem{Module: mod, Operation: "upsert"})
	assert.Error(t, err)

	first, err := db.Enqueue(ctxBg, QueueItem{
		Module: mod, Operation: OpCreate, Payload: academic.Data{"name": "6e A"}, EntityID: "temp_1", TempID: "temp_1", Timestamp: 1,
	})
	require.NoError(t, err)
	assert.NotZero(t, first.Seq)
	_, err = db.Enqueue(ctxBg, QueueItem{Module: mod, Operation: OpUpdate, Payload: academic.Data{"level": "6e"}, EntityID: "temp_1", Timestamp: 2})
	require.NoError(t, err)
	_, err = db.Enqueue(ctxBg, QueueItem{Module: mod, Operation: OpDelete, EntityID: "srv_9", Timestamp: 3})
	require.NoError(t, err)

	items, err := db.PendingItems(ctxBg)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{OpCreate, OpUpdate, OpDelete}, []string{items[0].Operation, items[1].Operation, items[2].Operation})
	assert.Equal(t, "temp_1", items[0].TempID)
	assert.Empty(t, items[1].TempID)
	assert.Equal(t, "6e A", items[0].Payload.String("name"))

	require.NoError(t, db.MarkAttempt(ctxBg, first.Seq, "boom", 42))
	items, err = db.PendingItems(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, 1, items[0].Attempts)
	assert.Equal(t, "boom", items[0].LastError)
	assert.Equal(t, int64(42), items[0].NextAttemptAt)

	cnt, err := db.RewriteEntityID(ctxBg, mod, "temp_1", "srv_1")
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
	items, err = db.PendingItems(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, "srv_1", items[1].EntityID)

	require.NoError(t, db.DeleteItem(ctxBg, first.Seq))
	cnt, err = db.DeleteItemsForEntity(ctxBg, mod, "srv_1")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	cnt, err = db.CountItems(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}

func TestDB_metaAndCache(t *testing.T) {
	db := openTestDB(t)

	val, err := db.GetMeta(ctxBg, "cache_version")
	require.NoError(t, err)
	assert.Empty(t, val)
	require.NoError(t, db.SetMeta(ctxBg, "cache_version", "v1"))
	require.NoError(t, db.SetMeta(ctxBg, "cache_version", "v2"))
	val, err = db.GetMeta(ctxBg, "cache_version")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)

	_, err = db.GetCached(ctxBg, "http://localhost/app.js")
	assert.Equal(t, ErrNotFound, err)

	resp := CachedResponse{
		URL:      "http://localhost/app.js",
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": {"application/javascript"}},
		Body:     []byte("console.log('ok')"),
		StoredAt: 10,
	}
	require.NoError(t, db.PutCached(ctxBg, resp))
	got, err := db.GetCached(ctxBg, resp.URL)
	require.NoError(t, err)
	assert.Equal(t, resp, got)

	cnt, err := db.PurgeCache(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	_, err = db.GetCached(ctxBg, resp.URL)
	assert.Equal(t, ErrNotFound, err)
}

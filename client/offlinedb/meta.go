package offlinedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	if err := db.db.GetContext(ctx, &value, "SELECT value FROM metadata WHERE key = ?", key); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, "reading metadata")
	}
	return value, nil
}

func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := db.db.ExecContext(ctx, "INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", key, value)
	return errors.Wrap(err, "writing metadata")
}

// CachedResponse is an HTTP response kept for offline use.
type CachedResponse struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt int64 // epoch ms
}

type cacheRow struct {
	URL      string `db:"url"`
	Status   int    `db:"status"`
	Header   string `db:"header"`
	Body     []byte `db:"body"`
	StoredAt int64  `db:"stored_at"`
}

func (db *DB) GetCached(ctx context.Context, url string) (CachedResponse, error) {
	var row cacheRow
	if err := db.db.GetContext(ctx, &row, "SELECT url, status, header, body, stored_at FROM http_cache WHERE url = ?", url); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return CachedResponse{}, ErrNotFound
		}
		return CachedResponse{}, errors.Wrap(err, "reading cache")
	}
	resp := CachedResponse{URL: row.URL, Status: row.Status, Body: row.Body, StoredAt: row.StoredAt}
	if err := json.Unmarshal([]byte(row.Header), &resp.Header); err != nil {
		return CachedResponse{}, errors.Wrap(err, "decoding cached header")
	}
	return resp, nil
}

func (db *DB) PutCached(ctx context.Context, resp CachedResponse) error {
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return errors.Wrap(err, "encoding cached header")
	}
	_, err = db.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO http_cache (url, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?)",
		resp.URL, resp.Status, string(header), resp.Body, resp.StoredAt)
	return errors.Wrap(err, "writing cache")
}

// PurgeCache empties the HTTP cache and returns the number of dropped entries.
func (db *DB) PurgeCache(ctx context.Context) (int, error) {
	res, err := db.db.ExecContext(ctx, "DELETE FROM http_cache")
	if err != nil {
		return 0, errors.Wrap(err, "purging cache")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "purging cache")
}

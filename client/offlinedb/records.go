package offlinedb

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

// Sync statuses
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

const recordColumns = "id, school_id, data, last_modified, sync_status, local_only"

// Record is the local copy of a server record, or a record not yet acknowledged by the server.
type Record struct {
	ID           string        `json:"id"`
	SchoolID     string        `json:"schoolId"`
	Data         academic.Data `json:"data"`
	LastModified int64         `json:"lastModified"` // epoch ms
	SyncStatus   string        `json:"syncStatus"`
	LocalOnly    bool          `json:"localOnly"`
}

func (r Record) Pending() bool {
	return r.SyncStatus == StatusPending
}

func (r Record) check() error {
	switch r.SyncStatus {
	case StatusPending:
	case StatusSynced:
		if r.LocalOnly {
			return ErrInvalidRecord
		}
	default:
		return errors.Errorf("invalid sync status %q", r.SyncStatus)
	}
	return nil
}

type recordRow struct {
	ID           string `db:"id"`
	SchoolID     string `db:"school_id"`
	Data         string `db:"data"`
	LastModified int64  `db:"last_modified"`
	SyncStatus   string `db:"sync_status"`
	LocalOnly    bool   `db:"local_only"`
}

func (r recordRow) record() (Record, error) {
	rec := Record{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		LastModified: r.LastModified,
		SyncStatus:   r.SyncStatus,
		LocalOnly:    r.LocalOnly,
	}
	if err := json.Unmarshal([]byte(r.Data), &rec.Data); err != nil {
		return Record{}, errors.Wrap(err, "decoding record data")
	}
	return rec, nil
}

func encodeData(data academic.Data) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "encoding record data")
	}
	return string(b), nil
}

func putRecord(ctx context.Context, exe sqlx.ExecerContext, tbl string, rec Record, replace bool) error {
	if err := rec.check(); err != nil {
		return err
	}
	data, err := encodeData(rec.Data)
	if err != nil {
		return err
	}
	verb := "INSERT OR IGNORE"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	_, err = exe.ExecContext(ctx,
		verb+" INTO "+tbl+" ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.SchoolID, data, rec.LastModified, rec.SyncStatus, rec.LocalOnly)
	return errors.Wrap(err, "saving record")
}

// PutRecord inserts or replaces rec.
func (db *DB) PutRecord(ctx context.Context, module string, rec Record) error {
	tbl, err := table(module)
	if err != nil {
		return err
	}
	return putRecord(ctx, db.db, tbl, rec, true)
}

func (db *DB) GetRecord(ctx context.Context, module, id string) (Record, error) {
	tbl, err := table(module)
	if err != nil {
		return Record{}, err
	}
	var row recordRow
	if err = db.db.GetContext(ctx, &row, "SELECT "+recordColumns+" FROM "+tbl+" WHERE id = ?", id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, errors.Wrap(err, "finding record")
	}
	return row.record()
}

// ListRecords returns the records of schoolID, oldest modification first.
func (db *DB) ListRecords(ctx context.Context, module, schoolID string) ([]Record, error) {
	tbl, err := table(module)
	if err != nil {
		return nil, err
	}
	var rows []recordRow
	err = db.db.SelectContext(ctx, &rows,
		"SELECT "+recordColumns+" FROM "+tbl+" WHERE school_id = ? ORDER BY last_modified ASC, id ASC", schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "listing records")
	}
	recs := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (db *DB) DeleteRecord(ctx context.Context, module, id string) error {
	tbl, err := table(module)
	if err != nil {
		return err
	}
	_, err = db.db.ExecContext(ctx, "DELETE FROM "+tbl+" WHERE id = ?", id)
	return errors.Wrap(err, "deleting record")
}

// ReplaceSynced swaps the synced records of schoolID for rows.
// Pending records are left untouched and win over a server row with the same id.
func (db *DB) ReplaceSynced(ctx context.Context, module, schoolID string, rows []Record) error {
	tbl, err := table(module)
	if err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tbl+" WHERE school_id = ? AND sync_status = ?", schoolID, StatusSynced); err != nil {
			return errors.Wrap(err, "clearing synced records")
		}
		for _, rec := range rows {
			rec.SchoolID = schoolID
			rec.SyncStatus = StatusSynced
			rec.LocalOnly = false
			if err := putRecord(ctx, tx, tbl, rec, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// RenameRecord re-keys the record stored under tempID to rec.ID once the server created it.
func (db *DB) RenameRecord(ctx context.Context, module, tempID string, rec Record) error {
	tbl, err := table(module)
	if err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tbl+" WHERE id = ?", tempID); err != nil {
			return errors.Wrap(err, "removing temp record")
		}
		return putRecord(ctx, tx, tbl, rec, true)
	})
}

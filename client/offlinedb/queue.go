package offlinedb

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

// Operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

const queueColumns = "seq, module, operation, payload, entity_id, temp_id, timestamp, attempts, last_error, next_attempt_at"

// QueueItem is one local mutation waiting for the server acknowledgement.
type QueueItem struct {
	Seq           int64         `json:"seq"`
	Module        string        `json:"module"`
	Operation     string        `json:"operation"`
	Payload       academic.Data `json:"payload,omitempty"`
	EntityID      string        `json:"entityId"`
	TempID        string        `json:"tempId,omitempty"`
	Timestamp     int64         `json:"timestamp"` // epoch ms
	Attempts      int           `json:"attempts"`
	LastError     string        `json:"lastError,omitempty"`
	NextAttemptAt int64         `json:"nextAttemptAt,omitempty"` // epoch ms
}

type queueRow struct {
	Seq           int64       `db:"seq"`
	Module        string      `db:"module"`
	Operation     string      `db:"operation"`
	Payload       string      `db:"payload"`
	EntityID      string      `db:"entity_id"`
	TempID        null.String `db:"temp_id"`
	Timestamp     int64       `db:"timestamp"`
	Attempts      int         `db:"attempts"`
	LastError     null.String `db:"last_error"`
	NextAttemptAt int64       `db:"next_attempt_at"`
}

func (r queueRow) item() (QueueItem, error) {
	item := QueueItem{
		Seq:           r.Seq,
		Module:        r.Module,
		Operation:     r.Operation,
		EntityID:      r.EntityID,
		TempID:        r.TempID.String,
		Timestamp:     r.Timestamp,
		Attempts:      r.Attempts,
		LastError:     r.LastError.String,
		NextAttemptAt: r.NextAttemptAt,
	}
	if err := json.Unmarshal([]byte(r.Payload), &item.Payload); err != nil {
		return QueueItem{}, errors.Wrap(err, "decoding queue payload")
	}
	return item, nil
}

// Enqueue appends item to the queue and returns it with its sequence number.
func (db *DB) Enqueue(ctx context.Context, item QueueItem) (QueueItem, error) {
	if _, err := table(item.Module); err != nil {
		return QueueItem{}, err
	}
	switch item.Operation {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return QueueItem{}, errors.Errorf("invalid operation %q", item.Operation)
	}
	payload, err := encodeData(item.Payload)
	if err != nil {
		return QueueItem{}, err
	}
	res, err := db.db.ExecContext(ctx,
		"INSERT INTO sync_queue (module, operation, payload, entity_id, temp_id, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		item.Module, item.Operation, payload, item.EntityID, null.NewString(item.TempID, item.TempID != ""), item.Timestamp)
	if err != nil {
		return QueueItem{}, errors.Wrap(err, "enqueuing item")
	}
	if item.Seq, err = res.LastInsertId(); err != nil {
		return QueueItem{}, errors.Wrap(err, "enqueuing item")
	}
	return item, nil
}

// PendingItems returns the whole queue in enqueue order.
func (db *DB) PendingItems(ctx context.Context) ([]QueueItem, error) {
	var rows []queueRow
	if err := db.db.SelectContext(ctx, &rows, "SELECT "+queueColumns+" FROM sync_queue ORDER BY seq ASC"); err != nil {
		return nil, errors.Wrap(err, "listing queue")
	}
	items := make([]QueueItem, 0, len(rows))
	for _, r := range rows {
		item, err := r.item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (db *DB) DeleteItem(ctx context.Context, seq int64) error {
	_, err := db.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE seq = ?", seq)
	return errors.Wrap(err, "deleting queue item")
}

// MarkAttempt records a failed delivery of the item.
func (db *DB) MarkAttempt(ctx context.Context, seq int64, lastErr string, nextAttemptAt int64) error {
	_, err := db.db.ExecContext(ctx,
		"UPDATE sync_queue SET attempts = attempts + 1, last_error = ?, next_attempt_at = ? WHERE seq = ?",
		lastErr, nextAttemptAt, seq)
	return errors.Wrap(err, "marking queue attempt")
}

// RewriteEntityID points the queued items of oldID to newID.
func (db *DB) RewriteEntityID(ctx context.Context, module, oldID, newID string) (int, error) {
	res, err := db.db.ExecContext(ctx, "UPDATE sync_queue SET entity_id = ? WHERE module = ? AND entity_id = ?", newID, module, oldID)
	if err != nil {
		return 0, errors.Wrap(err, "rewriting entity id")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "rewriting entity id")
}

func (db *DB) DeleteItemsForEntity(ctx context.Context, module, entityID string) (int, error) {
	res, err := db.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE module = ? AND entity_id = ?", module, entityID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting entity items")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "deleting entity items")
}

func (db *DB) CountItems(ctx context.Context) (int, error) {
	var cnt int
	if err := db.db.GetContext(ctx, &cnt, "SELECT COUNT(*) FROM sync_queue"); err != nil {
		return 0, errors.Wrap(err, "counting queue")
	}
	return cnt, nil
}

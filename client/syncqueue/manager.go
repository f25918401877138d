// Package syncqueue replays the local mutations of the offline client against the API.
package syncqueue

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/client/api"
	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

const (
	BaseBackoff = 2 * time.Second
	MaxBackoff  = 5 * time.Minute
)

var (
	ErrUnauthorized = errors.New("unauthorized, log in again")
	ErrOffline      = errors.New("server unreachable")
)

type (
	// Store is the part of the offline database the manager works on.
	Store interface {
		Enqueue(ctx context.Context, item offlinedb.QueueItem) (offlinedb.QueueItem, error)
		PendingItems(ctx context.Context) ([]offlinedb.QueueItem, error)
		DeleteItem(ctx context.Context, seq int64) error
		MarkAttempt(ctx context.Context, seq int64, lastErr string, nextAttemptAt int64) error
		RewriteEntityID(ctx context.Context, module, oldID, newID string) (int, error)
		CountItems(ctx context.Context) (int, error)
		GetRecord(ctx context.Context, module, id string) (offlinedb.Record, error)
		PutRecord(ctx context.Context, module string, rec offlinedb.Record) error
		RenameRecord(ctx context.Context, module, tempID string, rec offlinedb.Record) error
	}

	// Remote is the server side of the records.
	Remote interface {
		Create(ctx context.Context, module string, data academic.Data, tempID string) (academic.Record, error)
		Update(ctx context.Context, module, id string, data academic.Data) (academic.Record, error)
		Delete(ctx context.Context, module, id string) error
	}
)

// Result summarizes one ProcessQueue pass.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

type Manager struct {
	store  Store
	remote Remote
	logger core.Logger

	mu sync.Mutex // one pass at a time
}

func NewManager(store Store, remote Remote, logger core.Logger) *Manager {
	return &Manager{store: store, remote: remote, logger: logger}
}

// Backoff returns the delay before the next attempt of an item that failed attempts times.
func Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

// Enqueue appends a mutation to the persisted queue.
func (m *Manager) Enqueue(ctx context.Context, module, operation string, payload academic.Data, entityID, tempID string) (offlinedb.QueueItem, error) {
	return m.store.Enqueue(ctx, offlinedb.QueueItem{
		Module:    module,
		Operation: operation,
		Payload:   payload,
		EntityID:  entityID,
		TempID:    tempID,
		Timestamp: core.Millis(core.NowUTC()),
	})
}

func (m *Manager) Pending(ctx context.Context) ([]offlinedb.QueueItem, error) {
	return m.store.PendingItems(ctx)
}

func entityKey(module, id string) string {
	return module + "/" + id
}

// ProcessQueue sends the queued items one at a time in enqueue order.
// A failed item blocks the later items of the same entity until the next pass.
// A 401 or an unreachable server ends the pass early.
func (m *Manager) ProcessQueue(ctx context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res Result
	items, err := m.store.PendingItems(ctx)
	if err != nil {
		return res, err
	}

	// items still queued per entity, to know when a local row becomes synced
	left := make(map[string]int)
	for _, item := range items {
		left[entityKey(item.Module, item.EntityID)]++
	}
	remapped := make(map[string]string) // temp id -> server id
	blocked := make(map[string]bool)

	var passErr error
	now := core.Millis(core.NowUTC())
	for _, item := range items {
		if err = ctx.Err(); err != nil {
			passErr = err
			break
		}
		if id, ok := remapped[entityKey(item.Module, item.EntityID)]; ok {
			item.EntityID = id
		}
		key := entityKey(item.Module, item.EntityID)
		if blocked[key] || item.NextAttemptAt > now {
			blocked[key] = true
			res.Skipped++
			continue
		}

		err = m.send(ctx, item, left, remapped)
		var lerr localError
		if errors.As(err, &lerr) {
			passErr = lerr.error
			break
		}
		if err == nil {
			if err = m.store.DeleteItem(ctx, item.Seq); err != nil {
				passErr = err
				break
			}
			res.Processed++
			continue
		}

		code := api.StatusCode(err)
		if code == http.StatusUnauthorized {
			passErr = ErrUnauthorized
			break
		}
		if code == 0 {
			if cerr := ctx.Err(); cerr != nil {
				passErr = cerr
			} else {
				passErr = errors.Wrap(ErrOffline, err.Error())
			}
			break
		}

		res.Failed++
		blocked[key] = true
		next := core.NowUTC().Add(Backoff(item.Attempts + 1))
		m.logger.Warn(fmt.Sprintf("sync: %s %s %s failed (attempt %d): %v", item.Operation, item.Module, item.EntityID, item.Attempts+1, err))
		if err = m.store.MarkAttempt(ctx, item.Seq, err.Error(), core.Millis(next)); err != nil {
			passErr = err
			break
		}
	}

	if res.Remaining, err = m.store.CountItems(ctx); err != nil && passErr == nil {
		passErr = err
	}
	return res, passErr
}

// localError marks a failure of the local store, as opposed to an answer of the server.
type localError struct{ error }

func local(err error) error {
	if err == nil {
		return nil
	}
	return localError{err}
}

func (m *Manager) send(ctx context.Context, item offlinedb.QueueItem, left map[string]int, remapped map[string]string) error {
	key := entityKey(item.Module, item.EntityID)

	switch item.Operation {
	case offlinedb.OpCreate:
		tempID := item.TempID
		if tempID == "" {
			tempID = item.EntityID
		}
		rec, err := m.remote.Create(ctx, item.Module, item.Payload, tempID)
		if err != nil {
			return err
		}
		left[key]--
		remapped[key] = rec.ID
		left[entityKey(item.Module, rec.ID)] += left[key]
		if _, err = m.store.RewriteEntityID(ctx, item.Module, item.EntityID, rec.ID); err != nil {
			return local(err)
		}
		return local(m.rekey(ctx, item, rec, left[entityKey(item.Module, rec.ID)] == 0))

	case offlinedb.OpUpdate:
		rec, err := m.remote.Update(ctx, item.Module, item.EntityID, item.Payload)
		if err != nil {
			return err
		}
		left[key]--
		if left[key] == 0 {
			return local(m.markSynced(ctx, item.Module, rec))
		}
		return nil

	case offlinedb.OpDelete:
		err := m.remote.Delete(ctx, item.Module, item.EntityID)
		if err != nil && api.StatusCode(err) != http.StatusNotFound {
			return err
		}
		left[key]--
		return nil
	}
	return errors.Errorf("invalid operation %q", item.Operation)
}

// rekey moves the local row of a created record to its server id.
func (m *Manager) rekey(ctx context.Context, item offlinedb.QueueItem, rec academic.Record, synced bool) error {
	local, err := m.store.GetRecord(ctx, item.Module, item.EntityID)
	if err != nil {
		if err == offlinedb.ErrNotFound {
			return nil
		}
		return err
	}
	local.ID = rec.ID
	local.LocalOnly = false
	if synced {
		local.Data = rec.Data
		local.LastModified = rec.UpdatedAt
		local.SyncStatus = offlinedb.StatusSynced
	}
	return m.store.RenameRecord(ctx, item.Module, item.EntityID, local)
}

func (m *Manager) markSynced(ctx context.Context, module string, rec academic.Record) error {
	local, err := m.store.GetRecord(ctx, module, rec.ID)
	if err != nil {
		if err == offlinedb.ErrNotFound {
			return nil
		}
		return err
	}
	local.Data = rec.Data
	local.LastModified = rec.UpdatedAt
	local.SyncStatus = offlinedb.StatusSynced
	local.LocalOnly = false
	return m.store.PutRecord(ctx, module, local)
}

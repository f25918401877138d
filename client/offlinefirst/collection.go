// Package offlinefirst keeps the entity modules usable offline: writes land in the local
// database first and reach the server through the sync queue once it is reachable.
package offlinefirst

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/client/syncqueue"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

// TempIDPrefix marks the ids of records the server has not acknowledged yet.
const TempIDPrefix = "temp_"

type (
	Store interface {
		PutRecord(ctx context.Context, module string, rec offlinedb.Record) error
		GetRecord(ctx context.Context, module, id string) (offlinedb.Record, error)
		ListRecords(ctx context.Context, module, schoolID string) ([]offlinedb.Record, error)
		DeleteRecord(ctx context.Context, module, id string) error
		ReplaceSynced(ctx context.Context, module, schoolID string, rows []offlinedb.Record) error
		DeleteItemsForEntity(ctx context.Context, module, entityID string) (int, error)
	}

	Lister interface {
		List(ctx context.Context, module string, since int64) ([]academic.Record, error)
	}

	Queue interface {
		Enqueue(ctx context.Context, module, operation string, payload academic.Data, entityID, tempID string) (offlinedb.QueueItem, error)
		Pending(ctx context.Context) ([]offlinedb.QueueItem, error)
		ProcessQueue(ctx context.Context) (syncqueue.Result, error)
	}
)

// Collection is the offline first view of one entity module of a school.
type Collection struct {
	module   string
	schoolID string
	store    Store
	remote   Lister
	queue    Queue
	monitor  Monitor
	logger   core.Logger

	mu sync.Mutex
}

func NewCollection(module, schoolID string, store Store, remote Lister, queue Queue, monitor Monitor, logger core.Logger) (*Collection, error) {
	if !academic.IsModule(module) {
		return nil, offlinedb.ErrUnknownModule
	}
	return &Collection{
		module:   module,
		schoolID: schoolID,
		store:    store,
		remote:   remote,
		queue:    queue,
		monitor:  monitor,
		logger:   logger,
	}, nil
}

func (c *Collection) Module() string {
	return c.module
}

// Items returns the local records, without touching the network.
func (c *Collection) Items(ctx context.Context) ([]offlinedb.Record, error) {
	return c.store.ListRecords(ctx, c.module, c.schoolID)
}

// Create stores data locally under a temp id and queues its creation.
// Data the server would reject never reaches the queue.
func (c *Collection) Create(ctx context.Context, data academic.Data) (offlinedb.Record, error) {
	if data == nil {
		data = academic.Data{}
	}
	if err := data.Validate(c.module, false); err != nil {
		return offlinedb.Record{}, err
	}
	rec := offlinedb.Record{
		ID:           TempIDPrefix + uuid.New().String(),
		SchoolID:     c.schoolID,
		Data:         data,
		LastModified: core.Millis(core.NowUTC()),
		SyncStatus:   offlinedb.StatusPending,
		LocalOnly:    true,
	}
	if err := c.store.PutRecord(ctx, c.module, rec); err != nil {
		return offlinedb.Record{}, err
	}
	if _, err := c.queue.Enqueue(ctx, c.module, offlinedb.OpCreate, data, rec.ID, rec.ID); err != nil {
		return offlinedb.Record{}, err
	}
	c.syncIfOnline(ctx)
	return rec, nil
}

// Update merges patch into the local record and queues the change. A nil value removes the key.
func (c *Collection) Update(ctx context.Context, id string, patch academic.Data) (offlinedb.Record, error) {
	if err := patch.Validate(c.module, true); err != nil {
		return offlinedb.Record{}, err
	}
	rec, err := c.store.GetRecord(ctx, c.module, id)
	if err != nil {
		return offlinedb.Record{}, err
	}
	if rec.Data == nil {
		rec.Data = academic.Data{}
	}
	rec.Data.Merge(patch)
	rec.LastModified = core.Millis(core.NowUTC())
	rec.SyncStatus = offlinedb.StatusPending
	if err = c.store.PutRecord(ctx, c.module, rec); err != nil {
		return offlinedb.Record{}, err
	}
	if _, err = c.queue.Enqueue(ctx, c.module, offlinedb.OpUpdate, patch, id, ""); err != nil {
		return offlinedb.Record{}, err
	}
	c.syncIfOnline(ctx)
	return rec, nil
}

// Remove deletes the local record. A record the server never saw only drops its queued operations.
func (c *Collection) Remove(ctx context.Context, id string) error {
	rec, err := c.store.GetRecord(ctx, c.module, id)
	if err != nil {
		return err
	}
	if err = c.store.DeleteRecord(ctx, c.module, id); err != nil {
		return err
	}
	if rec.LocalOnly {
		_, err = c.store.DeleteItemsForEntity(ctx, c.module, id)
		return err
	}
	if _, err = c.queue.Enqueue(ctx, c.module, offlinedb.OpDelete, nil, id, ""); err != nil {
		return err
	}
	c.syncIfOnline(ctx)
	return nil
}

// Refresh reloads the records from the server when online, and from the local cache otherwise.
// A failed fetch falls back to the cache, the error is returned only when the cache is empty.
func (c *Collection) Refresh(ctx context.Context) ([]offlinedb.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.monitor.Online() {
		return c.Items(ctx)
	}

	recs, err := c.remote.List(ctx, c.module, 0)
	if err != nil {
		cached, cerr := c.Items(ctx)
		if cerr != nil {
			return nil, cerr
		}
		if len(cached) == 0 {
			return nil, errors.Wrapf(err, "fetching %s", c.module)
		}
		c.logger.Warn(fmt.Sprintf("fetching %s failed, serving the local cache: %v", c.module, err))
		return cached, nil
	}

	deleted, err := c.pendingDeletes(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]offlinedb.Record, 0, len(recs))
	for _, rec := range recs {
		if deleted[rec.ID] {
			continue
		}
		rows = append(rows, offlinedb.Record{
			ID:           rec.ID,
			SchoolID:     c.schoolID,
			Data:         rec.Data,
			LastModified: rec.UpdatedAt,
			SyncStatus:   offlinedb.StatusSynced,
		})
	}
	if err = c.store.ReplaceSynced(ctx, c.module, c.schoolID, rows); err != nil {
		return nil, err
	}
	return c.Items(ctx)
}

// pendingDeletes returns the ids removed locally whose deletion the server has not acknowledged.
func (c *Collection) pendingDeletes(ctx context.Context) (map[string]bool, error) {
	items, err := c.queue.Pending(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, item := range items {
		if item.Module == c.module && item.Operation == offlinedb.OpDelete {
			ids[item.EntityID] = true
		}
	}
	return ids, nil
}

// Sync drains the queue then refreshes from the server.
func (c *Collection) Sync(ctx context.Context) (syncqueue.Result, error) {
	res, err := c.queue.ProcessQueue(ctx)
	if err != nil {
		return res, err
	}
	_, err = c.Refresh(ctx)
	return res, err
}

func (c *Collection) syncIfOnline(ctx context.Context) {
	if !c.monitor.Online() {
		return
	}
	if _, err := c.Sync(ctx); err != nil {
		c.logger.Warn(fmt.Sprintf("syncing %s: %v", c.module, err))
	}
}

// Watch syncs every time the monitor goes from offline to online, until ctx is done.
func (c *Collection) Watch(ctx context.Context) {
	changes := c.monitor.Subscribe(ctx)
	for online := range changes {
		if !online {
			continue
		}
		res, err := c.Sync(ctx)
		if err != nil {
			c.logger.Warn(fmt.Sprintf("syncing %s after reconnection: %v", c.module, err))
			continue
		}
		c.logger.Info(fmt.Sprintf("synced %s: %d sent, %d failed, %d left", c.module, res.Processed, res.Failed, res.Remaining))
	}
}

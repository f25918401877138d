// Package offlinedb is the local store of the offline client: one table per entity module,
// the sync queue, a key/value metadata table and the HTTP cache used by swcache.
package offlinedb

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	appfs "github.com/simonmuehling/educafric-app-sub019/fs"
	"github.com/simonmuehling/educafric-app-sub019/storage/database"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "educafric-offline-db.sqlite"

var (
	ErrNotFound      = errors.New("not found in offline database")
	ErrUnknownModule = errors.New("unknown module")
	ErrInvalidRecord = errors.New("local only records must be pending")

	moduleTables = map[string]string{
		academic.ModuleClasses:      "classes",
		academic.ModuleStudents:     "students",
		academic.ModuleTeachers:     "teachers",
		academic.ModuleAcademicData: "academic_data",
	}

	// goose keeps its settings in package globals
	migrateMu sync.Mutex
)

type DB struct {
	db *sqlx.DB
}

// Open opens or creates the database at path, enables WAL and applies the pending migrations.
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}
	db, err := database.OpenSqlite(path)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}
	if err = migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(appfs.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(database.Dialect(db)); err != nil {
		return errors.Wrap(err, "preparing migrations")
	}
	if err := goose.Up(db.DB, appfs.OfflineMigrations); err != nil {
		return errors.Wrap(err, "migrating offline database")
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func table(module string) (string, error) {
	t, ok := moduleTables[module]
	if !ok {
		return "", ErrUnknownModule
	}
	return t, nil
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/amonks/catalog/data"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrDatastoreWrite wraps any failure of an upsert statement. The batch
	// is lost, but its rows are still stale, so the next run picks them up
	// again.
	ErrDatastoreWrite = errors.New("datastore write failed")

	// ErrInvalidRecord means a batch was rejected before reaching the
	// datastore because one of its records couldn't be mapped.
	ErrInvalidRecord = errors.New("invalid record")
)

// DB is the catalog datastore: sqlite for local use and tests, postgres in
// production.
type DB struct {
	*gorm.DB
	now func() time.Time
}

type Option func(*DB)

// WithClock replaces time.Now for freshness timestamps and staleness checks.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// Open connects to the datastore at dsn, creating or migrating tables as
// needed.
//
// dsn is "sqlite:<path>", "file:<path>", or a "postgres://" url. For postgres,
// writeKey is used as the connection password.
func Open(dsn, writeKey string, opts ...Option) (*DB, error) {
	dialector, err := dialectorFor(dsn, writeKey)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening db at '%s': %w", redact(dsn), err)
	}

	db := &DB{DB: gdb, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.AutoMigrate(&data.Artist{}, &data.Album{}, &data.Genre{}); err != nil {
		return nil, fmt.Errorf("error migrating db at '%s': %w", redact(dsn), err)
	}

	return db, nil
}

func dialectorFor(dsn, writeKey string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("error parsing database url: %w", err)
		}
		if writeKey != "" {
			user := "postgres"
			if u.User != nil && u.User.Username() != "" {
				user = u.User.Username()
			}
			u.User = url.UserPassword(user, writeKey)
		}
		return postgres.Open(u.String()), nil
	default:
		return nil, fmt.Errorf("unsupported database url '%s': expected sqlite:, file:, or postgres://", redact(dsn))
	}
}

// redact drops any password from a database url so it can be logged.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

// timestamp is the freshness timestamp for a write happening now.
func (db *DB) timestamp() time.Time {
	return db.now().UTC().Truncate(time.Second)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"hlscache/internal/logging"
	"hlscache/internal/services"
)

// Conventional namespaces.
const (
	NamespaceSegments = "segment"
	NamespaceInputs   = "input"
)

const (
	sqliteBusyCode          = 5
	busyTimeoutMillis       = 5000
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a handle on the record database. It holds no open connection.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	requested map[string]string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for touches and age cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open returns a Store for the database at path, creating the parent
// directory if needed. No connection is kept open.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "recordstore", "open", "database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "recordstore", "open", "create state directory", err)
	}
	s := &Store{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "recordstore"),
		now:       time.Now,
		requested: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) dsn() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", s.path, busyTimeoutMillis)
}

// withDB opens a connection, runs fn with busy retries, and closes it.
func (s *Store) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	ctx = ensureContext(ctx)
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	return retryOnBusy(ctx, func() error {
		return fn(db)
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

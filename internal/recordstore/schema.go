package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"hlscache/internal/logging"
	"hlscache/internal/services"
)

const initLockRetry = 50 * time.Millisecond

// Init switches the database into WAL mode and creates the conventional
// namespaces. It serializes concurrent callers through a lock file next to
// the database and must not run on the request path.
func (s *Store) Init(ctx context.Context) error {
	ctx = ensureContext(ctx)
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, initLockRetry)
	if err != nil {
		return services.Wrap(services.ErrTransient, "recordstore", "init", "acquire init lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrTransient, "recordstore", "init", "init lock not acquired", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	err = s.withDB(ctx, func(db *sql.DB) error {
		var mode string
		if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
		for _, ns := range []string{NamespaceSegments, NamespaceInputs} {
			if err := createTable(ctx, db, ns); err != nil {
				return err
			}
		}
		s.logger.Debug("record store initialized",
			logging.String("path", s.path),
			logging.String("journal_mode", mode),
		)
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "recordstore", "init", "initialize database", err)
	}
	return nil
}

func createTable(ctx context.Context, db *sql.DB, ns string) error {
	table := tableName(ns)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			last_touched INTEGER NOT NULL
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(last_touched)`, quote("idx_"+ns+"_last_touched"), table),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create namespace %s: %w", ns, err)
		}
	}
	return nil
}

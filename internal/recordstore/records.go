package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hlscache/internal/services"
)

// Record is one cache bookkeeping row.
type Record struct {
	Key         string
	LastTouched time.Time
}

// Summary describes the contents of one namespace.
type Summary struct {
	Namespace string
	Count     int
	Oldest    time.Time
	Newest    time.Time
}

// Touch records an access of key at the current time.
func (s *Store) Touch(ctx context.Context, namespace, key string) error {
	return s.TouchAt(ctx, namespace, key, s.now())
}

// TouchAt upserts key with the given access time. Repeated touches keep one
// row whose timestamp is the latest write.
func (s *Store) TouchAt(ctx context.Context, namespace, key string, at time.Time) error {
	if key == "" {
		return services.Wrap(services.ErrValidation, "recordstore", "touch", "empty key", nil)
	}
	ns, err := s.resolve(namespace)
	if err != nil {
		return err
	}
	err = s.withDB(ctx, func(db *sql.DB) error {
		if err := createTable(ctx, db, ns); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (key, last_touched) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET last_touched = excluded.last_touched`, tableName(ns)),
			key, at.UTC().Unix(),
		)
		return err
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "recordstore", "touch", ns+"/"+key, err)
	}
	return nil
}

// FindOlderThan returns keys whose last touch is strictly before
// now - ageMinutes, oldest first.
func (s *Store) FindOlderThan(ctx context.Context, namespace string, ageMinutes int) ([]string, error) {
	ns, err := s.resolve(namespace)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().UTC().Unix() - int64(ageMinutes)*60
	keys, err := s.queryKeys(ctx, ns, fmt.Sprintf(
		`SELECT key FROM %s WHERE last_touched < ? ORDER BY last_touched, key`, tableName(ns)), cutoff)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "recordstore", "find older", ns, err)
	}
	return keys, nil
}

// FindOldest returns up to n keys with the smallest last touch, ascending.
func (s *Store) FindOldest(ctx context.Context, namespace string, n int) ([]string, error) {
	ns, err := s.resolve(namespace)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []string{}, nil
	}
	keys, err := s.queryKeys(ctx, ns, fmt.Sprintf(
		`SELECT key FROM %s ORDER BY last_touched, key LIMIT ?`, tableName(ns)), n)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "recordstore", "find oldest", ns, err)
	}
	return keys, nil
}

// Remove deletes the row for key. A missing row is not an error.
func (s *Store) Remove(ctx context.Context, namespace, key string) error {
	ns, err := s.resolve(namespace)
	if err != nil {
		return err
	}
	err = s.withDB(ctx, func(db *sql.DB) error {
		if err := createTable(ctx, db, ns); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, tableName(ns)), key)
		return err
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "recordstore", "remove", ns+"/"+key, err)
	}
	return nil
}

// List returns up to limit records oldest first. A limit of zero or less
// returns every record.
func (s *Store) List(ctx context.Context, namespace string, limit int) ([]Record, error) {
	ns, err := s.resolve(namespace)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT key, last_touched FROM %s ORDER BY last_touched, key`, tableName(ns))
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var records []Record
	err = s.withDB(ctx, func(db *sql.DB) error {
		records = records[:0]
		if err := createTable(ctx, db, ns); err != nil {
			return err
		}
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				key     string
				touched int64
			)
			if err := rows.Scan(&key, &touched); err != nil {
				return err
			}
			records = append(records, Record{Key: key, LastTouched: time.Unix(touched, 0).UTC()})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "recordstore", "list", ns, err)
	}
	return records, nil
}

// Stats summarizes a namespace.
func (s *Store) Stats(ctx context.Context, namespace string) (Summary, error) {
	ns, err := s.resolve(namespace)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Namespace: ns}
	err = s.withDB(ctx, func(db *sql.DB) error {
		if err := createTable(ctx, db, ns); err != nil {
			return err
		}
		var oldest, newest sql.NullInt64
		row := db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*), MIN(last_touched), MAX(last_touched) FROM %s`, tableName(ns)))
		if err := row.Scan(&summary.Count, &oldest, &newest); err != nil {
			return err
		}
		if oldest.Valid {
			summary.Oldest = time.Unix(oldest.Int64, 0).UTC()
		}
		if newest.Valid {
			summary.Newest = time.Unix(newest.Int64, 0).UTC()
		}
		return nil
	})
	if err != nil {
		return Summary{}, services.Wrap(services.ErrTransient, "recordstore", "stats", ns, err)
	}
	return summary, nil
}

func (s *Store) queryKeys(ctx context.Context, ns, query string, args ...any) ([]string, error) {
	keys := []string{}
	err := s.withDB(ctx, func(db *sql.DB) error {
		keys = keys[:0]
		if err := createTable(ctx, db, ns); err != nil {
			return err
		}
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	return keys, err
}

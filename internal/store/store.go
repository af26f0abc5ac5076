package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-cache/internal/logging"
	"media-cache/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

var (
	// ErrStoreUnavailable wraps every failure of the underlying engine, from
	// open and migration through individual queries.
	ErrStoreUnavailable = errors.New("media store unavailable")

	// ErrNotFound is returned for a normal cache miss.
	ErrNotFound = errors.New("media record not found")
)

var log = logging.For("store")

// Store persists cached media records in SQLite.
//
// Duplicate policy: Put with an origin URL that is already stored is a
// silent no-op and reports inserted=false.
type Store struct {
	db     *sql.DB
	dbPath string

	closeOnce sync.Once
}

// Open opens (creating if necessary) the database file at dbPath and brings
// its schema to the current version. Opening an up-to-date database changes
// nothing. The parent directory must already exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	log.Info("Database path: %s", dbPath)

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: failed to connect to database: %w", ErrStoreUnavailable, err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if err := s.migrate(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after migration failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", ErrStoreUnavailable, err)
	}

	log.Info("Media store ready at %s (schema v%d)", dbPath, SchemaVersion)
	return s, nil
}

// Close closes the database connection. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Ping checks that the engine still answers.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

const recordColumns = `id, original_url, payload, media_kind, cached_at, owner_post_id, content_type, width, height`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	if err := row.Scan(
		&r.ID, &r.OriginalURL, &r.Payload, &r.Kind, &r.CachedAt,
		&r.OwnerPostID, &r.ContentType, &r.Width, &r.Height,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// Get returns the record stored for originalURL, or ErrNotFound.
func (s *Store) Get(ctx context.Context, originalURL string) (*Record, error) {
	return s.getOne(ctx, "get", `SELECT `+recordColumns+` FROM media_cache WHERE original_url = ?`, originalURL)
}

// GetByID returns the record with the given primary id, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	return s.getOne(ctx, "get_by_id", `SELECT `+recordColumns+` FROM media_cache WHERE id = ?`, id)
}

func (s *Store) getOne(ctx context.Context, op, query string, arg string) (*Record, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, arg))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A miss is not a failure
		recordQuery(op, start, nil)
		return nil, ErrNotFound
	case err != nil:
		recordQuery(op, start, err)
		return nil, unavailable(op, err)
	}
	recordQuery(op, start, nil)
	return rec, nil
}

// Put inserts rec. If a record with the same origin URL already exists the
// insert is skipped and inserted is false.
func (s *Store) Put(ctx context.Context, rec *Record) (inserted bool, err error) {
	start := time.Now()
	defer func() { recordQuery("put", start, err) }()

	if rec == nil || rec.ID == "" || rec.OriginalURL == "" {
		return false, fmt.Errorf("invalid record: id and original url are required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
	INSERT INTO media_cache (`+recordColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(original_url) DO NOTHING
	`,
		rec.ID, rec.OriginalURL, rec.Payload, rec.Kind, rec.CachedAt,
		rec.OwnerPostID, rec.ContentType, rec.Width, rec.Height,
	)
	if err != nil {
		return false, unavailable("put", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("put", err)
	}
	if rows == 0 {
		log.Debug("Skipped duplicate insert for %s", rec.OriginalURL)
		metrics.StoreDuplicatePuts.Inc()
		return false, nil
	}
	return true, nil
}

// DeleteOlderThan removes every record with cached_at < thresholdMillis and
// returns how many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, thresholdMillis int64) (deleted int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_older_than", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM media_cache WHERE cached_at < ?`, thresholdMillis)
	if err != nil {
		return 0, unavailable("delete_older_than", err)
	}

	deleted, err = result.RowsAffected()
	if err != nil {
		return 0, unavailable("delete_older_than", err)
	}
	if deleted > 0 {
		metrics.StoreRecordsDeleted.Add(float64(deleted))
	}
	return deleted, nil
}

// GetAll returns every stored record ordered by cache time. It loads every
// payload; use Summarize for counts and sizes.
func (s *Store) GetAll(ctx context.Context) ([]Record, error) {
	return s.list(ctx, "get_all", `SELECT `+recordColumns+` FROM media_cache ORDER BY cached_at, id`)
}

// Summarize returns record counts and payload bytes per media kind without
// loading any payload.
func (s *Store) Summarize(ctx context.Context) (summaries []KindSummary, err error) {
	start := time.Now()
	defer func() { recordQuery("summarize", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
	SELECT media_kind, COUNT(*), COALESCE(SUM(length(payload)), 0)
	FROM media_cache
	GROUP BY media_kind
	ORDER BY media_kind
	`)
	if err != nil {
		return nil, unavailable("summarize", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows for summarize: %v", closeErr)
		}
	}()

	for rows.Next() {
		var ks KindSummary
		if err = rows.Scan(&ks.Kind, &ks.Count, &ks.Bytes); err != nil {
			return nil, unavailable("summarize", err)
		}
		summaries = append(summaries, ks)
	}
	if err = rows.Err(); err != nil {
		return nil, unavailable("summarize", err)
	}
	return summaries, nil
}

// ListByPost returns the records owned by a post.
func (s *Store) ListByPost(ctx context.Context, postID string) ([]Record, error) {
	return s.list(ctx, "list_by_post",
		`SELECT `+recordColumns+` FROM media_cache WHERE owner_post_id = ? ORDER BY cached_at, id`, postID)
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) (records []Record, err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows for %s: %v", op, closeErr)
		}
	}()

	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, unavailable(op, scanErr)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return records, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// recordQuery records store operation metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)
}

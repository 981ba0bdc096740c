package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS claims (
	business_id       TEXT PRIMARY KEY REFERENCES businesses(id),
	website_url       TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL,
	url_source        TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	last_validated_at DATETIME,
	last_result       TEXT,
	metadata          TEXT NOT NULL DEFAULT '{}',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	business       TEXT NOT NULL,
	task           TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_state ON claims(state);
CREATE INDEX IF NOT EXISTS idx_claims_updated_at ON claims(updated_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry_at ON dlq(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertBusiness(ctx context.Context, business model.Business) error {
	data, err := json.Marshal(business)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal business")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO businesses (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		business.ID, string(data), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert business %s", business.ID)
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM businesses WHERE id = ?`, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}

	var b model.Business
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal business")
	}
	return &b, nil
}

func (s *SQLiteStore) CreateClaim(ctx context.Context, claim *model.WebsiteClaim) error {
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	metadata, lastResult, err := marshalClaimJSON(claim)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO claims (business_id, website_url, state, url_source, country,
		                     last_validated_at, last_result, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		claim.BusinessID, claim.WebsiteURL, string(claim.State), string(claim.URLSource),
		claim.Country, claim.LastValidatedAt, lastResult, metadata, now, now,
	)
	return eris.Wrapf(err, "sqlite: insert claim %s", claim.BusinessID)
}

func (s *SQLiteStore) GetClaim(ctx context.Context, businessID string) (*model.WebsiteClaim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT business_id, website_url, state, url_source, country,
		        last_validated_at, last_result, metadata, created_at, updated_at
		 FROM claims WHERE business_id = ?`,
		businessID,
	)

	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get claim %s", businessID)
	}
	return claim, nil
}

func (s *SQLiteStore) UpdateClaim(ctx context.Context, claim *model.WebsiteClaim) error {
	claim.UpdatedAt = time.Now().UTC()

	metadata, lastResult, err := marshalClaimJSON(claim)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET website_url = ?, state = ?, url_source = ?, country = ?,
		        last_validated_at = ?, last_result = ?, metadata = ?, updated_at = ?
		 WHERE business_id = ?`,
		claim.WebsiteURL, string(claim.State), string(claim.URLSource), claim.Country,
		claim.LastValidatedAt, lastResult, metadata, claim.UpdatedAt, claim.BusinessID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update claim %s", claim.BusinessID)
	}
	return checkRowsAffected(res, "claim", claim.BusinessID)
}

func (s *SQLiteStore) ListClaims(ctx context.Context, filter ClaimFilter) ([]model.WebsiteClaim, error) {
	query := `SELECT business_id, website_url, state, url_source, country,
	                 last_validated_at, last_result, metadata, created_at, updated_at
	          FROM claims WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, filter.Country)
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list claims")
	}
	defer rows.Close()

	var claims []model.WebsiteClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim")
		}
		claims = append(claims, *c)
	}
	return claims, eris.Wrap(rows.Err(), "sqlite: list claims iterate")
}

func (s *SQLiteStore) ListStale(ctx context.Context, states []model.ClaimState, olderThan time.Duration, limit int) ([]model.WebsiteClaim, error) {
	if len(states) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	placeholders := strings.Repeat("?,", len(states))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(states)+2)
	for _, st := range states {
		args = append(args, string(st))
	}
	args = append(args, time.Now().UTC().Add(-olderThan), limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT business_id, website_url, state, url_source, country,
		        last_validated_at, last_result, metadata, created_at, updated_at
		 FROM claims WHERE state IN (`+placeholders+`) AND updated_at < ?
		 ORDER BY updated_at ASC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stale claims")
	}
	defer rows.Close()

	var claims []model.WebsiteClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stale claim")
		}
		claims = append(claims, *c)
	}
	return claims, eris.Wrap(rows.Err(), "sqlite: list stale iterate")
}

func (s *SQLiteStore) CountByState(ctx context.Context) (map[model.ClaimState]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM claims GROUP BY state`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by state")
	}
	defer rows.Close()

	counts := make(map[model.ClaimState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.ClaimState(state)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	businessJSON, err := json.Marshal(entry.Business)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dlq business")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dlq (id, business, task, error, error_type, retry_count,
		                  max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(businessJSON), entry.Task, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, business, task, error, error_type, retry_count,
	                 max_retries, next_retry_at, created_at, last_failed_at
	          FROM dlq WHERE next_retry_at <= ?`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.Task != "" {
		query += ` AND task = ?`
		args = append(args, filter.Task)
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var businessJSON string
		if err := rows.Scan(&e.ID, &businessJSON, &e.Task, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if err := json.Unmarshal([]byte(businessJSON), &e.Business); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dlq business")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dlq SET retry_count = retry_count + 1, next_retry_at = ?,
		        error = ?, last_failed_at = ? WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dlq WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove dlq %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalClaimJSON(claim *model.WebsiteClaim) (metadata string, lastResult sql.NullString, err error) {
	metadataBytes, err := json.Marshal(claim.Metadata)
	if err != nil {
		return "", sql.NullString{}, eris.Wrap(err, "marshal claim metadata")
	}

	if claim.LastValidationResult != nil {
		resultBytes, err := json.Marshal(claim.LastValidationResult)
		if err != nil {
			return "", sql.NullString{}, eris.Wrap(err, "marshal validation result")
		}
		lastResult = sql.NullString{String: string(resultBytes), Valid: true}
	}
	return string(metadataBytes), lastResult, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanClaim(row scannable) (*model.WebsiteClaim, error) {
	var c model.WebsiteClaim
	var lastValidatedAt sql.NullTime
	var lastResult sql.NullString
	var metadata string

	err := row.Scan(&c.BusinessID, &c.WebsiteURL, &c.State, &c.URLSource, &c.Country,
		&lastValidatedAt, &lastResult, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastValidatedAt.Valid {
		t := lastValidatedAt.Time
		c.LastValidatedAt = &t
	}
	if lastResult.Valid {
		c.LastValidationResult = &model.ValidationResult{}
		if err := json.Unmarshal([]byte(lastResult.String), c.LastValidationResult); err != nil {
			return nil, eris.Wrap(err, "unmarshal validation result")
		}
	}
	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return nil, eris.Wrap(err, "unmarshal claim metadata")
	}
	return &c, nil
}

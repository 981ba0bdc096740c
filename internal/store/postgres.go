package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sitecheck/internal/db"
	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_business": `INSERT INTO businesses (id, data, created_at, updated_at) VALUES ($1, $2, $3, $4)
	                    ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	"get_business": `SELECT data FROM businesses WHERE id = $1`,
	"insert_claim": `INSERT INTO claims (business_id, website_url, state, url_source, country, last_validated_at, last_result, metadata, created_at, updated_at)
	                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"get_claim": `SELECT business_id, website_url, state, url_source, country, last_validated_at, last_result, metadata, created_at, updated_at FROM claims WHERE business_id = $1`,
	"update_claim": `UPDATE claims SET website_url = $1, state = $2, url_source = $3, country = $4, last_validated_at = $5, last_result = $6, metadata = $7, updated_at = $8 WHERE business_id = $9`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk lead import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// BulkUpsertBusinesses imports a batch of businesses in one COPY-based
// upsert. Row-by-row UpsertBusiness is fine for a handful of records;
// feed imports go through this path.
func (s *PostgresStore) BulkUpsertBusinesses(ctx context.Context, businesses []model.Business) (int64, error) {
	if len(businesses) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(businesses))
	for _, b := range businesses {
		data, err := json.Marshal(b)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal business %s", b.ID)
		}
		rows = append(rows, []any{b.ID, data, now, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "businesses",
		Columns:      []string{"id", "data", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"data", "updated_at"},
	}, rows)
	return n, eris.Wrap(err, "postgres: bulk upsert businesses")
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS claims (
	business_id       TEXT PRIMARY KEY REFERENCES businesses(id),
	website_url       TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL,
	url_source        TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	last_validated_at TIMESTAMPTZ,
	last_result       JSONB,
	metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business       JSONB NOT NULL,
	task           TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_state ON claims(state);
CREATE INDEX IF NOT EXISTS idx_claims_updated_at ON claims(updated_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry_at ON dlq(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertBusiness(ctx context.Context, business model.Business) error {
	data, err := json.Marshal(business)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal business")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO businesses (id, data, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		business.ID, data, now, now,
	)
	return eris.Wrapf(err, "postgres: upsert business %s", business.ID)
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM businesses WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}

	var b model.Business
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal business")
	}
	return &b, nil
}

func (s *PostgresStore) CreateClaim(ctx context.Context, claim *model.WebsiteClaim) error {
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	metadata, lastResult, err := marshalClaimJSONB(claim)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO claims (business_id, website_url, state, url_source, country, last_validated_at, last_result, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		claim.BusinessID, claim.WebsiteURL, string(claim.State), string(claim.URLSource),
		claim.Country, claim.LastValidatedAt, lastResult, metadata, now, now,
	)
	return eris.Wrapf(err, "postgres: insert claim %s", claim.BusinessID)
}

func (s *PostgresStore) GetClaim(ctx context.Context, businessID string) (*model.WebsiteClaim, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT business_id, website_url, state, url_source, country, last_validated_at, last_result, metadata, created_at, updated_at FROM claims WHERE business_id = $1`,
		businessID,
	)

	claim, err := scanClaimPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get claim %s", businessID)
	}
	return claim, nil
}

func (s *PostgresStore) UpdateClaim(ctx context.Context, claim *model.WebsiteClaim) error {
	claim.UpdatedAt = time.Now().UTC()

	metadata, lastResult, err := marshalClaimJSONB(claim)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE claims SET website_url = $1, state = $2, url_source = $3, country = $4, last_validated_at = $5, last_result = $6, metadata = $7, updated_at = $8 WHERE business_id = $9`,
		claim.WebsiteURL, string(claim.State), string(claim.URLSource), claim.Country,
		claim.LastValidatedAt, lastResult, metadata, claim.UpdatedAt, claim.BusinessID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update claim %s", claim.BusinessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("claim not found: %s", claim.BusinessID)
	}
	return nil
}

func (s *PostgresStore) ListClaims(ctx context.Context, filter ClaimFilter) ([]model.WebsiteClaim, error) {
	query := `SELECT business_id, website_url, state, url_source, country, last_validated_at, last_result, metadata, created_at, updated_at FROM claims WHERE 1=1`
	var args []any

	if filter.State != "" {
		args = append(args, string(filter.State))
		query += fmt.Sprintf(` AND state = $%d`, len(args))
	}
	if filter.Country != "" {
		args = append(args, filter.Country)
		query += fmt.Sprintf(` AND country = $%d`, len(args))
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list claims")
	}
	defer rows.Close()

	return collectClaims(rows)
}

func (s *PostgresStore) ListStale(ctx context.Context, states []model.ClaimState, olderThan time.Duration, limit int) ([]model.WebsiteClaim, error) {
	if len(states) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	stateStrs := make([]string, len(states))
	for i, st := range states {
		stateStrs[i] = string(st)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT business_id, website_url, state, url_source, country, last_validated_at, last_result, metadata, created_at, updated_at
		 FROM claims WHERE state = ANY($1) AND updated_at < $2
		 ORDER BY updated_at ASC LIMIT $3`,
		stateStrs, time.Now().UTC().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stale claims")
	}
	defer rows.Close()

	return collectClaims(rows)
}

func (s *PostgresStore) CountByState(ctx context.Context) (map[model.ClaimState]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM claims GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by state")
	}
	defer rows.Close()

	counts := make(map[model.ClaimState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.ClaimState(state)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	businessJSON, err := json.Marshal(entry.Business)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq business")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dlq (id, business, task, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, businessJSON, entry.Task, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, business, task, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at FROM dlq WHERE next_retry_at <= $1`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		args = append(args, filter.ErrorType)
		query += fmt.Sprintf(` AND error_type = $%d`, len(args))
	}
	if filter.Task != "" {
		args = append(args, filter.Task)
		query += fmt.Sprintf(` AND task = $%d`, len(args))
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var businessJSON []byte
		if err := rows.Scan(&e.ID, &businessJSON, &e.Task, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if err := json.Unmarshal(businessJSON, &e.Business); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq business")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dlq SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = $3 WHERE id = $4`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dlq WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove dlq %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count dlq")
}

// helpers

func marshalClaimJSONB(claim *model.WebsiteClaim) (metadata []byte, lastResult []byte, err error) {
	metadata, err = json.Marshal(claim.Metadata)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal claim metadata")
	}

	if claim.LastValidationResult != nil {
		lastResult, err = json.Marshal(claim.LastValidationResult)
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal validation result")
		}
	}
	return metadata, lastResult, nil
}

func scanClaimPG(row pgx.Row) (*model.WebsiteClaim, error) {
	var c model.WebsiteClaim
	var state, urlSource string
	var lastValidatedAt *time.Time
	var lastResult, metadata []byte

	err := row.Scan(&c.BusinessID, &c.WebsiteURL, &state, &urlSource, &c.Country,
		&lastValidatedAt, &lastResult, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.State = model.ClaimState(state)
	c.URLSource = model.URLSource(urlSource)
	c.LastValidatedAt = lastValidatedAt

	if len(lastResult) > 0 {
		c.LastValidationResult = &model.ValidationResult{}
		if err := json.Unmarshal(lastResult, c.LastValidationResult); err != nil {
			return nil, eris.Wrap(err, "unmarshal validation result")
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal claim metadata")
		}
	}
	return &c, nil
}

func collectClaims(rows pgx.Rows) ([]model.WebsiteClaim, error) {
	var claims []model.WebsiteClaim
	for rows.Next() {
		c, err := scanClaimPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan claim")
		}
		claims = append(claims, *c)
	}
	return claims, eris.Wrap(rows.Err(), "postgres: claims iterate")
}

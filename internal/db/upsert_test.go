package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func businessUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "businesses",
		Columns:      []string{"id", "data", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"data", "updated_at"},
	}
}

func TestBulkUpsert_EmptyRowsIsNoop(t *testing.T) {
	n, err := BulkUpsert(nil, nil, businessUpsert(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsertConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no table", UpsertConfig{Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "no table"},
		{"no columns", UpsertConfig{Table: "businesses", ConflictKeys: []string{"id"}}, "no columns"},
		{"no conflict keys", UpsertConfig{Table: "businesses", Columns: []string{"id"}}, "no conflict keys"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	assert.NoError(t, businessUpsert().validate())
}

func TestUpsertConfig_MergeSQL(t *testing.T) {
	sql := businessUpsert().mergeSQL("_tmp_upsert_businesses")
	assert.Equal(t,
		`INSERT INTO "businesses" ("id", "data", "created_at", "updated_at") `+
			`SELECT "id", "data", "created_at", "updated_at" FROM "_tmp_upsert_businesses" `+
			`ON CONFLICT ("id") DO UPDATE SET "data" = EXCLUDED."data", "updated_at" = EXCLUDED."updated_at"`,
		sql,
	)
}

func TestUpsertConfig_MergeSQL_DefaultUpdateCols(t *testing.T) {
	cfg := businessUpsert()
	cfg.UpdateCols = nil

	sql := cfg.mergeSQL(cfg.tempTable())
	// Every non-key column is rewritten when UpdateCols is nil.
	assert.Contains(t, sql, `"created_at" = EXCLUDED."created_at"`)
	assert.NotContains(t, sql, `"id" = EXCLUDED."id"`)
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"businesses"`, quoteTable("businesses"))
	assert.Equal(t, `"audit"."claim_events"`, quoteTable("audit.claim_events"))
}

func TestTempTableName(t *testing.T) {
	assert.Equal(t, "_tmp_upsert_businesses", businessUpsert().tempTable())

	cfg := UpsertConfig{Table: "audit.claim_events"}
	assert.Equal(t, "_tmp_upsert_audit_claim_events", cfg.tempTable())
}

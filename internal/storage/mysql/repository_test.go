package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"ActionKit-Chain/internal/action"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvocation(id string, at time.Time) action.Invocation {
	return action.Invocation{
		ID:        id,
		Action:    "get_balance",
		Provider:  "erc20",
		Network:   "base-sepolia",
		Args:      map[string]any{"token_address": "0xabc"},
		Result:    "Balance of USDC is 1",
		Outcome:   action.OutcomeSucceeded,
		StartedAt: at,
		Duration:  1500 * time.Millisecond,
	}
}

func TestMemoryRepositoryPersistsAndRestores(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewMemoryInvocationRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, repo.Save(ctx, sampleInvocation("a", base)))
	require.NoError(t, repo.Save(ctx, sampleInvocation("b", base.Add(time.Second))))
	require.NoError(t, repo.Save(ctx, sampleInvocation("a", base)), "redelivery is ignored")

	latest, err := repo.ListLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b", latest[0].ID)

	restored, err := NewMemoryInvocationRepository(dir)
	require.NoError(t, err)
	latest, err = restored.ListLatest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "b", latest[0].ID)
	assert.Equal(t, 1500*time.Millisecond, latest[0].Duration)

	content, err := os.ReadFile(filepath.Join(dir, "invocations.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(content))
}

func TestMemoryRepositorySkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invocations.log"), []byte("not json\n{\"id\":\"x\",\"action\":\"a\"}\n"), 0o644))
	repo, err := NewMemoryInvocationRepository(dir)
	require.NoError(t, err)
	latest, err := repo.ListLatest(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "x", latest[0].ID)
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

func TestSQLRepositorySave(t *testing.T) {
	db, drv := newScriptDB(t, execStep(insertInvocationSQL))
	repo := &SQLInvocationRepository{db: db}

	at := time.UnixMilli(1_700_000_000_123)
	require.NoError(t, repo.Save(context.Background(), sampleInvocation("id-1", at)))
	drv.assertDone(t)

	require.Len(t, drv.args, 1)
	args := drv.args[0]
	assert.Equal(t, "id-1", args[0])
	assert.Equal(t, `{"token_address":"0xabc"}`, args[4])
	assert.Equal(t, "succeeded", args[8])
	assert.Equal(t, int64(1_700_000_000_123), args[9])
	assert.Equal(t, int64(1500), args[10])
}

func TestSQLRepositorySaveWithoutArgs(t *testing.T) {
	db, drv := newScriptDB(t, execStep(insertInvocationSQL))
	repo := &SQLInvocationRepository{db: db}

	inv := sampleInvocation("id-2", time.Now())
	inv.Args = nil
	require.NoError(t, repo.Save(context.Background(), inv))
	assert.Nil(t, drv.args[0][4])
}

func TestSQLRepositoryListLatest(t *testing.T) {
	columns := []string{"id", "action", "provider", "network", "args", "result", "error", "error_code", "outcome", "started_at", "duration_ms"}
	db, drv := newScriptDB(t, queryStep(listInvocationsSQL, columns,
		[]driver.Value{"b", "bridge_token", "across", "base-sepolia", nil, "Error bridging token: x", "x", "EXTERNAL_OPERATION", "failed", int64(2000), int64(40)},
		[]driver.Value{"a", "get_balance", "erc20", "base-sepolia", `{"token_address":"0xabc"}`, "ok", "", "", "succeeded", int64(1000), int64(5)},
	))
	repo := &SQLInvocationRepository{db: db}

	got, err := repo.ListLatest(context.Background(), 1000)
	require.NoError(t, err)
	drv.assertDone(t)
	assert.Equal(t, int64(maxListLimit), drv.args[0][0])

	require.Len(t, got, 2)
	assert.Equal(t, action.OutcomeFailed, got[0].Outcome)
	assert.Equal(t, "EXTERNAL_OPERATION", got[0].ErrorCode)
	assert.Nil(t, got[0].Args)
	assert.Equal(t, 40*time.Millisecond, got[0].Duration)
	assert.Equal(t, map[string]any{"token_address": "0xabc"}, got[1].Args)
	assert.Equal(t, time.UnixMilli(1000).UTC(), got[1].StartedAt)
}

func TestRunEmbeddedMigrations(t *testing.T) {
	pending, err := readMigrations(embeddedMigrations)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "0001", pending[0].version)

	db, drv := newScriptDB(t,
		execStep(createMigrationsTableSQL),
		queryStep(`SELECT version FROM schema_migrations`, []string{"version"}),
		beginStep(),
		execStep(pending[0].statements[0]),
		execStep(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
		commitStep(),
	)
	repo := &SQLInvocationRepository{db: db}
	require.NoError(t, repo.runMigrations(context.Background()))
	drv.assertDone(t)
}

func TestMigrateSkipsAppliedAndRollsBack(t *testing.T) {
	source := fstest.MapFS{
		"0001_init.sql": {Data: []byte("-- first\nCREATE TABLE a (id INT);")},
		"0002_more.sql": {Data: []byte("CREATE TABLE b (id INT);\nCREATE TABLE c (id INT);")},
	}
	broken := execStep("CREATE TABLE c (id INT)")
	broken.err = errors.New("boom")

	db, drv := newScriptDB(t,
		execStep(createMigrationsTableSQL),
		queryStep(`SELECT version FROM schema_migrations`, []string{"version"}, []driver.Value{"0001"}),
		beginStep(),
		execStep("CREATE TABLE b (id INT)"),
		broken,
		rollbackStep(),
	)
	err := migrate(context.Background(), db, source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 0002_more.sql")
	drv.assertDone(t)
}

func TestSplitStatementsAndVersion(t *testing.T) {
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, splitStatements("-- c\nSELECT 1;\n\nSELECT 2;\n"))
	assert.Equal(t, "0003", versionOf("0003_add_index.sql"))
	assert.Equal(t, "init", versionOf("init.sql"))
}

func TestOpenRejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
	_, err = Open(context.Background(), Config{DSN: "not a dsn"})
	require.Error(t, err)
}

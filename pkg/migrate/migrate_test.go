package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestReceiptsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_checkout_receipts.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no checkout receipts migration found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS checkout_receipts",
		"CHECK (total_price >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_checkout_receipts_order_id",
		"DROP TABLE IF EXISTS checkout_receipts",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestRunAppliesMigrationsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	runner, err := NewRunner(sqlDB, "sqlite", "migrations")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", runner.Dialect())

	ctx := context.Background()
	require.NoError(t, runner.Up(ctx))
	assert.True(t, conn.Migrator().HasTable("checkout_receipts"))

	files, err := ListDir("migrations")
	require.NoError(t, err)
	version, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, files[len(files)-1].Version, strconv.FormatInt(version, 10))

	require.NoError(t, runner.To(ctx, "0"))
	assert.False(t, conn.Migrator().HasTable("checkout_receipts"))
}

func TestNewRunnerRequiresInputs(t *testing.T) {
	_, err := NewRunner(nil, "postgres", "migrations")
	assert.Error(t, err)
}

func TestCreateSlugsName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	path, err := createAt(dir, "Add Receipt Index!", now)
	require.NoError(t, err)
	assert.Equal(t, "20261017093000_add_receipt_index.sql", filepath.Base(path))

	_, err = createAt(dir, "Add Receipt Index!", now)
	require.Error(t, err, "second create with the same version must fail")

	_, err = createAt(dir, "!!!", now)
	require.Error(t, err)

	files, err := ListDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "add_receipt_index", files[0].Name)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipts.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid migration filename"))
}

func TestCheckAnnotations(t *testing.T) {
	cases := map[string]string{
		"missing down":   "-- +goose Up\nSELECT 1;\n",
		"down before up": "-- +goose Down\n-- +goose Up\n",
		"unterminated":   "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n",
		"stray end":      "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
	}
	for name, body := range cases {
		assert.Error(t, checkAnnotations([]byte(body)), name)
	}
	assert.NoError(t, checkAnnotations([]byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\n")))
}

func TestDialectFor(t *testing.T) {
	got, err := DialectFor("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", got)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

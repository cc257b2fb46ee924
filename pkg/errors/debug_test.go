package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_checkout_receipts_order_id", TableName: "checkout_receipts"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "receipt already recorded for order")

	d := Dump(err)
	if d.Code != CodeConflict || d.Retryable {
		t.Fatalf("unexpected code/retryable %s %v", d.Code, d.Retryable)
	}
	if d.PGCode != "23505" || d.PGConstraint != "idx_checkout_receipts_order_id" || d.PGTable != "checkout_receipts" {
		t.Fatalf("pg fields not extracted: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
}

func TestDumpExtractsPQFields(t *testing.T) {
	err := fmt.Errorf("query: %w", &pq.Error{Code: "40001", Message: "could not serialize access"})
	d := Dump(err)
	if d.PGCode != "40001" || d.PGMessage != "could not serialize access" {
		t.Fatalf("pq fields not extracted: %+v", d)
	}
	if d.Code != "" || !d.Retryable {
		t.Fatalf("untyped error should have no code and be retryable, got %+v", d)
	}
}

func TestDumpExtractsSQLiteCodes(t *testing.T) {
	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	d := Dump(Wrap(CodeInternal, liteErr, "store checkout receipt"))
	if d.SQLiteCode != int(sqlite3.ErrConstraint) || d.SQLiteExtended != int(sqlite3.ErrConstraintUnique) {
		t.Fatalf("sqlite codes not extracted: %+v", d)
	}
	if d.PGCode != "" {
		t.Fatalf("unexpected pg code %q", d.PGCode)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
	if d := Dump(stdErrors.New("plain")); d.TopMessage != "plain" {
		t.Fatalf("unexpected top message %q", d.TopMessage)
	}
}

package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

func TestStateConnUpsertAndSelect(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	for _, payload := range []string{`[]`, `[{"id":"rec1"}]`} {
		if _, err := conn.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2)", []driver.NamedValue{
			{Value: "records"}, {Value: []byte(payload)},
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if got, ok := conn.Payload("records"); !ok || string(got) != `[{"id":"rec1"}]` {
		t.Fatalf("upsert should replace the bucket, got %q", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("next: %v", err)
	}
	if dest[0] != "records" {
		t.Fatalf("unexpected bucket %v", dest[0])
	}
	if err := rows.Next(dest); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}

	if _, err := conn.QueryContext(ctx, "SELECT 1 FROM organisms", nil); err == nil {
		t.Fatalf("expected unsupported query error")
	}
}

package odbcscan

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/slingdata-io/odbcscan/chunk"
)

// =============================================================================
// Scanner Tests (scanner.go)
// =============================================================================

func newTestScanner(t *testing.T, f *fakeDriver, opts ...Option) *Scanner {
	t.Helper()
	s, err := NewScanner(append([]Option{WithAPI(f)}, opts...)...)
	if err != nil {
		t.Fatalf("scanner failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func numbersQuery(f *fakeDriver, n int) {
	q := f.addQuery("SELECT n FROM numbers", &fakeQuery{cols: []fakeCol{{name: "n", sqlType: SQL_BIGINT}}})
	for i := 0; i < n; i++ {
		q.rows = append(q.rows, []any{int64(i)})
	}
}

func TestScanner_Query(t *testing.T) {
	f := newFakeDriver("")
	numbersQuery(f, 5)
	s := newTestScanner(t, f, WithChunkCapacity(2))
	conn, err := s.Connect("DSN=x", "", "")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	r, err := s.Query(context.Background(), conn, "SELECT n FROM numbers", nil, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !r.HasRows() || r.Names()[0] != "n" || r.Types()[0] != chunk.Of(chunk.TypeBigInt) {
		t.Fatalf("unexpected result shape %v %v", r.Names(), r.Types())
	}

	// the connection is held while the result is open
	if _, err := s.Query(context.Background(), conn, "SELECT n FROM numbers", nil, nil); !errors.Is(err, ErrHandleBorrowed) {
		t.Errorf("expected ErrHandleBorrowed, got %v", err)
	}

	var got []int64
	for {
		c, err := r.Next()
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if c == nil {
			break
		}
		if c.Size() > 2 {
			t.Errorf("expected at most 2 rows per chunk, got %d", c.Size())
		}
		got = append(got, chunk.Data[int64](c.Vector(0))[:c.Size()]...)
	}
	if len(got) != 5 || got[4] != 4 {
		t.Errorf("expected 0..4, got %v", got)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("expected a second close to be a no-op, got %v", err)
	}
	if c, err := r.Next(); c != nil || err != nil {
		t.Errorf("expected nothing after close, got %v (%v)", c, err)
	}

	// and handed back afterwards
	r2, err := s.Query(context.Background(), conn, "SELECT n FROM numbers", nil, nil)
	if err != nil {
		t.Fatalf("second query failed: %v", err)
	}
	r2.Close()
}

func TestScanner_QueryWithoutRows(t *testing.T) {
	f := newFakeDriver("")
	f.addQuery("DELETE FROM t", &fakeQuery{rowCount: 7})
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")

	r, err := s.Query(context.Background(), conn, "DELETE FROM t", nil, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if r.HasRows() || r.RowsAffected() != 7 {
		t.Errorf("expected 7 rows affected and no result set, got %d", r.RowsAffected())
	}
	if c, _ := r.Next(); c != nil {
		t.Error("expected no chunks")
	}
	// released without an explicit Close
	if err := s.Disconnect(conn); err != nil {
		t.Errorf("disconnect failed: %v", err)
	}
	if n := f.live(); n != 0 {
		t.Errorf("expected every handle freed, %d left", n)
	}
}

func TestScanner_QueryErrorReturnsConnection(t *testing.T) {
	f := newFakeDriver("")
	numbersQuery(f, 1)
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")

	if _, err := s.Query(context.Background(), conn, "SELEC nope", nil, nil); err == nil {
		t.Fatal("expected a prepare error")
	}
	r, err := s.Query(context.Background(), conn, "SELECT n FROM numbers", nil, nil)
	if err != nil {
		t.Fatalf("expected the connection back after a failure, got %v", err)
	}
	r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Query(ctx, conn, "SELECT n FROM numbers", nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := s.Query(context.Background(), Handle(99), "SELECT 1", nil, nil); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}

func TestScanner_Params(t *testing.T) {
	f := newFakeDriver("")
	f.addQuery("SELECT ?, ?", &fakeQuery{
		cols:   []fakeCol{{name: "a", sqlType: SQL_BIGINT}},
		params: []fakeParam{{sqlType: SQL_BIGINT}, {sqlType: SQL_WVARCHAR, size: 20}},
		rows:   [][]any{{int64(1)}},
	})
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")

	ph, err := s.CreateParams(1, "x")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.BindParams(ph, 42); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		r, err := s.QueryParams(context.Background(), conn, "SELECT ?, ?", ph, nil)
		if err != nil {
			t.Fatalf("query %d failed: %v", i, err)
		}
		r.Close()
		exec := f.lastExecution()
		if boundAs[int64](exec[0]) != 42 || exec[1].text() != "x" {
			t.Errorf("query %d: expected 42 and x bound, got %d and %q", i, boundAs[int64](exec[0]), exec[1].text())
		}
	}

	if err := s.BindParams(ph, struct{}{}); err == nil {
		t.Error("expected an unsupported value to be refused")
	}
	if err := s.DropParams(ph); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	if err := s.BindParams(ph, 1); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}

func TestScanner_NamedParams(t *testing.T) {
	f := newFakeDriver("")
	f.addQuery("SELECT ? + ? + ?", &fakeQuery{
		cols:   []fakeCol{{name: "sum", sqlType: SQL_BIGINT}},
		params: []fakeParam{{sqlType: SQL_BIGINT}, {sqlType: SQL_BIGINT}, {sqlType: SQL_BIGINT}},
		rows:   [][]any{{int64(0)}},
	})
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")

	ph, err := s.CreateNamedParams(map[string]any{"x": 10, "y": 20})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	r, err := s.QueryParams(context.Background(), conn, "SELECT :x + @y + :x", ph, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	r.Close()

	var got []int64
	for _, p := range f.lastExecution() {
		got = append(got, boundAs[int64](p))
	}
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 10 {
		t.Errorf("expected [10 20 10], got %v", got)
	}

	if _, err := s.CreateNamedParams(map[string]any{"bad": struct{}{}}); err == nil {
		t.Error("expected an unsupported value to be refused")
	}
}

func TestScanner_QueryOverrides(t *testing.T) {
	f := newFakeDriver("Microsoft SQL Server")
	f.addQuery("SELECT ts", &fakeQuery{
		cols: []fakeCol{{name: "ts", sqlType: SQL_TYPE_TIMESTAMP, typeName: "datetime2"}},
		rows: [][]any{{SQL_TIMESTAMP_STRUCT{Year: 2024, Month: 1, Day: 1, Fraction: 7}}},
	})
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")

	r, err := s.Query(context.Background(), conn, "SELECT ts", nil, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if r.Types()[0] != chunk.Of(chunk.TypeTimestamp) {
		t.Errorf("expected TIMESTAMP by default, got %s", r.Types()[0])
	}
	r.Close()

	r, err = s.Query(context.Background(), conn, "SELECT ts", nil, &QuirkOverrides{TimestampNS: Bool(true)})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer r.Close()
	if r.Types()[0] != chunk.Of(chunk.TypeTimestampNS) {
		t.Errorf("expected TIMESTAMP_NS with the override, got %s", r.Types()[0])
	}
	c, err := r.Next()
	if err != nil || c == nil {
		t.Fatalf("expected a chunk, got %v", err)
	}
	if ns := chunk.Data[int64](c.Vector(0))[0] % 1000; ns != 7 {
		t.Errorf("expected 7ns kept, got %d", ns)
	}
}

func TestScanner_NextRecord(t *testing.T) {
	f := newFakeDriver("")
	f.addQuery("SELECT id, name", &fakeQuery{
		cols: []fakeCol{{name: "id", sqlType: SQL_INTEGER}, {name: "name", sqlType: SQL_WVARCHAR, nullable: SQL_NULLABLE}},
		rows: [][]any{{int32(1), "a"}, {int32(2), nil}},
	})
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")
	r, err := s.Query(context.Background(), conn, "SELECT id, name", nil, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer r.Close()

	schema, err := r.Schema()
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	if schema.NumFields() != 2 || schema.Field(1).Name != "name" {
		t.Errorf("unexpected schema %s", schema)
	}

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	rec, err := r.NextRecord(mem)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	defer rec.Release()
	if rec.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", rec.NumRows())
	}
	names := rec.Column(1).(*array.String)
	if names.Value(0) != "a" || !names.IsNull(1) {
		t.Errorf("expected [a NULL], got %s", names)
	}
	if rec2, err := r.NextRecord(mem); rec2 != nil || err != nil {
		t.Errorf("expected the end of the result, got %v (%v)", rec2, err)
	}
}

func TestScanner_Catalog(t *testing.T) {
	f := newFakeDriver("")
	f.drivers = []fakeCatalogEntry{{first: "Fake", second: []string{"Driver=libfake.so"}}}
	f.sources = []fakeCatalogEntry{{first: "fake", second: []string{"Fake"}}}
	s := newTestScanner(t, f)

	d, err := s.ListDrivers()
	if err != nil || d.Size() != 1 {
		t.Fatalf("expected one driver, got %v", err)
	}
	if got := chunk.Data[string](d.Vector(1))[0]; got != "Driver=libfake.so" {
		t.Errorf("expected Driver=libfake.so, got %q", got)
	}
	ds, err := s.ListDataSources()
	if err != nil || ds.Size() != 1 {
		t.Fatalf("expected one data source, got %v", err)
	}
}

func TestScanner_Close(t *testing.T) {
	f := newFakeDriver("")
	numbersQuery(f, 3)
	s, err := NewScanner(WithAPI(f))
	if err != nil {
		t.Fatalf("scanner failed: %v", err)
	}
	c1, _ := s.Connect("DSN=a", "", "")
	s.Connect("DSN=b", "", "")
	s.CreateParams(1)

	r, err := s.Query(context.Background(), c1, "SELECT n FROM numbers", nil, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	// the open result still owns its connection
	if c, err := r.Next(); err != nil || c.Size() != 3 {
		t.Errorf("expected the result to stay readable, got %v", err)
	}
	r.Close()
	if n := f.live(); n != 0 {
		t.Errorf("expected every handle freed, %d left", n)
	}
}

func TestScanner_Disconnect(t *testing.T) {
	f := newFakeDriver("")
	numbersQuery(f, 1)
	s := newTestScanner(t, f)
	conn, _ := s.Connect("DSN=x", "", "")

	r, _ := s.Query(context.Background(), conn, "SELECT n FROM numbers", nil, nil)
	if err := s.Disconnect(conn); !errors.Is(err, ErrHandleBorrowed) {
		t.Errorf("expected ErrHandleBorrowed while a result is open, got %v", err)
	}
	r.Close()
	if err := s.Disconnect(conn); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if err := s.Disconnect(conn); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}

// ===== Options =====

func TestNewConfig(t *testing.T) {
	cfg := newConfig()
	if cfg.ChunkCapacity != chunk.DefaultCapacity {
		t.Errorf("expected %d, got %d", chunk.DefaultCapacity, cfg.ChunkCapacity)
	}
	cfg = newConfig(
		WithChunkCapacity(-1),
		WithQuirkOverrides(&QuirkOverrides{DecimalColumnsAsChars: Bool(true)}),
		WithTimestampNS(true),
		WithBufferSizes(64, 128),
		WithLibraryPath("/opt/lib/libodbc.so"),
	)
	if cfg.ChunkCapacity != chunk.DefaultCapacity {
		t.Errorf("expected a non-positive capacity to mean the default, got %d", cfg.ChunkCapacity)
	}
	if cfg.Overrides == nil || !*cfg.Overrides.DecimalColumnsAsChars || !*cfg.Overrides.TimestampNS {
		t.Error("expected the override options to merge")
	}
	if cfg.TextBufferUnits != 64 || cfg.BinaryBufferBytes != 128 || cfg.LibraryPath != "/opt/lib/libodbc.so" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestWithLogger(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	core, logs := observer.New(zap.DebugLevel)
	f := newFakeDriver("PostgreSQL")
	s := newTestScanner(t, f, WithLogger(zap.New(core)))
	if _, err := s.Connect("DSN=x", "", ""); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	entries := logs.FilterMessage("connected").All()
	if len(entries) != 1 {
		t.Fatalf("expected one connected entry, got %d", len(entries))
	}
	if dbms := entries[0].ContextMap()["dbms"]; dbms != "PostgreSQL" {
		t.Errorf("expected dbms PostgreSQL, got %v", dbms)
	}
}

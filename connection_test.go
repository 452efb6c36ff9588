package odbcscan

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// Connection Tests (connection.go)
// =============================================================================

func TestWithCredentials(t *testing.T) {
	tests := []struct {
		connStr, user, password string
		want                    string
	}{
		{"DSN=x", "", "", "DSN=x"},
		{"DSN=x", "sa", "", "DSN=x;UID=sa;"},
		{"DSN=x;", "sa", "secret", "DSN=x;UID=sa;PWD=secret;"},
		{"DSN=x", "sa", "p;w", "DSN=x;UID=sa;PWD={p;w};"},
		{"", "", "a}b c", "PWD={a}}b c};"},
		{"Driver={ODBC Driver 18};Server=h", "u=1", "x", "Driver={ODBC Driver 18};Server=h;UID={u=1};PWD=x;"},
	}
	for _, tt := range tests {
		if got := withCredentials(tt.connStr, tt.user, tt.password); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestQuoteAttribute(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"a;b":     "{a;b}",
		"{x}":     "{{x}}}",
		"with sp": "{with sp}",
		"k=v":     "{k=v}",
	}
	for in, want := range tests {
		if got := quoteAttribute(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestOpen_ResolvesQuirks(t *testing.T) {
	f := newFakeDriver("Microsoft SQL Server")
	c, err := Open(f, "DSN=mssql", "sa", "pw", nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer c.Close()

	if got := f.connStrs[0]; got != "DSN=mssql;UID=sa;PWD=pw;" {
		t.Errorf("expected credentials appended, got %q", got)
	}
	if c.DBMSName() != "Microsoft SQL Server" {
		t.Errorf("expected Microsoft SQL Server, got %q", c.DBMSName())
	}
	if !c.Quirks().TimeColumnsAsSSTime2 {
		t.Errorf("expected SQL Server quirks, got %s", c.Quirks())
	}
	name, err := c.DriverName()
	if err != nil || name != "libfake.so" {
		t.Errorf("expected libfake.so, got %q (%v)", name, err)
	}
}

func TestOpen_LongDBMSName(t *testing.T) {
	long := "DB2/" + strings.Repeat("x", 400)
	f := newFakeDriver(long)
	c := openFake(t, f, nil)
	if c.DBMSName() != long {
		t.Errorf("expected %d characters, got %d", len(long), len(c.DBMSName()))
	}
	if !c.Quirks().DecimalColumnsPrecisionThroughARD {
		t.Error("expected the vendor family prefix to match")
	}
}

func TestOpen_ConnectFailure(t *testing.T) {
	f := newFakeDriver("")
	f.connectErr = &fakeDiag{state: "08001", native: 53, message: "server not found"}

	c, err := Open(f, "DSN=missing", "", "", nil)
	if c != nil {
		t.Error("expected no connection")
	}
	if !IsConnectionError(err) {
		t.Errorf("expected a connection error, got %v", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "SQLDriverConnect" {
		t.Errorf("expected SQLDriverConnect, got %v", err)
	}
	if n := f.live(); n != 0 {
		t.Errorf("expected every handle freed, %d left", n)
	}
}

func TestConnection_PrepareOverrides(t *testing.T) {
	f := newFakeDriver("MySQL")
	f.addQuery("SELECT 1", &fakeQuery{cols: []fakeCol{{name: "one", sqlType: SQL_INTEGER}}})
	c := openFake(t, f, &QuirkOverrides{TimestampMaxFractionPrecision: Int(3)})

	s, err := c.Prepare("SELECT 1", nil)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	defer s.Close()
	if s.Quirks() != c.Quirks() {
		t.Errorf("expected connection quirks, got %s", s.Quirks())
	}

	s2, err := c.Prepare("SELECT 1", &QuirkOverrides{DecimalColumnsAsChars: Bool(false)})
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	defer s2.Close()
	q := s2.Quirks()
	if q.DecimalColumnsAsChars {
		t.Error("expected the statement override to clear DecimalColumnsAsChars")
	}
	if !q.VarLenDataSinglePart {
		t.Error("expected the vendor flags to stay")
	}
	if q.TimestampMaxFractionPrecision != 3 {
		t.Errorf("expected the connection override to stay, got %d", q.TimestampMaxFractionPrecision)
	}
	if !c.Quirks().DecimalColumnsAsChars {
		t.Error("statement overrides must not change the connection")
	}
}

func TestConnection_Close(t *testing.T) {
	f := newFakeDriver("")
	c, err := Open(f, "DSN=x", "", "", nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("expected a second close to be a no-op, got %v", err)
	}
	if n := f.live(); n != 0 {
		t.Errorf("expected every handle freed, %d left", n)
	}
	if _, err := c.DriverName(); !IsKind(err, KindSequence) {
		t.Errorf("expected a sequence error, got %v", err)
	}
	if _, err := c.Prepare("SELECT 1", nil); !IsKind(err, KindSequence) {
		t.Errorf("expected a sequence error, got %v", err)
	}
}

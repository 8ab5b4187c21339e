package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/koustreak/dbmap/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		marker Marker
		want   string
	}{
		{"dollar", "SELECT * FROM t WHERE a = ? AND b = ?", DollarMarker, "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"at p", "UPDATE t SET a = ? WHERE id = ?", AtPMarker, "UPDATE t SET a = @p1 WHERE id = @p2"},
		{"nil marker", "SELECT ?", nil, "SELECT ?"},
		{"no placeholders", "SELECT 1", DollarMarker, "SELECT 1"},
		{"single quoted", "SELECT 'why?' , ?", DollarMarker, "SELECT 'why?' , $1"},
		{"escaped quote", "SELECT 'it''s ?', ?", DollarMarker, "SELECT 'it''s ?', $1"},
		{"double quoted", `SELECT "a?b" FROM t WHERE x = ?`, DollarMarker, `SELECT "a?b" FROM t WHERE x = $1`},
		{"backtick", "SELECT `a?` FROM t WHERE x = ?", DollarMarker, "SELECT `a?` FROM t WHERE x = $1"},
		{"array subscript", "SELECT arr[?] FROM t WHERE x = ?", DollarMarker, "SELECT arr[$1] FROM t WHERE x = $2"},
		{"array slice", "SELECT arr[?:?] FROM t", DollarMarker, "SELECT arr[$1:$2] FROM t"},
		{"line comment", "SELECT ? -- really?\n, ?", DollarMarker, "SELECT $1 -- really?\n, $2"},
		{"block comment", "SELECT /* ? */ ?", DollarMarker, "SELECT /* ? */ $1"},
		{"unterminated literal", "SELECT ?, 'oops ?", DollarMarker, "SELECT $1, 'oops ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rebind(tt.query, tt.marker))
		})
	}
}

func TestRebindBracketed(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"bracketed", "SELECT [a?] FROM t WHERE x = ?", "SELECT [a?] FROM t WHERE x = @p1"},
		{"quoted", "SELECT 'a?', [b] FROM t WHERE x = ?", "SELECT 'a?', [b] FROM t WHERE x = @p1"},
		{"unterminated bracket", "SELECT ?, [oops ?", "SELECT @p1, [oops ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RebindBracketed(tt.query, AtPMarker))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, QuoteIdent("orders"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestRowAccessors(t *testing.T) {
	row := Row{
		"name":   []byte("ada"),
		"count":  int64(3),
		"text":   " 42 ",
		"yes":    "YES",
		"flag":   int64(1),
		"null":   nil,
		"float":  float64(7.9),
		"garble": "x1",
	}

	assert.Equal(t, "ada", row.String("name"))
	assert.Equal(t, "3", row.String("count"))
	assert.Equal(t, "", row.String("null"))
	assert.Equal(t, "", row.String("missing"))

	assert.Nil(t, row.NullString("null"))
	assert.Nil(t, row.NullString("missing"))
	require.NotNil(t, row.NullString("name"))
	assert.Equal(t, "ada", *row.NullString("name"))

	assert.Equal(t, int64(3), row.Int("count", -1))
	assert.Equal(t, int64(42), row.Int("text", -1))
	assert.Equal(t, int64(7), row.Int("float", -1))
	assert.Equal(t, int64(-1), row.Int("garble", -1))
	assert.Equal(t, int64(-1), row.Int("null", -1))

	assert.True(t, row.Bool("yes"))
	assert.True(t, row.Bool("flag"))
	assert.False(t, row.Bool("null"))
	assert.False(t, row.Bool("name"))

	v, ok := row.Value("count")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
}

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string { return "net" }
func (e timeoutErr) Timeout() bool { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestClassifyCommon(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
		ok   bool
	}{
		{"nil", nil, errs.ErrKindUnknown, false},
		{"classified", fmt.Errorf("x: %w", errs.New(errs.ErrKindBusy, "b")), errs.ErrKindBusy, true},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout, true},
		{"cancel", context.Canceled, errs.ErrKindTimeout, true},
		{"no rows", sql.ErrNoRows, errs.ErrKindNotFound, true},
		{"bad conn", driver.ErrBadConn, errs.ErrKindConnectionLost, true},
		{"conn done", sql.ErrConnDone, errs.ErrKindConnectionLost, true},
		{"eof", io.ErrUnexpectedEOF, errs.ErrKindConnectionLost, true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), errs.ErrKindConnectionLost, true},
		{"net timeout", timeoutErr{timeout: true}, errs.ErrKindTimeout, true},
		{"net other", timeoutErr{}, errs.ErrKindConnectionLost, true},
		{"driver specific", errors.New("syntax error"), errs.ErrKindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ClassifyCommon(tt.err)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParams(t *testing.T) {
	p := Params{Host: "db", Options: map[string]string{"tls": "true"}}

	tagged := p.WithClientTag("dbmap 7")
	assert.Equal(t, "dbmap 7", tagged.ClientTag)
	assert.Empty(t, p.ClientTag, "original is untouched")

	tagged.Options["tls"] = "false"
	assert.Equal(t, "true", p.Options["tls"], "options are copied")

	assert.Equal(t, "true", p.Option("tls", "x"))
	assert.Equal(t, "x", p.Option("missing", "x"))
	assert.Equal(t, 3306, p.PortOr(3306))
	assert.Equal(t, "db:3306", p.Addr(3306))
	assert.Equal(t, 10*time.Second, p.Timeout())

	p.Port = 3307
	p.ConnectTimeout = time.Second
	assert.Equal(t, "db:3307", p.Addr(3306))
	assert.Equal(t, time.Second, p.Timeout())
}

type namedDialect struct{ name string }

func (d namedDialect) Name() string { return d.name }
func (namedDialect) Open(context.Context, Params) (Session, error) { return nil, nil }
func (namedDialect) Classify(error) errs.ErrKind { return errs.ErrKindUnknown }
func (namedDialect) Rebind(q string) string { return q }

func TestRegistry(t *testing.T) {
	Register(namedDialect{name: "Registry_Test"})

	d, err := Lookup("registry_test")
	require.NoError(t, err)
	assert.Equal(t, "Registry_Test", d.Name())
	assert.Contains(t, Dialects(), "registry_test")

	_, err = Lookup("nope")
	assert.True(t, errs.IsInvalidInput(err))

	assert.Panics(t, func() { Register(namedDialect{name: "REGISTRY_TEST"}) })
}

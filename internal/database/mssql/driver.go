// Package mssql implements the SQL Server dialect on microsoft/go-mssqldb.
package mssql

import (
	"context"
	"net/url"
	"strconv"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"

	_ "github.com/microsoft/go-mssqldb" // register "sqlserver" driver
)

// Name is the dialect identifier used in configuration.
const Name = "mssql"

// DefaultPort is used when Params.Port is unset.
const DefaultPort = 1433

func init() {
	database.Register(Dialect{})
}

// Dialect is the SQL Server implementation of database.Dialect.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return Name }

// Open implements database.Dialect. The client tag becomes the session's
// app name, visible in sys.dm_exec_sessions.program_name.
func (Dialect) Open(ctx context.Context, p database.Params) (database.Session, error) {
	return database.OpenSession(ctx, "sqlserver", DSN(p), p.Timeout())
}

// Rebind implements database.Dialect, turning ? into @p1, @p2, ...
func (Dialect) Rebind(query string) string {
	return database.RebindBracketed(query, database.AtPMarker)
}

// Introspector returns the catalog reader for this dialect.
func (Dialect) Introspector() schema.Introspector { return NewIntrospector() }

// DSN renders p as a sqlserver:// URL. Options are passed through as query
// parameters (encrypt, TrustServerCertificate, ...).
func DSN(p database.Params) string {
	q := url.Values{}
	for k, v := range p.Options {
		q.Set(k, v)
	}
	if p.Database != "" {
		q.Set("database", p.Database)
	}
	if p.ClientTag != "" {
		q.Set("app name", p.ClientTag)
	}
	q.Set("dial timeout", strconv.Itoa(int(p.Timeout().Seconds())))

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Addr(DefaultPort),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Package postgres implements the PostgreSQL dialect on pgx's database/sql driver.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"

	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" driver
)

// Name is the dialect identifier used in configuration.
const Name = "postgres"

// DefaultPort is used when Params.Port is unset.
const DefaultPort = 5432

func init() {
	database.Register(Dialect{})
}

// Dialect is the PostgreSQL implementation of database.Dialect.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return Name }

// Open implements database.Dialect. The client tag is sent as
// application_name, visible in pg_stat_activity.
func (Dialect) Open(ctx context.Context, p database.Params) (database.Session, error) {
	return database.OpenSession(ctx, "pgx", DSN(p), p.Timeout())
}

// Rebind implements database.Dialect, turning ? into $1, $2, ...
func (Dialect) Rebind(query string) string {
	return database.Rebind(query, database.DollarMarker)
}

// Introspector returns the catalog reader for this dialect.
func (Dialect) Introspector() schema.Introspector { return NewIntrospector() }

// DSN renders p as a libpq key/value connection string. sslmode defaults to
// disable; other options are passed through.
func DSN(p database.Params) string {
	kv := map[string]string{
		"host":            p.Host,
		"port":            fmt.Sprint(p.PortOr(DefaultPort)),
		"user":            p.User,
		"password":        p.Password,
		"dbname":          p.Database,
		"sslmode":         "disable",
		"connect_timeout": fmt.Sprint(int(p.Timeout().Seconds())),
	}
	if p.ClientTag != "" {
		kv["application_name"] = p.ClientTag
	}
	for k, v := range p.Options {
		kv[k] = v
	}

	keys := make([]string, 0, len(kv))
	for k, v := range kv {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + quoteValue(kv[k])
	}
	return strings.Join(parts, " ")
}

// quoteValue single-quotes v when it is empty or contains spaces, quotes or
// backslashes, as the key/value syntax requires.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

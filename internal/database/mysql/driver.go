// Package mysql implements the MySQL / MariaDB dialect on go-sql-driver/mysql.
package mysql

import (
	"context"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/schema"
)

// Name is the dialect identifier used in configuration.
const Name = "mysql"

// DefaultPort is used when Params.Port is unset.
const DefaultPort = 3306

func init() {
	database.Register(Dialect{})
}

// Dialect is the MySQL implementation of database.Dialect.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return Name }

// Open implements database.Dialect. The client tag is sent as the
// program_name connection attribute so it shows in performance_schema.
func (Dialect) Open(ctx context.Context, p database.Params) (database.Session, error) {
	return database.OpenSession(ctx, "mysql", DSN(p), p.Timeout())
}

// Rebind implements database.Dialect; MySQL already uses ? markers.
func (Dialect) Rebind(query string) string { return query }

// Introspector returns the catalog reader for this dialect.
func (Dialect) Introspector() schema.Introspector { return NewIntrospector() }

// DSN renders p as a go-sql-driver/mysql data source name.
//
// Options: "tls" selects a registered TLS config (true, skip-verify, preferred
// or a custom name); "loc" sets the time zone; everything else is passed
// through as a session variable.
func DSN(p database.Params) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = p.Addr(DefaultPort)
	cfg.DBName = p.Database
	cfg.Timeout = p.Timeout()
	cfg.ParseTime = true
	if p.ClientTag != "" {
		cfg.ConnectionAttributes = "program_name:" + strings.NewReplacer(",", " ", ":", " ").Replace(p.ClientTag)
	}

	for k, v := range p.Options {
		switch strings.ToLower(k) {
		case "tls":
			cfg.TLSConfig = v
		case "loc":
			if loc, err := time.LoadLocation(v); err == nil {
				cfg.Loc = loc
			}
		default:
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

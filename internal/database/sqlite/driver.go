// Package sqlite implements the embedded file dialect on modernc.org/sqlite.
package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/schema"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Name is the dialect identifier used in configuration.
const Name = "sqlite"

func init() {
	database.Register(Dialect{})
}

// Dialect is the SQLite implementation of database.Dialect.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return Name }

// Open implements database.Dialect. SQLite has no notion of a client name,
// so the tag only identifies the pooled connection in logs.
func (Dialect) Open(ctx context.Context, p database.Params) (database.Session, error) {
	dsn, err := DSN(p)
	if err != nil {
		return nil, err
	}
	return database.OpenSession(ctx, "sqlite", dsn, p.Timeout())
}

// Rebind implements database.Dialect; SQLite accepts ? natively.
func (Dialect) Rebind(query string) string { return query }

// Introspector returns the catalog reader for this dialect.
func (Dialect) Introspector() schema.Introspector { return NewIntrospector() }

// DSN renders p as a modernc.org/sqlite data source name: the file path
// followed by one _pragma parameter per option. busy_timeout defaults to the
// connect timeout.
func DSN(p database.Params) (string, error) {
	path := p.File
	if path == "" {
		path = p.Database
	}
	if path == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "sqlite: database file is required")
	}

	pragmas := map[string]string{
		"busy_timeout": fmt.Sprint(p.Timeout().Milliseconds()),
	}
	for k, v := range p.Options {
		pragmas[k] = v
	}

	names := make([]string, 0, len(pragmas))
	for k := range pragmas {
		names = append(names, k)
	}
	sort.Strings(names)

	q := url.Values{}
	for _, k := range names {
		q.Add("_pragma", fmt.Sprintf("%s(%s)", k, pragmas[k]))
	}
	return path + "?" + q.Encode(), nil
}

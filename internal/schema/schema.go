// Package schema holds the unified Server/Schema/Table/Column model that
// every dialect's catalog is normalised into, and the contract dialect
// introspectors implement.
package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
)

// Querier runs a catalog query and returns every row. The retrying executor
// satisfies it, so introspection gets the same fault recovery as any other
// statement.
type Querier interface {
	FetchAll(ctx context.Context, stmt string, args ...any) ([]database.Row, error)
}

// Introspector reads one dialect's system catalog and normalises it.
type Introspector interface {
	Introspect(ctx context.Context, q Querier, server string) (*Server, error)
}

// IntrospectorFor returns the catalog reader a dialect provides.
func IntrospectorFor(d database.Dialect) (Introspector, error) {
	p, ok := d.(interface{ Introspector() Introspector })
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("dialect %q cannot be introspected", d.Name()))
	}
	return p.Introspector(), nil
}

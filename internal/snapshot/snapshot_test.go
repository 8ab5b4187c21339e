package snapshot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/database/dbtest"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/executor"
	"github.com/koustreak/dbmap/internal/filestore"
	"github.com/koustreak/dbmap/internal/filestore/filestoretest"
	"github.com/koustreak/dbmap/internal/pool"
	"github.com/koustreak/dbmap/internal/registry"
	"github.com/koustreak/dbmap/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shop(name string) *schema.Server {
	b := schema.NewBuilder(name)
	b.AddColumn("sales", "orders", schema.Column{Name: "id", Position: 1, Type: "int", MaxLength: -1, PrimaryKey: true})
	b.AddColumn("sales", "orders", schema.Column{Name: "note", Position: 2, Type: "varchar", MaxLength: 200, Nullable: true})
	return b.Build()
}

// steppingClock advances one second per call so successive keys sort in write order.
func steppingClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newExporter(t *testing.T) (*Exporter, *filestoretest.Memory) {
	t.Helper()
	store := filestoretest.NewMemory()
	e, err := New(store, "snaps", WithClock(steppingClock()))
	require.NoError(t, err)
	return e, store
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(filestoretest.NewMemory(), "")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestExport_WritesKeyedJSON(t *testing.T) {
	e, store := newExporter(t)
	ctx := context.Background()

	info, err := e.Export(ctx, shop("Shop"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(info.Key, "shop/20240301T120001Z-"), info.Key)
	assert.True(t, strings.HasSuffix(info.Key, ".json"))
	assert.Equal(t, "application/json", info.ContentType)
	assert.Positive(t, info.Size)

	objs, err := store.ListObjects(ctx, "snaps", filestore.ListOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, objs, 1)
}

func TestExport_RejectsUnnamedServer(t *testing.T) {
	e, _ := newExporter(t)
	_, err := e.Export(context.Background(), nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_RoundTrip(t *testing.T) {
	e, _ := newExporter(t)
	ctx := context.Background()

	info, err := e.Export(ctx, shop("shop"))
	require.NoError(t, err)

	srv, err := e.Load(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, "shop", srv.Name())

	col, err := srv.Lookup("sales", "orders", "note")
	require.NoError(t, err)
	assert.Equal(t, 200, col.MaxLength)
	assert.True(t, col.Nullable)

	_, err = e.Load(ctx, "shop/missing.json")
	assert.True(t, errs.IsNotFound(err))
}

func TestListAndLatest(t *testing.T) {
	e, _ := newExporter(t)
	ctx := context.Background()

	_, err := e.Export(ctx, shop("shop"))
	require.NoError(t, err)

	newer := schema.NewBuilder("shop")
	newer.AddColumn("sales", "refunds", schema.Column{Name: "id", Position: 1, Type: "int", MaxLength: -1})
	_, err = e.Export(ctx, newer.Build())
	require.NoError(t, err)

	_, err = e.Export(ctx, shop("shopping"))
	require.NoError(t, err)

	objs, err := e.List(ctx, "SHOP")
	require.NoError(t, err)
	require.Len(t, objs, 2, "prefix must not match other servers")
	assert.Less(t, objs[0].Key, objs[1].Key)

	latest, err := e.Latest(ctx, "shop")
	require.NoError(t, err)
	_, err = latest.Table("sales", "refunds")
	assert.NoError(t, err)

	_, err = e.Latest(ctx, "unknown")
	assert.True(t, errs.IsNotFound(err))
}

type introspectFunc func(ctx context.Context, q schema.Querier, server string) (*schema.Server, error)

func (f introspectFunc) Introspect(ctx context.Context, q schema.Querier, server string) (*schema.Server, error) {
	return f(ctx, q, server)
}

func TestExportAll(t *testing.T) {
	e, _ := newExporter(t)
	ctx := context.Background()

	exec := executor.New(pool.New(&dbtest.Dialect{}, database.Params{}), executor.DefaultConfig())
	t.Cleanup(func() { _ = exec.Close() })

	in := introspectFunc(func(_ context.Context, _ schema.Querier, server string) (*schema.Server, error) {
		return shop(server), nil
	})

	reg := registry.New()
	require.NoError(t, reg.MapServers(ctx, registry.MapOptions{Wait: true},
		registry.Target{Name: "alpha", Executor: exec, Introspector: in},
		registry.Target{Name: "beta", Executor: exec, Introspector: in},
	))

	written, err := e.ExportAll(ctx, reg)
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.True(t, strings.HasPrefix(written[0].Key, "alpha/"))
	assert.True(t, strings.HasPrefix(written[1].Key, "beta/"))
}

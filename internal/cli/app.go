package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koustreak/dbmap/internal/config"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/executor"
	"github.com/koustreak/dbmap/internal/filestore/minio"
	"github.com/koustreak/dbmap/internal/logger"
	"github.com/koustreak/dbmap/internal/pool"
	"github.com/koustreak/dbmap/internal/registry"
	"github.com/koustreak/dbmap/internal/snapshot"
)

// app owns the executors built from config for one command run.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	executors map[string]*executor.Executor
	order     []string
}

// newApp opens a pool and executor per configured server. Only names
// are used when non-empty. Pools open sessions lazily, so nothing connects yet.
func newApp(cfg *config.Config, log *logger.Logger, names ...string) (*app, error) {
	servers := cfg.Servers
	if len(names) > 0 {
		servers = servers[:0:0]
		for _, n := range names {
			s, ok := cfg.Server(n)
			if !ok {
				return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("server %q is not configured", n))
			}
			servers = append(servers, s)
		}
	}
	if len(servers) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "no servers configured")
	}

	a := &app{cfg: cfg, log: log, executors: make(map[string]*executor.Executor, len(servers))}
	for _, s := range servers {
		d, err := database.Lookup(s.Dialect)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		slog := log.With().Str("server", s.Name).Logger()
		p := pool.New(d, s.Params(cfg.ConnectTimeout), pool.WithLogger(slog))
		a.executors[strings.ToLower(s.Name)] = executor.New(p, cfg.Retry.Executor(), executor.WithLogger(slog))
		a.order = append(a.order, s.Name)
	}
	return a, nil
}

func (a *app) executor(name string) (*executor.Executor, error) {
	e, ok := a.executors[strings.ToLower(name)]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("server %q is not configured", name))
	}
	return e, nil
}

func (a *app) targets() []registry.Target {
	out := make([]registry.Target, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, registry.Target{Name: name, Executor: a.executors[strings.ToLower(name)]})
	}
	return out
}

// mapServers populates a fresh registry, waiting for every server.
func (a *app) mapServers(ctx context.Context, concurrency int) (*registry.Registry, error) {
	reg := registry.New(registry.WithLogger(a.log))
	err := reg.MapServers(ctx, registry.MapOptions{Wait: true, Concurrency: concurrency}, a.targets()...)
	return reg, err
}

// exporter connects to the configured snapshot store.
func (a *app) exporter(ctx context.Context) (*snapshot.Exporter, error) {
	sc := a.cfg.Snapshot
	if !sc.Enabled() {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot.endpoint is not configured")
	}
	store, err := minio.New(ctx, sc.Store())
	if err != nil {
		return nil, err
	}
	return snapshot.New(store, sc.Bucket, snapshot.WithLogger(a.log))
}

func (a *app) close() error {
	var errList []error
	for _, e := range a.executors {
		if err := e.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

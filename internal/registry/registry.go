// Package registry maps database servers into the unified schema model and
// keeps the result addressable by server name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/executor"
	"github.com/koustreak/dbmap/internal/logger"
	"github.com/koustreak/dbmap/internal/schema"
	"golang.org/x/sync/errgroup"
)

// Target is one server to map.
type Target struct {
	Name     string
	Executor *executor.Executor

	// Introspector defaults to the one the executor's dialect provides.
	Introspector schema.Introspector
}

// Entry is a mapped server together with the executor that reaches it.
type Entry struct {
	Server   *schema.Server
	Executor *executor.Executor
	MappedAt time.Time
	Took     time.Duration
}

// MapOptions controls MapServers.
type MapOptions struct {
	// Wait blocks until every target is mapped and returns their errors.
	// Otherwise mapping runs in the background and failures are only logged.
	Wait bool

	// Override remaps even when the registry is already populated. Entries
	// are replaced per server; servers not in the new target list stay.
	Override bool

	// Concurrency caps simultaneous mappings; 0 means one goroutine per target.
	Concurrency int
}

// Registry is safe for concurrent use.
type Registry struct {
	log *logger.Logger
	now func() time.Time

	mu        sync.RWMutex
	entries   map[string]Entry
	populated bool

	inflight sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:     logger.Nop(),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Component("registry")
	return r
}

// MapServers introspects every target concurrently. When the registry was
// already populated and opts.Override is false it does nothing.
func (r *Registry) MapServers(ctx context.Context, opts MapOptions, targets ...Target) error {
	prepared, err := prepare(targets)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.populated && !opts.Override {
		r.mu.Unlock()
		r.log.Debug("registry already populated, skipping")
		return nil
	}
	r.populated = true
	r.mu.Unlock()

	if opts.Wait {
		return r.mapAll(ctx, opts.Concurrency, prepared)
	}

	// Background mapping outlives the caller's request.
	bg := context.WithoutCancel(ctx)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		if err := r.mapAll(bg, opts.Concurrency, prepared); err != nil {
			r.log.Zerolog().Error().Err(err).Msg("background mapping finished with errors")
		}
	}()
	return nil
}

func prepare(targets []Target) ([]Target, error) {
	out := make([]Target, len(targets))
	for i, t := range targets {
		if t.Name == "" {
			return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("target %d has no name", i))
		}
		if t.Executor == nil {
			return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("target %q has no executor", t.Name))
		}
		if t.Introspector == nil {
			in, err := schema.IntrospectorFor(t.Executor.Dialect())
			if err != nil {
				return nil, err
			}
			t.Introspector = in
		}
		out[i] = t
	}
	return out, nil
}

func (r *Registry) mapAll(ctx context.Context, limit int, targets []Target) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, t := range targets {
		g.Go(func() error {
			if err := r.mapOne(ctx, t); err != nil {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
			}
			// Every target runs to completion; errors are joined below.
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(failed...)
}

func (r *Registry) mapOne(ctx context.Context, t Target) error {
	start := r.now()
	srv, err := t.Introspector.Introspect(ctx, t.Executor, t.Name)
	if err != nil {
		r.log.Zerolog().Warn().Err(err).Str("server", t.Name).Msg("mapping failed")
		return fmt.Errorf("map %s: %w", t.Name, err)
	}
	took := r.now().Sub(start)

	r.mu.Lock()
	r.entries[strings.ToLower(t.Name)] = Entry{
		Server:   srv,
		Executor: t.Executor,
		MappedAt: start,
		Took:     took,
	}
	r.mu.Unlock()

	r.log.Zerolog().Info().
		Str("server", t.Name).
		Int("schemas", srv.Len()).
		Dur("took", took).
		Msg("server mapped")
	return nil
}

// Wait blocks until background mappings started by MapServers finish.
func (r *Registry) Wait() {
	r.inflight.Wait()
}

// Lookup returns the entry for name, ignoring case.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(name)]
	return e, ok
}

// Server returns the mapped server called name.
func (r *Registry) Server(name string) (*schema.Server, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("server %q is not mapped", name))
	}
	return e.Server, nil
}

// Names returns the mapped server names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Server.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// Populated reports whether MapServers has run since creation or Reset.
func (r *Registry) Populated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.populated
}

// Reset forgets every entry so the next MapServers maps from scratch.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]Entry)
	r.populated = false
}

// Package pool owns the physical sessions of one logical database.
//
// A connection is always in exactly one place while alive: the free list
// (idle, reusable) or the running set (checked out). Every connection ever
// opened and not yet discarded is also tracked in the all set, which Close
// tears down. The pool never blocks callers waiting for a free connection:
// when the free list is empty Acquire opens a new session, so the pool only
// grows, and shrinks only through Discard.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/logger"
)

// Conn is one pooled physical session. It is only valid between Acquire and
// the matching Release / Discard.
type Conn struct {
	session database.Session
	id      uint64
	tag     string
	created time.Time
}

// ID is the pool-local sequence number the connection was opened with.
func (c *Conn) ID() uint64 { return c.id }

// Tag is the client identifier sent to the server when the session opened.
func (c *Conn) Tag() string { return c.tag }

// CreatedAt is when the session was opened.
func (c *Conn) CreatedAt() time.Time { return c.created }

// Session exposes the underlying driver session.
func (c *Conn) Session() database.Session { return c.session }

// QueryContext runs a query on this connection's session.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.session.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement on this connection's session.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.session.ExecContext(ctx, query, args...)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	All       int    `json:"all"`       // open connections (running + free)
	Running   int    `json:"running"`   // checked out
	Free      int    `json:"free"`      // idle
	Created   uint64 `json:"created"`   // sessions opened over the pool's lifetime
	Discarded uint64 `json:"discarded"` // sessions dropped after a fault
}

// Pool hands out and reclaims connections for one dialect and parameter set.
// It is safe for concurrent use by multiple goroutines.
type Pool struct {
	id      string
	dialect database.Dialect
	params  database.Params
	log     *logger.Logger

	mu        sync.Mutex
	all       map[*Conn]struct{}
	running   map[*Conn]struct{}
	free      []*Conn
	seq       uint64
	discarded uint64
	closed    bool

	done    chan struct{}  // closed by Close to cut deferred releases short
	pending sync.WaitGroup // deferred releases in flight
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool's logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates an empty pool; sessions are opened lazily by Acquire.
func New(d database.Dialect, params database.Params, opts ...Option) *Pool {
	p := &Pool{
		id:      uuid.NewString(),
		dialect: d,
		params:  params,
		log:     logger.Nop(),
		all:     make(map[*Conn]struct{}),
		running: make(map[*Conn]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("pool", p.id).Str("dialect", d.Name()).Logger()
	return p
}

// ID returns the pool's unique identifier, used in log fields.
func (p *Pool) ID() string { return p.id }

// Dialect returns the dialect the pool opens sessions with.
func (p *Pool) Dialect() database.Dialect { return p.dialect }

// Acquire checks out a connection: the most recently freed one if any,
// otherwise a newly opened session tagged "<client tag> <seq>".
//
// Opening runs outside the lock, so concurrent misses each open their own
// session; the surplus simply ends up on the free list afterwards.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errs.New(errs.ErrKindClosed, "pool is closed")
	}
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.running[c] = struct{}{}
		p.mu.Unlock()
		return c, nil
	}
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	tag := fmt.Sprintf("%s %d", p.tagBase(), seq)
	session, err := p.dialect.Open(ctx, p.params.WithClientTag(tag))
	if err != nil {
		p.log.Zerolog().Warn().Err(err).Str("tag", tag).Msg("failed to open session")
		return nil, err
	}

	c := &Conn{session: session, id: seq, tag: tag, created: time.Now()}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = session.Close()
		return nil, errs.New(errs.ErrKindClosed, "pool closed while opening session")
	}
	p.all[c] = struct{}{}
	p.running[c] = struct{}{}
	size := len(p.all)
	p.mu.Unlock()

	p.log.Zerolog().Debug().Uint64("conn_id", seq).Str("tag", tag).Int("size", size).Msg("session opened")
	return c, nil
}

// Release returns a running connection to the free list. The caller must
// not use c afterwards without acquiring it again.
func (p *Pool) Release(c *Conn) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.New(errs.ErrKindClosed, "pool is closed")
	}
	if _, ok := p.running[c]; !ok {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("connection %d is not checked out", c.id))
	}
	delete(p.running, c)
	p.free = append(p.free, c)
	return nil
}

// Discard closes c and forgets it. Used when a fault left the session unusable.
func (p *Pool) Discard(c *Conn) error {
	p.mu.Lock()
	if _, ok := p.all[c]; !ok {
		p.mu.Unlock()
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("connection %d does not belong to this pool", c.id))
	}
	delete(p.all, c)
	delete(p.running, c)
	for i, f := range p.free {
		if f == c {
			p.free = append(p.free[:i], p.free[i+1:]...)
			break
		}
	}
	p.discarded++
	p.mu.Unlock()

	if err := c.session.Close(); err != nil {
		// The session is usually already broken; closing it is best effort.
		p.log.Zerolog().Debug().Err(err).Uint64("conn_id", c.id).Msg("close of discarded session failed")
	}
	p.log.Zerolog().Debug().Uint64("conn_id", c.id).Str("tag", c.tag).Msg("session discarded")
	return nil
}

// ReleaseAfter releases c once delay has elapsed, without blocking the
// caller. Until then c stays in the running set, so no other caller can
// acquire it while the server settles. On a closed pool it does nothing;
// Close has already shut every session down.
func (p *Pool) ReleaseAfter(c *Conn, delay time.Duration) {
	// Add under mu so it cannot race with pending.Wait in Close.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.pending.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-p.done:
			return
		}

		if err := p.Release(c); err != nil {
			p.log.Zerolog().Warn().Err(err).Uint64("conn_id", c.id).Msg("deferred release failed")
			return
		}
		p.log.Zerolog().Debug().Uint64("conn_id", c.id).Dur("delay", delay).Msg("session settled")
	}()
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		All:       len(p.all),
		Running:   len(p.running),
		Free:      len(p.free),
		Created:   p.seq,
		Discarded: p.discarded,
	}
}

// Close closes every session the pool has opened, running or free, and
// waits for deferred releases to stop. It is safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)

	conns := make([]*Conn, 0, len(p.all))
	for c := range p.all {
		conns = append(conns, c)
	}
	p.all = make(map[*Conn]struct{})
	p.running = make(map[*Conn]struct{})
	p.free = nil
	p.mu.Unlock()

	p.pending.Wait()

	var errList []error
	for _, c := range conns {
		if err := c.session.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close connection %d: %w", c.id, err))
		}
	}
	p.log.Zerolog().Debug().Int("closed", len(conns)).Msg("pool closed")
	return errors.Join(errList...)
}

func (p *Pool) tagBase() string {
	if p.params.ClientTag != "" {
		return p.params.ClientTag
	}
	return database.DefaultClientTag
}

// Package snapshot writes mapped schema trees to object storage and reads
// them back, so a mapping can be compared or browsed after the servers are gone.
//
// Objects are keyed "<server>/<UTC timestamp>-<uuid>.json"; keys under one
// server therefore sort oldest first.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/filestore"
	"github.com/koustreak/dbmap/internal/logger"
	"github.com/koustreak/dbmap/internal/registry"
	"github.com/koustreak/dbmap/internal/schema"
)

const (
	contentType = "application/json"
	timeLayout  = "20060102T150405Z"
)

// Exporter is safe for concurrent use if its store is.
type Exporter struct {
	store  filestore.Store
	bucket string
	log    *logger.Logger
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source used for object keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an exporter writing to bucket.
func New(store filestore.Store, bucket string, opts ...Option) (*Exporter, error) {
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot bucket is required")
	}
	e := &Exporter{store: store, bucket: bucket, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Component("snapshot")
	return e, nil
}

// Bucket returns the bucket snapshots are written to.
func (e *Exporter) Bucket() string { return e.bucket }

// Export stores srv and returns the written object.
func (e *Exporter) Export(ctx context.Context, srv *schema.Server) (*filestore.ObjectInfo, error) {
	if srv == nil || srv.Name() == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "cannot snapshot an unnamed server")
	}
	if err := e.store.EnsureBucket(ctx, e.bucket); err != nil {
		return nil, err
	}

	data, err := json.Marshal(srv)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("encode server %q", srv.Name()), err)
	}

	key := fmt.Sprintf("%s%s-%s.json", prefix(srv.Name()), e.now().UTC().Format(timeLayout), uuid.NewString())
	info, err := e.store.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, err
	}

	e.log.With().
		Str("server", srv.Name()).
		Str("key", info.Key).
		Int("bytes", len(data)).
		Logger().
		Info("snapshot written")
	return info, nil
}

// ExportAll snapshots every server in reg. Failures do not stop the
// remaining servers; they are joined into the returned error.
func (e *Exporter) ExportAll(ctx context.Context, reg *registry.Registry) ([]filestore.ObjectInfo, error) {
	var (
		out     []filestore.ObjectInfo
		errList []error
	)
	for _, name := range reg.Names() {
		srv, err := reg.Server(name)
		if err != nil {
			errList = append(errList, err)
			continue
		}
		info, err := e.Export(ctx, srv)
		if err != nil {
			errList = append(errList, fmt.Errorf("snapshot %s: %w", name, err))
			continue
		}
		out = append(out, *info)
	}
	return out, errors.Join(errList...)
}

// List returns the snapshots of server, oldest first.
func (e *Exporter) List(ctx context.Context, server string) ([]filestore.ObjectInfo, error) {
	objs, err := e.store.ListObjects(ctx, e.bucket, filestore.ListOptions{
		Prefix:    prefix(server),
		Recursive: true,
	})
	if err != nil {
		return nil, err
	}

	out := objs[:0]
	for _, o := range objs {
		if !o.IsDir && strings.HasSuffix(o.Key, ".json") {
			out = append(out, o)
		}
	}
	return out, nil
}

// Load decodes the snapshot stored at key.
func (e *Exporter) Load(ctx context.Context, key string) (*schema.Server, error) {
	obj, err := e.store.GetObject(ctx, e.bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("read snapshot %s", key), err)
	}

	var srv schema.Server
	if err := json.Unmarshal(data, &srv); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("decode snapshot %s", key), err)
	}
	return &srv, nil
}

// Latest loads the most recent snapshot of server.
func (e *Exporter) Latest(ctx context.Context, server string) (*schema.Server, error) {
	objs, err := e.List(ctx, server)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("no snapshot of server %q", server))
	}
	return e.Load(ctx, objs[len(objs)-1].Key)
}

func prefix(server string) string {
	return strings.ToLower(server) + "/"
}

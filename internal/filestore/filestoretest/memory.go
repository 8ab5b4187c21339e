// Package filestoretest provides an in-memory filestore.Store for tests.
package filestoretest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/filestore"
)

type stored struct {
	data []byte
	info filestore.ObjectInfo
}

// Memory keeps buckets and objects in maps. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]stored
	closed  bool

	// Now stamps LastModified; defaults to time.Now.
	Now func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string]stored), Now: time.Now}
}

var _ filestore.Store = (*Memory)(nil)

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.New(errs.ErrKindClosed, "store is closed")
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) EnsureBucket(_ context.Context, bucket string) error {
	if bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "bucket name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]stored)
	}
	return nil
}

func (m *Memory) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) (*filestore.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read object body", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objs, ok := m.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("bucket %q does not exist", bucket))
	}
	sum := md5.Sum(data)
	info := filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: m.Now().UTC(),
	}
	objs[key] = stored{data: data, info: info}
	return &info, nil
}

func (m *Memory) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("object %s/%s does not exist", bucket, key))
	}
	info := obj.info
	return &object{ReadCloser: io.NopCloser(bytes.NewReader(obj.data)), info: &info}, nil
}

func (m *Memory) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objs, ok := m.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("bucket %q does not exist", bucket))
	}

	keys := make([]string, 0, len(objs))
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []filestore.ObjectInfo
	dirs := make(map[string]bool)
	for _, k := range keys {
		if !strings.HasPrefix(k, opts.Prefix) || (opts.StartAfter != "" && k <= opts.StartAfter) {
			continue
		}
		if !opts.Recursive {
			if i := strings.Index(k[len(opts.Prefix):], "/"); i >= 0 {
				dir := k[:len(opts.Prefix)+i+1]
				if !dirs[dir] {
					dirs[dir] = true
					out = append(out, filestore.ObjectInfo{Key: dir, IsDir: true})
				}
				continue
			}
		}
		out = append(out, objs[k].info)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return o.info }

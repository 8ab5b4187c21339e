package filestore

import (
	"io"
	"time"
)

// ObjectInfo is the metadata of one stored object or virtual directory.
type ObjectInfo struct {
	Key          string
	Size         int64 // -1 if unknown
	ContentType  string
	ETag         string
	LastModified time.Time
	IsDir        bool
}

// Object streams an object's content. Close must be called.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions filters ListObjects.
type ListOptions struct {
	Prefix     string
	Recursive  bool
	Limit      int    // 0 means no cap
	StartAfter string // exclusive
}

package database

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultClientTag is the client identifier base used when Params.ClientTag is empty.
const DefaultClientTag = "dbmap"

// Params holds everything a dialect needs to open one physical session.
// It is a value type: the With* helpers return modified copies.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string

	// Database is the initial database / catalog for network dialects.
	Database string

	// File is the database file path for the embedded dialect.
	File string

	// ClientTag identifies sessions in server-side diagnostics
	// (MySQL program_name, SQL Server app name, Postgres application_name).
	ClientTag string

	// ConnectTimeout bounds opening and pinging a new session.
	ConnectTimeout time.Duration

	// Options carries dialect-specific DSN parameters (e.g. "encrypt", "sslmode").
	Options map[string]string
}

// WithClientTag returns a copy of p with ClientTag replaced.
func (p Params) WithClientTag(tag string) Params {
	p.Options = cloneOptions(p.Options)
	p.ClientTag = tag
	return p
}

// Option returns the named option or def when unset.
func (p Params) Option(name, def string) string {
	if v, ok := p.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// PortOr returns p.Port, or def when the port is unset.
func (p Params) PortOr(def int) int {
	if p.Port == 0 {
		return def
	}
	return p.Port
}

// Addr returns host:port using def as the fallback port.
func (p Params) Addr(def int) string {
	return fmt.Sprintf("%s:%s", p.Host, strconv.Itoa(p.PortOr(def)))
}

// Timeout returns the connect timeout, defaulting to 10s.
func (p Params) Timeout() time.Duration {
	if p.ConnectTimeout <= 0 {
		return 10 * time.Second
	}
	return p.ConnectTimeout
}

func cloneOptions(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

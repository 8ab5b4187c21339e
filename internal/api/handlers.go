package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/logger"
	"github.com/koustreak/dbmap/internal/pool"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.health)

	r.Route("/servers", func(r chi.Router) {
		r.Get("/", s.listServers)
		r.Route("/{server}", func(r chi.Router) {
			r.Get("/", s.getServer)
			r.Get("/snapshots", s.listSnapshots)
			r.Get("/schemas/{schema}", s.getSchema)
			r.Get("/schemas/{schema}/tables/{table}", s.getTable)
		})
	})
}

type serverSummary struct {
	Name     string     `json:"name"`
	Schemas  int        `json:"schemas"`
	MappedAt time.Time  `json:"mapped_at"`
	TookMS   int64      `json:"took_ms"`
	Dialect  string     `json:"dialect"`
	Pool     pool.Stats `json:"pool"`
}

type snapshotSummary struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"populated": s.registry.Populated(),
	})
}

func (s *Server) listServers(w http.ResponseWriter, _ *http.Request) {
	names := s.registry.Names()
	out := make([]serverSummary, 0, len(names))
	for _, name := range names {
		e, ok := s.registry.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, serverSummary{
			Name:     e.Server.Name(),
			Schemas:  e.Server.Len(),
			MappedAt: e.MappedAt.UTC(),
			TookMS:   e.Took.Milliseconds(),
			Dialect:  e.Executor.Dialect().Name(),
			Pool:     e.Executor.Pool().Stats(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.registry.Server(chi.URLParam(r, "server"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	srv, err := s.registry.Server(chi.URLParam(r, "server"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "schema")
	sc, ok := srv.Schema(name)
	if !ok {
		writeError(w, r, errs.New(errs.ErrKindNotFound, fmt.Sprintf("schema %q not found on server %q", name, srv.Name())))
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	srv, err := s.registry.Server(chi.URLParam(r, "server"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	tbl, err := srv.Table(chi.URLParam(r, "schema"), chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tbl)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, r, errs.New(errs.ErrKindNotFound, "snapshots are not configured"))
		return
	}
	objs, err := s.exporter.List(r.Context(), chi.URLParam(r, "server"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]snapshotSummary, len(objs))
	for i, o := range objs {
		out[i] = snapshotSummary{Key: o.Key, Size: o.Size, LastModified: o.LastModified.UTC()}
	}
	writeJSON(w, http.StatusOK, out)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Zerolog().Error().Err(err).Msg("request failed")
	}

	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind.String()})
}

func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed, errs.ErrKindConnectionLost, errs.ErrKindBusy, errs.ErrKindRetryExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package publish

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
)

// maxRequestBodySize is the maximum allowed request body size (64 KB).
const maxRequestBodySize = 64 << 10

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(chimw.StripSlashes)
	r.Use(methodMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such path")
	})
	// Only GET and PUT get this far, and PUT is accepted on attributes only.
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "path is not writable")
	})

	r.Get("/", s.handleIndex)
	r.Get("/states", s.handleStates)
	r.Get("/service", s.handleService)
	r.Route("/resources", func(r chi.Router) {
		r.Get("/", s.handleResources)
		r.Get("/{name}", s.handleResource)
		r.Get("/{name}/{attr}", s.handleGetAttribute)
		r.Put("/{name}/{attr}", s.handleSetAttribute)
	})

	r.Get("/history/{name}", s.handleHistory)
	r.Get("/health", s.handleHealth)
	r.Get(s.wsCfg.Path, s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.metricsAt, s.metrics.Handler())
	}

	return r
}

// methodMiddleware answers 501 for anything other than GET and PUT.
func methodMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPut:
			next.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusNotImplemented, ErrCodeNotImplemented,
				"method "+r.Method+" is not supported")
		}
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []string{"service", "resources", "states"})
}

func (s *Server) handleStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.States())
}

func (s *Server) handleService(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ServiceData())
}

// handleResources lists the collection. With ?expand, members of composite
// resources are included.
func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resources.Dump(r.URL.Query().Has("expand")))
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.resources.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeResourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource.Describe(res, r.URL.Query().Has("expand")))
}

// handleGetAttribute answers {attr: value}.
func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	attr := chi.URLParam(r, "attr")
	res, err := s.resources.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeResourceError(w, err)
		return
	}

	value, err := resource.GetAttribute(r.Context(), res, attr)
	if err != nil {
		s.writeResourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{attr: value})
}

// handleSetAttribute applies the body {attr: value}.
func (s *Server) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	attr := chi.URLParam(r, "attr")
	res, err := s.resources.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeResourceError(w, err)
		return
	}

	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	value, ok := body[attr]
	if !ok {
		writeBadRequest(w, "body must contain "+strconv.Quote(attr))
		return
	}

	if err := resource.SetAttribute(r.Context(), res, attr, jsonValue(value)); err != nil {
		s.writeResourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{attr: value})
}

// handleHistory returns recorded changes of one resource, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is not enabled")
		return
	}
	name := chi.URLParam(r, "name")
	if _, err := s.resources.Get(name); err != nil {
		s.writeResourceError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.History(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("reading history", "resource", name, "error", err)
		writeInternalError(w, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.ServiceData().Fault {
		status, code = "fault", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}

// writeResourceError maps resource errors onto HTTP responses.
func (s *Server) writeResourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resource.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, resource.ErrReadOnly):
		writeError(w, http.StatusBadRequest, ErrCodeReadOnly, err.Error())
	case errors.Is(err, resource.ErrUnavailable), errors.Is(err, resource.ErrReadFailed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, resource.ErrWriteFailed):
		writeError(w, http.StatusBadGateway, ErrCodeWriteFailed, err.Error())
	default:
		s.logger.Error("resource request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}

// jsonValue converts a json.Number to int64 when integral, else float64.
func jsonValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

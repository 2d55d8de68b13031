// Package http is the daemon's transport: a mux router with named
// routes shared between the server handler and the Go client, so both
// sides always agree on paths.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"

	"github.com/caraveld/caravel"
	"github.com/caraveld/caravel/api"
)

const (
	PostDeployment = "PostDeployment"
	PostRollback   = "PostRollback"
	PostApproval   = "PostApproval"
	GetStatus      = "GetStatus"
	GetHistory     = "GetHistory"
	IsConnected    = "IsConnected"
)

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(PostDeployment).Methods("POST").Path("/v1/deploy").Queries("environment", "{environment}", "version", "{version}")
	r.NewRoute().Name(PostRollback).Methods("POST").Path("/v1/rollback").Queries("environment", "{environment}")
	r.NewRoute().Name(PostApproval).Methods("POST").Path("/v1/approve").Queries("environment", "{environment}")
	r.NewRoute().Name(GetStatus).Methods("GET").Path("/v1/status").Queries("environment", "{environment}")
	r.NewRoute().Name(GetHistory).Methods("GET").Path("/v1/history").Queries("environment", "{environment}")
	r.NewRoute().Name(IsConnected).Methods("HEAD", "GET").Path("/v1/ping")
	return r
}

func NewHandler(s api.Server, r *mux.Router, logger log.Logger) http.Handler {
	for method, handlerFunc := range map[string]func(api.Server) http.Handler{
		PostDeployment: handlePostDeployment,
		PostRollback:   handlePostRollback,
		PostApproval:   handlePostApproval,
		GetStatus:      handleGetStatus,
		GetHistory:     handleGetHistory,
		IsConnected:    handleIsConnected,
	} {
		var handler http.Handler
		handler = handlerFunc(s)
		handler = logging(handler, log.With(logger, "method", method))

		r.Get(method).Handler(handler)
	}
	return r
}

func handlePostDeployment(s api.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		d, err := s.PostDeployment(r.Context(), vars["environment"], vars["version"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	})
}

func handlePostRollback(s api.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.PostRollback(r.Context(), mux.Vars(r)["environment"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	})
}

func handlePostApproval(s api.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		environment := mux.Vars(r)["environment"]
		id := caravel.DeploymentID(r.URL.Query().Get("deployment"))
		if err := s.PostApproval(r.Context(), environment, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func handleGetStatus(s api.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, err := s.Status(r.Context(), mux.Vars(r)["environment"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	})
}

func handleGetHistory(s api.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deployments, err := s.History(r.Context(), mux.Vars(r)["environment"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deployments)
	})
}

func handleIsConnected(s api.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Fprintf(w, "encoding response: %v", err)
	}
}

// writeError maps the error taxonomy onto status codes, carrying the
// user-facing help text in the body so the client can reconstruct the
// error on its side.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch err.(type) {
	case caravel.Missing:
		code = http.StatusNotFound
	case caravel.Conflict:
		code = http.StatusConflict
	case caravel.Invalid:
		code = http.StatusBadRequest
	case caravel.Unavailable:
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if helpful, ok := err.(caravel.HelpfulError); ok {
		json.NewEncoder(w).Encode(helpful.Base())
		return
	}
	json.NewEncoder(w).Encode(&caravel.BaseError{
		Help: err.Error(),
		Err:  err,
	})
}

func logging(next http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		cw := &codeWriter{w, http.StatusOK}
		next.ServeHTTP(cw, r)
		logger.Log("url", r.URL.String(), "code", cw.code, "took", time.Since(begin).String())
	})
}

type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Package httpapi exposes the controller over HTTP. Readers post decoded
// credentials to /v1/credential and block until the session reaches a
// terminal outcome; the decision comes back as the response body.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/service"
	"github.com/jmsoler/facegate/internal/facegate/types"
	"github.com/jmsoler/facegate/internal/transport"
)

// CredentialHandler runs one credential through a recognition session.
// Implemented by service.Controller.
type CredentialHandler interface {
	HandleCredential(ctx context.Context, cred types.Credential) (types.Decision, error)
}

type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Controller CredentialHandler
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	controller CredentialHandler
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		controller: d.Controller,
	}

	mux.HandleFunc("POST /v1/credential", s.handleCredential)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	var msg transport.Message
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	cred, err := msg.Credential()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_credential", err.Error())
		return
	}

	// The controller holds the request open for the whole recognition
	// session, up to its deadline.
	decision, err := s.controller.HandleCredential(r.Context(), cred)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCredential) {
			writeError(w, http.StatusBadRequest, "empty_credential", err.Error())
			return
		}
		s.logger.Printf("credential error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	// A busy rejection is a decision too; 409 lets the reader tell it
	// apart without parsing the outcome.
	if decision.Outcome == types.OutcomeDeniedBusy {
		writeJSON(w, http.StatusConflict, decision)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

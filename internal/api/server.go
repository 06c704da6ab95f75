// Package api serves session records over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// unauthorizedMessage is the error body of every rejected credential.
const unauthorizedMessage = "Unauthorized"

// Options configures a Server.
type Options struct {
	Store *store.Store
	// Tokens maps bearer tokens to user ids.
	Tokens map[string]string
	// AnonymousUser, when set, is the user for requests without credentials.
	AnonymousUser string
	// DraftEndOverride stores every ended session as a draft.
	DraftEndOverride bool
	Logger           *log.Logger
}

// Server handles the session API.
type Server struct {
	store            *store.Store
	tokens           map[string]string
	anonymousUser    string
	draftEndOverride bool
	logger           *log.Logger
}

// NewServer creates an API server over opts.Store.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(opts.Tokens) == 0 && opts.AnonymousUser == "" {
		return nil, fmt.Errorf("no tokens configured and no anonymous user set")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "redline: ", log.LstdFlags)
	}
	return &Server{
		store:            opts.Store,
		tokens:           opts.Tokens,
		anonymousUser:    opts.AnonymousUser,
		draftEndOverride: opts.DraftEndOverride,
		logger:           logger,
	}, nil
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("POST /sessions", s.authed(s.handleCreate))
	mux.Handle("GET /sessions", s.authed(s.handleList))
	mux.Handle("GET /sessions/{id}", s.authed(s.handleGet))
	mux.Handle("PATCH /sessions/{id}", s.authed(s.handlePatch))
	mux.Handle("DELETE /sessions/{id}", s.authed(s.handleDelete))
	mux.Handle("POST /sessions/{id}/end", s.authed(s.handleEnd))
	return s.recoverHandler(mux)
}

// Serve runs the server on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ErrorLog:          s.logger,
		ReadHeaderTimeout: 10 * time.Second,
	}
	listenErrs := make(chan error, 1)
	go func() {
		listenErrs <- server.ListenAndServe()
	}()
	s.logger.Printf("listening on %s", addr)

	select {
	case err := <-listenErrs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)
		listenErr := <-listenErrs
		if errors.Is(listenErr, http.ErrServerClosed) {
			listenErr = nil
		}
		return errors.Join(shutdownErr, listenErr)
	}
}

func (s *Server) authed(next func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.resolveUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": unauthorizedMessage})
			return
		}
		next(w, r, user)
	})
}

func (s *Server) resolveUser(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return s.anonymousUser, s.anonymousUser != ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	for known, user := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return user, true
		}
	}
	return "", false
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, user string) {
	var req model.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	switch req.Outcome {
	case model.OutcomeNone, model.OutcomeActive, model.OutcomeDraft:
	default:
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("new sessions must be active or draft"))
		return
	}
	rec, err := s.store.Create(r.Context(), user, req)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, user string) {
	filter := model.ListFilter{Scope: model.Scope(r.URL.Query().Get("scope"))}
	if filter.Scope == "" {
		filter.Scope = model.ScopeHistory
	}
	switch filter.Scope {
	case model.ScopeHistory, model.ScopeDrafts, model.ScopeAll:
	default:
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown scope %q", filter.Scope))
		return
	}
	if raw := r.URL.Query().Get("last"); raw != "" {
		last, err := strconv.Atoi(raw)
		if err != nil || last < 0 {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid last %q", raw))
			return
		}
		filter.Last = last
	}
	records, err := s.store.List(r.Context(), user, filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if records == nil {
		records = []model.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, user string) {
	rec, err := s.store.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, user string) {
	var patch model.SessionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	rec, err := s.store.Patch(r.Context(), user, r.PathValue("id"), patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request, user string) {
	var req model.FinalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if s.draftEndOverride {
		req.Outcome = model.OutcomeDraft
	}
	if req.Outcome == model.OutcomeNone || req.Outcome == model.OutcomeActive {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("outcome must be a final state"))
		return
	}
	rec, err := s.store.Finalize(r.Context(), user, r.PathValue("id"), req)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, user string) {
	if err := s.store.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, store.ErrSessionEnded):
		s.writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidOutcome):
		s.writeError(w, r, http.StatusBadRequest, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) recoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writer := &responseTracker{ResponseWriter: w}
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Printf("panic handling request %s %s: %v\n%s", r.Method, r.URL.Path, recovered, debug.Stack())
				if writer.wroteHeader {
					return
				}
				writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(writer, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Printf("request %s %s failed (%d): %v", r.Method, r.URL.Path, status, err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type responseTracker struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *responseTracker) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseTracker) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(p)
}

package tenantnote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

// Handler returns the complete HTTP API.
//
//	POST   /auth/login                 - Exchange credentials for a token
//	GET    /notes                      - List the tenant's notes, newest first
//	POST   /notes                      - Create a note (free plan: at most 3)
//	GET    /notes/{id}                 - Get one note
//	PUT    /notes/{id}                 - Partially update a note
//	DELETE /notes/{id}                 - Delete a note
//	POST   /tenants/{slug}/upgrade     - Move the tenant to the pro plan (admin)
//	GET    /health                     - Store health
//	GET    /metrics                    - Prometheus metrics
//
// Every route is also served under /api.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	observe := hlog.AccessHandler(a.metrics.Observe)

	a.routes(router)
	a.routes(router.PathPrefix("/api").Subrouter())
	router.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)

	router.Use(observe)
	router.NotFoundHandler = observe(http.HandlerFunc(a.handleNotFound))
	router.MethodNotAllowedHandler = observe(http.HandlerFunc(a.handleMethodNotAllowed))

	var h http.Handler = router
	h = recoverer(h)
	h = cors(h)
	h = hlog.AccessHandler(a.logAccess)(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(a.log)(h)
	return h
}

func (a *App) routes(r *mux.Router) {
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", a.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/notes", a.authenticated(a.handleListNotes)).Methods(http.MethodGet)
	r.HandleFunc("/notes", a.authenticated(a.handleCreateNote)).Methods(http.MethodPost)
	r.HandleFunc("/notes/{id}", a.authenticated(a.handleGetNote)).Methods(http.MethodGet)
	r.HandleFunc("/notes/{id}", a.authenticated(a.handleUpdateNote)).Methods(http.MethodPut)
	r.HandleFunc("/notes/{id}", a.authenticated(a.handleDeleteNote)).Methods(http.MethodDelete)

	r.HandleFunc("/tenants/{slug}/upgrade", a.handleUpgradeTenant).Methods(http.MethodPost)
}

func (a *App) logAccess(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// Run serves the API until ctx is cancelled, then shuts down gracefully,
// giving in-flight requests up to Server.ShutdownTimeout to finish.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", ":"+a.config.Server.Port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return a.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: a.config.Server.ReadHeaderTimeout,
	}

	a.log.Info().
		Str("addr", listener.Addr().String()).
		Str("store", a.config.Store.Backend).
		Bool("read_only", a.IsReadOnly()).
		Msg("Starting tenantnote server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-serverErr:
		return err
	}
}

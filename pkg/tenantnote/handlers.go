package tenantnote

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/surrealdb/tenantnote/pkg/auth"
	"github.com/surrealdb/tenantnote/pkg/errs"
	"github.com/surrealdb/tenantnote/pkg/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type noteResponse struct {
	Note *models.Note `json:"note"`
}

type notesResponse struct {
	Notes []*models.Note `json:"notes"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type upgradeResponse struct {
	Message string         `json:"message"`
	Tenant  *models.Tenant `json:"tenant"`
}

type healthResponse struct {
	Status   string    `json:"status"`
	Store    string    `json:"store"`
	ReadOnly bool      `json:"read_only"`
	Time     time.Time `json:"time"`
}

// authenticated runs h with the caller's claims, or answers 401.
func (a *App) authenticated(h func(http.ResponseWriter, *http.Request, *auth.Claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.guard.RequireAuthentication(r)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		h(w, r, claims)
	}
}

// handleLogin exchanges email and password for a session token.
//
//	POST /auth/login {"email": "admin@acme.test", "password": "password"}
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, "auth.login", &req); err != nil {
		respondErr(w, r, err)
		return
	}

	result, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *App) handleListNotes(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	notes, err := a.notes.List(r.Context(), claims)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	respondJSON(w, http.StatusOK, notesResponse{Notes: notes})
}

func (a *App) handleCreateNote(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req createNoteRequest
	if err := decodeJSON(r, "notes.create", &req); err != nil {
		respondErr(w, r, err)
		return
	}

	note, err := a.notes.Create(r.Context(), claims, req.Title, req.Content)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, noteResponse{Note: note})
}

func (a *App) handleGetNote(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	note, err := a.notes.Get(r.Context(), claims, mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, noteResponse{Note: note})
}

// handleUpdateNote applies a partial update; fields missing from the body
// keep their stored values. An empty body is an empty patch.
func (a *App) handleUpdateNote(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var patch models.NotePatch
	if err := decodeJSON(r, "notes.update", &patch); err != nil && !errors.Is(err, io.EOF) {
		respondErr(w, r, err)
		return
	}

	note, err := a.notes.Update(r.Context(), claims, mux.Vars(r)["id"], patch)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, noteResponse{Note: note})
}

func (a *App) handleDeleteNote(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if err := a.notes.Delete(r.Context(), claims, mux.Vars(r)["id"]); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Note deleted successfully"})
}

// handleUpgradeTenant moves the caller's tenant to the pro plan. Only admins
// get past the role check; the service then checks the slug.
func (a *App) handleUpgradeTenant(w http.ResponseWriter, r *http.Request) {
	claims, err := a.guard.RequireRole(r, models.RoleAdmin)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	tenant, err := a.plans.Upgrade(r.Context(), claims, mux.Vars(r)["slug"])
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, upgradeResponse{
		Message: "Tenant upgraded to Pro plan successfully",
		Tenant:  tenant,
	})
}

// handleHealth reports whether the store answers. It always returns 200 so
// load balancers can tell a degraded store from a dead process.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := a.store.Ping(r.Context()); err != nil {
		status = "degraded"
		a.log.Warn().Err(err).Msg("store ping failed")
	}
	respondJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		Store:    a.config.Store.Backend,
		ReadOnly: a.IsReadOnly(),
		Time:     time.Now().UTC(),
	})
}

func (a *App) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondErr(w, r, errs.E("http.route", errs.NotFound, ""))
}

func (a *App) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: http.StatusText(http.StatusMethodNotAllowed)})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/kilupskalvis/entryrev/internal/entries"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/render"
	"github.com/kilupskalvis/entryrev/internal/security"
)

// RestoreGate authorizes restore requests
type RestoreGate interface {
	Authorize(ctx context.Context, actor, recordID, revisionID, token string) error
}

// Deps are the services the handlers run against
type Deps struct {
	Entries  *entries.Service
	Manager  *core.Manager
	Restorer *core.Restorer
	Renderer *render.Renderer
	Gate     RestoreGate
	Auth     security.Authorizer
	Tokens   TokenStore
}

// Config holds configurable limits for the server.
type Config struct {
	MaxRequestBody int64 // bytes, for JSON endpoints
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() *Config {
	return &Config{MaxRequestBody: 1024 * 1024}
}

type handlers struct {
	deps Deps
	cfg  *Config
	log  *slog.Logger
}

// Handler creates the HTTP handler with all routes and middleware.
func Handler(deps Deps, cfg *Config, logger *slog.Logger) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{deps: deps, cfg: cfg, log: logger.With("component", "server")}

	r := chi.NewRouter()
	r.Use(traceMiddleware(logger), recoverMiddleware(logger))

	r.Get("/healthz", handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(deps.Tokens))

		r.Get("/entries/{id}", h.getEntry)
		r.Get("/entries/{id}/revisions", h.listRevisions)
		r.Get("/entries/{id}/revisions/{rev}", h.showRevision)
		r.Post("/entries/{id}/restore", h.restore)

		r.Group(func(r chi.Router) {
			r.Use(h.requireCapability(security.CapabilityEditEntries))
			r.Patch("/entries/{id}", h.patchEntry)
			r.Delete("/entries/{id}/revisions/{rev}", h.deleteRevision)
			r.Delete("/entries/{id}/revisions", h.deleteAllRevisions)
		})
	})

	return r
}

// requireCapability rejects actors lacking capability
func (h *handlers) requireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.deps.Auth.Can(r.Context(), core.ActorFrom(r.Context()), capability) {
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":   "forbidden",
					"message": models.ErrDenied.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *handlers) getEntry(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Entries.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec.IsRevision() {
		h.writeError(w, models.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type patchRequest struct {
	Fields models.FieldMap `json:"fields"`
}

func (h *handlers) patchEntry(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := readJSON(r, h.cfg.MaxRequestBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}
	if len(req.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "fields are required"})
		return
	}

	rec, err := h.deps.Entries.UpdateFields(r.Context(), chi.URLParam(r, "id"), req.Fields)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) listRevisions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list, err := h.deps.Renderer.RevisionList(r.Context(), id, render.DefaultListOptions())
	if err != nil {
		h.writeError(w, err)
		return
	}
	templ.Handler(page("Revisions", list)).ServeHTTP(w, r)
}

func (h *handlers) showRevision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rev, err := h.revisionOf(ctx, id, chi.URLParam(r, "rev"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	current, err := h.deps.Entries.GetRecord(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := h.deps.Renderer.DiffView(ctx, rev, current)
	if errors.Is(err, render.ErrNotApplicable) {
		body = text(`<p class="entry-revision-identical">This revision is identical to the current entry.</p>`)
	} else if err != nil {
		h.writeError(w, err)
		return
	} else if h.deps.Auth.Can(ctx, core.ActorFrom(ctx), security.CapabilityEditEntries) {
		restoreURL, err := h.deps.Renderer.RestoreURL(rev, core.ActorFrom(ctx))
		if err != nil {
			h.writeError(w, err)
			return
		}
		body = join(body, restoreForm(restoreURL))
	}

	templ.Handler(page("Revision "+rev.ShortID(), body)).ServeHTTP(w, r)
}

func (h *handlers) restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	revisionID := r.URL.Query().Get("revision")
	token := r.URL.Query().Get("token")
	actor := core.ActorFrom(ctx)

	if err := h.deps.Gate.Authorize(ctx, actor, id, revisionID, token); err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "forbidden",
			"message": models.ErrDenied.Error(),
		})
		return
	}

	if _, err := h.deps.Restorer.Restore(ctx, id, revisionID); err != nil {
		h.writeError(w, err)
		return
	}

	http.Redirect(w, r, "/entries/"+url.PathEscape(id)+"/revisions", http.StatusSeeOther)
}

func (h *handlers) deleteRevision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rev, err := h.revisionOf(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "rev"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.deps.Manager.DeleteRevision(ctx, rev.ID()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteAllRevisions(w http.ResponseWriter, r *http.Request) {
	results, err := h.deps.Manager.DeleteAllRevisions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make(map[string]string, len(results))
	for id, rerr := range results {
		if rerr != nil {
			out[id] = rerr.Error()
			continue
		}
		out[id] = "deleted"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": out})
}

// revisionOf loads revisionID and checks that it belongs to recordID
func (h *handlers) revisionOf(ctx context.Context, recordID, revisionID string) (*models.Revision, error) {
	rev, err := h.deps.Manager.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.Meta.ParentID != recordID {
		return nil, fmt.Errorf("revision %s of %s: %w", revisionID, recordID, models.ErrNotFound)
	}
	return rev, nil
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "not found"})
	case errors.Is(err, models.ErrDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "message": models.ErrDenied.Error()})
	default:
		h.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

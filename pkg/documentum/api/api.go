// Package api exposes a documentum.Service over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/documentum/pkg/documentum"
)

// ActorHeader carries the caller identity used for audit and edit locks.
const ActorHeader = "X-User"

// maxUploadSize bounds multipart media uploads and CSV imports.
const maxUploadSize = 64 << 20

// Handler serves the documentum HTTP API.
type Handler struct {
	service documentum.Service
	logger  *slog.Logger
}

// New creates a Handler. A nil logger uses slog.Default().
func New(service documentum.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns the API routes, meant to be mounted under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ActorMiddleware)

	r.Route("/projets", func(r chi.Router) {
		r.Post("/", h.CreateProjet)
		r.Get("/", h.ListProjets)
		r.Get("/{id}", h.GetProjet)
		r.Patch("/{id}", h.UpdateProjet)
		r.Get("/{id}/versions", h.ListVersions)
		r.Post("/{id}/versions", h.CreateVersion)
		r.Get("/{id}/versions/active", h.GetActiveVersion)
		r.Post("/{id}/versions/initial", h.CreateInitialVersion)
		r.Post("/{id}/versions/archive", h.ArchiveNonActive)
		r.Get("/{id}/versions/verify", h.VerifyVersions)
		r.Post("/{id}/template", h.RubriqueTemplate)
	})
	r.Route("/versions", func(r chi.Router) {
		r.Get("/{id}", h.GetVersion)
		r.Post("/{id}/activate", h.Activate)
		r.Post("/{id}/clone", h.Clone)
	})
	r.Route("/rubriques", func(r chi.Router) {
		r.Post("/", h.CreateRubrique)
		r.Get("/", h.ListRubriques)
		r.Get("/{id}", h.GetRubrique)
		r.Patch("/{id}", h.UpdateRubrique)
		r.Post("/{id}/lock", h.AcquireEditLock)
		r.Delete("/{id}/lock", h.ReleaseEditLock)
		r.Post("/{id}/archive", h.ArchiveRubrique)
		r.Post("/{id}/restore", h.RestoreRubrique)
	})
	r.Route("/maps", func(r chi.Router) {
		r.Post("/", h.CreateMap)
		r.Get("/", h.ListMaps)
		r.Get("/{id}", h.GetMap)
		r.Get("/{id}/resolve", h.ResolveMap)
		r.Get("/{id}/ditamap", h.DitaMap)
		r.Post("/{id}/entries", h.AddMapEntry)
		r.Post("/{id}/exports", h.ExportMap)
		r.Get("/{id}/exports", h.ListExports)
	})
	r.Patch("/map-entries/{id}", h.MoveMapEntry)
	r.Delete("/map-entries/{id}", h.RemoveMapEntry)

	r.Post("/taxonomy/{kind}", h.CreateTaxon)
	r.Get("/taxonomy/{kind}", h.ListTaxa)
	r.Post("/taxonomy/{kind}/import", h.ImportTaxa)
	r.Get("/taxa/{id}", h.GetTaxon)
	r.Post("/taxa/{id}/archive", h.ArchiveTaxon)
	r.Post("/taxa/{id}/restore", h.RestoreTaxon)

	r.Route("/media", func(r chi.Router) {
		r.Post("/", h.UploadMedia)
		r.Get("/", h.ListMedia)
		r.Get("/{id}", h.GetMedia)
		r.Get("/{id}/download", h.DownloadMedia)
		r.Post("/{id}/archive", h.ArchiveMedia)
	})
	r.Post("/profils", h.CreateProfil)
	r.Get("/profils", h.ListProfils)
	r.Post("/profils/{id}/archive", h.ArchiveProfil)
	r.Get("/formats", h.OutputFormats)
	r.Get("/audit", h.ListAudit)

	return r
}

// ActorMiddleware attaches the X-User header value as the request actor.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(documentum.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, documentum.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, documentum.ErrPrecondition):
		return http.StatusPreconditionFailed
	case errors.Is(err, documentum.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, documentum.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = http.StatusText(status)
	}
	if status == http.StatusConflict {
		w.Header().Set("Retry-After", "1")
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, Kind: documentum.Kind(err)})
}

// badRequest reports malformed transport input.
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, field string, err error) {
	h.writeError(w, r, &documentum.ValidationError{Op: "decode_request", Field: field, Err: err})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.badRequest(w, r, "body", err)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.badRequest(w, r, "id", err)
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter.
func (h *Handler) queryID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.badRequest(w, r, name, err)
		return nil, false
	}
	return &id, true
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

package api

import (
	"net/http"

	"github.com/tendant/documentum/pkg/documentum"
)

// CountResponse reports how many records an operation changed.
type CountResponse struct {
	Count int `json:"count"`
}

func (h *Handler) CreateProjet(w http.ResponseWriter, r *http.Request) {
	var req documentum.CreateProjetRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.CreateProjet(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, created)
}

func (h *Handler) ListProjets(w http.ResponseWriter, r *http.Request) {
	projets, err := h.service.ListProjets(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, projets)
}

func (h *Handler) GetProjet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	details, err := h.service.GetProjet(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, details)
}

func (h *Handler) UpdateProjet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req documentum.UpdateProjetRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.UpdateProjet(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, p)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, versions)
}

func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req documentum.CreateVersionRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ProjetID = id
	v, err := h.service.CreateVersion(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, v)
}

func (h *Handler) GetActiveVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.GetActiveVersion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, v)
}

func (h *Handler) CreateInitialVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.CreateInitialVersion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, v)
}

func (h *Handler) ArchiveNonActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	n, err := h.service.ArchiveNonActive(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) VerifyVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.VerifyVersions(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RubriqueTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var params documentum.TemplateParams
	if !h.decode(w, r, &params) {
		return
	}
	out, err := h.service.RubriqueTemplate(r.Context(), id, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.GetVersion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, v)
}

// ActivateResponse reports how many versions lost the active flag.
type ActivateResponse struct {
	Deactivated int `json:"deactivated"`
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	n, err := h.service.Activate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, ActivateResponse{Deactivated: n})
}

func (h *Handler) Clone(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Clone(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, v)
}

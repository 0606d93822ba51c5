package api

import (
	"net/http"

	"github.com/tendant/documentum/pkg/documentum"
)

func (h *Handler) CreateRubrique(w http.ResponseWriter, r *http.Request) {
	var req documentum.CreateRubriqueRequest
	if !h.decode(w, r, &req) {
		return
	}
	rub, err := h.service.CreateRubrique(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, rub)
}

// ListRubriques accepts projet_id, version_projet_id, active_only and
// include_archived query parameters.
func (h *Handler) ListRubriques(w http.ResponseWriter, r *http.Request) {
	projetID, ok := h.queryID(w, r, "projet_id")
	if !ok {
		return
	}
	versionID, ok := h.queryID(w, r, "version_projet_id")
	if !ok {
		return
	}
	rubriques, err := h.service.ListRubriques(r.Context(), documentum.RubriqueFilter{
		ProjetID:        projetID,
		VersionProjetID: versionID,
		ActiveOnly:      queryBool(r, "active_only"),
		IncludeArchived: queryBool(r, "include_archived"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rubriques)
}

func (h *Handler) GetRubrique(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rub, err := h.service.GetRubrique(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rub)
}

func (h *Handler) UpdateRubrique(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req documentum.UpdateRubriqueRequest
	if !h.decode(w, r, &req) {
		return
	}
	rub, err := h.service.UpdateRubrique(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rub)
}

func (h *Handler) AcquireEditLock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rub, err := h.service.AcquireEditLock(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rub)
}

// ReleaseEditLock releases the caller's lock; ?force=true releases any lock.
func (h *Handler) ReleaseEditLock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rub, err := h.service.ReleaseEditLock(r.Context(), id, queryBool(r, "force"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rub)
}

func (h *Handler) ArchiveRubrique(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rub, err := h.service.ArchiveRubrique(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rub)
}

func (h *Handler) RestoreRubrique(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rub, err := h.service.RestoreRubrique(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, rub)
}

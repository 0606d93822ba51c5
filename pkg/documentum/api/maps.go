package api

import (
	"net/http"

	"github.com/tendant/documentum/pkg/documentum"
)

func (h *Handler) CreateMap(w http.ResponseWriter, r *http.Request) {
	var req documentum.CreateMapRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.CreateMap(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, m)
}

// ListMaps requires the projet_id query parameter.
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	projetID, ok := h.queryID(w, r, "projet_id")
	if !ok {
		return
	}
	if projetID == nil {
		h.writeError(w, r, &documentum.ValidationError{Op: "list_maps", Field: "projet_id", Err: documentum.ErrRequired})
		return
	}
	maps, err := h.service.ListMaps(r.Context(), *projetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, maps)
}

func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetMap(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, m)
}

func (h *Handler) ResolveMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	resolved, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, resolved)
}

// DitaMap renders the resolved Map as a .ditamap document.
func (h *Handler) DitaMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	resolved, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := documentum.BuildDitaMap(resolved)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(doc)
}

func (h *Handler) AddMapEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req documentum.AddMapEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.MapID = id
	e, err := h.service.AddMapEntry(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, e)
}

func (h *Handler) MoveMapEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req documentum.MoveMapEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.service.MoveMapEntry(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, e)
}

func (h *Handler) RemoveMapEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveMapEntry(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportMap(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req documentum.ExportRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.MapID = id
	rec, err := h.service.ExportMap(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, rec)
}

func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	exports, err := h.service.ListExports(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, exports)
}

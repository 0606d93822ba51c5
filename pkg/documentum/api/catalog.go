package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/documentum/pkg/documentum"
)

func taxonKind(r *http.Request) documentum.TaxonKind {
	return documentum.TaxonKind(chi.URLParam(r, "kind"))
}

func (h *Handler) CreateTaxon(w http.ResponseWriter, r *http.Request) {
	var req documentum.CreateTaxonRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Kind = taxonKind(r)
	t, err := h.service.CreateTaxon(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, t)
}

func (h *Handler) ListTaxa(w http.ResponseWriter, r *http.Request) {
	taxa, err := h.service.ListTaxa(r.Context(), taxonKind(r), queryBool(r, "include_archived"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, taxa)
}

// ImportTaxa reads a CSV request body.
func (h *Handler) ImportTaxa(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadSize)
	taxa, err := h.service.ImportTaxa(r.Context(), taxonKind(r), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, taxa)
}

func (h *Handler) GetTaxon(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTaxon(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, t)
}

func (h *Handler) ArchiveTaxon(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.service.ArchiveTaxon(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, t)
}

func (h *Handler) RestoreTaxon(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.service.RestoreTaxon(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, t)
}

// UploadMedia takes a multipart form with a "file" part and the fields
// produit_id, rubrique_id, type_media, description and mime_type.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.badRequest(w, r, "form", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, r, "file", err)
		return
	}
	defer file.Close()

	produitID, err := uuid.Parse(r.FormValue("produit_id"))
	if err != nil {
		h.badRequest(w, r, "produit_id", err)
		return
	}
	req := documentum.UploadMediaRequest{
		ProduitID:   produitID,
		TypeMedia:   r.FormValue("type_media"),
		NomFichier:  header.Filename,
		Description: r.FormValue("description"),
		MimeType:    r.FormValue("mime_type"),
		Body:        file,
	}
	if req.MimeType == "" {
		req.MimeType = header.Header.Get("Content-Type")
	}
	if raw := r.FormValue("rubrique_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.badRequest(w, r, "rubrique_id", err)
			return
		}
		req.RubriqueID = &id
	}

	m, err := h.service.UploadMedia(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, m)
}

func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	produitID, ok := h.queryID(w, r, "produit_id")
	if !ok {
		return
	}
	rubriqueID, ok := h.queryID(w, r, "rubrique_id")
	if !ok {
		return
	}
	media, err := h.service.ListMedia(r.Context(), documentum.MediaFilter{
		ProduitID:       produitID,
		RubriqueID:      rubriqueID,
		IncludeArchived: queryBool(r, "include_archived"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, media)
}

func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetMedia(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, m)
}

func (h *Handler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	body, m, err := h.service.DownloadMedia(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer body.Close()

	contentType := m.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+documentum.SanitizeFilename(m.NomFichier)+`"`)
	if m.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(m.Size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "media download interrupted", "media_id", id, "error", err)
	}
}

func (h *Handler) ArchiveMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.ArchiveMedia(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, m)
}

func (h *Handler) CreateProfil(w http.ResponseWriter, r *http.Request) {
	var req documentum.CreateProfilRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.CreateProfil(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, p)
}

func (h *Handler) ListProfils(w http.ResponseWriter, r *http.Request) {
	profils, err := h.service.ListProfils(r.Context(), queryBool(r, "include_archived"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, profils)
}

func (h *Handler) ArchiveProfil(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.ArchiveProfil(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, p)
}

func (h *Handler) OutputFormats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.service.OutputFormats())
}

// ListAudit accepts resource_type, resource_id, projet_id and limit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	resourceID, ok := h.queryID(w, r, "resource_id")
	if !ok {
		return
	}
	projetID, ok := h.queryID(w, r, "projet_id")
	if !ok {
		return
	}
	filter := documentum.AuditFilter{
		ResourceType: r.URL.Query().Get("resource_type"),
		ResourceID:   resourceID,
		ProjetID:     projetID,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.badRequest(w, r, "limit", documentum.ErrInvalidValue)
			return
		}
		filter.Limit = limit
	}
	entries, err := h.service.ListAudit(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, entries)
}

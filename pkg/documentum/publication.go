package documentum

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DitaOutputFormats are the DITA Open Toolkit transtypes we publish to.
var DitaOutputFormats = []string{"pdf", "html5", "xhtml", "scorm", "markdown", "eclipsehelp"}

var sortieTypes = []string{SortiePDF, SortieWeb, SortieMoodle, SortieFiche}

func (s *service) OutputFormats() []string {
	return slices.Clone(DitaOutputFormats)
}

func (s *service) CreateProfil(ctx context.Context, req CreateProfilRequest) (p *ProfilPublication, err error) {
	const op = "create_profil"
	defer s.observe(op, time.Now(), &err)

	nom := strings.TrimSpace(req.Nom)
	if nom == "" {
		return nil, validationErr(op, "nom", ErrRequired, "")
	}
	if !slices.Contains(sortieTypes, req.TypeSortie) {
		return nil, validationErr(op, "type_sortie", ErrInvalidValue, req.TypeSortie)
	}

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var projetID *uuid.UUID
		if req.MapID != nil {
			m, err := tx.GetMap(ctx, *req.MapID)
			if err != nil {
				return err
			}
			projetID = &m.ProjetID
		}
		p = &ProfilPublication{
			ID:         uuid.New(),
			Nom:        nom,
			TypeSortie: req.TypeSortie,
			MapID:      req.MapID,
			Parametres: req.Parametres,
			CreatedAt:  s.timestamp(),
		}
		if err := tx.CreateProfil(ctx, p); err != nil {
			return err
		}
		return trail.record(ctx, tx, "create", ResourceProfil, p.ID, projetID, map[string]any{"nom": p.Nom, "type_sortie": p.TypeSortie})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) ListProfils(ctx context.Context, includeArchived bool) (profils []*ProfilPublication, err error) {
	defer s.observe("list_profils", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		profils, err = tx.ListProfils(ctx, includeArchived)
		return err
	})
	return profils, err
}

func (s *service) ArchiveProfil(ctx context.Context, id uuid.UUID) (p *ProfilPublication, err error) {
	defer s.observe("archive_profil", time.Now(), &err)
	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if p, err = tx.GetProfil(ctx, id); err != nil {
			return err
		}
		if p.IsArchived {
			return nil
		}
		p.IsArchived = true
		if err := tx.UpdateProfil(ctx, p); err != nil {
			return err
		}
		return trail.record(ctx, tx, "archive", ResourceProfil, p.ID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ExportMap writes the Map as a .ditamap plus one topic file per referenced
// Rubrique under exports/<export id>/ in the default blob store and records
// the export. Running the toolkit on the bundle happens elsewhere.
func (s *service) ExportMap(ctx context.Context, req ExportRequest) (rec *ExportRecord, err error) {
	const op = "export_map"
	defer s.observe(op, time.Now(), &err)

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if !slices.Contains(DitaOutputFormats, format) {
		return nil, validationErr(op, "format", ErrInvalidValue, req.Format)
	}
	_, store, err := s.blobStore(op)
	if err != nil {
		return nil, err
	}

	var resolved *ResolvedMap
	err = s.read(ctx, func(tx Tx) error {
		var err error
		resolved, err = resolveMap(ctx, tx, req.MapID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ditamap, err := BuildDitaMap(resolved)
	if err != nil {
		return nil, fmt.Errorf("%s: build ditamap: %w", op, err)
	}

	rec = &ExportRecord{
		ID:         uuid.New(),
		MapID:      resolved.Map.ID,
		Format:     format,
		Actor:      ActorFromContext(ctx),
		DateExport: s.timestamp(),
	}
	rec.Path = "exports/" + rec.ID.String()

	var written []string
	cleanup := func() {
		for _, key := range written {
			if derr := store.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.logger.Error("failed to delete orphaned export blob", "key", key, "err", derr)
			}
		}
	}
	upload := func(key, body string) error {
		if err := store.Upload(ctx, key, strings.NewReader(body), "application/xml"); err != nil {
			return fmt.Errorf("%s: upload %s: %w", op, key, err)
		}
		written = append(written, key)
		return nil
	}

	if err := upload(rec.Path+"/"+slug(resolved.Map.Nom)+".ditamap", string(ditamap)); err != nil {
		cleanup()
		return nil, err
	}
	for _, r := range resolved.Rubriques {
		if err := upload(rec.Path+"/"+TopicFileName(r), topicContent(r)); err != nil {
			cleanup()
			return nil, err
		}
	}
	rec.Files = len(written)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := tx.CreateExport(ctx, rec); err != nil {
			return err
		}
		return trail.record(ctx, tx, "export", ResourceExport, rec.ID, &resolved.Map.ProjetID, map[string]any{
			"map_id": rec.MapID,
			"format": rec.Format,
			"files":  rec.Files,
		})
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	s.logger.Info("map exported", "map_id", rec.MapID, "format", format, "path", rec.Path, "files", rec.Files)
	return rec, nil
}

func (s *service) ListExports(ctx context.Context, mapID uuid.UUID) (exports []*ExportRecord, err error) {
	defer s.observe("list_exports", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		if _, err := tx.GetMap(ctx, mapID); err != nil {
			return err
		}
		var err error
		exports, err = tx.ListExports(ctx, mapID)
		return err
	})
	return exports, err
}

// topicContent returns the Rubrique body, or a minimal topic when it has none.
func topicContent(r *Rubrique) string {
	if strings.TrimSpace(r.ContenuXML) != "" {
		return r.ContenuXML
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<!DOCTYPE topic PUBLIC "-//OASIS//DTD DITA Topic//EN" "topic.dtd">` + "\n" +
		`<topic id="` + topicID(r) + `"><title>` + escape(r.Titre) + `</title><body/></topic>`
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(SanitizeFilename(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "map"
	}
	return out
}

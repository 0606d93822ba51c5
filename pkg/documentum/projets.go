package documentum

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateProjet creates the Projet together with its active initial version
// and its master map. Nothing is kept if any of the three writes fails.
func (s *service) CreateProjet(ctx context.Context, req CreateProjetRequest) (created *ProjetCreated, err error) {
	const op = "create_projet"
	defer s.observe(op, time.Now(), &err)

	nom := strings.TrimSpace(req.Nom)
	if nom == "" {
		return nil, validationErr(op, "nom", ErrRequired, "")
	}
	label := strings.TrimSpace(req.VersionLabel)
	if label == "" {
		label = DefaultVersionLabel
	}

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if req.GammeID != nil {
			if err := requireTaxon(ctx, tx, op, "gamme_id", *req.GammeID, TaxonGamme); err != nil {
				return err
			}
		}

		now := s.timestamp()
		p := &Projet{
			ID:            uuid.New(),
			Nom:           nom,
			Description:   req.Description,
			Auteur:        trail.actor,
			GammeID:       req.GammeID,
			DateCreation:  now,
			DateMiseAJour: now,
		}
		if err := tx.CreateProjet(ctx, p); err != nil {
			return err
		}
		if err := trail.record(ctx, tx, "create", ResourceProjet, p.ID, &p.ID, map[string]any{"nom": p.Nom}); err != nil {
			return err
		}

		v, err := s.createInitialVersion(ctx, tx, trail, p.ID, label)
		if err != nil {
			return err
		}

		m := &Map{
			ID:           uuid.New(),
			ProjetID:     p.ID,
			Nom:          p.Nom,
			TypeMap:      MapTypeMaitre,
			IsMaster:     true,
			DateCreation: now,
		}
		if err := tx.CreateMap(ctx, m); err != nil {
			return err
		}
		if err := trail.record(ctx, tx, "create", ResourceMap, m.ID, &p.ID, map[string]any{"nom": m.Nom, "is_master": true}); err != nil {
			return err
		}

		created = &ProjetCreated{Projet: p, Version: v, Map: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("projet created", "projet_id", created.Projet.ID, "nom", created.Projet.Nom, "version", created.Version.VersionNumero)
	return created, nil
}

func (s *service) GetProjet(ctx context.Context, id uuid.UUID) (details *ProjetDetails, err error) {
	defer s.observe("get_projet", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		p, err := tx.GetProjet(ctx, id)
		if err != nil {
			return err
		}
		versions, err := tx.ListVersions(ctx, id)
		if err != nil {
			return err
		}
		maps, err := tx.ListMaps(ctx, id)
		if err != nil {
			return err
		}
		details = &ProjetDetails{Projet: p, Versions: versions, Maps: maps}
		return nil
	})
	return details, err
}

func (s *service) ListProjets(ctx context.Context) (projets []*Projet, err error) {
	defer s.observe("list_projets", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		projets, err = tx.ListProjets(ctx)
		return err
	})
	return projets, err
}

func (s *service) UpdateProjet(ctx context.Context, id uuid.UUID, req UpdateProjetRequest) (p *Projet, err error) {
	const op = "update_projet"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := tx.LockProjet(ctx, id); err != nil {
			return err
		}
		var err error
		if p, err = tx.GetProjet(ctx, id); err != nil {
			return err
		}

		var fields []string
		if req.Nom != nil {
			nom := strings.TrimSpace(*req.Nom)
			if nom == "" {
				return validationErr(op, "nom", ErrRequired, "")
			}
			p.Nom = nom
			fields = append(fields, "nom")
		}
		if req.Description != nil {
			p.Description = *req.Description
			fields = append(fields, "description")
		}
		if req.GammeID != nil {
			if err := requireTaxon(ctx, tx, op, "gamme_id", *req.GammeID, TaxonGamme); err != nil {
				return err
			}
			p.GammeID = req.GammeID
			fields = append(fields, "gamme_id")
		}
		p.DateMiseAJour = s.timestamp()

		if err := tx.UpdateProjet(ctx, p); err != nil {
			return err
		}
		return trail.record(ctx, tx, "update", ResourceProjet, p.ID, &p.ID, map[string]any{"fields": fields})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

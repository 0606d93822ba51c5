package documentum

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateRubrique persists a new Rubrique bound to the Projet's active
// version. Malformed XML is rejected before anything is written.
func (s *service) CreateRubrique(ctx context.Context, req CreateRubriqueRequest) (r *Rubrique, err error) {
	const op = "create_rubrique"
	defer s.observe(op, time.Now(), &err)

	titre := strings.TrimSpace(req.Titre)
	if titre == "" {
		return nil, validationErr(op, "titre", ErrRequired, "")
	}
	if err := CheckWellFormed(req.ContenuXML); err != nil {
		return nil, validationErr(op, "contenu_xml", err, "")
	}

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		// Activate and ArchiveNonActive hold this lock while they switch
		// versions, so the binding below cannot go stale before commit.
		if err := tx.LockProjet(ctx, req.ProjetID); err != nil {
			return err
		}
		active, err := activeVersion(ctx, tx, op, req.ProjetID)
		if err != nil {
			return err
		}

		version := 1
		if req.VersionPrecedenteID != nil {
			prev, err := tx.GetRubrique(ctx, *req.VersionPrecedenteID)
			if err != nil {
				return err
			}
			if prev.ProjetID != req.ProjetID {
				return validationErr(op, "version_precedente_id", ErrInvalidValue, "previous revision belongs to another projet")
			}
			version = prev.Version + 1
		}
		if req.FonctionnaliteID != nil {
			if err := requireTaxon(ctx, tx, op, "fonctionnalite_id", *req.FonctionnaliteID, TaxonFonctionnalite); err != nil {
				return err
			}
		}
		revision := req.RevisionNumero
		if revision <= 0 {
			revision = 1
		}

		now := s.timestamp()
		r = &Rubrique{
			ID:                  uuid.New(),
			ProjetID:            req.ProjetID,
			VersionProjetID:     &active.ID,
			VersionPrecedenteID: req.VersionPrecedenteID,
			FonctionnaliteID:    req.FonctionnaliteID,
			Titre:               titre,
			ContenuXML:          req.ContenuXML,
			Auteur:              trail.actor,
			TypeRubrique:        req.TypeRubrique,
			Audience:            req.Audience,
			RevisionNumero:      revision,
			Version:             version,
			IsActive:            true,
			DateCreation:        now,
			DateMiseAJour:       now,
		}
		if err := tx.CreateRubrique(ctx, r); err != nil {
			return err
		}
		return trail.record(ctx, tx, "create", ResourceRubrique, r.ID, &r.ProjetID, map[string]any{
			"titre":             r.Titre,
			"version_projet_id": active.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *service) GetRubrique(ctx context.Context, id uuid.UUID) (r *Rubrique, err error) {
	defer s.observe("get_rubrique", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		r, err = tx.GetRubrique(ctx, id)
		return err
	})
	return r, err
}

func (s *service) ListRubriques(ctx context.Context, filter RubriqueFilter) (rubriques []*Rubrique, err error) {
	defer s.observe("list_rubriques", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		rubriques, err = tx.ListRubriques(ctx, filter)
		return err
	})
	return rubriques, err
}

// UpdateRubrique applies req while holding the Rubrique's row lock. The
// version binding is checked against the effective projet on every update.
func (s *service) UpdateRubrique(ctx context.Context, id uuid.UUID, req UpdateRubriqueRequest) (r *Rubrique, err error) {
	const op = "update_rubrique"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if r, err = tx.GetRubriqueForUpdate(ctx, id); err != nil {
			return err
		}
		now := s.timestamp()
		if s.enforceEditLocks && s.lockedByOther(r, trail.actor, now) {
			return conflictErr(op, ErrEditLocked, r.LockedBy)
		}

		var fields []string
		if req.Titre != nil {
			titre := strings.TrimSpace(*req.Titre)
			if titre == "" {
				return validationErr(op, "titre", ErrRequired, "")
			}
			r.Titre = titre
			fields = append(fields, "titre")
		}
		if req.ProjetID != nil && *req.ProjetID != r.ProjetID {
			if _, err := tx.GetProjet(ctx, *req.ProjetID); err != nil {
				return err
			}
			r.ProjetID = *req.ProjetID
			fields = append(fields, "projet_id")
		}
		if req.VersionProjetID != nil {
			r.VersionProjetID = ptr(*req.VersionProjetID)
			fields = append(fields, "version_projet_id")
		}
		if r.VersionProjetID != nil {
			v, err := tx.GetVersion(ctx, *r.VersionProjetID)
			if err != nil {
				return err
			}
			if v.ProjetID != r.ProjetID {
				return validationErr(op, "version_projet_id", ErrVersionMismatch, "")
			}
		}
		if req.ContenuXML != nil && *req.ContenuXML != r.ContenuXML {
			if err := CheckWellFormed(*req.ContenuXML); err != nil {
				return validationErr(op, "contenu_xml", err, "")
			}
			r.ContenuXML = *req.ContenuXML
			fields = append(fields, "contenu_xml")
		}
		if req.VersionPrecedenteID != nil {
			if err := tx.LockProjet(ctx, r.ProjetID); err != nil {
				return err
			}
			if err := checkRevisionChain(ctx, tx, op, r, *req.VersionPrecedenteID); err != nil {
				return err
			}
			r.VersionPrecedenteID = ptr(*req.VersionPrecedenteID)
			fields = append(fields, "version_precedente_id")
		}
		if req.FonctionnaliteID != nil {
			if err := requireTaxon(ctx, tx, op, "fonctionnalite_id", *req.FonctionnaliteID, TaxonFonctionnalite); err != nil {
				return err
			}
			r.FonctionnaliteID = ptr(*req.FonctionnaliteID)
			fields = append(fields, "fonctionnalite_id")
		}
		if req.TypeRubrique != nil {
			r.TypeRubrique = *req.TypeRubrique
			fields = append(fields, "type_rubrique")
		}
		if req.Audience != nil {
			r.Audience = *req.Audience
			fields = append(fields, "audience")
		}
		if req.RevisionNumero != nil {
			if *req.RevisionNumero <= 0 {
				return validationErr(op, "revision_numero", ErrInvalidValue, "must be positive")
			}
			r.RevisionNumero = *req.RevisionNumero
			fields = append(fields, "revision_numero")
		}
		r.DateMiseAJour = now

		if err := tx.UpdateRubrique(ctx, r); err != nil {
			return err
		}
		return trail.record(ctx, tx, "update", ResourceRubrique, r.ID, &r.ProjetID, map[string]any{"fields": fields})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// checkRevisionChain verifies prevID can precede r: same projet and no
// cycle back to r through the chain of previous revisions.
func checkRevisionChain(ctx context.Context, tx Tx, op string, r *Rubrique, prevID uuid.UUID) error {
	seen := map[uuid.UUID]bool{r.ID: true}
	cur := prevID
	for {
		if seen[cur] {
			return validationErr(op, "version_precedente_id", ErrCycle, "")
		}
		seen[cur] = true
		prev, err := tx.GetRubrique(ctx, cur)
		if err != nil {
			return err
		}
		if cur == prevID && prev.ProjetID != r.ProjetID {
			return validationErr(op, "version_precedente_id", ErrInvalidValue, "previous revision belongs to another projet")
		}
		if prev.VersionPrecedenteID == nil {
			return nil
		}
		cur = *prev.VersionPrecedenteID
	}
}

func (s *service) lockedByOther(r *Rubrique, actor string, now time.Time) bool {
	if r.LockedBy == "" || r.LockedBy == actor {
		return false
	}
	if s.editLockTTL > 0 && r.LockedAt != nil && now.Sub(*r.LockedAt) > s.editLockTTL {
		return false
	}
	return true
}

// AcquireEditLock marks the Rubrique as being edited by the caller. The
// lock is advisory; stale locks past the TTL can be taken over.
func (s *service) AcquireEditLock(ctx context.Context, id uuid.UUID) (r *Rubrique, err error) {
	const op = "acquire_edit_lock"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if r, err = tx.GetRubriqueForUpdate(ctx, id); err != nil {
			return err
		}
		now := s.timestamp()
		if s.lockedByOther(r, trail.actor, now) {
			return conflictErr(op, ErrEditLocked, r.LockedBy)
		}
		previous := r.LockedBy
		r.LockedBy = trail.actor
		r.LockedAt = &now
		if err := tx.UpdateRubrique(ctx, r); err != nil {
			return err
		}
		details := map[string]any{}
		if previous != "" && previous != trail.actor {
			details["taken_over_from"] = previous
		}
		return trail.record(ctx, tx, "lock", ResourceRubrique, r.ID, &r.ProjetID, details)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReleaseEditLock clears the edit lock. Only the holder may release it
// unless force is set.
func (s *service) ReleaseEditLock(ctx context.Context, id uuid.UUID, force bool) (r *Rubrique, err error) {
	const op = "release_edit_lock"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if r, err = tx.GetRubriqueForUpdate(ctx, id); err != nil {
			return err
		}
		if r.LockedBy == "" {
			return nil
		}
		if r.LockedBy != trail.actor && !force {
			return conflictErr(op, ErrEditLocked, r.LockedBy)
		}
		holder := r.LockedBy
		r.LockedBy = ""
		r.LockedAt = nil
		if err := tx.UpdateRubrique(ctx, r); err != nil {
			return err
		}
		return trail.record(ctx, tx, "unlock", ResourceRubrique, r.ID, &r.ProjetID, map[string]any{"holder": holder, "force": force})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *service) ArchiveRubrique(ctx context.Context, id uuid.UUID) (*Rubrique, error) {
	return s.setRubriqueArchived(ctx, "archive_rubrique", id, true)
}

func (s *service) RestoreRubrique(ctx context.Context, id uuid.UUID) (*Rubrique, error) {
	return s.setRubriqueArchived(ctx, "restore_rubrique", id, false)
}

func (s *service) setRubriqueArchived(ctx context.Context, op string, id uuid.UUID, archived bool) (r *Rubrique, err error) {
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if r, err = tx.GetRubriqueForUpdate(ctx, id); err != nil {
			return err
		}
		if r.IsArchived == archived {
			return nil
		}
		r.IsArchived = archived
		r.IsActive = !archived
		r.DateMiseAJour = s.timestamp()
		if err := tx.UpdateRubrique(ctx, r); err != nil {
			return err
		}
		action := "restore"
		if archived {
			action = "archive"
		}
		return trail.record(ctx, tx, action, ResourceRubrique, r.ID, &r.ProjetID, nil)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RubriqueTemplate generates a DITA skeleton tagged with the Projet's active
// version label.
func (s *service) RubriqueTemplate(ctx context.Context, projetID uuid.UUID, params TemplateParams) (out string, err error) {
	const op = "rubrique_template"
	defer s.observe(op, time.Now(), &err)

	err = s.read(ctx, func(tx Tx) error {
		if params.Version != "" {
			_, err := tx.GetProjet(ctx, projetID)
			return err
		}
		v, err := activeVersion(ctx, tx, op, projetID)
		if err != nil {
			return err
		}
		params.Version = v.VersionNumero
		return nil
	})
	if err != nil {
		return "", err
	}
	if params.Auteur == "" {
		params.Auteur = ActorFromContext(ctx)
	}
	if params.Created.IsZero() {
		params.Created = s.timestamp()
	}
	return GenerateTemplate(params), nil
}

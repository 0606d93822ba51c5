package documentum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Every change to is_active goes through this file. Version-mutating
// operations lock the owning Projet row first, which serializes them per
// Projet; the postgres store additionally keeps a partial unique index on
// the active flag.

func (s *service) CreateInitialVersion(ctx context.Context, projetID uuid.UUID) (v *VersionProjet, err error) {
	defer s.observe("create_initial_version", time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := tx.LockProjet(ctx, projetID); err != nil {
			return err
		}
		var err error
		v, err = s.createInitialVersion(ctx, tx, trail, projetID, DefaultVersionLabel)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) createInitialVersion(ctx context.Context, tx Tx, trail *auditTrail, projetID uuid.UUID, label string) (*VersionProjet, error) {
	versions, err := tx.ListVersions(ctx, projetID)
	if err != nil {
		return nil, err
	}
	for _, existing := range versions {
		if existing.IsActive {
			return nil, conflictErr("create_initial_version", ErrActiveVersionSet, existing.VersionNumero)
		}
	}

	v := &VersionProjet{
		ID:            uuid.New(),
		ProjetID:      projetID,
		VersionNumero: label,
		DateLancement: s.timestamp(),
		NotesVersion:  "Version initiale",
		IsActive:      true,
	}
	if err := tx.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	if err := trail.record(ctx, tx, "create_initial", ResourceVersion, v.ID, &projetID, map[string]any{"version_numero": label}); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) CreateVersion(ctx context.Context, req CreateVersionRequest) (v *VersionProjet, err error) {
	const op = "create_version"
	defer s.observe(op, time.Now(), &err)

	label := strings.TrimSpace(req.VersionNumero)
	if label == "" {
		return nil, validationErr(op, "version_numero", ErrRequired, "")
	}

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := tx.LockProjet(ctx, req.ProjetID); err != nil {
			return err
		}
		versions, err := tx.ListVersions(ctx, req.ProjetID)
		if err != nil {
			return err
		}
		for _, existing := range versions {
			if existing.VersionNumero == label {
				return conflictErr(op, ErrAlreadyExists, "version "+label)
			}
		}

		launch := req.DateLancement.UTC().Truncate(time.Microsecond)
		if req.DateLancement.IsZero() {
			launch = s.timestamp()
		}
		v = &VersionProjet{
			ID:            uuid.New(),
			ProjetID:      req.ProjetID,
			VersionNumero: label,
			DateLancement: launch,
			NotesVersion:  req.NotesVersion,
		}
		if err := tx.CreateVersion(ctx, v); err != nil {
			return err
		}
		return trail.record(ctx, tx, "create", ResourceVersion, v.ID, &v.ProjetID, map[string]any{"version_numero": label})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) GetVersion(ctx context.Context, id uuid.UUID) (v *VersionProjet, err error) {
	defer s.observe("get_version", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		v, err = tx.GetVersion(ctx, id)
		return err
	})
	return v, err
}

func (s *service) ListVersions(ctx context.Context, projetID uuid.UUID) (versions []*VersionProjet, err error) {
	defer s.observe("list_versions", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		if _, err := tx.GetProjet(ctx, projetID); err != nil {
			return err
		}
		var err error
		versions, err = tx.ListVersions(ctx, projetID)
		return err
	})
	return versions, err
}

func (s *service) GetActiveVersion(ctx context.Context, projetID uuid.UUID) (v *VersionProjet, err error) {
	defer s.observe("get_active_version", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		v, err = activeVersion(ctx, tx, "get_active_version", projetID)
		return err
	})
	return v, err
}

// Activate makes the version the Projet's only active one and returns how
// many versions it deactivated.
func (s *service) Activate(ctx context.Context, versionID uuid.UUID) (deactivated int, err error) {
	const op = "activate_version"
	defer s.observe(op, time.Now(), &err)

	var v *VersionProjet
	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		deactivated = 0
		current, err := tx.GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if err := tx.LockProjet(ctx, current.ProjetID); err != nil {
			return err
		}
		// Re-read under the lock; a concurrent activation may have committed.
		if v, err = tx.GetVersion(ctx, versionID); err != nil {
			return err
		}
		if v.IsArchived {
			return preconditionErr(op, ErrArchivedVersion, v.VersionNumero)
		}
		if v.IsActive {
			return nil
		}

		n, err := tx.DeactivateVersions(ctx, v.ProjetID, v.ID)
		if err != nil {
			return err
		}
		v.IsActive = true
		if err := tx.UpdateVersion(ctx, v); err != nil {
			return err
		}
		deactivated = n
		return trail.record(ctx, tx, "activate", ResourceVersion, v.ID, &v.ProjetID, map[string]any{
			"version_numero": v.VersionNumero,
			"deactivated":    n,
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("version activated", "version_id", v.ID, "projet_id", v.ProjetID, "deactivated", deactivated)
	return deactivated, nil
}

// ArchiveNonActive archives every version of the Projet except the active one.
func (s *service) ArchiveNonActive(ctx context.Context, projetID uuid.UUID) (archived int, err error) {
	const op = "archive_versions"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		archived = 0
		if err := tx.LockProjet(ctx, projetID); err != nil {
			return err
		}
		active, err := activeVersion(ctx, tx, op, projetID)
		if err != nil {
			return err
		}
		n, err := tx.ArchiveVersions(ctx, projetID, active.ID)
		if err != nil {
			return err
		}
		archived = n
		return trail.record(ctx, tx, "archive_others", ResourceProjet, projetID, &projetID, map[string]any{
			"active_version": active.VersionNumero,
			"archived":       n,
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("versions archived", "projet_id", projetID, "archived", archived)
	return archived, nil
}

// Clone creates an inactive copy of the source version carrying duplicates
// of its active Rubriques. Any failure leaves nothing behind.
func (s *service) Clone(ctx context.Context, sourceVersionID uuid.UUID) (clone *VersionProjet, err error) {
	const op = "clone_version"
	defer s.observe(op, time.Now(), &err)

	copied := 0
	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		src, err := tx.GetVersion(ctx, sourceVersionID)
		if err != nil {
			return err
		}
		if err := tx.LockProjet(ctx, src.ProjetID); err != nil {
			return err
		}
		versions, err := tx.ListVersions(ctx, src.ProjetID)
		if err != nil {
			return err
		}

		now := s.timestamp()
		clone = &VersionProjet{
			ID:            uuid.New(),
			ProjetID:      src.ProjetID,
			VersionNumero: cloneLabel(src.VersionNumero, versions),
			DateLancement: now,
			NotesVersion:  "Clonage de " + src.VersionNumero,
		}
		if err := tx.CreateVersion(ctx, clone); err != nil {
			return err
		}

		rubriques, err := tx.ListRubriques(ctx, RubriqueFilter{VersionProjetID: &src.ID, ActiveOnly: true})
		if err != nil {
			return err
		}
		for _, r := range rubriques {
			dup := *r
			dup.ID = uuid.New()
			dup.VersionProjetID = &clone.ID
			dup.LockedBy = ""
			dup.LockedAt = nil
			dup.DateCreation = now
			dup.DateMiseAJour = now
			dup.IsActive = true
			dup.IsArchived = false
			if err := tx.CreateRubrique(ctx, &dup); err != nil {
				return fmt.Errorf("duplicate rubrique %s: %w", r.ID, err)
			}
		}
		copied = len(rubriques)

		return trail.record(ctx, tx, "clone", ResourceVersion, clone.ID, &clone.ProjetID, map[string]any{
			"source_version": src.ID,
			"rubriques":      copied,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("version cloned", "source_version_id", sourceVersionID, "version_id", clone.ID, "rubriques", copied)
	return clone, nil
}

// VerifyVersions checks that the Projet has exactly one active version.
func (s *service) VerifyVersions(ctx context.Context, projetID uuid.UUID) (err error) {
	const op = "verify_versions"
	defer s.observe(op, time.Now(), &err)

	return s.read(ctx, func(tx Tx) error {
		if _, err := tx.GetProjet(ctx, projetID); err != nil {
			return err
		}
		versions, err := tx.ListVersions(ctx, projetID)
		if err != nil {
			return err
		}
		active := 0
		for _, v := range versions {
			if v.IsActive {
				active++
			}
		}
		switch {
		case active == 0:
			return preconditionErr(op, ErrNoActiveVersion, "")
		case active > 1:
			return preconditionErr(op, ErrMultipleActive, fmt.Sprintf("%d active versions", active))
		}
		return nil
	})
}

// activeVersion returns the Projet's active version or a precondition error
// wrapping ErrNoActiveVersion.
func activeVersion(ctx context.Context, tx Tx, op string, projetID uuid.UUID) (*VersionProjet, error) {
	versions, err := tx.ListVersions(ctx, projetID)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.IsActive {
			return v, nil
		}
	}
	if len(versions) == 0 {
		if _, err := tx.GetProjet(ctx, projetID); err != nil {
			return nil, err
		}
	}
	return nil, preconditionErr(op, ErrNoActiveVersion, "")
}

// cloneLabel appends the clone suffix, numbering it when the plain suffixed
// label is already taken.
func cloneLabel(source string, existing []*VersionProjet) string {
	taken := make(map[string]bool, len(existing))
	for _, v := range existing {
		taken[v.VersionNumero] = true
	}
	label := source + CloneSuffix
	for i := 2; taken[label]; i++ {
		label = fmt.Sprintf("%s%s%d", source, CloneSuffix, i)
	}
	return label
}

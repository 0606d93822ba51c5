package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/documentum/pkg/documentum"
)

const projetColumns = `id, nom, description, auteur, gamme_id, date_creation, date_mise_a_jour`

func scanProjet(row pgx.Row) (*documentum.Projet, error) {
	var p documentum.Projet
	err := row.Scan(&p.ID, &p.Nom, &p.Description, &p.Auteur, &p.GammeID, &p.DateCreation, &p.DateMiseAJour)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) CreateProjet(ctx context.Context, p *documentum.Projet) error {
	query := `
		INSERT INTO projet (` + projetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := t.db.Exec(ctx, query, p.ID, p.Nom, p.Description, p.Auteur, p.GammeID, p.DateCreation, p.DateMiseAJour)
	if err != nil {
		return handlePostgresError("create_projet", err)
	}
	return nil
}

func (t *pgTx) GetProjet(ctx context.Context, id uuid.UUID) (*documentum.Projet, error) {
	query := `SELECT ` + projetColumns + ` FROM projet WHERE id = $1`
	p, err := scanProjet(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, getError("get_projet", "projet", id, err)
	}
	return p, nil
}

func (t *pgTx) ListProjets(ctx context.Context) ([]*documentum.Projet, error) {
	query := `SELECT ` + projetColumns + ` FROM projet ORDER BY date_creation, id`
	rows, err := t.db.Query(ctx, query)
	if err != nil {
		return nil, handlePostgresError("list_projets", err)
	}
	return collect(rows, "list_projets", scanProjet)
}

func (t *pgTx) UpdateProjet(ctx context.Context, p *documentum.Projet) error {
	query := `
		UPDATE projet SET
			nom = $2, description = $3, auteur = $4, gamme_id = $5, date_mise_a_jour = $6
		WHERE id = $1`
	return t.execOne(ctx, "update_projet", "projet", p.ID, query,
		p.ID, p.Nom, p.Description, p.Auteur, p.GammeID, p.DateMiseAJour)
}

func (t *pgTx) LockProjet(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := t.db.QueryRow(ctx, `SELECT id FROM projet WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		return getError("lock_projet", "projet", id, err)
	}
	return nil
}

// Versions

const versionColumns = `id, projet_id, version_numero, date_lancement, notes_version, is_active, is_archived`

func scanVersion(row pgx.Row) (*documentum.VersionProjet, error) {
	var v documentum.VersionProjet
	err := row.Scan(&v.ID, &v.ProjetID, &v.VersionNumero, &v.DateLancement, &v.NotesVersion, &v.IsActive, &v.IsArchived)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *pgTx) CreateVersion(ctx context.Context, v *documentum.VersionProjet) error {
	query := `
		INSERT INTO version_projet (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := t.db.Exec(ctx, query, v.ID, v.ProjetID, v.VersionNumero, v.DateLancement, v.NotesVersion, v.IsActive, v.IsArchived)
	if err != nil {
		return handlePostgresError("create_version", err)
	}
	return nil
}

func (t *pgTx) GetVersion(ctx context.Context, id uuid.UUID) (*documentum.VersionProjet, error) {
	query := `SELECT ` + versionColumns + ` FROM version_projet WHERE id = $1`
	v, err := scanVersion(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, getError("get_version", "version", id, err)
	}
	return v, nil
}

func (t *pgTx) ListVersions(ctx context.Context, projetID uuid.UUID) ([]*documentum.VersionProjet, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM version_projet WHERE projet_id = $1
		ORDER BY date_lancement, id`
	rows, err := t.db.Query(ctx, query, projetID)
	if err != nil {
		return nil, handlePostgresError("list_versions", err)
	}
	return collect(rows, "list_versions", scanVersion)
}

func (t *pgTx) UpdateVersion(ctx context.Context, v *documentum.VersionProjet) error {
	query := `
		UPDATE version_projet SET
			version_numero = $2, date_lancement = $3, notes_version = $4,
			is_active = $5, is_archived = $6
		WHERE id = $1`
	return t.execOne(ctx, "update_version", "version", v.ID, query,
		v.ID, v.VersionNumero, v.DateLancement, v.NotesVersion, v.IsActive, v.IsArchived)
}

func (t *pgTx) DeactivateVersions(ctx context.Context, projetID, keep uuid.UUID) (int, error) {
	query := `
		UPDATE version_projet SET is_active = FALSE
		WHERE projet_id = $1 AND id <> $2 AND is_active`
	tag, err := t.db.Exec(ctx, query, projetID, keep)
	if err != nil {
		return 0, handlePostgresError("deactivate_versions", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) ArchiveVersions(ctx context.Context, projetID, keep uuid.UUID) (int, error) {
	query := `
		UPDATE version_projet SET is_archived = TRUE, is_active = FALSE
		WHERE projet_id = $1 AND id <> $2 AND NOT is_archived`
	tag, err := t.db.Exec(ctx, query, projetID, keep)
	if err != nil {
		return 0, handlePostgresError("archive_versions", err)
	}
	return int(tag.RowsAffected()), nil
}

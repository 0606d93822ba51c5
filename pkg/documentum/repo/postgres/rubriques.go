package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/documentum/pkg/documentum"
)

const rubriqueColumns = `
	id, projet_id, version_projet_id, version_precedente_id, fonctionnalite_id,
	titre, contenu_xml, auteur, type_rubrique, audience, revision_numero, version,
	is_active, is_archived, locked_by, locked_at, date_creation, date_mise_a_jour`

func scanRubrique(row pgx.Row) (*documentum.Rubrique, error) {
	var r documentum.Rubrique
	err := row.Scan(
		&r.ID, &r.ProjetID, &r.VersionProjetID, &r.VersionPrecedenteID, &r.FonctionnaliteID,
		&r.Titre, &r.ContenuXML, &r.Auteur, &r.TypeRubrique, &r.Audience, &r.RevisionNumero, &r.Version,
		&r.IsActive, &r.IsArchived, &r.LockedBy, &r.LockedAt, &r.DateCreation, &r.DateMiseAJour)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *pgTx) CreateRubrique(ctx context.Context, r *documentum.Rubrique) error {
	query := `
		INSERT INTO rubrique (` + rubriqueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := t.db.Exec(ctx, query,
		r.ID, r.ProjetID, r.VersionProjetID, r.VersionPrecedenteID, r.FonctionnaliteID,
		r.Titre, r.ContenuXML, r.Auteur, r.TypeRubrique, r.Audience, r.RevisionNumero, r.Version,
		r.IsActive, r.IsArchived, r.LockedBy, r.LockedAt, r.DateCreation, r.DateMiseAJour)
	if err != nil {
		return handlePostgresError("create_rubrique", err)
	}
	return nil
}

func (t *pgTx) GetRubrique(ctx context.Context, id uuid.UUID) (*documentum.Rubrique, error) {
	query := `SELECT ` + rubriqueColumns + ` FROM rubrique WHERE id = $1`
	r, err := scanRubrique(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, getError("get_rubrique", "rubrique", id, err)
	}
	return r, nil
}

func (t *pgTx) GetRubriqueForUpdate(ctx context.Context, id uuid.UUID) (*documentum.Rubrique, error) {
	query := `SELECT ` + rubriqueColumns + ` FROM rubrique WHERE id = $1 FOR UPDATE`
	r, err := scanRubrique(t.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, getError("get_rubrique_for_update", "rubrique", id, err)
	}
	return r, nil
}

func (t *pgTx) ListRubriques(ctx context.Context, f documentum.RubriqueFilter) ([]*documentum.Rubrique, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.ProjetID != nil {
		conds = append(conds, "projet_id = "+arg(*f.ProjetID))
	}
	if f.VersionProjetID != nil {
		conds = append(conds, "version_projet_id = "+arg(*f.VersionProjetID))
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active AND NOT is_archived")
	}
	if !f.IncludeArchived {
		conds = append(conds, "NOT is_archived")
	}

	query := `SELECT ` + rubriqueColumns + ` FROM rubrique`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date_creation, id`

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError("list_rubriques", err)
	}
	return collect(rows, "list_rubriques", scanRubrique)
}

func (t *pgTx) UpdateRubrique(ctx context.Context, r *documentum.Rubrique) error {
	query := `
		UPDATE rubrique SET
			projet_id = $2, version_projet_id = $3, version_precedente_id = $4, fonctionnalite_id = $5,
			titre = $6, contenu_xml = $7, auteur = $8, type_rubrique = $9, audience = $10,
			revision_numero = $11, version = $12, is_active = $13, is_archived = $14,
			locked_by = $15, locked_at = $16, date_mise_a_jour = $17
		WHERE id = $1`
	return t.execOne(ctx, "update_rubrique", "rubrique", r.ID, query,
		r.ID, r.ProjetID, r.VersionProjetID, r.VersionPrecedenteID, r.FonctionnaliteID,
		r.Titre, r.ContenuXML, r.Auteur, r.TypeRubrique, r.Audience,
		r.RevisionNumero, r.Version, r.IsActive, r.IsArchived,
		r.LockedBy, r.LockedAt, r.DateMiseAJour)
}

package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/documentum/pkg/documentum"
)

// Taxonomy

const taxonColumns = `id, kind, nom, description, code, abreviation, parent_id, related_ids, is_archived, created_at`

func scanTaxon(row pgx.Row) (*documentum.Taxon, error) {
	var x documentum.Taxon
	err := row.Scan(&x.ID, &x.Kind, &x.Nom, &x.Description, &x.Code, &x.Abreviation,
		&x.ParentID, &x.RelatedIDs, &x.IsArchived, &x.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(x.RelatedIDs) == 0 {
		x.RelatedIDs = nil
	}
	return &x, nil
}

func relatedIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func (t *pgTx) CreateTaxon(ctx context.Context, x *documentum.Taxon) error {
	query := `INSERT INTO taxon (` + taxonColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := t.db.Exec(ctx, query, x.ID, string(x.Kind), x.Nom, x.Description, x.Code, x.Abreviation,
		x.ParentID, relatedIDs(x.RelatedIDs), x.IsArchived, x.CreatedAt)
	if err != nil {
		return handlePostgresError("create_taxon", err)
	}
	return nil
}

func (t *pgTx) GetTaxon(ctx context.Context, id uuid.UUID) (*documentum.Taxon, error) {
	x, err := scanTaxon(t.db.QueryRow(ctx, `SELECT `+taxonColumns+` FROM taxon WHERE id = $1`, id))
	if err != nil {
		return nil, getError("get_taxon", "taxon", id, err)
	}
	return x, nil
}

func (t *pgTx) ListTaxa(ctx context.Context, kind documentum.TaxonKind, includeArchived bool) ([]*documentum.Taxon, error) {
	query := `
		SELECT ` + taxonColumns + ` FROM taxon
		WHERE kind = $1 AND ($2 OR NOT is_archived)
		ORDER BY nom COLLATE "C", id`
	rows, err := t.db.Query(ctx, query, string(kind), includeArchived)
	if err != nil {
		return nil, handlePostgresError("list_taxa", err)
	}
	return collect(rows, "list_taxa", scanTaxon)
}

func (t *pgTx) UpdateTaxon(ctx context.Context, x *documentum.Taxon) error {
	query := `
		UPDATE taxon SET
			nom = $2, description = $3, code = $4, abreviation = $5,
			parent_id = $6, related_ids = $7, is_archived = $8
		WHERE id = $1`
	return t.execOne(ctx, "update_taxon", "taxon", x.ID, query,
		x.ID, x.Nom, x.Description, x.Code, x.Abreviation, x.ParentID, relatedIDs(x.RelatedIDs), x.IsArchived)
}

// Media

const mediaColumns = `
	id, produit_id, rubrique_id, type_media, nom_fichier, description, mime_type,
	size, storage_backend, object_key, is_archived, date_creation`

func scanMedia(row pgx.Row) (*documentum.Media, error) {
	var m documentum.Media
	err := row.Scan(&m.ID, &m.ProduitID, &m.RubriqueID, &m.TypeMedia, &m.NomFichier, &m.Description, &m.MimeType,
		&m.Size, &m.StorageBackend, &m.ObjectKey, &m.IsArchived, &m.DateCreation)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) CreateMedia(ctx context.Context, m *documentum.Media) error {
	query := `INSERT INTO media (` + mediaColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := t.db.Exec(ctx, query, m.ID, m.ProduitID, m.RubriqueID, m.TypeMedia, m.NomFichier, m.Description, m.MimeType,
		m.Size, m.StorageBackend, m.ObjectKey, m.IsArchived, m.DateCreation)
	if err != nil {
		return handlePostgresError("create_media", err)
	}
	return nil
}

func (t *pgTx) GetMedia(ctx context.Context, id uuid.UUID) (*documentum.Media, error) {
	m, err := scanMedia(t.db.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id))
	if err != nil {
		return nil, getError("get_media", "media", id, err)
	}
	return m, nil
}

func (t *pgTx) ListMedia(ctx context.Context, f documentum.MediaFilter) ([]*documentum.Media, error) {
	var (
		conds []string
		args  []any
	)
	if f.ProduitID != nil {
		args = append(args, *f.ProduitID)
		conds = append(conds, "produit_id = $"+strconv.Itoa(len(args)))
	}
	if f.RubriqueID != nil {
		args = append(args, *f.RubriqueID)
		conds = append(conds, "rubrique_id = $"+strconv.Itoa(len(args)))
	}
	if !f.IncludeArchived {
		conds = append(conds, "NOT is_archived")
	}

	query := `SELECT ` + mediaColumns + ` FROM media`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date_creation, id`

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError("list_media", err)
	}
	return collect(rows, "list_media", scanMedia)
}

func (t *pgTx) UpdateMedia(ctx context.Context, m *documentum.Media) error {
	query := `
		UPDATE media SET
			rubrique_id = $2, description = $3, mime_type = $4, is_archived = $5
		WHERE id = $1`
	return t.execOne(ctx, "update_media", "media", m.ID, query, m.ID, m.RubriqueID, m.Description, m.MimeType, m.IsArchived)
}

// Publication

const profilColumns = `id, nom, type_sortie, map_id, parametres, is_archived, created_at`

func scanProfil(row pgx.Row) (*documentum.ProfilPublication, error) {
	var p documentum.ProfilPublication
	if err := row.Scan(&p.ID, &p.Nom, &p.TypeSortie, &p.MapID, &p.Parametres, &p.IsArchived, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) CreateProfil(ctx context.Context, p *documentum.ProfilPublication) error {
	query := `INSERT INTO profil_publication (` + profilColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.db.Exec(ctx, query, p.ID, p.Nom, p.TypeSortie, p.MapID, p.Parametres, p.IsArchived, p.CreatedAt)
	if err != nil {
		return handlePostgresError("create_profil", err)
	}
	return nil
}

func (t *pgTx) GetProfil(ctx context.Context, id uuid.UUID) (*documentum.ProfilPublication, error) {
	p, err := scanProfil(t.db.QueryRow(ctx, `SELECT `+profilColumns+` FROM profil_publication WHERE id = $1`, id))
	if err != nil {
		return nil, getError("get_profil", "profil", id, err)
	}
	return p, nil
}

func (t *pgTx) ListProfils(ctx context.Context, includeArchived bool) ([]*documentum.ProfilPublication, error) {
	query := `
		SELECT ` + profilColumns + ` FROM profil_publication
		WHERE $1 OR NOT is_archived
		ORDER BY nom COLLATE "C", id`
	rows, err := t.db.Query(ctx, query, includeArchived)
	if err != nil {
		return nil, handlePostgresError("list_profils", err)
	}
	return collect(rows, "list_profils", scanProfil)
}

func (t *pgTx) UpdateProfil(ctx context.Context, p *documentum.ProfilPublication) error {
	query := `
		UPDATE profil_publication SET
			nom = $2, type_sortie = $3, map_id = $4, parametres = $5, is_archived = $6
		WHERE id = $1`
	return t.execOne(ctx, "update_profil", "profil", p.ID, query, p.ID, p.Nom, p.TypeSortie, p.MapID, p.Parametres, p.IsArchived)
}

const exportColumns = `id, map_id, format, utilisateur, chemin_export, files, date_export`

func scanExport(row pgx.Row) (*documentum.ExportRecord, error) {
	var e documentum.ExportRecord
	if err := row.Scan(&e.ID, &e.MapID, &e.Format, &e.Actor, &e.Path, &e.Files, &e.DateExport); err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTx) CreateExport(ctx context.Context, e *documentum.ExportRecord) error {
	query := `INSERT INTO export_record (` + exportColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.db.Exec(ctx, query, e.ID, e.MapID, e.Format, e.Actor, e.Path, e.Files, e.DateExport)
	if err != nil {
		return handlePostgresError("create_export", err)
	}
	return nil
}

func (t *pgTx) ListExports(ctx context.Context, mapID uuid.UUID) ([]*documentum.ExportRecord, error) {
	query := `SELECT ` + exportColumns + ` FROM export_record WHERE map_id = $1 ORDER BY date_export DESC, id`
	rows, err := t.db.Query(ctx, query, mapID)
	if err != nil {
		return nil, handlePostgresError("list_exports", err)
	}
	return collect(rows, "list_exports", scanExport)
}

// Audit

const auditColumns = `id, actor, action, resource_type, resource_id, projet_id, details, created_at`

func scanAudit(row pgx.Row) (*documentum.AuditEntry, error) {
	var e documentum.AuditEntry
	err := row.Scan(&e.ID, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &e.ProjetID, &e.Details, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e *documentum.AuditEntry) error {
	query := `INSERT INTO audit_log (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := t.db.Exec(ctx, query, e.ID, e.Actor, e.Action, e.ResourceType, e.ResourceID, e.ProjetID, e.Details, e.CreatedAt)
	if err != nil {
		return handlePostgresError("append_audit", err)
	}
	return nil
}

func (t *pgTx) ListAudit(ctx context.Context, f documentum.AuditFilter) ([]*documentum.AuditEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		conds = append(conds, "resource_type = $"+strconv.Itoa(len(args)))
	}
	if f.ResourceID != nil {
		args = append(args, *f.ResourceID)
		conds = append(conds, "resource_id = $"+strconv.Itoa(len(args)))
	}
	if f.ProjetID != nil {
		args = append(args, *f.ProjetID)
		conds = append(conds, "projet_id = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY seq DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError("list_audit", err)
	}
	return collect(rows, "list_audit", scanAudit)
}

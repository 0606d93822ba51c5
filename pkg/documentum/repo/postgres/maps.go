package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/documentum/pkg/documentum"
)

const mapColumns = `id, projet_id, nom, type_map, is_master, date_creation`

func scanMap(row pgx.Row) (*documentum.Map, error) {
	var m documentum.Map
	if err := row.Scan(&m.ID, &m.ProjetID, &m.Nom, &m.TypeMap, &m.IsMaster, &m.DateCreation); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) CreateMap(ctx context.Context, m *documentum.Map) error {
	query := `INSERT INTO map (` + mapColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := t.db.Exec(ctx, query, m.ID, m.ProjetID, m.Nom, m.TypeMap, m.IsMaster, m.DateCreation)
	if err != nil {
		return handlePostgresError("create_map", err)
	}
	return nil
}

func (t *pgTx) GetMap(ctx context.Context, id uuid.UUID) (*documentum.Map, error) {
	m, err := scanMap(t.db.QueryRow(ctx, `SELECT `+mapColumns+` FROM map WHERE id = $1`, id))
	if err != nil {
		return nil, getError("get_map", "map", id, err)
	}
	return m, nil
}

func (t *pgTx) ListMaps(ctx context.Context, projetID uuid.UUID) ([]*documentum.Map, error) {
	query := `SELECT ` + mapColumns + ` FROM map WHERE projet_id = $1 ORDER BY date_creation, id`
	rows, err := t.db.Query(ctx, query, projetID)
	if err != nil {
		return nil, handlePostgresError("list_maps", err)
	}
	return collect(rows, "list_maps", scanMap)
}

func (t *pgTx) LockMap(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := t.db.QueryRow(ctx, `SELECT id FROM map WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		return getError("lock_map", "map", id, err)
	}
	return nil
}

// Map entries

const entryColumns = `id, map_id, rubrique_id, ordre, parent_id`

func scanEntry(row pgx.Row) (*documentum.MapRubrique, error) {
	var e documentum.MapRubrique
	if err := row.Scan(&e.ID, &e.MapID, &e.RubriqueID, &e.Ordre, &e.ParentID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTx) CreateMapEntry(ctx context.Context, e *documentum.MapRubrique) error {
	query := `INSERT INTO map_rubrique (` + entryColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := t.db.Exec(ctx, query, e.ID, e.MapID, e.RubriqueID, e.Ordre, e.ParentID)
	if err != nil {
		return handlePostgresError("create_map_entry", err)
	}
	return nil
}

func (t *pgTx) GetMapEntry(ctx context.Context, id uuid.UUID) (*documentum.MapRubrique, error) {
	e, err := scanEntry(t.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM map_rubrique WHERE id = $1`, id))
	if err != nil {
		return nil, getError("get_map_entry", "map entry", id, err)
	}
	return e, nil
}

func (t *pgTx) ListMapEntries(ctx context.Context, mapID uuid.UUID) ([]*documentum.MapRubrique, error) {
	query := `SELECT ` + entryColumns + ` FROM map_rubrique WHERE map_id = $1 ORDER BY ordre, id`
	rows, err := t.db.Query(ctx, query, mapID)
	if err != nil {
		return nil, handlePostgresError("list_map_entries", err)
	}
	return collect(rows, "list_map_entries", scanEntry)
}

func (t *pgTx) UpdateMapEntry(ctx context.Context, e *documentum.MapRubrique) error {
	query := `UPDATE map_rubrique SET rubrique_id = $2, ordre = $3, parent_id = $4 WHERE id = $1`
	return t.execOne(ctx, "update_map_entry", "map entry", e.ID, query, e.ID, e.RubriqueID, e.Ordre, e.ParentID)
}

func (t *pgTx) DeleteMapEntry(ctx context.Context, id uuid.UUID) error {
	return t.execOne(ctx, "delete_map_entry", "map entry", id, `DELETE FROM map_rubrique WHERE id = $1`, id)
}

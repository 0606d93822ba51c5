package documentum

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

var mapTypes = map[string]bool{
	MapTypeMaitre:        true,
	MapTypeFille:         true,
	MapTypeDocumentation: true,
	MapTypeAideEnLigne:   true,
	MapTypeFichePratique: true,
	MapTypeCours:         true,
}

func (s *service) CreateMap(ctx context.Context, req CreateMapRequest) (m *Map, err error) {
	const op = "create_map"
	defer s.observe(op, time.Now(), &err)

	nom := strings.TrimSpace(req.Nom)
	if nom == "" {
		return nil, validationErr(op, "nom", ErrRequired, "")
	}
	typ := req.TypeMap
	if typ == "" {
		typ = MapTypeDocumentation
		if req.IsMaster {
			typ = MapTypeMaitre
		}
	}
	if !mapTypes[typ] {
		return nil, validationErr(op, "type_map", ErrInvalidValue, typ)
	}

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := tx.LockProjet(ctx, req.ProjetID); err != nil {
			return err
		}
		if req.IsMaster {
			maps, err := tx.ListMaps(ctx, req.ProjetID)
			if err != nil {
				return err
			}
			for _, existing := range maps {
				if existing.IsMaster {
					return conflictErr(op, ErrAlreadyExists, "master map "+existing.Nom)
				}
			}
		}
		m = &Map{
			ID:           uuid.New(),
			ProjetID:     req.ProjetID,
			Nom:          nom,
			TypeMap:      typ,
			IsMaster:     req.IsMaster,
			DateCreation: s.timestamp(),
		}
		if err := tx.CreateMap(ctx, m); err != nil {
			return err
		}
		return trail.record(ctx, tx, "create", ResourceMap, m.ID, &m.ProjetID, map[string]any{"nom": m.Nom, "is_master": m.IsMaster})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) GetMap(ctx context.Context, id uuid.UUID) (m *Map, err error) {
	defer s.observe("get_map", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		m, err = tx.GetMap(ctx, id)
		return err
	})
	return m, err
}

func (s *service) ListMaps(ctx context.Context, projetID uuid.UUID) (maps []*Map, err error) {
	defer s.observe("list_maps", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		maps, err = tx.ListMaps(ctx, projetID)
		return err
	})
	return maps, err
}

func (s *service) AddMapEntry(ctx context.Context, req AddMapEntryRequest) (e *MapRubrique, err error) {
	const op = "add_map_entry"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := tx.LockMap(ctx, req.MapID); err != nil {
			return err
		}
		m, err := tx.GetMap(ctx, req.MapID)
		if err != nil {
			return err
		}
		r, err := tx.GetRubrique(ctx, req.RubriqueID)
		if err != nil {
			return err
		}
		if r.ProjetID != m.ProjetID {
			return validationErr(op, "rubrique_id", ErrInvalidValue, "rubrique belongs to another projet")
		}
		entries, err := tx.ListMapEntries(ctx, m.ID)
		if err != nil {
			return err
		}
		if req.ParentID != nil && !containsEntry(entries, *req.ParentID) {
			return validationErr(op, "parent_id", ErrInvalidValue, "parent is not an entry of this map")
		}

		ordre := 0
		if req.Ordre != nil {
			ordre = *req.Ordre
		} else {
			for _, existing := range entries {
				if existing.Ordre >= ordre {
					ordre = existing.Ordre + 1
				}
			}
		}

		e = &MapRubrique{
			ID:         uuid.New(),
			MapID:      m.ID,
			RubriqueID: r.ID,
			Ordre:      ordre,
			ParentID:   req.ParentID,
		}
		if err := tx.CreateMapEntry(ctx, e); err != nil {
			return err
		}
		return trail.record(ctx, tx, "add_entry", ResourceMap, m.ID, &m.ProjetID, map[string]any{
			"entry_id":    e.ID,
			"rubrique_id": r.ID,
			"ordre":       ordre,
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// MoveMapEntry changes an entry's parent and order. Moving an entry under
// itself or one of its descendants is rejected.
func (s *service) MoveMapEntry(ctx context.Context, entryID uuid.UUID, req MoveMapEntryRequest) (e *MapRubrique, err error) {
	const op = "move_map_entry"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		m, err := lockEntryMap(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e, err = tx.GetMapEntry(ctx, entryID); err != nil {
			return err
		}
		if req.ParentID != nil {
			entries, err := tx.ListMapEntries(ctx, e.MapID)
			if err != nil {
				return err
			}
			if !containsEntry(entries, *req.ParentID) {
				return validationErr(op, "parent_id", ErrInvalidValue, "parent is not an entry of this map")
			}
			if createsCycle(entries, entryID, *req.ParentID) {
				return validationErr(op, "parent_id", ErrCycle, "")
			}
		}
		e.ParentID = req.ParentID
		e.Ordre = req.Ordre
		if err := tx.UpdateMapEntry(ctx, e); err != nil {
			return err
		}
		return trail.record(ctx, tx, "move_entry", ResourceMap, m.ID, &m.ProjetID, map[string]any{
			"entry_id": e.ID,
			"ordre":    e.Ordre,
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *service) RemoveMapEntry(ctx context.Context, entryID uuid.UUID) (err error) {
	const op = "remove_map_entry"
	defer s.observe(op, time.Now(), &err)

	return s.write(ctx, func(tx Tx, trail *auditTrail) error {
		m, err := lockEntryMap(ctx, tx, entryID)
		if err != nil {
			return err
		}
		e, err := tx.GetMapEntry(ctx, entryID)
		if err != nil {
			return err
		}
		entries, err := tx.ListMapEntries(ctx, e.MapID)
		if err != nil {
			return err
		}
		for _, other := range entries {
			if other.ParentID != nil && *other.ParentID == entryID {
				return preconditionErr(op, ErrHasChildren, e.ID.String())
			}
		}
		if err := tx.DeleteMapEntry(ctx, entryID); err != nil {
			return err
		}
		return trail.record(ctx, tx, "remove_entry", ResourceMap, m.ID, &m.ProjetID, map[string]any{
			"entry_id":    e.ID,
			"rubrique_id": e.RubriqueID,
		})
	})
}

// lockEntryMap locks the Map owning entryID. The entry is read again by the
// caller once the lock is held.
func lockEntryMap(ctx context.Context, tx Tx, entryID uuid.UUID) (*Map, error) {
	e, err := tx.GetMapEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := tx.LockMap(ctx, e.MapID); err != nil {
		return nil, err
	}
	return tx.GetMap(ctx, e.MapID)
}

// Resolve returns the Map's entries in order, the tree they form and the
// referenced Rubriques.
func (s *service) Resolve(ctx context.Context, mapID uuid.UUID) (resolved *ResolvedMap, err error) {
	defer s.observe("resolve_map", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		resolved, err = resolveMap(ctx, tx, mapID)
		return err
	})
	return resolved, err
}

func resolveMap(ctx context.Context, tx Tx, mapID uuid.UUID) (*ResolvedMap, error) {
	m, err := tx.GetMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	entries, err := tx.ListMapEntries(ctx, mapID)
	if err != nil {
		return nil, err
	}

	rubriques := make(map[uuid.UUID]*Rubrique, len(entries))
	for _, e := range entries {
		if _, ok := rubriques[e.RubriqueID]; ok {
			continue
		}
		r, err := tx.GetRubrique(ctx, e.RubriqueID)
		if err != nil {
			return nil, err
		}
		rubriques[r.ID] = r
	}

	roots, err := BuildTree(entries, rubriques)
	if err != nil {
		return nil, err
	}
	return &ResolvedMap{Map: m, Entries: entries, Roots: roots, Rubriques: rubriques}, nil
}

// BuildTree arranges ordered entries into a forest. Children keep the order
// of entries. Entries whose parent is missing or that sit on a parent cycle
// yield a validation error wrapping ErrCycle.
func BuildTree(entries []*MapRubrique, rubriques map[uuid.UUID]*Rubrique) ([]*MapNode, error) {
	const op = "resolve_map"

	nodes := make(map[uuid.UUID]*MapNode, len(entries))
	for _, e := range entries {
		nodes[e.ID] = &MapNode{Entry: e, Rubrique: rubriques[e.RubriqueID]}
	}

	var roots []*MapNode
	for _, e := range entries {
		node := nodes[e.ID]
		if e.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*e.ParentID]
		if !ok {
			return nil, validationErr(op, "parent_id", ErrCycle, "entry "+e.ID.String()+" has a dangling parent")
		}
		parent.Children = append(parent.Children, node)
	}

	reached := 0
	visited := make(map[uuid.UUID]bool, len(entries))
	var walk func(n *MapNode)
	walk = func(n *MapNode) {
		if visited[n.Entry.ID] {
			return
		}
		visited[n.Entry.ID] = true
		reached++
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	if reached != len(nodes) {
		return nil, validationErr(op, "parent_id", ErrCycle, "entries unreachable from any root")
	}
	return roots, nil
}

func containsEntry(entries []*MapRubrique, id uuid.UUID) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// createsCycle reports whether making parentID the parent of entryID would
// put entryID on its own ancestor chain.
func createsCycle(entries []*MapRubrique, entryID, parentID uuid.UUID) bool {
	parents := make(map[uuid.UUID]*uuid.UUID, len(entries))
	for _, e := range entries {
		parents[e.ID] = e.ParentID
	}
	seen := map[uuid.UUID]bool{}
	cur := &parentID
	for cur != nil {
		if *cur == entryID || seen[*cur] {
			return true
		}
		seen[*cur] = true
		cur = parents[*cur]
	}
	return false
}

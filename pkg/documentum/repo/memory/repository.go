package memory

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/documentum/pkg/documentum"
)

// DefaultLockTimeout bounds how long RunInTx waits for the store.
const DefaultLockTimeout = 5 * time.Second

// Repository implements documentum.Repository in memory. Transactions are
// serialized: each one works on a private copy of the data that replaces
// the shared copy only when fn succeeds.
type Repository struct {
	sem         chan struct{}
	lockTimeout time.Duration
	data        *state
}

// Option configures the repository
type Option func(*Repository)

// WithLockTimeout sets how long a transaction waits to start before failing
// with a retryable conflict. Zero waits until the context ends.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) {
		r.lockTimeout = d
	}
}

// New creates a new in-memory repository
func New(opts ...Option) *Repository {
	r := &Repository{
		sem:         make(chan struct{}, 1),
		lockTimeout: DefaultLockTimeout,
		data:        newState(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) RunInTx(ctx context.Context, fn func(tx documentum.Tx) error) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-r.sem }()

	tx := &memTx{st: r.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.data = tx.st
	return nil
}

func (r *Repository) acquire(ctx context.Context) error {
	var timeout <-chan time.Time
	if r.lockTimeout > 0 {
		timer := time.NewTimer(r.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return &documentum.ConflictError{Op: "begin", Err: documentum.ErrLockTimeout}
	}
}

type state struct {
	projets   map[uuid.UUID]documentum.Projet
	versions  map[uuid.UUID]documentum.VersionProjet
	rubriques map[uuid.UUID]documentum.Rubrique
	maps      map[uuid.UUID]documentum.Map
	entries   map[uuid.UUID]documentum.MapRubrique
	taxa      map[uuid.UUID]documentum.Taxon
	media     map[uuid.UUID]documentum.Media
	profils   map[uuid.UUID]documentum.ProfilPublication
	exports   map[uuid.UUID]documentum.ExportRecord
	audit     []documentum.AuditEntry
}

func newState() *state {
	return &state{
		projets:   make(map[uuid.UUID]documentum.Projet),
		versions:  make(map[uuid.UUID]documentum.VersionProjet),
		rubriques: make(map[uuid.UUID]documentum.Rubrique),
		maps:      make(map[uuid.UUID]documentum.Map),
		entries:   make(map[uuid.UUID]documentum.MapRubrique),
		taxa:      make(map[uuid.UUID]documentum.Taxon),
		media:     make(map[uuid.UUID]documentum.Media),
		profils:   make(map[uuid.UUID]documentum.ProfilPublication),
		exports:   make(map[uuid.UUID]documentum.ExportRecord),
	}
}

// clone copies the maps. Stored values never share pointers with callers
// (see the copy helpers), so a shallow copy of each map is enough.
func (s *state) clone() *state {
	return &state{
		projets:   maps.Clone(s.projets),
		versions:  maps.Clone(s.versions),
		rubriques: maps.Clone(s.rubriques),
		maps:      maps.Clone(s.maps),
		entries:   maps.Clone(s.entries),
		taxa:      maps.Clone(s.taxa),
		media:     maps.Clone(s.media),
		profils:   maps.Clone(s.profils),
		exports:   maps.Clone(s.exports),
		audit:     slices.Clone(s.audit),
	}
}

type memTx struct {
	st *state
}

func notFound(resource string, id uuid.UUID) error {
	return &documentum.NotFoundError{Resource: resource, ID: id}
}

func duplicate(op string, id uuid.UUID) error {
	return &documentum.ConflictError{Op: op, Err: documentum.ErrAlreadyExists, Detail: id.String()}
}

func missingRef(op, field string, id uuid.UUID) error {
	return &documentum.ValidationError{Op: op, Field: field, Err: documentum.ErrInvalidValue, Detail: "references missing " + id.String()}
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// Projets

func (t *memTx) CreateProjet(ctx context.Context, p *documentum.Projet) error {
	if _, ok := t.st.projets[p.ID]; ok {
		return duplicate("create_projet", p.ID)
	}
	t.st.projets[p.ID] = copyProjet(*p)
	return nil
}

func (t *memTx) GetProjet(ctx context.Context, id uuid.UUID) (*documentum.Projet, error) {
	p, ok := t.st.projets[id]
	if !ok {
		return nil, notFound("projet", id)
	}
	c := copyProjet(p)
	return &c, nil
}

func (t *memTx) ListProjets(ctx context.Context) ([]*documentum.Projet, error) {
	out := make([]*documentum.Projet, 0, len(t.st.projets))
	for _, p := range t.st.projets {
		c := copyProjet(p)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateCreation.Equal(out[j].DateCreation) {
			return out[i].DateCreation.Before(out[j].DateCreation)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) UpdateProjet(ctx context.Context, p *documentum.Projet) error {
	if _, ok := t.st.projets[p.ID]; !ok {
		return notFound("projet", p.ID)
	}
	t.st.projets[p.ID] = copyProjet(*p)
	return nil
}

// LockProjet only checks existence; the transaction already holds the store.
func (t *memTx) LockProjet(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.projets[id]; !ok {
		return notFound("projet", id)
	}
	return nil
}

// Versions

func (t *memTx) CreateVersion(ctx context.Context, v *documentum.VersionProjet) error {
	if _, ok := t.st.versions[v.ID]; ok {
		return duplicate("create_version", v.ID)
	}
	if _, ok := t.st.projets[v.ProjetID]; !ok {
		return missingRef("create_version", "projet_id", v.ProjetID)
	}
	if err := t.checkSingleActive("create_version", v); err != nil {
		return err
	}
	t.st.versions[v.ID] = *v
	return nil
}

func (t *memTx) GetVersion(ctx context.Context, id uuid.UUID) (*documentum.VersionProjet, error) {
	v, ok := t.st.versions[id]
	if !ok {
		return nil, notFound("version", id)
	}
	return &v, nil
}

func (t *memTx) ListVersions(ctx context.Context, projetID uuid.UUID) ([]*documentum.VersionProjet, error) {
	var out []*documentum.VersionProjet
	for _, v := range t.st.versions {
		if v.ProjetID == projetID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateLancement.Equal(out[j].DateLancement) {
			return out[i].DateLancement.Before(out[j].DateLancement)
		}
		return out[i].VersionNumero < out[j].VersionNumero
	})
	return out, nil
}

func (t *memTx) UpdateVersion(ctx context.Context, v *documentum.VersionProjet) error {
	if _, ok := t.st.versions[v.ID]; !ok {
		return notFound("version", v.ID)
	}
	if err := t.checkSingleActive("update_version", v); err != nil {
		return err
	}
	t.st.versions[v.ID] = *v
	return nil
}

// checkSingleActive mirrors the one-active-version unique index.
func (t *memTx) checkSingleActive(op string, v *documentum.VersionProjet) error {
	if !v.IsActive {
		return nil
	}
	for id, other := range t.st.versions {
		if id != v.ID && other.ProjetID == v.ProjetID && other.IsActive {
			return &documentum.ConflictError{Op: op, Err: documentum.ErrActiveVersionSet, Detail: other.VersionNumero}
		}
	}
	return nil
}

func (t *memTx) DeactivateVersions(ctx context.Context, projetID, keep uuid.UUID) (int, error) {
	n := 0
	for id, v := range t.st.versions {
		if v.ProjetID == projetID && id != keep && v.IsActive {
			v.IsActive = false
			t.st.versions[id] = v
			n++
		}
	}
	return n, nil
}

func (t *memTx) ArchiveVersions(ctx context.Context, projetID, keep uuid.UUID) (int, error) {
	n := 0
	for id, v := range t.st.versions {
		if v.ProjetID == projetID && id != keep && !v.IsArchived {
			v.IsArchived = true
			v.IsActive = false
			t.st.versions[id] = v
			n++
		}
	}
	return n, nil
}

// Rubriques

func (t *memTx) CreateRubrique(ctx context.Context, r *documentum.Rubrique) error {
	if _, ok := t.st.rubriques[r.ID]; ok {
		return duplicate("create_rubrique", r.ID)
	}
	if err := t.checkRubriqueRefs("create_rubrique", r); err != nil {
		return err
	}
	t.st.rubriques[r.ID] = copyRubrique(*r)
	return nil
}

func (t *memTx) checkRubriqueRefs(op string, r *documentum.Rubrique) error {
	if _, ok := t.st.projets[r.ProjetID]; !ok {
		return missingRef(op, "projet_id", r.ProjetID)
	}
	if r.VersionProjetID != nil {
		if _, ok := t.st.versions[*r.VersionProjetID]; !ok {
			return missingRef(op, "version_projet_id", *r.VersionProjetID)
		}
	}
	if r.VersionPrecedenteID != nil {
		if _, ok := t.st.rubriques[*r.VersionPrecedenteID]; !ok {
			return missingRef(op, "version_precedente_id", *r.VersionPrecedenteID)
		}
	}
	return nil
}

func (t *memTx) GetRubrique(ctx context.Context, id uuid.UUID) (*documentum.Rubrique, error) {
	r, ok := t.st.rubriques[id]
	if !ok {
		return nil, notFound("rubrique", id)
	}
	c := copyRubrique(r)
	return &c, nil
}

// GetRubriqueForUpdate needs no row lock beyond the transaction itself.
func (t *memTx) GetRubriqueForUpdate(ctx context.Context, id uuid.UUID) (*documentum.Rubrique, error) {
	return t.GetRubrique(ctx, id)
}

func (t *memTx) ListRubriques(ctx context.Context, f documentum.RubriqueFilter) ([]*documentum.Rubrique, error) {
	var out []*documentum.Rubrique
	for _, r := range t.st.rubriques {
		if f.ProjetID != nil && r.ProjetID != *f.ProjetID {
			continue
		}
		if f.VersionProjetID != nil && (r.VersionProjetID == nil || *r.VersionProjetID != *f.VersionProjetID) {
			continue
		}
		if f.ActiveOnly && (!r.IsActive || r.IsArchived) {
			continue
		}
		if r.IsArchived && !f.IncludeArchived {
			continue
		}
		c := copyRubrique(r)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateCreation.Equal(out[j].DateCreation) {
			return out[i].DateCreation.Before(out[j].DateCreation)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) UpdateRubrique(ctx context.Context, r *documentum.Rubrique) error {
	if _, ok := t.st.rubriques[r.ID]; !ok {
		return notFound("rubrique", r.ID)
	}
	if err := t.checkRubriqueRefs("update_rubrique", r); err != nil {
		return err
	}
	t.st.rubriques[r.ID] = copyRubrique(*r)
	return nil
}

// Maps

func (t *memTx) CreateMap(ctx context.Context, m *documentum.Map) error {
	if _, ok := t.st.maps[m.ID]; ok {
		return duplicate("create_map", m.ID)
	}
	if _, ok := t.st.projets[m.ProjetID]; !ok {
		return missingRef("create_map", "projet_id", m.ProjetID)
	}
	if m.IsMaster {
		for _, other := range t.st.maps {
			if other.ProjetID == m.ProjetID && other.IsMaster {
				return &documentum.ConflictError{Op: "create_map", Err: documentum.ErrAlreadyExists, Detail: "master map"}
			}
		}
	}
	t.st.maps[m.ID] = *m
	return nil
}

func (t *memTx) GetMap(ctx context.Context, id uuid.UUID) (*documentum.Map, error) {
	m, ok := t.st.maps[id]
	if !ok {
		return nil, notFound("map", id)
	}
	return &m, nil
}

// LockMap only checks existence, like LockProjet.
func (t *memTx) LockMap(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.maps[id]; !ok {
		return notFound("map", id)
	}
	return nil
}

func (t *memTx) ListMaps(ctx context.Context, projetID uuid.UUID) ([]*documentum.Map, error) {
	var out []*documentum.Map
	for _, m := range t.st.maps {
		if m.ProjetID == projetID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateCreation.Equal(out[j].DateCreation) {
			return out[i].DateCreation.Before(out[j].DateCreation)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) CreateMapEntry(ctx context.Context, e *documentum.MapRubrique) error {
	if _, ok := t.st.entries[e.ID]; ok {
		return duplicate("create_map_entry", e.ID)
	}
	if err := t.checkEntryRefs("create_map_entry", e); err != nil {
		return err
	}
	t.st.entries[e.ID] = copyEntry(*e)
	return nil
}

func (t *memTx) checkEntryRefs(op string, e *documentum.MapRubrique) error {
	if _, ok := t.st.maps[e.MapID]; !ok {
		return missingRef(op, "map_id", e.MapID)
	}
	if _, ok := t.st.rubriques[e.RubriqueID]; !ok {
		return missingRef(op, "rubrique_id", e.RubriqueID)
	}
	if e.ParentID != nil {
		if _, ok := t.st.entries[*e.ParentID]; !ok {
			return missingRef(op, "parent_id", *e.ParentID)
		}
	}
	return nil
}

func (t *memTx) GetMapEntry(ctx context.Context, id uuid.UUID) (*documentum.MapRubrique, error) {
	e, ok := t.st.entries[id]
	if !ok {
		return nil, notFound("map entry", id)
	}
	c := copyEntry(e)
	return &c, nil
}

func (t *memTx) ListMapEntries(ctx context.Context, mapID uuid.UUID) ([]*documentum.MapRubrique, error) {
	var out []*documentum.MapRubrique
	for _, e := range t.st.entries {
		if e.MapID == mapID {
			c := copyEntry(e)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordre != out[j].Ordre {
			return out[i].Ordre < out[j].Ordre
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) UpdateMapEntry(ctx context.Context, e *documentum.MapRubrique) error {
	if _, ok := t.st.entries[e.ID]; !ok {
		return notFound("map entry", e.ID)
	}
	if err := t.checkEntryRefs("update_map_entry", e); err != nil {
		return err
	}
	t.st.entries[e.ID] = copyEntry(*e)
	return nil
}

func (t *memTx) DeleteMapEntry(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.entries[id]; !ok {
		return notFound("map entry", id)
	}
	delete(t.st.entries, id)
	return nil
}

// Taxonomy

func (t *memTx) CreateTaxon(ctx context.Context, x *documentum.Taxon) error {
	if _, ok := t.st.taxa[x.ID]; ok {
		return duplicate("create_taxon", x.ID)
	}
	if x.ParentID != nil {
		if _, ok := t.st.taxa[*x.ParentID]; !ok {
			return missingRef("create_taxon", "parent_id", *x.ParentID)
		}
	}
	t.st.taxa[x.ID] = copyTaxon(*x)
	return nil
}

func (t *memTx) GetTaxon(ctx context.Context, id uuid.UUID) (*documentum.Taxon, error) {
	x, ok := t.st.taxa[id]
	if !ok {
		return nil, notFound("taxon", id)
	}
	c := copyTaxon(x)
	return &c, nil
}

func (t *memTx) ListTaxa(ctx context.Context, kind documentum.TaxonKind, includeArchived bool) ([]*documentum.Taxon, error) {
	var out []*documentum.Taxon
	for _, x := range t.st.taxa {
		if x.Kind != kind || (x.IsArchived && !includeArchived) {
			continue
		}
		c := copyTaxon(x)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Nom != out[j].Nom {
			return out[i].Nom < out[j].Nom
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) UpdateTaxon(ctx context.Context, x *documentum.Taxon) error {
	if _, ok := t.st.taxa[x.ID]; !ok {
		return notFound("taxon", x.ID)
	}
	t.st.taxa[x.ID] = copyTaxon(*x)
	return nil
}

// Media

func (t *memTx) CreateMedia(ctx context.Context, m *documentum.Media) error {
	if _, ok := t.st.media[m.ID]; ok {
		return duplicate("create_media", m.ID)
	}
	if _, ok := t.st.taxa[m.ProduitID]; !ok {
		return missingRef("create_media", "produit_id", m.ProduitID)
	}
	t.st.media[m.ID] = copyMedia(*m)
	return nil
}

func (t *memTx) GetMedia(ctx context.Context, id uuid.UUID) (*documentum.Media, error) {
	m, ok := t.st.media[id]
	if !ok {
		return nil, notFound("media", id)
	}
	c := copyMedia(m)
	return &c, nil
}

func (t *memTx) ListMedia(ctx context.Context, f documentum.MediaFilter) ([]*documentum.Media, error) {
	var out []*documentum.Media
	for _, m := range t.st.media {
		if f.ProduitID != nil && m.ProduitID != *f.ProduitID {
			continue
		}
		if f.RubriqueID != nil && (m.RubriqueID == nil || *m.RubriqueID != *f.RubriqueID) {
			continue
		}
		if m.IsArchived && !f.IncludeArchived {
			continue
		}
		c := copyMedia(m)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateCreation.Equal(out[j].DateCreation) {
			return out[i].DateCreation.Before(out[j].DateCreation)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) UpdateMedia(ctx context.Context, m *documentum.Media) error {
	if _, ok := t.st.media[m.ID]; !ok {
		return notFound("media", m.ID)
	}
	t.st.media[m.ID] = copyMedia(*m)
	return nil
}

// Publication

func (t *memTx) CreateProfil(ctx context.Context, p *documentum.ProfilPublication) error {
	if _, ok := t.st.profils[p.ID]; ok {
		return duplicate("create_profil", p.ID)
	}
	t.st.profils[p.ID] = copyProfil(*p)
	return nil
}

func (t *memTx) GetProfil(ctx context.Context, id uuid.UUID) (*documentum.ProfilPublication, error) {
	p, ok := t.st.profils[id]
	if !ok {
		return nil, notFound("profil", id)
	}
	c := copyProfil(p)
	return &c, nil
}

func (t *memTx) ListProfils(ctx context.Context, includeArchived bool) ([]*documentum.ProfilPublication, error) {
	var out []*documentum.ProfilPublication
	for _, p := range t.st.profils {
		if p.IsArchived && !includeArchived {
			continue
		}
		c := copyProfil(p)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Nom != out[j].Nom {
			return out[i].Nom < out[j].Nom
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (t *memTx) UpdateProfil(ctx context.Context, p *documentum.ProfilPublication) error {
	if _, ok := t.st.profils[p.ID]; !ok {
		return notFound("profil", p.ID)
	}
	t.st.profils[p.ID] = copyProfil(*p)
	return nil
}

func (t *memTx) CreateExport(ctx context.Context, e *documentum.ExportRecord) error {
	if _, ok := t.st.exports[e.ID]; ok {
		return duplicate("create_export", e.ID)
	}
	if _, ok := t.st.maps[e.MapID]; !ok {
		return missingRef("create_export", "map_id", e.MapID)
	}
	t.st.exports[e.ID] = *e
	return nil
}

func (t *memTx) ListExports(ctx context.Context, mapID uuid.UUID) ([]*documentum.ExportRecord, error) {
	var out []*documentum.ExportRecord
	for _, e := range t.st.exports {
		if e.MapID == mapID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateExport.Equal(out[j].DateExport) {
			return out[i].DateExport.After(out[j].DateExport)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

// Audit

func (t *memTx) AppendAudit(ctx context.Context, e *documentum.AuditEntry) error {
	t.st.audit = append(t.st.audit, copyAudit(*e))
	return nil
}

func (t *memTx) ListAudit(ctx context.Context, f documentum.AuditFilter) ([]*documentum.AuditEntry, error) {
	var out []*documentum.AuditEntry
	for i := len(t.st.audit) - 1; i >= 0; i-- {
		e := t.st.audit[i]
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != nil && e.ResourceID != *f.ResourceID {
			continue
		}
		if f.ProjetID != nil && (e.ProjetID == nil || *e.ProjetID != *f.ProjetID) {
			continue
		}
		c := copyAudit(e)
		out = append(out, &c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

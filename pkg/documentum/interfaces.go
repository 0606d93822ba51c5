package documentum

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Repository is the Content Store. All reads and writes go through a Tx.
type Repository interface {
	// RunInTx runs fn inside one atomic transaction. If fn returns an error
	// every write made through tx is rolled back and the error is returned.
	// Lock waits longer than the store's lock timeout fail with a
	// retryable *ConflictError.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of store operations available inside a transaction.
type Tx interface {
	// Projets
	CreateProjet(ctx context.Context, p *Projet) error
	GetProjet(ctx context.Context, id uuid.UUID) (*Projet, error)
	ListProjets(ctx context.Context) ([]*Projet, error)
	UpdateProjet(ctx context.Context, p *Projet) error
	// LockProjet takes an exclusive lock on the Projet row. Version
	// mutations, rubrique creation and revision-chain edits take it so they
	// serialize per Projet.
	LockProjet(ctx context.Context, id uuid.UUID) error

	// Versions
	CreateVersion(ctx context.Context, v *VersionProjet) error
	GetVersion(ctx context.Context, id uuid.UUID) (*VersionProjet, error)
	ListVersions(ctx context.Context, projetID uuid.UUID) ([]*VersionProjet, error)
	UpdateVersion(ctx context.Context, v *VersionProjet) error
	// DeactivateVersions clears is_active on every active version of the
	// Projet except keep and returns how many flipped.
	DeactivateVersions(ctx context.Context, projetID, keep uuid.UUID) (int, error)
	// ArchiveVersions archives every non-archived version of the Projet
	// except keep and returns how many changed.
	ArchiveVersions(ctx context.Context, projetID, keep uuid.UUID) (int, error)

	// Rubriques
	CreateRubrique(ctx context.Context, r *Rubrique) error
	GetRubrique(ctx context.Context, id uuid.UUID) (*Rubrique, error)
	// GetRubriqueForUpdate reads the Rubrique holding an exclusive row lock
	// until the transaction ends.
	GetRubriqueForUpdate(ctx context.Context, id uuid.UUID) (*Rubrique, error)
	ListRubriques(ctx context.Context, filter RubriqueFilter) ([]*Rubrique, error)
	UpdateRubrique(ctx context.Context, r *Rubrique) error

	// Maps
	CreateMap(ctx context.Context, m *Map) error
	GetMap(ctx context.Context, id uuid.UUID) (*Map, error)
	ListMaps(ctx context.Context, projetID uuid.UUID) ([]*Map, error)
	// LockMap takes an exclusive lock on the Map row. Entry mutations take it
	// so hierarchy checks see every committed move.
	LockMap(ctx context.Context, id uuid.UUID) error
	CreateMapEntry(ctx context.Context, e *MapRubrique) error
	GetMapEntry(ctx context.Context, id uuid.UUID) (*MapRubrique, error)
	// ListMapEntries returns the Map's entries ordered by ordre, then id.
	ListMapEntries(ctx context.Context, mapID uuid.UUID) ([]*MapRubrique, error)
	UpdateMapEntry(ctx context.Context, e *MapRubrique) error
	DeleteMapEntry(ctx context.Context, id uuid.UUID) error

	// Taxonomy
	CreateTaxon(ctx context.Context, t *Taxon) error
	GetTaxon(ctx context.Context, id uuid.UUID) (*Taxon, error)
	ListTaxa(ctx context.Context, kind TaxonKind, includeArchived bool) ([]*Taxon, error)
	UpdateTaxon(ctx context.Context, t *Taxon) error

	// Media
	CreateMedia(ctx context.Context, m *Media) error
	GetMedia(ctx context.Context, id uuid.UUID) (*Media, error)
	ListMedia(ctx context.Context, filter MediaFilter) ([]*Media, error)
	UpdateMedia(ctx context.Context, m *Media) error

	// Publication
	CreateProfil(ctx context.Context, p *ProfilPublication) error
	GetProfil(ctx context.Context, id uuid.UUID) (*ProfilPublication, error)
	ListProfils(ctx context.Context, includeArchived bool) ([]*ProfilPublication, error)
	UpdateProfil(ctx context.Context, p *ProfilPublication) error
	CreateExport(ctx context.Context, e *ExportRecord) error
	ListExports(ctx context.Context, mapID uuid.UUID) ([]*ExportRecord, error)

	// Audit
	AppendAudit(ctx context.Context, e *AuditEntry) error
	// ListAudit returns matching entries newest first.
	ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// RubriqueFilter narrows ListRubriques. Zero values match everything.
type RubriqueFilter struct {
	ProjetID        *uuid.UUID
	VersionProjetID *uuid.UUID
	ActiveOnly      bool
	IncludeArchived bool
}

// MediaFilter narrows ListMedia.
type MediaFilter struct {
	ProduitID       *uuid.UUID
	RubriqueID      *uuid.UUID
	IncludeArchived bool
}

// AuditFilter narrows ListAudit.
type AuditFilter struct {
	ResourceType string
	ResourceID   *uuid.UUID
	ProjetID     *uuid.UUID
	Limit        int
}

// ObjectMeta describes a stored blob.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// BlobStore stores media files and export artefacts.
type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	GetObjectMeta(ctx context.Context, key string) (*ObjectMeta, error)
}

// EventSink receives audit entries after their transaction commits.
type EventSink interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// Observer is notified once per service operation.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

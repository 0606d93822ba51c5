package documentum

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the documentation backend operations. Each call runs in
// its own Content Store transaction; the caller identity is read from the
// context (see WithActor).
type Service interface {
	// Projet operations
	CreateProjet(ctx context.Context, req CreateProjetRequest) (*ProjetCreated, error)
	GetProjet(ctx context.Context, id uuid.UUID) (*ProjetDetails, error)
	ListProjets(ctx context.Context) ([]*Projet, error)
	UpdateProjet(ctx context.Context, id uuid.UUID, req UpdateProjetRequest) (*Projet, error)

	// Version operations
	CreateInitialVersion(ctx context.Context, projetID uuid.UUID) (*VersionProjet, error)
	CreateVersion(ctx context.Context, req CreateVersionRequest) (*VersionProjet, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*VersionProjet, error)
	ListVersions(ctx context.Context, projetID uuid.UUID) ([]*VersionProjet, error)
	GetActiveVersion(ctx context.Context, projetID uuid.UUID) (*VersionProjet, error)
	Activate(ctx context.Context, versionID uuid.UUID) (int, error)
	ArchiveNonActive(ctx context.Context, projetID uuid.UUID) (int, error)
	Clone(ctx context.Context, sourceVersionID uuid.UUID) (*VersionProjet, error)
	VerifyVersions(ctx context.Context, projetID uuid.UUID) error

	// Rubrique operations
	CreateRubrique(ctx context.Context, req CreateRubriqueRequest) (*Rubrique, error)
	GetRubrique(ctx context.Context, id uuid.UUID) (*Rubrique, error)
	ListRubriques(ctx context.Context, filter RubriqueFilter) ([]*Rubrique, error)
	UpdateRubrique(ctx context.Context, id uuid.UUID, req UpdateRubriqueRequest) (*Rubrique, error)
	AcquireEditLock(ctx context.Context, id uuid.UUID) (*Rubrique, error)
	ReleaseEditLock(ctx context.Context, id uuid.UUID, force bool) (*Rubrique, error)
	ArchiveRubrique(ctx context.Context, id uuid.UUID) (*Rubrique, error)
	RestoreRubrique(ctx context.Context, id uuid.UUID) (*Rubrique, error)
	RubriqueTemplate(ctx context.Context, projetID uuid.UUID, params TemplateParams) (string, error)

	// Map operations
	CreateMap(ctx context.Context, req CreateMapRequest) (*Map, error)
	GetMap(ctx context.Context, id uuid.UUID) (*Map, error)
	ListMaps(ctx context.Context, projetID uuid.UUID) ([]*Map, error)
	AddMapEntry(ctx context.Context, req AddMapEntryRequest) (*MapRubrique, error)
	MoveMapEntry(ctx context.Context, entryID uuid.UUID, req MoveMapEntryRequest) (*MapRubrique, error)
	RemoveMapEntry(ctx context.Context, entryID uuid.UUID) error
	Resolve(ctx context.Context, mapID uuid.UUID) (*ResolvedMap, error)

	// Taxonomy operations
	CreateTaxon(ctx context.Context, req CreateTaxonRequest) (*Taxon, error)
	GetTaxon(ctx context.Context, id uuid.UUID) (*Taxon, error)
	ListTaxa(ctx context.Context, kind TaxonKind, includeArchived bool) ([]*Taxon, error)
	ArchiveTaxon(ctx context.Context, id uuid.UUID) (*Taxon, error)
	RestoreTaxon(ctx context.Context, id uuid.UUID) (*Taxon, error)
	ImportTaxa(ctx context.Context, kind TaxonKind, csv io.Reader) ([]*Taxon, error)

	// Media operations
	UploadMedia(ctx context.Context, req UploadMediaRequest) (*Media, error)
	GetMedia(ctx context.Context, id uuid.UUID) (*Media, error)
	ListMedia(ctx context.Context, filter MediaFilter) ([]*Media, error)
	DownloadMedia(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Media, error)
	ArchiveMedia(ctx context.Context, id uuid.UUID) (*Media, error)

	// Publication operations
	CreateProfil(ctx context.Context, req CreateProfilRequest) (*ProfilPublication, error)
	ListProfils(ctx context.Context, includeArchived bool) ([]*ProfilPublication, error)
	ArchiveProfil(ctx context.Context, id uuid.UUID) (*ProfilPublication, error)
	OutputFormats() []string
	ExportMap(ctx context.Context, req ExportRequest) (*ExportRecord, error)
	ListExports(ctx context.Context, mapID uuid.UUID) ([]*ExportRecord, error)

	// Audit
	ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

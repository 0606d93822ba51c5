package documentum

import (
	"time"

	"github.com/google/uuid"
)

// DefaultVersionLabel is the label given to the version created with a Projet.
const DefaultVersionLabel = "1.0.0"

// CloneSuffix is appended to the source label when a version is cloned.
const CloneSuffix = "_clone"

// Projet is a documentation project, the top-level grouping.
type Projet struct {
	ID            uuid.UUID  `json:"id"`
	Nom           string     `json:"nom"`
	Description   string     `json:"description,omitempty"`
	Auteur        string     `json:"auteur"`
	GammeID       *uuid.UUID `json:"gamme_id,omitempty"`
	DateCreation  time.Time  `json:"date_creation"`
	DateMiseAJour time.Time  `json:"date_mise_a_jour"`
}

// VersionState is the derived lifecycle state of a VersionProjet.
type VersionState string

const (
	VersionStateActive   VersionState = "active"
	VersionStateInactive VersionState = "inactive"
	VersionStateArchived VersionState = "archived"
)

// VersionProjet is a dated release of a Projet's content.
type VersionProjet struct {
	ID            uuid.UUID `json:"id"`
	ProjetID      uuid.UUID `json:"projet_id"`
	VersionNumero string    `json:"version_numero"`
	DateLancement time.Time `json:"date_lancement"`
	NotesVersion  string    `json:"notes_version,omitempty"`
	IsActive      bool      `json:"is_active"`
	IsArchived    bool      `json:"is_archived"`
}

// State reports the version's position in the active/inactive/archived machine.
func (v *VersionProjet) State() VersionState {
	switch {
	case v.IsArchived:
		return VersionStateArchived
	case v.IsActive:
		return VersionStateActive
	default:
		return VersionStateInactive
	}
}

// Rubrique is a content unit with an XML body.
type Rubrique struct {
	ID                  uuid.UUID  `json:"id"`
	ProjetID            uuid.UUID  `json:"projet_id"`
	VersionProjetID     *uuid.UUID `json:"version_projet_id,omitempty"`
	VersionPrecedenteID *uuid.UUID `json:"version_precedente_id,omitempty"`
	FonctionnaliteID    *uuid.UUID `json:"fonctionnalite_id,omitempty"`
	Titre               string     `json:"titre"`
	ContenuXML          string     `json:"contenu_xml"`
	Auteur              string     `json:"auteur"`
	TypeRubrique        string     `json:"type_rubrique,omitempty"`
	Audience            string     `json:"audience,omitempty"`
	RevisionNumero      int        `json:"revision_numero"`
	Version             int        `json:"version"`
	IsActive            bool       `json:"is_active"`
	IsArchived          bool       `json:"is_archived"`
	LockedBy            string     `json:"locked_by,omitempty"`
	LockedAt            *time.Time `json:"locked_at,omitempty"`
	DateCreation        time.Time  `json:"date_creation"`
	DateMiseAJour       time.Time  `json:"date_mise_a_jour"`
}

// Map types.
const (
	MapTypeMaitre        = "maitre"
	MapTypeFille         = "fille"
	MapTypeDocumentation = "documentation"
	MapTypeAideEnLigne   = "aide_en_ligne"
	MapTypeFichePratique = "fiche_pratique"
	MapTypeCours         = "cours"
)

// Map is an ordered, hierarchical grouping of Rubriques.
type Map struct {
	ID           uuid.UUID `json:"id"`
	ProjetID     uuid.UUID `json:"projet_id"`
	Nom          string    `json:"nom"`
	TypeMap      string    `json:"type_map"`
	IsMaster     bool      `json:"is_master"`
	DateCreation time.Time `json:"date_creation"`
}

// MapRubrique places a Rubrique inside a Map.
type MapRubrique struct {
	ID         uuid.UUID  `json:"id"`
	MapID      uuid.UUID  `json:"map_id"`
	RubriqueID uuid.UUID  `json:"rubrique_id"`
	Ordre      int        `json:"ordre"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
}

// MapNode is one node of a resolved Map tree.
type MapNode struct {
	Entry    *MapRubrique `json:"entry"`
	Rubrique *Rubrique    `json:"rubrique"`
	Children []*MapNode   `json:"children,omitempty"`
}

// ResolvedMap is the ordered reference list of a Map plus the referenced content.
type ResolvedMap struct {
	Map       *Map                    `json:"map"`
	Entries   []*MapRubrique          `json:"entries"`
	Roots     []*MapNode              `json:"roots"`
	Rubriques map[uuid.UUID]*Rubrique `json:"rubriques"`
}

// TaxonKind names a classification entity kind.
type TaxonKind string

const (
	TaxonGamme          TaxonKind = "gamme"
	TaxonProduit        TaxonKind = "produit"
	TaxonFonctionnalite TaxonKind = "fonctionnalite"
	TaxonAudience       TaxonKind = "audience"
	TaxonTag            TaxonKind = "tag"
	TaxonInterface      TaxonKind = "interface"
)

// Taxon is a classification record: gamme, produit, fonctionnalite, audience,
// tag or user interface.
type Taxon struct {
	ID          uuid.UUID   `json:"id"`
	Kind        TaxonKind   `json:"kind"`
	Nom         string      `json:"nom"`
	Description string      `json:"description,omitempty"`
	Code        string      `json:"code,omitempty"`
	Abreviation string      `json:"abreviation,omitempty"`
	ParentID    *uuid.UUID  `json:"parent_id,omitempty"`
	RelatedIDs  []uuid.UUID `json:"related_ids,omitempty"`
	IsArchived  bool        `json:"is_archived"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Media types.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Media is an image or video attached to a Produit and optionally a Rubrique.
type Media struct {
	ID             uuid.UUID  `json:"id"`
	ProduitID      uuid.UUID  `json:"produit_id"`
	RubriqueID     *uuid.UUID `json:"rubrique_id,omitempty"`
	TypeMedia      string     `json:"type_media"`
	NomFichier     string     `json:"nom_fichier"`
	Description    string     `json:"description,omitempty"`
	MimeType       string     `json:"mime_type,omitempty"`
	Size           int64      `json:"size"`
	StorageBackend string     `json:"storage_backend"`
	ObjectKey      string     `json:"object_key"`
	IsArchived     bool       `json:"is_archived"`
	DateCreation   time.Time  `json:"date_creation"`
}

// Publication output types.
const (
	SortiePDF    = "PDF"
	SortieWeb    = "Web"
	SortieMoodle = "Moodle"
	SortieFiche  = "Fiche"
)

// ProfilPublication describes how a Map is published.
type ProfilPublication struct {
	ID         uuid.UUID      `json:"id"`
	Nom        string         `json:"nom"`
	TypeSortie string         `json:"type_sortie"`
	MapID      *uuid.UUID     `json:"map_id,omitempty"`
	Parametres map[string]any `json:"parametres,omitempty"`
	IsArchived bool           `json:"is_archived"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ExportRecord is one entry of a Map's export history.
type ExportRecord struct {
	ID         uuid.UUID `json:"id"`
	MapID      uuid.UUID `json:"map_id"`
	Format     string    `json:"format"`
	Actor      string    `json:"utilisateur"`
	Path       string    `json:"chemin_export"`
	Files      int       `json:"files"`
	DateExport time.Time `json:"date_export"`
}

// AuditEntry records one mutation.
type AuditEntry struct {
	ID           uuid.UUID      `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	ProjetID     *uuid.UUID     `json:"projet_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Resource types recorded in audit entries.
const (
	ResourceProjet   = "projet"
	ResourceVersion  = "version"
	ResourceRubrique = "rubrique"
	ResourceMap      = "map"
	ResourceTaxon    = "taxon"
	ResourceMedia    = "media"
	ResourceProfil   = "profil"
	ResourceExport   = "export"
)

// ProjetCreated is returned by CreateProjet.
type ProjetCreated struct {
	Projet  *Projet        `json:"projet"`
	Version *VersionProjet `json:"version"`
	Map     *Map           `json:"map"`
}

// ProjetDetails bundles a Projet with its versions and maps.
type ProjetDetails struct {
	Projet   *Projet          `json:"projet"`
	Versions []*VersionProjet `json:"versions"`
	Maps     []*Map           `json:"maps"`
}

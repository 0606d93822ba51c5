package documentum

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// CreateProjetRequest creates a Projet with its initial version and master map.
type CreateProjetRequest struct {
	Nom          string     `json:"nom"`
	Description  string     `json:"description,omitempty"`
	GammeID      *uuid.UUID `json:"gamme_id,omitempty"`
	VersionLabel string     `json:"version_numero,omitempty"`
}

// UpdateProjetRequest holds the fields to change; nil fields are kept.
type UpdateProjetRequest struct {
	Nom         *string    `json:"nom,omitempty"`
	Description *string    `json:"description,omitempty"`
	GammeID     *uuid.UUID `json:"gamme_id,omitempty"`
}

// CreateVersionRequest creates an inactive version.
type CreateVersionRequest struct {
	ProjetID      uuid.UUID `json:"projet_id"`
	VersionNumero string    `json:"version_numero"`
	NotesVersion  string    `json:"notes_version,omitempty"`
	DateLancement time.Time `json:"date_lancement,omitempty"`
}

// CreateRubriqueRequest carries a new Rubrique. Its version binding is always
// the Projet's active version.
type CreateRubriqueRequest struct {
	ProjetID            uuid.UUID  `json:"projet_id"`
	Titre               string     `json:"titre"`
	ContenuXML          string     `json:"contenu_xml"`
	TypeRubrique        string     `json:"type_rubrique,omitempty"`
	Audience            string     `json:"audience,omitempty"`
	RevisionNumero      int        `json:"revision_numero,omitempty"`
	FonctionnaliteID    *uuid.UUID `json:"fonctionnalite_id,omitempty"`
	VersionPrecedenteID *uuid.UUID `json:"version_precedente_id,omitempty"`
}

// UpdateRubriqueRequest holds the fields to change; nil fields are kept.
type UpdateRubriqueRequest struct {
	Titre               *string    `json:"titre,omitempty"`
	ContenuXML          *string    `json:"contenu_xml,omitempty"`
	ProjetID            *uuid.UUID `json:"projet_id,omitempty"`
	VersionProjetID     *uuid.UUID `json:"version_projet_id,omitempty"`
	VersionPrecedenteID *uuid.UUID `json:"version_precedente_id,omitempty"`
	FonctionnaliteID    *uuid.UUID `json:"fonctionnalite_id,omitempty"`
	TypeRubrique        *string    `json:"type_rubrique,omitempty"`
	Audience            *string    `json:"audience,omitempty"`
	RevisionNumero      *int       `json:"revision_numero,omitempty"`
}

type CreateMapRequest struct {
	ProjetID uuid.UUID `json:"projet_id"`
	Nom      string    `json:"nom"`
	TypeMap  string    `json:"type_map,omitempty"`
	IsMaster bool      `json:"is_master"`
}

// AddMapEntryRequest places a Rubrique in a Map. A nil Ordre appends after
// the last entry.
type AddMapEntryRequest struct {
	MapID      uuid.UUID  `json:"map_id"`
	RubriqueID uuid.UUID  `json:"rubrique_id"`
	Ordre      *int       `json:"ordre,omitempty"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
}

// MoveMapEntryRequest sets an entry's placement. A nil ParentID makes it a root.
type MoveMapEntryRequest struct {
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Ordre    int        `json:"ordre"`
}

type CreateTaxonRequest struct {
	Kind        TaxonKind   `json:"kind"`
	Nom         string      `json:"nom"`
	Description string      `json:"description,omitempty"`
	Code        string      `json:"code,omitempty"`
	Abreviation string      `json:"abreviation,omitempty"`
	ParentID    *uuid.UUID  `json:"parent_id,omitempty"`
	RelatedIDs  []uuid.UUID `json:"related_ids,omitempty"`
}

// UploadMediaRequest carries a media file. Body is read once.
type UploadMediaRequest struct {
	ProduitID   uuid.UUID
	RubriqueID  *uuid.UUID
	TypeMedia   string
	NomFichier  string
	Description string
	MimeType    string
	Body        io.Reader
}

type CreateProfilRequest struct {
	Nom        string         `json:"nom"`
	TypeSortie string         `json:"type_sortie"`
	MapID      *uuid.UUID     `json:"map_id,omitempty"`
	Parametres map[string]any `json:"parametres,omitempty"`
}

// ExportRequest exports a Map as a DITA bundle for the given output format.
type ExportRequest struct {
	MapID  uuid.UUID `json:"map_id"`
	Format string    `json:"format"`
}

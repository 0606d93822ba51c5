package memory

import (
	"maps"
	"slices"

	"github.com/tendant/documentum/pkg/documentum"
)

// The copy helpers detach pointer, slice and map fields so that callers
// mutating returned records cannot reach stored state.

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyProjet(p documentum.Projet) documentum.Projet {
	p.GammeID = clonePtr(p.GammeID)
	return p
}

func copyRubrique(r documentum.Rubrique) documentum.Rubrique {
	r.VersionProjetID = clonePtr(r.VersionProjetID)
	r.VersionPrecedenteID = clonePtr(r.VersionPrecedenteID)
	r.FonctionnaliteID = clonePtr(r.FonctionnaliteID)
	r.LockedAt = clonePtr(r.LockedAt)
	return r
}

func copyEntry(e documentum.MapRubrique) documentum.MapRubrique {
	e.ParentID = clonePtr(e.ParentID)
	return e
}

func copyTaxon(t documentum.Taxon) documentum.Taxon {
	t.ParentID = clonePtr(t.ParentID)
	t.RelatedIDs = slices.Clone(t.RelatedIDs)
	return t
}

func copyMedia(m documentum.Media) documentum.Media {
	m.RubriqueID = clonePtr(m.RubriqueID)
	return m
}

func copyProfil(p documentum.ProfilPublication) documentum.ProfilPublication {
	p.MapID = clonePtr(p.MapID)
	p.Parametres = maps.Clone(p.Parametres)
	return p
}

func copyAudit(e documentum.AuditEntry) documentum.AuditEntry {
	e.ProjetID = clonePtr(e.ProjetID)
	e.Details = maps.Clone(e.Details)
	return e
}

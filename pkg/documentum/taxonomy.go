package documentum

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxFonctionnaliteCode is the longest code a fonctionnalite may carry.
const MaxFonctionnaliteCode = 5

// parentKinds lists which kind each taxon kind must be attached to.
var parentKinds = map[TaxonKind]TaxonKind{
	TaxonProduit:        TaxonGamme,
	TaxonFonctionnalite: TaxonProduit,
}

// ValidTaxonKind reports whether k is a known kind.
func ValidTaxonKind(k TaxonKind) bool {
	switch k {
	case TaxonGamme, TaxonProduit, TaxonFonctionnalite, TaxonAudience, TaxonTag, TaxonInterface:
		return true
	}
	return false
}

func (s *service) CreateTaxon(ctx context.Context, req CreateTaxonRequest) (t *Taxon, err error) {
	const op = "create_taxon"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		t, err = s.createTaxon(ctx, tx, trail, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) createTaxon(ctx context.Context, tx Tx, trail *auditTrail, req CreateTaxonRequest) (*Taxon, error) {
	const op = "create_taxon"

	if !ValidTaxonKind(req.Kind) {
		return nil, validationErr(op, "kind", ErrInvalidValue, string(req.Kind))
	}
	nom := strings.TrimSpace(req.Nom)
	if nom == "" {
		return nil, validationErr(op, "nom", ErrRequired, "")
	}

	if want, ok := parentKinds[req.Kind]; ok {
		if req.ParentID == nil {
			return nil, validationErr(op, "parent_id", ErrRequired, string(req.Kind)+" requires a "+string(want))
		}
		if err := requireTaxon(ctx, tx, op, "parent_id", *req.ParentID, want); err != nil {
			return nil, err
		}
	} else if req.ParentID != nil {
		return nil, validationErr(op, "parent_id", ErrInvalidValue, string(req.Kind)+" has no parent")
	}

	if req.Kind == TaxonFonctionnalite && utf8.RuneCountInString(req.Code) > MaxFonctionnaliteCode {
		return nil, validationErr(op, "code", ErrInvalidValue, "at most 5 characters")
	}

	if len(req.RelatedIDs) > 0 {
		if req.Kind != TaxonAudience {
			return nil, validationErr(op, "related_ids", ErrInvalidValue, "only audiences relate to fonctionnalites")
		}
		for _, id := range req.RelatedIDs {
			if err := requireTaxon(ctx, tx, op, "related_ids", id, TaxonFonctionnalite); err != nil {
				return nil, err
			}
		}
	}

	existing, err := tx.ListTaxa(ctx, req.Kind, true)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if strings.EqualFold(other.Nom, nom) {
			return nil, conflictErr(op, ErrAlreadyExists, string(req.Kind)+" "+nom)
		}
	}

	t := &Taxon{
		ID:          uuid.New(),
		Kind:        req.Kind,
		Nom:         nom,
		Description: req.Description,
		Code:        req.Code,
		Abreviation: req.Abreviation,
		ParentID:    req.ParentID,
		RelatedIDs:  append([]uuid.UUID(nil), req.RelatedIDs...),
		CreatedAt:   s.timestamp(),
	}
	if err := tx.CreateTaxon(ctx, t); err != nil {
		return nil, err
	}
	if err := trail.record(ctx, tx, "create", ResourceTaxon, t.ID, nil, map[string]any{"kind": t.Kind, "nom": t.Nom}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) GetTaxon(ctx context.Context, id uuid.UUID) (t *Taxon, err error) {
	defer s.observe("get_taxon", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		t, err = tx.GetTaxon(ctx, id)
		return err
	})
	return t, err
}

func (s *service) ListTaxa(ctx context.Context, kind TaxonKind, includeArchived bool) (taxa []*Taxon, err error) {
	const op = "list_taxa"
	defer s.observe(op, time.Now(), &err)
	if !ValidTaxonKind(kind) {
		return nil, validationErr(op, "kind", ErrInvalidValue, string(kind))
	}
	err = s.read(ctx, func(tx Tx) error {
		var err error
		taxa, err = tx.ListTaxa(ctx, kind, includeArchived)
		return err
	})
	return taxa, err
}

func (s *service) ArchiveTaxon(ctx context.Context, id uuid.UUID) (*Taxon, error) {
	return s.setTaxonArchived(ctx, "archive_taxon", id, true)
}

func (s *service) RestoreTaxon(ctx context.Context, id uuid.UUID) (*Taxon, error) {
	return s.setTaxonArchived(ctx, "restore_taxon", id, false)
}

func (s *service) setTaxonArchived(ctx context.Context, op string, id uuid.UUID, archived bool) (t *Taxon, err error) {
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if t, err = tx.GetTaxon(ctx, id); err != nil {
			return err
		}
		if t.IsArchived == archived {
			return nil
		}
		t.IsArchived = archived
		if err := tx.UpdateTaxon(ctx, t); err != nil {
			return err
		}
		action := "restore"
		if archived {
			action = "archive"
		}
		return trail.record(ctx, tx, action, ResourceTaxon, t.ID, nil, map[string]any{"kind": t.Kind})
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// requireTaxon checks that id names a taxon of the given kind. A missing or
// mismatched reference is reported as a validation error on field.
func requireTaxon(ctx context.Context, tx Tx, op, field string, id uuid.UUID, kind TaxonKind) error {
	t, err := tx.GetTaxon(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return validationErr(op, field, ErrInvalidValue, string(kind)+" "+id.String()+" does not exist")
	}
	if err != nil {
		return err
	}
	if t.Kind != kind {
		return validationErr(op, field, ErrInvalidValue, "expected a "+string(kind)+", got a "+string(t.Kind))
	}
	return nil
}

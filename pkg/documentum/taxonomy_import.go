package documentum

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// taxonRow is one line of a taxonomy CSV. Parent is matched by name against
// the kind the imported kind belongs to (gamme for produits, produit for
// fonctionnalites).
type taxonRow struct {
	Nom         string `csv:"nom"`
	Description string `csv:"description"`
	Code        string `csv:"code"`
	Abreviation string `csv:"abreviation"`
	Parent      string `csv:"parent"`
}

// ImportTaxa creates one taxon per CSV row. Either every row is imported or
// none is.
func (s *service) ImportTaxa(ctx context.Context, kind TaxonKind, csv io.Reader) (created []*Taxon, err error) {
	const op = "import_taxa"
	defer s.observe(op, time.Now(), &err)

	if !ValidTaxonKind(kind) {
		return nil, validationErr(op, "kind", ErrInvalidValue, string(kind))
	}
	var rows []*taxonRow
	if err := gocsv.Unmarshal(csv, &rows); err != nil {
		return nil, validationErr(op, "csv", ErrInvalidValue, err.Error())
	}
	if len(rows) == 0 {
		return nil, validationErr(op, "csv", ErrRequired, "no rows")
	}

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		created = created[:0]
		parents := map[string]uuid.UUID{}
		if parentKind, ok := parentKinds[kind]; ok {
			candidates, err := tx.ListTaxa(ctx, parentKind, false)
			if err != nil {
				return err
			}
			for _, p := range candidates {
				parents[strings.ToLower(p.Nom)] = p.ID
			}
		}

		for i, row := range rows {
			req := CreateTaxonRequest{
				Kind:        kind,
				Nom:         row.Nom,
				Description: row.Description,
				Code:        row.Code,
				Abreviation: row.Abreviation,
			}
			if name := strings.TrimSpace(row.Parent); name != "" {
				id, ok := parents[strings.ToLower(name)]
				if !ok {
					return validationErr(op, "parent", ErrInvalidValue, fmt.Sprintf("line %d: unknown parent %q", i+2, name))
				}
				req.ParentID = &id
			}
			t, err := s.createTaxon(ctx, tx, trail, req)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+2, err)
			}
			created = append(created, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("taxa imported", "kind", kind, "count", len(created))
	return created, nil
}

package documentum_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
)

func TestMaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createProjet(t, "Docs")
	pid := created.Projet.ID

	var rubriques []*documentum.Rubrique
	for _, titre := range []string{"Installation", "Prérequis", "Configuration"} {
		r, err := f.svc.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: pid, Titre: titre})
		require.NoError(t, err)
		rubriques = append(rubriques, r)
	}

	t.Run("second master map conflicts", func(t *testing.T) {
		_, err := f.svc.CreateMap(ctx, documentum.CreateMapRequest{ProjetID: pid, Nom: "Autre", IsMaster: true})
		assert.ErrorIs(t, err, documentum.ErrConflict)
	})

	t.Run("child map defaults to documentation", func(t *testing.T) {
		m, err := f.svc.CreateMap(ctx, documentum.CreateMapRequest{ProjetID: pid, Nom: "Guide"})
		require.NoError(t, err)
		assert.Equal(t, documentum.MapTypeDocumentation, m.TypeMap)

		_, err = f.svc.CreateMap(ctx, documentum.CreateMapRequest{ProjetID: pid, Nom: "X", TypeMap: "poster"})
		assert.ErrorIs(t, err, documentum.ErrValidation)

		maps, err := f.svc.ListMaps(ctx, pid)
		require.NoError(t, err)
		assert.Len(t, maps, 2)
	})

	mapID := created.Map.ID
	install, err := f.svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: mapID, RubriqueID: rubriques[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, install.Ordre)
	prereq, err := f.svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: mapID, RubriqueID: rubriques[1].ID, ParentID: &install.ID})
	require.NoError(t, err)
	config, err := f.svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: mapID, RubriqueID: rubriques[2].ID, Ordre: ptr(0)})
	require.NoError(t, err)

	t.Run("resolve builds the ordered tree", func(t *testing.T) {
		resolved, err := f.svc.Resolve(ctx, mapID)
		require.NoError(t, err)
		require.Len(t, resolved.Entries, 3)
		assert.Equal(t, config.ID, resolved.Entries[0].ID)

		require.Len(t, resolved.Roots, 2)
		assert.Equal(t, "Configuration", resolved.Roots[0].Rubrique.Titre)
		assert.Equal(t, "Installation", resolved.Roots[1].Rubrique.Titre)
		require.Len(t, resolved.Roots[1].Children, 1)
		assert.Equal(t, prereq.ID, resolved.Roots[1].Children[0].Entry.ID)
		assert.Len(t, resolved.Rubriques, 3)
	})

	t.Run("move under a descendant is a cycle", func(t *testing.T) {
		_, err := f.svc.MoveMapEntry(ctx, install.ID, documentum.MoveMapEntryRequest{ParentID: &prereq.ID, Ordre: 1})
		assert.ErrorIs(t, err, documentum.ErrValidation)
		assert.ErrorIs(t, err, documentum.ErrCycle)
		_, err = f.svc.MoveMapEntry(ctx, install.ID, documentum.MoveMapEntryRequest{ParentID: &install.ID, Ordre: 1})
		assert.ErrorIs(t, err, documentum.ErrCycle)
	})

	t.Run("move reorders", func(t *testing.T) {
		moved, err := f.svc.MoveMapEntry(ctx, config.ID, documentum.MoveMapEntryRequest{ParentID: &install.ID, Ordre: 5})
		require.NoError(t, err)
		assert.Equal(t, install.ID, *moved.ParentID)

		resolved, err := f.svc.Resolve(ctx, mapID)
		require.NoError(t, err)
		require.Len(t, resolved.Roots, 1)
		assert.Len(t, resolved.Roots[0].Children, 2)
	})

	t.Run("entry with children cannot be removed", func(t *testing.T) {
		err := f.svc.RemoveMapEntry(ctx, install.ID)
		assert.ErrorIs(t, err, documentum.ErrPrecondition)
		assert.ErrorIs(t, err, documentum.ErrHasChildren)

		require.NoError(t, f.svc.RemoveMapEntry(ctx, config.ID))
		require.NoError(t, f.svc.RemoveMapEntry(ctx, prereq.ID))
		require.NoError(t, f.svc.RemoveMapEntry(ctx, install.ID))
		assert.ErrorIs(t, f.svc.RemoveMapEntry(ctx, install.ID), documentum.ErrNotFound)
	})

	t.Run("rubrique from another projet is rejected", func(t *testing.T) {
		other := f.createProjet(t, "Other")
		r, err := f.svc.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: other.Projet.ID, Titre: "Ailleurs"})
		require.NoError(t, err)
		_, err = f.svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: mapID, RubriqueID: r.ID})
		assert.ErrorIs(t, err, documentum.ErrValidation)
	})

	t.Run("parent must belong to the map", func(t *testing.T) {
		stray := uuid.New()
		_, err := f.svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: mapID, RubriqueID: rubriques[0].ID, ParentID: &stray})
		assert.ErrorIs(t, err, documentum.ErrValidation)
	})

	t.Run("unknown map", func(t *testing.T) {
		_, err := f.svc.Resolve(ctx, uuid.New())
		assert.ErrorIs(t, err, documentum.ErrNotFound)
	})
}

func ptr[T any](v T) *T { return &v }

func TestBuildTree(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	t.Run("cycle is rejected", func(t *testing.T) {
		entries := []*documentum.MapRubrique{
			{ID: a, Ordre: 1, ParentID: &b},
			{ID: b, Ordre: 2, ParentID: &a},
			{ID: c, Ordre: 3},
		}
		_, err := documentum.BuildTree(entries, nil)
		assert.ErrorIs(t, err, documentum.ErrCycle)
	})

	t.Run("dangling parent is rejected", func(t *testing.T) {
		missing := uuid.New()
		_, err := documentum.BuildTree([]*documentum.MapRubrique{{ID: a, ParentID: &missing}}, nil)
		assert.ErrorIs(t, err, documentum.ErrValidation)
	})

	t.Run("children keep entry order", func(t *testing.T) {
		entries := []*documentum.MapRubrique{
			{ID: a, Ordre: 1},
			{ID: c, Ordre: 2, ParentID: &a},
			{ID: b, Ordre: 3, ParentID: &a},
		}
		roots, err := documentum.BuildTree(entries, nil)
		require.NoError(t, err)
		require.Len(t, roots, 1)
		require.Len(t, roots[0].Children, 2)
		assert.Equal(t, c, roots[0].Children[0].Entry.ID)
		assert.Equal(t, b, roots[0].Children[1].Entry.ID)
	})
}

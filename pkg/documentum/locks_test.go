package documentum_test

import (
	"context"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/repo/memory"
)

// tracingRepo records the lock and read calls each transaction makes.
type tracingRepo struct {
	inner *memory.Repository
	calls []string
}

func (r *tracingRepo) RunInTx(ctx context.Context, fn func(tx documentum.Tx) error) error {
	r.calls = nil
	return r.inner.RunInTx(ctx, func(tx documentum.Tx) error {
		return fn(&tracingTx{Tx: tx, repo: r})
	})
}

type tracingTx struct {
	documentum.Tx
	repo *tracingRepo
}

func (t *tracingTx) LockProjet(ctx context.Context, id uuid.UUID) error {
	t.repo.calls = append(t.repo.calls, "LockProjet")
	return t.Tx.LockProjet(ctx, id)
}

func (t *tracingTx) LockMap(ctx context.Context, id uuid.UUID) error {
	t.repo.calls = append(t.repo.calls, "LockMap")
	return t.Tx.LockMap(ctx, id)
}

func (t *tracingTx) ListVersions(ctx context.Context, projetID uuid.UUID) ([]*documentum.VersionProjet, error) {
	t.repo.calls = append(t.repo.calls, "ListVersions")
	return t.Tx.ListVersions(ctx, projetID)
}

func (t *tracingTx) GetRubrique(ctx context.Context, id uuid.UUID) (*documentum.Rubrique, error) {
	t.repo.calls = append(t.repo.calls, "GetRubrique")
	return t.Tx.GetRubrique(ctx, id)
}

func (t *tracingTx) ListMapEntries(ctx context.Context, mapID uuid.UUID) ([]*documentum.MapRubrique, error) {
	t.repo.calls = append(t.repo.calls, "ListMapEntries")
	return t.Tx.ListMapEntries(ctx, mapID)
}

func assertBefore(t *testing.T, calls []string, lock, read string) {
	t.Helper()
	li := slices.Index(calls, lock)
	ri := slices.Index(calls, read)
	require.NotEqual(t, -1, li, "%s not called: %v", lock, calls)
	require.NotEqual(t, -1, ri, "%s not called: %v", read, calls)
	assert.Less(t, li, ri, "%s must precede %s: %v", lock, read, calls)
}

func TestWritesTakeLocksBeforeReading(t *testing.T) {
	ctx := context.Background()
	repo := &tracingRepo{inner: memory.New()}
	svc, err := documentum.New(documentum.WithRepository(repo))
	require.NoError(t, err)

	created, err := svc.CreateProjet(ctx, documentum.CreateProjetRequest{Nom: "Docs"})
	require.NoError(t, err)

	var a, b *documentum.Rubrique
	t.Run("create rubrique locks the projet before reading versions", func(t *testing.T) {
		a, err = svc.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "A"})
		require.NoError(t, err)
		assertBefore(t, repo.calls, "LockProjet", "ListVersions")
		b, err = svc.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "B"})
		require.NoError(t, err)
	})

	t.Run("revision chain edits lock the projet", func(t *testing.T) {
		_, err := svc.UpdateRubrique(ctx, b.ID, documentum.UpdateRubriqueRequest{VersionPrecedenteID: &a.ID})
		require.NoError(t, err)
		assertBefore(t, repo.calls, "LockProjet", "GetRubrique")
	})

	var ea, eb *documentum.MapRubrique
	t.Run("add entry locks the map", func(t *testing.T) {
		ea, err = svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: created.Map.ID, RubriqueID: a.ID})
		require.NoError(t, err)
		assertBefore(t, repo.calls, "LockMap", "ListMapEntries")
		eb, err = svc.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: created.Map.ID, RubriqueID: b.ID})
		require.NoError(t, err)
	})

	t.Run("move entry locks the map", func(t *testing.T) {
		_, err := svc.MoveMapEntry(ctx, eb.ID, documentum.MoveMapEntryRequest{ParentID: &ea.ID})
		require.NoError(t, err)
		assertBefore(t, repo.calls, "LockMap", "ListMapEntries")
	})

	t.Run("remove entry locks the map", func(t *testing.T) {
		require.NoError(t, svc.RemoveMapEntry(ctx, eb.ID))
		assertBefore(t, repo.calls, "LockMap", "ListMapEntries")
	})
}

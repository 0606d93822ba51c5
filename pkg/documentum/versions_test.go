package documentum_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/repo/memory"
)

// faultyRepo fails the n-th CreateRubrique of every transaction.
type faultyRepo struct {
	inner *memory.Repository
	n     int
}

func (r *faultyRepo) RunInTx(ctx context.Context, fn func(tx documentum.Tx) error) error {
	return r.inner.RunInTx(ctx, func(tx documentum.Tx) error {
		return fn(&faultyTx{Tx: tx, failAt: r.n})
	})
}

type faultyTx struct {
	documentum.Tx
	failAt int
	calls  int
}

var errInjected = errors.New("injected failure")

func (t *faultyTx) CreateRubrique(ctx context.Context, r *documentum.Rubrique) error {
	t.calls++
	if t.calls == t.failAt {
		return errInjected
	}
	return t.Tx.CreateRubrique(ctx, r)
}

func activeCount(t *testing.T, svc documentum.Service, projetID uuid.UUID) int {
	t.Helper()
	versions, err := svc.ListVersions(context.Background(), projetID)
	require.NoError(t, err)
	n := 0
	for _, v := range versions {
		if v.IsActive {
			n++
		}
	}
	return n
}

func TestActivate(t *testing.T) {
	ctx := context.Background()

	t.Run("switches the active version", func(t *testing.T) {
		f := newFixture(t)
		created := f.createProjet(t, "Docs")
		next, err := f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: "1.1.0"})
		require.NoError(t, err)
		assert.False(t, next.IsActive)

		n, err := f.svc.Activate(ctx, next.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		old, err := f.svc.GetVersion(ctx, created.Version.ID)
		require.NoError(t, err)
		assert.False(t, old.IsActive)
		active, err := f.svc.GetActiveVersion(ctx, created.Projet.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.1.0", active.VersionNumero)
		assert.NoError(t, f.svc.VerifyVersions(ctx, created.Projet.ID))
	})

	t.Run("already active is a no-op", func(t *testing.T) {
		f := newFixture(t)
		created := f.createProjet(t, "Docs")
		n, err := f.svc.Activate(ctx, created.Version.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, 1, activeCount(t, f.svc, created.Projet.ID))
	})

	t.Run("archived version cannot be activated", func(t *testing.T) {
		f := newFixture(t)
		created := f.createProjet(t, "Docs")
		old, err := f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: "0.9.0"})
		require.NoError(t, err)
		n, err := f.svc.ArchiveNonActive(ctx, created.Projet.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = f.svc.Activate(ctx, old.ID)
		assert.ErrorIs(t, err, documentum.ErrPrecondition)
		assert.ErrorIs(t, err, documentum.ErrArchivedVersion)
		active, err := f.svc.GetActiveVersion(ctx, created.Projet.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Version.ID, active.ID)
	})

	t.Run("unknown version", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Activate(ctx, uuid.New())
		assert.ErrorIs(t, err, documentum.ErrNotFound)
	})

	t.Run("concurrent activations leave exactly one active", func(t *testing.T) {
		f := newFixture(t)
		created := f.createProjet(t, "Docs")
		var ids []uuid.UUID
		for _, label := range []string{"2.0", "3.0", "4.0", "5.0"} {
			v, err := f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: label})
			require.NoError(t, err)
			ids = append(ids, v.ID)
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := f.svc.Activate(ctx, id)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()

		assert.Equal(t, 1, activeCount(t, f.svc, created.Projet.ID))
	})
}

func TestCreateInitialVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.seedProjet(t)
	v, err := f.svc.CreateInitialVersion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.VersionNumero)
	assert.True(t, v.IsActive)

	_, err = f.svc.CreateInitialVersion(ctx, p.ID)
	assert.ErrorIs(t, err, documentum.ErrConflict)
	assert.ErrorIs(t, err, documentum.ErrActiveVersionSet)
	assert.Equal(t, 1, activeCount(t, f.svc, p.ID))

	_, err = f.svc.CreateInitialVersion(ctx, uuid.New())
	assert.ErrorIs(t, err, documentum.ErrNotFound)
}

func TestCreateVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createProjet(t, "Docs")

	_, err := f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: "1.0.0"})
	assert.ErrorIs(t, err, documentum.ErrConflict)
	assert.ErrorIs(t, err, documentum.ErrAlreadyExists)

	_, err = f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID})
	assert.ErrorIs(t, err, documentum.ErrValidation)

	_, err = f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: uuid.New(), VersionNumero: "1"})
	assert.ErrorIs(t, err, documentum.ErrNotFound)
}

func TestArchiveNonActive(t *testing.T) {
	ctx := context.Background()

	t.Run("archives every other version", func(t *testing.T) {
		f := newFixture(t)
		created := f.createProjet(t, "Docs")
		for _, label := range []string{"0.8", "0.9"} {
			_, err := f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: label})
			require.NoError(t, err)
		}

		n, err := f.svc.ArchiveNonActive(ctx, created.Projet.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		versions, err := f.svc.ListVersions(ctx, created.Projet.ID)
		require.NoError(t, err)
		for _, v := range versions {
			if v.ID == created.Version.ID {
				assert.Equal(t, documentum.VersionStateActive, v.State())
			} else {
				assert.Equal(t, documentum.VersionStateArchived, v.State())
			}
		}

		n, err = f.svc.ArchiveNonActive(ctx, created.Projet.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("no active version", func(t *testing.T) {
		f := newFixture(t)
		p := f.seedProjet(t, &documentum.VersionProjet{VersionNumero: "1.0.0"})

		_, err := f.svc.ArchiveNonActive(ctx, p.ID)
		assert.ErrorIs(t, err, documentum.ErrNoActiveVersion)
		assert.ErrorIs(t, err, documentum.ErrPrecondition)
		assert.ErrorIs(t, err, documentum.ErrNotFound)

		versions, err := f.svc.ListVersions(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, versions[0].IsArchived)
	})
}

func TestClone(t *testing.T) {
	ctx := documentum.WithActor(context.Background(), "alice")

	setup := func(t *testing.T, f *fixture) *documentum.ProjetCreated {
		created := f.createProjet(t, "Docs")
		var last *documentum.Rubrique
		for _, titre := range []string{"Un", "Deux", "Trois", "Quatre"} {
			r, err := f.svc.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: titre, ContenuXML: "<topic/>"})
			require.NoError(t, err)
			last = r
		}
		_, err := f.svc.AcquireEditLock(ctx, last.ID)
		require.NoError(t, err)
		_, err = f.svc.ArchiveRubrique(ctx, last.ID)
		require.NoError(t, err)
		return created
	}

	t.Run("copies active rubriques only", func(t *testing.T) {
		f := newFixture(t)
		created := setup(t, f)

		// lock one of the copied rubriques too
		rubriques, err := f.svc.ListRubriques(ctx, documentum.RubriqueFilter{VersionProjetID: &created.Version.ID})
		require.NoError(t, err)
		require.Len(t, rubriques, 3)
		_, err = f.svc.AcquireEditLock(ctx, rubriques[0].ID)
		require.NoError(t, err)

		clone, err := f.svc.Clone(ctx, created.Version.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0_clone", clone.VersionNumero)
		assert.Equal(t, "Clonage de 1.0.0", clone.NotesVersion)
		assert.False(t, clone.IsActive)

		copies, err := f.svc.ListRubriques(ctx, documentum.RubriqueFilter{VersionProjetID: &clone.ID, IncludeArchived: true})
		require.NoError(t, err)
		require.Len(t, copies, 3)
		originals := map[uuid.UUID]bool{}
		for _, r := range rubriques {
			originals[r.ID] = true
		}
		for _, c := range copies {
			assert.True(t, c.IsActive)
			assert.False(t, c.IsArchived)
			assert.Empty(t, c.LockedBy)
			assert.Nil(t, c.LockedAt)
			assert.False(t, originals[c.ID])
		}

		// source is untouched
		again, err := f.svc.ListRubriques(ctx, documentum.RubriqueFilter{VersionProjetID: &created.Version.ID, IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, again, 4)

		second, err := f.svc.Clone(ctx, created.Version.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0_clone2", second.VersionNumero)
		assert.Equal(t, 1, activeCount(t, f.svc, created.Projet.ID))
	})

	t.Run("failure leaves nothing behind", func(t *testing.T) {
		repo := memory.New()
		plain, err := documentum.New(documentum.WithRepository(repo))
		require.NoError(t, err)
		f := &fixture{svc: plain, repo: repo, sink: &recordingSink{}}
		created := setup(t, f)

		broken, err := documentum.New(documentum.WithRepository(&faultyRepo{inner: repo, n: 2}))
		require.NoError(t, err)
		_, err = broken.Clone(ctx, created.Version.ID)
		assert.ErrorIs(t, err, errInjected)

		versions, err := plain.ListVersions(ctx, created.Projet.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 1)
		all, err := plain.ListRubriques(ctx, documentum.RubriqueFilter{ProjetID: &created.Projet.ID, IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("unknown source", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Clone(ctx, uuid.New())
		assert.ErrorIs(t, err, documentum.ErrNotFound)
	})
}

func TestVerifyVersions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	none := f.seedProjet(t, &documentum.VersionProjet{VersionNumero: "1", IsArchived: true})
	err := f.svc.VerifyVersions(ctx, none.ID)
	assert.ErrorIs(t, err, documentum.ErrNoActiveVersion)

	ok := f.createProjet(t, "Docs")
	assert.NoError(t, f.svc.VerifyVersions(ctx, ok.Projet.ID))

	assert.ErrorIs(t, f.svc.VerifyVersions(ctx, uuid.New()), documentum.ErrNotFound)
}

// Random sequences of version operations never leave more than one active
// version, and never zero once a Projet has been created through the service.
func TestSingleActiveVersionUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createProjet(t, "Docs")
	pid := created.Projet.ID

	ids := []uuid.UUID{created.Version.ID}
	for i := 0; i < 60; i++ {
		switch i % 4 {
		case 0:
			v, err := f.svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: pid, VersionNumero: uuid.NewString()})
			require.NoError(t, err)
			ids = append(ids, v.ID)
		case 1:
			_, err := f.svc.Activate(ctx, ids[(i*7)%len(ids)])
			if err != nil {
				assert.ErrorIs(t, err, documentum.ErrArchivedVersion)
			}
		case 2:
			v, err := f.svc.Clone(ctx, ids[(i*3)%len(ids)])
			require.NoError(t, err)
			ids = append(ids, v.ID)
		case 3:
			if i%12 == 3 {
				_, err := f.svc.ArchiveNonActive(ctx, pid)
				require.NoError(t, err)
			}
		}
		require.Equal(t, 1, activeCount(t, f.svc, pid), "step %d", i)
	}
}

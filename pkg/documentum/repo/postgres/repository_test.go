package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/repo/postgres"
	"github.com/tendant/documentum/pkg/documentum/repo/postgres/migrations"
)

// newTestPool connects to TEST_DATABASE_URL and applies the schema.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	require.NoError(t, migrations.MigrateUp(db))
	return pool
}

func TestPostgresRepository_ScenarioActivate(t *testing.T) {
	pool := newTestPool(t)
	svc, err := documentum.New(documentum.WithRepository(postgres.NewWithPool(pool)))
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.CreateProjet(ctx, documentum.CreateProjetRequest{Nom: "Docs " + uuid.NewString()})
	require.NoError(t, err)
	next, err := svc.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: "1.1.0"})
	require.NoError(t, err)

	n, err := svc.Activate(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := svc.GetActiveVersion(ctx, created.Projet.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)
	assert.NoError(t, svc.VerifyVersions(ctx, created.Projet.ID))

	r, err := svc.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "Intro", ContenuXML: "<topic/>"})
	require.NoError(t, err)
	assert.Equal(t, next.ID, *r.VersionProjetID)

	clone, err := svc.Clone(ctx, next.ID)
	require.NoError(t, err)
	copies, err := svc.ListRubriques(ctx, documentum.RubriqueFilter{VersionProjetID: &clone.ID})
	require.NoError(t, err)
	assert.Len(t, copies, 1)

	resolved, err := svc.Resolve(ctx, created.Map.ID)
	require.NoError(t, err)
	assert.Empty(t, resolved.Entries)
}

func TestPostgresRepository_SingleActiveIndex(t *testing.T) {
	pool := newTestPool(t)
	repo := postgres.NewWithPool(pool)
	ctx := context.Background()

	p := &documentum.Projet{ID: uuid.New(), Nom: "Index", DateCreation: time.Now().UTC(), DateMiseAJour: time.Now().UTC()}
	err := repo.RunInTx(ctx, func(tx documentum.Tx) error {
		if err := tx.CreateProjet(ctx, p); err != nil {
			return err
		}
		return tx.CreateVersion(ctx, &documentum.VersionProjet{ID: uuid.New(), ProjetID: p.ID, VersionNumero: "1", DateLancement: time.Now().UTC(), IsActive: true})
	})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, func(tx documentum.Tx) error {
		return tx.CreateVersion(ctx, &documentum.VersionProjet{ID: uuid.New(), ProjetID: p.ID, VersionNumero: "2", DateLancement: time.Now().UTC(), IsActive: true})
	})
	assert.ErrorIs(t, err, documentum.ErrConflict)
	assert.ErrorIs(t, err, documentum.ErrActiveVersionSet)

	err = repo.RunInTx(ctx, func(tx documentum.Tx) error {
		return tx.CreateVersion(ctx, &documentum.VersionProjet{ID: uuid.New(), ProjetID: uuid.New(), VersionNumero: "x", DateLancement: time.Now().UTC()})
	})
	assert.ErrorIs(t, err, documentum.ErrValidation)
}

func TestPostgresRepository_RollbackAndNotFound(t *testing.T) {
	pool := newTestPool(t)
	repo := postgres.NewWithPool(pool)
	ctx := context.Background()
	boom := errors.New("boom")

	p := &documentum.Projet{ID: uuid.New(), Nom: "Rollback", DateCreation: time.Now().UTC(), DateMiseAJour: time.Now().UTC()}
	err := repo.RunInTx(ctx, func(tx documentum.Tx) error {
		require.NoError(t, tx.CreateProjet(ctx, p))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = repo.RunInTx(ctx, func(tx documentum.Tx) error {
		_, err := tx.GetProjet(ctx, p.ID)
		return err
	})
	assert.ErrorIs(t, err, documentum.ErrNotFound)
}

func TestPostgresRepository_LockTimeout(t *testing.T) {
	pool := newTestPool(t)
	repo := postgres.NewWithPool(pool, postgres.WithLockTimeout(100*time.Millisecond))
	ctx := context.Background()

	p := &documentum.Projet{ID: uuid.New(), Nom: "Locks", DateCreation: time.Now().UTC(), DateMiseAJour: time.Now().UTC()}
	require.NoError(t, repo.RunInTx(ctx, func(tx documentum.Tx) error { return tx.CreateProjet(ctx, p) }))

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- repo.RunInTx(ctx, func(tx documentum.Tx) error {
			if err := tx.LockProjet(ctx, p.ID); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := repo.RunInTx(ctx, func(tx documentum.Tx) error { return tx.LockProjet(ctx, p.ID) })
	assert.ErrorIs(t, err, documentum.ErrConflict)
	assert.ErrorIs(t, err, documentum.ErrLockTimeout)
	assert.True(t, documentum.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
}

// pausingRepo stops the transaction that makes the matching write until
// release is closed, keeping its locks held and its changes uncommitted.
type pausingRepo struct {
	*postgres.Repository
	match   func(write string, id uuid.UUID) bool
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func newPausingRepo(pool *pgxpool.Pool, match func(write string, id uuid.UUID) bool) *pausingRepo {
	return &pausingRepo{
		Repository: postgres.NewWithPool(pool),
		match:      match,
		reached:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (r *pausingRepo) RunInTx(ctx context.Context, fn func(tx documentum.Tx) error) error {
	return r.Repository.RunInTx(ctx, func(tx documentum.Tx) error {
		return fn(&pausingTx{Tx: tx, repo: r})
	})
}

type pausingTx struct {
	documentum.Tx
	repo *pausingRepo
}

func (t *pausingTx) pause(write string, id uuid.UUID) {
	if !t.repo.match(write, id) {
		return
	}
	t.repo.once.Do(func() { close(t.repo.reached) })
	<-t.repo.release
}

func (t *pausingTx) UpdateVersion(ctx context.Context, v *documentum.VersionProjet) error {
	if err := t.Tx.UpdateVersion(ctx, v); err != nil {
		return err
	}
	t.pause("version", v.ID)
	return nil
}

func (t *pausingTx) UpdateRubrique(ctx context.Context, r *documentum.Rubrique) error {
	if err := t.Tx.UpdateRubrique(ctx, r); err != nil {
		return err
	}
	t.pause("rubrique", r.ID)
	return nil
}

func (t *pausingTx) UpdateMapEntry(ctx context.Context, e *documentum.MapRubrique) error {
	if err := t.Tx.UpdateMapEntry(ctx, e); err != nil {
		return err
	}
	t.pause("map_entry", e.ID)
	return nil
}

// interleave runs first until it pauses, starts second, checks that second
// waits for first's locks, then lets both finish.
func interleave(t *testing.T, gate *pausingRepo, first, second func() error) (error, error) {
	t.Helper()
	firstDone := make(chan error, 1)
	secondDone := make(chan error, 1)

	go func() { firstDone <- first() }()
	select {
	case <-gate.reached:
	case err := <-firstDone:
		t.Fatalf("first transaction finished without pausing: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("first transaction never paused")
	}

	go func() { secondDone <- second() }()
	select {
	case err := <-secondDone:
		close(gate.release)
		<-firstDone
		t.Fatalf("second transaction did not wait for the first: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(gate.release)
	return <-firstDone, <-secondDone
}

func TestPostgresRepository_CreateRubriqueWaitsForActivate(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	plain, err := documentum.New(documentum.WithRepository(postgres.NewWithPool(pool)))
	require.NoError(t, err)

	created, err := plain.CreateProjet(ctx, documentum.CreateProjetRequest{Nom: "Bind " + uuid.NewString()})
	require.NoError(t, err)
	next, err := plain.CreateVersion(ctx, documentum.CreateVersionRequest{ProjetID: created.Projet.ID, VersionNumero: "2.0.0"})
	require.NoError(t, err)

	gate := newPausingRepo(pool, func(write string, id uuid.UUID) bool { return write == "version" && id == next.ID })
	gated, err := documentum.New(documentum.WithRepository(gate))
	require.NoError(t, err)

	var r *documentum.Rubrique
	activateErr, createErr := interleave(t, gate,
		func() error {
			_, err := gated.Activate(ctx, next.ID)
			return err
		},
		func() error {
			var err error
			r, err = plain.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "Concurrent"})
			return err
		},
	)
	require.NoError(t, activateErr)
	require.NoError(t, createErr)
	require.NotNil(t, r.VersionProjetID)
	assert.Equal(t, next.ID, *r.VersionProjetID)

	clone, err := plain.Clone(ctx, next.ID)
	require.NoError(t, err)
	copies, err := plain.ListRubriques(ctx, documentum.RubriqueFilter{VersionProjetID: &clone.ID})
	require.NoError(t, err)
	assert.Len(t, copies, 1)
}

func TestPostgresRepository_ConcurrentMovesCannotLoop(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	plain, err := documentum.New(documentum.WithRepository(postgres.NewWithPool(pool)))
	require.NoError(t, err)

	created, err := plain.CreateProjet(ctx, documentum.CreateProjetRequest{Nom: "Moves " + uuid.NewString()})
	require.NoError(t, err)
	var entries []*documentum.MapRubrique
	for _, titre := range []string{"A", "B"} {
		r, err := plain.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: titre})
		require.NoError(t, err)
		e, err := plain.AddMapEntry(ctx, documentum.AddMapEntryRequest{MapID: created.Map.ID, RubriqueID: r.ID})
		require.NoError(t, err)
		entries = append(entries, e)
	}
	a, b := entries[0], entries[1]

	gate := newPausingRepo(pool, func(write string, id uuid.UUID) bool { return write == "map_entry" && id == a.ID })
	gated, err := documentum.New(documentum.WithRepository(gate))
	require.NoError(t, err)

	firstErr, secondErr := interleave(t, gate,
		func() error {
			_, err := gated.MoveMapEntry(ctx, a.ID, documentum.MoveMapEntryRequest{ParentID: &b.ID})
			return err
		},
		func() error {
			_, err := plain.MoveMapEntry(ctx, b.ID, documentum.MoveMapEntryRequest{ParentID: &a.ID})
			return err
		},
	)
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, documentum.ErrCycle)

	resolved, err := plain.Resolve(ctx, created.Map.ID)
	require.NoError(t, err)
	require.Len(t, resolved.Roots, 1)
	assert.Equal(t, b.ID, resolved.Roots[0].Entry.ID)
}

func TestPostgresRepository_ConcurrentRevisionEditsCannotLoop(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	plain, err := documentum.New(documentum.WithRepository(postgres.NewWithPool(pool)))
	require.NoError(t, err)

	created, err := plain.CreateProjet(ctx, documentum.CreateProjetRequest{Nom: "Chain " + uuid.NewString()})
	require.NoError(t, err)
	a, err := plain.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "A"})
	require.NoError(t, err)
	b, err := plain.CreateRubrique(ctx, documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "B"})
	require.NoError(t, err)

	gate := newPausingRepo(pool, func(write string, id uuid.UUID) bool { return write == "rubrique" && id == a.ID })
	gated, err := documentum.New(documentum.WithRepository(gate))
	require.NoError(t, err)

	firstErr, secondErr := interleave(t, gate,
		func() error {
			_, err := gated.UpdateRubrique(ctx, a.ID, documentum.UpdateRubriqueRequest{VersionPrecedenteID: &b.ID})
			return err
		},
		func() error {
			_, err := plain.UpdateRubrique(ctx, b.ID, documentum.UpdateRubriqueRequest{VersionPrecedenteID: &a.ID})
			return err
		},
	)
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, documentum.ErrCycle)
}

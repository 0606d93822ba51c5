package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/api"
	"github.com/tendant/documentum/pkg/documentum/repo/memory"
	memorystorage "github.com/tendant/documentum/pkg/documentum/storage/memory"
)

type testServer struct {
	t      *testing.T
	router http.Handler
}

func setupAPITest(t *testing.T) *testServer {
	t.Helper()
	svc, err := documentum.New(
		documentum.WithRepository(memory.New()),
		documentum.WithBlobStore("memory", memorystorage.New()),
		documentum.WithDefaultBlobStore("memory"),
	)
	require.NoError(t, err)
	return &testServer{t: t, router: api.New(svc, nil).Routes()}
}

// do sends a JSON request as user alice and returns the recorder.
func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.ActorHeader, "alice")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createProjet(nom string) documentum.ProjetCreated {
	w := s.do(http.MethodPost, "/projets", documentum.CreateProjetRequest{Nom: nom})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[documentum.ProjetCreated](s.t, w)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &documentum.ValidationError{Op: "x", Field: "titre"}, http.StatusBadRequest},
		{"precondition", &documentum.PreconditionError{Op: "x"}, http.StatusPreconditionFailed},
		{"no active version", documentum.ErrNoActiveVersion, http.StatusPreconditionFailed},
		{"conflict", &documentum.ConflictError{Op: "x"}, http.StatusConflict},
		{"not found", &documentum.NotFoundError{Resource: "rubrique"}, http.StatusNotFound},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, api.StatusFor(tt.err))
		})
	}
}

func TestVersionLifecycle(t *testing.T) {
	s := setupAPITest(t)
	created := s.createProjet("Guide")
	projetPath := "/projets/" + created.Projet.ID.String()

	w := s.do(http.MethodPost, projetPath+"/versions", documentum.CreateVersionRequest{VersionNumero: "2.0.0"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v2 := decodeBody[documentum.VersionProjet](t, w)
	assert.False(t, v2.IsActive)

	w = s.do(http.MethodPost, "/versions/"+v2.ID.String()+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeBody[api.ActivateResponse](t, w).Deactivated)

	w = s.do(http.MethodGet, projetPath+"/versions/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, v2.ID, decodeBody[documentum.VersionProjet](t, w).ID)

	w = s.do(http.MethodPost, projetPath+"/versions/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeBody[api.CountResponse](t, w).Count)

	t.Run("activating an archived version is a precondition failure", func(t *testing.T) {
		w := s.do(http.MethodPost, "/versions/"+created.Version.ID.String()+"/activate", nil)
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
		assert.Equal(t, "precondition", decodeBody[api.ErrorResponse](t, w).Kind)
	})

	t.Run("initial version conflicts while one is active", func(t *testing.T) {
		w := s.do(http.MethodPost, projetPath+"/versions/initial", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("clone", func(t *testing.T) {
		w := s.do(http.MethodPost, "/versions/"+v2.ID.String()+"/clone", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		clone := decodeBody[documentum.VersionProjet](t, w)
		assert.Equal(t, "2.0.0_clone", clone.VersionNumero)
	})

	w = s.do(http.MethodGet, projetPath+"/versions/verify", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRubriques(t *testing.T) {
	s := setupAPITest(t)
	created := s.createProjet("Guide")

	t.Run("invalid xml is rejected", func(t *testing.T) {
		w := s.do(http.MethodPost, "/rubriques", documentum.CreateRubriqueRequest{
			ProjetID: created.Projet.ID, Titre: "Intro", ContenuXML: "<topic>",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation", decodeBody[api.ErrorResponse](t, w).Kind)
	})

	w := s.do(http.MethodPost, "/rubriques", documentum.CreateRubriqueRequest{
		ProjetID: created.Projet.ID, Titre: "Intro", ContenuXML: "<topic id=\"a\"/>",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rub := decodeBody[documentum.Rubrique](t, w)
	assert.Equal(t, created.Version.ID, *rub.VersionProjetID)
	assert.Equal(t, "alice", rub.Auteur)

	rubPath := "/rubriques/" + rub.ID.String()
	w = s.do(http.MethodPost, rubPath+"/lock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decodeBody[documentum.Rubrique](t, w).LockedBy)

	t.Run("lock held by another user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, rubPath+"/lock", nil)
		req.Header.Set(api.ActorHeader, "bob")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	titre := "Introduction"
	w = s.do(http.MethodPatch, rubPath, documentum.UpdateRubriqueRequest{Titre: &titre})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, titre, decodeBody[documentum.Rubrique](t, w).Titre)

	w = s.do(http.MethodGet, "/rubriques?projet_id="+created.Projet.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]documentum.Rubrique](t, w), 1)

	w = s.do(http.MethodGet, "/rubriques/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/rubriques/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/audit?resource_id="+rub.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decodeBody[[]documentum.AuditEntry](t, w)
	require.NotEmpty(t, entries)
	assert.Equal(t, "alice", entries[0].Actor)
}

func TestMapsAndExport(t *testing.T) {
	s := setupAPITest(t)
	created := s.createProjet("Guide utilisateur")

	w := s.do(http.MethodPost, "/rubriques", documentum.CreateRubriqueRequest{ProjetID: created.Projet.ID, Titre: "Intro", ContenuXML: "<topic/>"})
	require.Equal(t, http.StatusCreated, w.Code)
	rub := decodeBody[documentum.Rubrique](t, w)

	mapPath := "/maps/" + created.Map.ID.String()
	w = s.do(http.MethodPost, mapPath+"/entries", documentum.AddMapEntryRequest{RubriqueID: rub.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decodeBody[documentum.MapRubrique](t, w)

	w = s.do(http.MethodGet, mapPath+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decodeBody[documentum.ResolvedMap](t, w)
	require.Len(t, resolved.Entries, 1)
	assert.Equal(t, rub.ID, resolved.Entries[0].RubriqueID)

	w = s.do(http.MethodGet, mapPath+"/ditamap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `navtitle="Intro"`)

	w = s.do(http.MethodPost, mapPath+"/exports", documentum.ExportRequest{Format: "html5"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decodeBody[documentum.ExportRecord](t, w)
	assert.Equal(t, 2, rec.Files)

	w = s.do(http.MethodPost, mapPath+"/exports", documentum.ExportRequest{Format: "docx"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/maps?projet_id="+created.Projet.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]documentum.Map](t, w), 1)

	w = s.do(http.MethodGet, "/maps", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/map-entries/"+entry.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/formats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody[[]string](t, w), "pdf")
}

func TestTaxonomyAndMedia(t *testing.T) {
	s := setupAPITest(t)

	req := httptest.NewRequest(http.MethodPost, "/taxonomy/gamme/import", strings.NewReader("nom,description\nGestion,ERP\n"))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	gammes := decodeBody[[]documentum.Taxon](t, w)
	require.Len(t, gammes, 1)

	w = s.do(http.MethodPost, "/taxonomy/produit", documentum.CreateTaxonRequest{Nom: "Compta", ParentID: &gammes[0].ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	produit := decodeBody[documentum.Taxon](t, w)
	assert.Equal(t, documentum.TaxonProduit, produit.Kind)

	w = s.do(http.MethodPost, "/taxonomy/produit", documentum.CreateTaxonRequest{Nom: "Orphelin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("produit_id", produit.ID.String()))
	require.NoError(t, mw.WriteField("type_media", documentum.MediaTypeImage))
	require.NoError(t, mw.WriteField("mime_type", "image/png"))
	part, err := mw.CreateFormFile("file", "ecran.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req = httptest.NewRequest(http.MethodPost, "/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decodeBody[documentum.Media](t, w)
	assert.Equal(t, int64(9), m.Size)

	w = s.do(http.MethodGet, "/media/"+m.ID.String()+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(http.MethodPost, "/taxa/"+produit.ID.String()+"/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[documentum.Taxon](t, w).IsArchived)
}

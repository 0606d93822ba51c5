package documentum

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTemplate(t *testing.T) {
	created := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		out := GenerateTemplate(TemplateParams{Created: created})

		require.NoError(t, CheckWellFormed(out))
		assert.Contains(t, out, `<topic id="topic-20250307">`)
		assert.Contains(t, out, "<title>Nouvelle rubrique</title>")
		assert.Contains(t, out, "<author>?</author>")
		assert.Contains(t, out, `<created date="2025-03-07" />`)
		assert.Contains(t, out, "<step><p>Étape 1</p><p>Détail…</p></step>")
		assert.Contains(t, out, "<step><p>Étape 2</p><p>Détail…</p></step>")
		assert.NotContains(t, out, "<audience>")
		assert.True(t, strings.HasSuffix(out, "</topic>"))
	})

	t.Run("metadata", func(t *testing.T) {
		out := GenerateTemplate(TemplateParams{
			Type:            "task",
			Auteur:          "marie",
			Titre:           "Connexion",
			Audience:        "Usager",
			Version:         "2.1.0",
			Produit:         "USA",
			Fonctionnalites: []string{"AUTH", "MEN"},
			Created:         created,
			IDPrefix:        "doc",
		})

		require.NoError(t, CheckWellFormed(out))
		assert.Contains(t, out, `<task id="doc-20250307">`)
		assert.Contains(t, out, "<audience>Usager</audience>")
		assert.Contains(t, out, "<version>2.1.0</version>")
		assert.Contains(t, out, `<doc-tag type="produit">USA</doc-tag>`)
		assert.Contains(t, out, `<doc-tag type="fonctionnalite">AUTH</doc-tag>`)
		assert.Contains(t, out, `<doc-tag type="fonctionnalite">MEN</doc-tag>`)
		assert.Contains(t, out, `<!DOCTYPE topic PUBLIC`)
	})

	t.Run("unknown type falls back to topic", func(t *testing.T) {
		out := GenerateTemplate(TemplateParams{Type: "glossentry", Created: created})
		assert.Contains(t, out, `<topic id=`)
	})

	t.Run("parameters are escaped", func(t *testing.T) {
		out := GenerateTemplate(TemplateParams{Titre: "A & B <C>", Auteur: `"x"`, Created: created})
		require.NoError(t, CheckWellFormed(out))
		assert.Contains(t, out, "A &amp; B &lt;C&gt;")
	})
}

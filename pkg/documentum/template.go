package documentum

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"
)

// Template defaults.
const (
	DefaultTemplateType   = "topic"
	DefaultTemplateAuthor = "?"
	DefaultTemplateTitle  = "Nouvelle rubrique"
	DefaultTopicIDPrefix  = "topic"
)

var templateTypes = map[string]bool{
	"topic":     true,
	"concept":   true,
	"task":      true,
	"reference": true,
}

// TemplateParams parameterizes GenerateTemplate. Empty fields fall back to
// the defaults above; optional metadata is omitted when empty.
type TemplateParams struct {
	Type            string    `json:"type_dita,omitempty"`
	Auteur          string    `json:"auteur,omitempty"`
	Titre           string    `json:"titre,omitempty"`
	Audience        string    `json:"audience,omitempty"`
	Version         string    `json:"version,omitempty"`
	Produit         string    `json:"produit,omitempty"`
	Fonctionnalites []string  `json:"fonctionnalites,omitempty"`
	Created         time.Time `json:"created,omitempty"`
	IDPrefix        string    `json:"topic_id_prefix,omitempty"`
}

const templateBody = `
  <body>
    <section>
      <title>Concept</title>
      <p>Présentez le contexte fonctionnel et le “pourquoi”.</p>
    </section>

    <task>
      <title>Procédure</title>
      <steps>
        <step><p>Étape 1</p><p>Détail…</p></step>
        <step><p>Étape 2</p><p>Détail…</p></step>
      </steps>
    </task>

    <section>
      <title>Référence</title>
      <p>Paramètres, contraintes, erreurs fréquentes…</p>
    </section>
  </body>`

// GenerateTemplate returns a DITA skeleton for a new Rubrique. Unknown types
// fall back to topic; the DOCTYPE is always the Topic one.
func GenerateTemplate(p TemplateParams) string {
	typ := p.Type
	if !templateTypes[typ] {
		typ = DefaultTemplateType
	}
	auteur := orDefault(p.Auteur, DefaultTemplateAuthor)
	titre := orDefault(p.Titre, DefaultTemplateTitle)
	prefix := orDefault(p.IDPrefix, DefaultTopicIDPrefix)
	created := p.Created
	if created.IsZero() {
		created = time.Now()
	}
	day := created.Format("2006-01-02")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<!DOCTYPE topic PUBLIC "-//OASIS//DTD DITA Topic//EN" "topic.dtd">` + "\n")
	b.WriteString("<" + typ + ` id="` + escape(prefix) + "-" + created.Format("20060102") + `">` + "\n")
	b.WriteString("  <title>" + escape(titre) + "</title>\n")
	b.WriteString("  <prolog>\n")
	b.WriteString("    <author>" + escape(auteur) + "</author>\n")
	b.WriteString("    <critdates>\n")
	b.WriteString(`      <created date="` + day + `" />` + "\n")
	b.WriteString("    </critdates>\n")
	b.WriteString("    <metadata>")
	if p.Audience != "" {
		b.WriteString("\n      <audience>" + escape(p.Audience) + "</audience>")
	}
	if p.Version != "" {
		b.WriteString("\n      <version>" + escape(p.Version) + "</version>")
	}
	if p.Produit != "" {
		b.WriteString("\n      " + `<doc-tag type="produit">` + escape(p.Produit) + "</doc-tag>")
	}
	for _, code := range p.Fonctionnalites {
		b.WriteString("\n      " + `<doc-tag type="fonctionnalite">` + escape(code) + "</doc-tag>")
	}
	b.WriteString("\n    </metadata>\n")
	b.WriteString("  </prolog>")
	b.WriteString(templateBody)
	b.WriteString("\n</" + typ + ">")
	return b.String()
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

package documentum

import (
	"encoding/xml"
)

const ditaMapDoctype = `<!DOCTYPE map PUBLIC "-//OASIS//DTD DITA Map//EN" "map.dtd">` + "\n"

type ditaMap struct {
	XMLName   xml.Name   `xml:"map"`
	ID        string     `xml:"id,attr"`
	Title     string     `xml:"title"`
	TopicRefs []topicRef `xml:"topicref"`
}

type topicRef struct {
	Href     string     `xml:"href,attr"`
	NavTitle string     `xml:"navtitle,attr,omitempty"`
	Children []topicRef `xml:"topicref"`
}

// TopicFileName is the path, relative to the ditamap, of a Rubrique's topic.
func TopicFileName(r *Rubrique) string {
	return "topics/" + topicID(r) + ".dita"
}

func topicID(r *Rubrique) string {
	return "rubrique-" + r.ID.String()
}

// BuildDitaMap renders a resolved Map as a DITA map document whose nested
// topicrefs follow the resolved tree.
func BuildDitaMap(resolved *ResolvedMap) ([]byte, error) {
	doc := ditaMap{
		ID:    "map-" + resolved.Map.ID.String(),
		Title: resolved.Map.Nom,
	}
	for _, n := range resolved.Roots {
		doc.TopicRefs = append(doc.TopicRefs, toTopicRef(n))
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(ditaMapDoctype)+len(body))
	out = append(out, xml.Header...)
	out = append(out, ditaMapDoctype...)
	out = append(out, body...)
	return out, nil
}

func toTopicRef(n *MapNode) topicRef {
	ref := topicRef{}
	if n.Rubrique != nil {
		ref.Href = TopicFileName(n.Rubrique)
		ref.NavTitle = n.Rubrique.Titre
	} else {
		ref.Href = "topics/rubrique-" + n.Entry.RubriqueID.String() + ".dita"
	}
	for _, c := range n.Children {
		ref.Children = append(ref.Children, toTopicRef(c))
	}
	return ref
}

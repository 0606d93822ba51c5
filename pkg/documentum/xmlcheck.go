package documentum

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// CheckWellFormed returns nil when content parses as a single well-formed
// XML document with namespace prefixes bound. Empty content is accepted.
// The error carries the parser's line information.
func CheckWellFormed(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	d := xml.NewDecoder(strings.NewReader(content))
	d.Strict = true
	d.CharsetReader = charset.NewReaderLabel

	c := &wellFormedChecker{}
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidXML, err)
		}
		if err := c.check(tok); err != nil {
			line, _ := d.InputPos()
			return fmt.Errorf("%w: line %d: %s", ErrInvalidXML, line, err)
		}
		c.tokens++
	}

	switch {
	case len(c.open) > 0:
		return fmt.Errorf("%w: unclosed element <%s>", ErrInvalidXML, c.open[len(c.open)-1])
	case c.roots == 0:
		return fmt.Errorf("%w: no document element", ErrInvalidXML)
	}
	return nil
}

// wellFormedChecker holds the state RawToken does not check for us.
type wellFormedChecker struct {
	tokens int
	roots  int
	open   []string
	scopes []map[string]string
}

func (c *wellFormedChecker) check(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		if len(c.open) == 0 {
			c.roots++
			if c.roots > 1 {
				return fmt.Errorf("junk after document element <%s>", qname(t.Name))
			}
		}
		if err := c.pushScope(t); err != nil {
			return err
		}
		c.open = append(c.open, qname(t.Name))
	case xml.EndElement:
		if len(c.open) == 0 {
			return fmt.Errorf("unexpected end element </%s>", qname(t.Name))
		}
		top := c.open[len(c.open)-1]
		if top != qname(t.Name) {
			return fmt.Errorf("element <%s> closed by </%s>", top, qname(t.Name))
		}
		c.open = c.open[:len(c.open)-1]
		c.scopes = c.scopes[:len(c.scopes)-1]
	case xml.CharData:
		if len(c.open) == 0 && len(strings.TrimSpace(string(t))) > 0 {
			return errors.New("text outside document element")
		}
	case xml.ProcInst:
		if strings.EqualFold(t.Target, "xml") && c.tokens > 0 {
			return errors.New("XML declaration not at start of document")
		}
	}
	return nil
}

func (c *wellFormedChecker) pushScope(t xml.StartElement) error {
	scope := map[string]string{}
	for _, a := range t.Attr {
		if a.Name.Space != "xmlns" {
			continue
		}
		switch {
		case a.Name.Local == "xmlns":
			return errors.New("prefix xmlns cannot be declared")
		case a.Value == "":
			return fmt.Errorf("prefix %s bound to an empty namespace", a.Name.Local)
		}
		scope[a.Name.Local] = a.Value
	}
	c.scopes = append(c.scopes, scope)

	if t.Name.Space != "" {
		if _, ok := c.lookup(t.Name.Space); !ok || t.Name.Space == "xmlns" {
			return fmt.Errorf("unbound prefix %s on element <%s>", t.Name.Space, qname(t.Name))
		}
	}

	seen := make(map[string]bool, len(t.Attr))
	expanded := make(map[string]bool, len(t.Attr))
	for _, a := range t.Attr {
		name := qname(a.Name)
		if seen[name] {
			return fmt.Errorf("duplicate attribute %s on <%s>", name, qname(t.Name))
		}
		seen[name] = true

		if a.Name.Space == "" || a.Name.Space == "xmlns" {
			continue
		}
		uri, ok := c.lookup(a.Name.Space)
		if !ok {
			return fmt.Errorf("unbound prefix %s on attribute %s", a.Name.Space, name)
		}
		key := uri + " " + a.Name.Local
		if expanded[key] {
			return fmt.Errorf("duplicate attribute {%s}%s on <%s>", uri, a.Name.Local, qname(t.Name))
		}
		expanded[key] = true
	}
	return nil
}

func (c *wellFormedChecker) lookup(prefix string) (string, bool) {
	if prefix == "xml" {
		return xmlNamespace, true
	}
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if uri, ok := c.scopes[i][prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

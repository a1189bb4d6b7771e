package registry

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Namespace of the organisaties.overheid.nl export schema.
const Namespace = "https://organisaties.overheid.nl/static/schema/oo/export/2.6.9"

const (
	ministryType   = "Ministerie"
	ministryPrefix = "Ministerie van "
	sourceURLBase  = "https://organisaties.overheid.nl/"
)

var (
	slugUnsafe     = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)
	slugUnderscore = regexp.MustCompile(`_+`)
)

type xmlDocument struct {
	Organisaties []xmlOrganisatie `xml:"https://organisaties.overheid.nl/static/schema/oo/export/2.6.9 organisaties>organisatie"`
}

type xmlOrganisatie struct {
	Attrs                []xml.Attr       `xml:",any,attr"`
	Naam                 string           `xml:"https://organisaties.overheid.nl/static/schema/oo/export/2.6.9 naam"`
	Types                []string         `xml:"https://organisaties.overheid.nl/static/schema/oo/export/2.6.9 types>type"`
	Afkortingen          []string         `xml:"https://organisaties.overheid.nl/static/schema/oo/export/2.6.9 afkorting"`
	RelatieMetMinisterie *xmlRelatie      `xml:"https://organisaties.overheid.nl/static/schema/oo/export/2.6.9 relatieMetMinisterie"`
	Organisaties         []xmlOrganisatie `xml:"https://organisaties.overheid.nl/static/schema/oo/export/2.6.9 organisaties>organisatie"`
}

type xmlRelatie struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// Parse decodes a registry export into root nodes. With filterTypes, only roots whose
// primary type matches one of them (case-insensitive) are returned; their children are kept.
func Parse(data []byte, filterTypes ...string) ([]Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Err: errors.New("empty document")}
	}
	var doc xmlDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if err := expectEOF(dec); err != nil {
		return nil, &ParseError{Err: err}
	}

	out := make([]Node, 0, len(doc.Organisaties))
	for _, o := range doc.Organisaties {
		n := toNode(o)
		if !matchesFilter(n, filterTypes) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func matchesFilter(n Node, filterTypes []string) bool {
	if len(filterTypes) == 0 {
		return true
	}
	primary := n.PrimaryType()
	for _, f := range filterTypes {
		if strings.EqualFold(strings.TrimSpace(f), primary) {
			return true
		}
	}
	return false
}

// expectEOF fails on anything but whitespace, comments and processing instructions
// after the root element.
func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return fmt.Errorf("unexpected text after root element at offset %d", dec.InputOffset())
			}
		case xml.StartElement:
			return fmt.Errorf("unexpected element <%s> after root element", t.Name.Local)
		default:
			return fmt.Errorf("unexpected %T after root element", tok)
		}
	}
}

func toNode(o xmlOrganisatie) Node {
	name := strings.TrimSpace(o.Naam)
	n := Node{
		Name:          name,
		SystemID:      attr(o.Attrs, "systeemId"),
		TOOI:          attr(o.Attrs, "resourceIdentifierTOOI"),
		TypeNames:     nonEmpty(o.Types),
		Abbreviations: nonEmpty(o.Afkortingen),
	}
	n.Label = DeriveLabel(name, n.TypeNames)
	n.SourceURL = BuildSourceURL(n.SystemID, name)
	if o.RelatieMetMinisterie != nil {
		n.RelatedMinistryTOOI = attr(o.RelatieMetMinisterie.Attrs, "resourceIdentifierTOOI")
	}
	if len(o.Organisaties) > 0 {
		n.Children = make([]Node, 0, len(o.Organisaties))
		for _, c := range o.Organisaties {
			n.Children = append(n.Children, toNode(c))
		}
	}
	return n
}

// attr prefers the namespaced attribute and falls back to an unqualified one.
func attr(attrs []xml.Attr, local string) string {
	var bare string
	for _, a := range attrs {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == Namespace {
			return strings.TrimSpace(a.Value)
		}
		if a.Name.Space == "" {
			bare = strings.TrimSpace(a.Value)
		}
	}
	return bare
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// DeriveLabel prefixes ministries with "Ministerie van " unless the name already starts with "Ministerie".
func DeriveLabel(name string, typeNames []string) string {
	for _, t := range typeNames {
		if strings.EqualFold(t, ministryType) && !strings.HasPrefix(name, ministryType) {
			return ministryPrefix + name
		}
	}
	return name
}

// BuildSourceURL returns the public registry page of an organization, or "" without a system id.
func BuildSourceURL(systemID, name string) string {
	if systemID == "" {
		return ""
	}
	slug := slugUnsafe.ReplaceAllString(name, "_")
	slug = strings.Trim(slugUnderscore.ReplaceAllString(slug, "_"), "_")
	return sourceURLBase + systemID + "/" + slug + "/"
}

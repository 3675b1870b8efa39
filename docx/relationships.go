package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
	// Resolved is the target part name for internal relationships.
	Resolved string
}

// Kind is the last segment of the relationship type URI, e.g. "header".
func (r *Relationship) Kind() string {
	return path.Base(r.Type)
}

// Relationships is the parsed .rels part of a source part.
type Relationships struct {
	source string
	part   string
	doc    *etree.Document
	Items  []*Relationship
}

// Relationships loads the relationships of source ("" for the package).
// A missing .rels part yields an empty, writable set.
func (d *Document) Relationships(source string) (*Relationships, error) {
	relsPart := relsPartFor(source)
	rs := &Relationships{source: source, part: relsPart}

	if !d.HasPart(relsPart) {
		x := etree.NewDocument()
		x.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := x.CreateElement("Relationships")
		root.CreateAttr("xmlns", relationshipNS)
		rs.doc = x
		return rs, nil
	}

	x, err := d.XML(relsPart)
	if err != nil {
		return nil, err
	}
	rs.doc = x
	for _, el := range x.Root().SelectElements("Relationship") {
		r := &Relationship{
			ID:       el.SelectAttrValue("Id", ""),
			Type:     el.SelectAttrValue("Type", ""),
			Target:   el.SelectAttrValue("Target", ""),
			External: strings.EqualFold(el.SelectAttrValue("TargetMode", ""), "External"),
		}
		if !r.External {
			r.Resolved = resolveTarget(source, r.Target)
		}
		rs.Items = append(rs.Items, r)
	}
	return rs, nil
}

// ByID finds a relationship by id.
func (rs *Relationships) ByID(id string) *Relationship {
	for _, r := range rs.Items {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// FirstOfType finds the first relationship of a kind such as "styles".
func (rs *Relationships) FirstOfType(kind string) *Relationship {
	for _, r := range rs.Items {
		if r.Kind() == kind {
			return r
		}
	}
	return nil
}

// Add appends a relationship with a fresh id and returns it. part is a
// part name for internal targets or a URI for external ones.
func (rs *Relationships) Add(relType, part string, external bool) *Relationship {
	r := &Relationship{ID: rs.nextID(), Type: relType, External: external}
	if external {
		r.Target = part
	} else {
		r.Resolved = part
		r.Target = relativeTarget(rs.source, part)
	}

	el := rs.doc.Root().CreateElement("Relationship")
	el.CreateAttr("Id", r.ID)
	el.CreateAttr("Type", r.Type)
	el.CreateAttr("Target", r.Target)
	if external {
		el.CreateAttr("TargetMode", "External")
	}
	rs.Items = append(rs.Items, r)
	return r
}

func (rs *Relationships) nextID() string {
	highest := 0
	for _, r := range rs.Items {
		if n, err := strconv.Atoi(strings.TrimPrefix(r.ID, "rId")); err == nil && n > highest {
			highest = n
		}
	}
	for {
		highest++
		id := fmt.Sprintf("rId%d", highest)
		if rs.ByID(id) == nil {
			return id
		}
	}
}

// save stores the relationships back into the package.
func (rs *Relationships) save(d *Document) {
	d.SetXML(rs.part, rs.doc)
}

func relType(kind string) string {
	return relTypePrefix + kind
}
